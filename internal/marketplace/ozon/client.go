package ozon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production Ozon Seller API host.
const DefaultBaseURL = "https://api-seller.ozon.ru"

// Config carries per-client credentials and tuning for the Seller API.
type Config struct {
	BaseURL  string
	ClientID string
	APIKey   string
	Timeout  time.Duration
	// RPS caps outgoing requests per second across all endpoints.
	RPS      int
	PageSize int
}

// Client talks to the Ozon Seller API. Requests are rate limited and
// never retried; a failed sync surfaces the error and the next scheduled
// run picks up from the same facts.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	apiKey     string
	limiter    *rate.Limiter
	pageSize   int
}

// New builds a Seller API client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		clientID:   cfg.ClientID,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
		pageSize:   cfg.PageSize,
	}
}

// APIError is a non-2xx Seller API response.
type APIError struct {
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ozon: %s returned %d: %s", e.Path, e.Status, e.Body)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("ozon: encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ozon: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ozon: read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Path: path, Status: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ozon: decode %s response: %w", path, err)
	}
	return nil
}

// Product is one catalogue item joined from the list and info endpoints.
type Product struct {
	ProductID int64
	OfferID   string
	Name      string
	Barcode   string
	Stock     int64
}

type productListRequest struct {
	Filter struct {
		Visibility string `json:"visibility"`
	} `json:"filter"`
	LastID string `json:"last_id,omitempty"`
	Limit  int    `json:"limit"`
}

type productListResponse struct {
	Result struct {
		Items []struct {
			ProductID int64  `json:"product_id"`
			OfferID   string `json:"offer_id"`
		} `json:"items"`
		Total  int    `json:"total"`
		LastID string `json:"last_id"`
	} `json:"result"`
}

type productInfoRequest struct {
	ProductID []int64 `json:"product_id"`
}

type productInfoResponse struct {
	Items []struct {
		ID       int64    `json:"id"`
		OfferID  string   `json:"offer_id"`
		Name     string   `json:"name"`
		Barcodes []string `json:"barcodes"`
		Stocks   struct {
			Stocks []struct {
				Present int64 `json:"present"`
			} `json:"stocks"`
		} `json:"stocks"`
	} `json:"items"`
}

// Products pages through the full catalogue. Identity comes from
// /v2/product/list; names, barcodes and stock come from
// /v3/product/info/list, fetched one page at a time.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var all []Product
	lastID := ""
	for {
		listReq := productListRequest{LastID: lastID, Limit: c.pageSize}
		listReq.Filter.Visibility = "ALL"

		var page productListResponse
		if err := c.post(ctx, "/v2/product/list", listReq, &page); err != nil {
			return nil, err
		}
		if len(page.Result.Items) == 0 {
			return all, nil
		}

		ids := make([]int64, 0, len(page.Result.Items))
		for _, item := range page.Result.Items {
			ids = append(ids, item.ProductID)
		}

		var info productInfoResponse
		if err := c.post(ctx, "/v3/product/info/list", productInfoRequest{ProductID: ids}, &info); err != nil {
			return nil, err
		}
		for _, item := range info.Items {
			p := Product{ProductID: item.ID, OfferID: item.OfferID, Name: item.Name}
			if len(item.Barcodes) > 0 {
				p.Barcode = item.Barcodes[0]
			}
			for _, s := range item.Stocks.Stocks {
				p.Stock += s.Present
			}
			all = append(all, p)
		}

		lastID = page.Result.LastID
		if lastID == "" || len(page.Result.Items) < c.pageSize {
			return all, nil
		}
	}
}

// PostingProduct is one line item of an FBS posting.
type PostingProduct struct {
	OfferID  string `json:"offer_id"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    string `json:"price"`
}

// Posting is one FBS shipment.
type Posting struct {
	PostingNumber string           `json:"posting_number"`
	Status        string           `json:"status"`
	InProcessAt   time.Time        `json:"in_process_at"`
	Products      []PostingProduct `json:"products"`
}

type postingListRequest struct {
	Dir    string `json:"dir"`
	Filter struct {
		Since time.Time `json:"since"`
		To    time.Time `json:"to"`
	} `json:"filter"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type postingListResponse struct {
	Result struct {
		Postings []Posting `json:"postings"`
		HasNext  bool      `json:"has_next"`
	} `json:"result"`
}

// Postings pages through FBS postings in a window, oldest first.
func (c *Client) Postings(ctx context.Context, from, to time.Time) ([]Posting, error) {
	var all []Posting
	offset := 0
	for {
		req := postingListRequest{Dir: "ASC", Limit: c.pageSize, Offset: offset}
		req.Filter.Since = from
		req.Filter.To = to

		var page postingListResponse
		if err := c.post(ctx, "/v3/posting/fbs/list", req, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Result.Postings...)
		if !page.Result.HasNext {
			return all, nil
		}
		offset += c.pageSize
	}
}

// Operation is one finance transaction.
type Operation struct {
	OperationID       int64   `json:"operation_id"`
	OperationType     string  `json:"operation_type"`
	OperationTypeName string  `json:"operation_type_name"`
	// OperationDate arrives as "2006-01-02 15:04:05", not RFC 3339.
	OperationDate string  `json:"operation_date"`
	Amount        float64 `json:"amount"`
}

// Date parses the operation timestamp.
func (o Operation) Date() (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", o.OperationDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("ozon: operation %d: bad date %q", o.OperationID, o.OperationDate)
	}
	return t, nil
}

type operationListRequest struct {
	Filter struct {
		Date struct {
			From time.Time `json:"from"`
			To   time.Time `json:"to"`
		} `json:"date"`
		TransactionType string `json:"transaction_type"`
	} `json:"filter"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

type operationListResponse struct {
	Result struct {
		Operations []Operation `json:"operations"`
		PageCount  int         `json:"page_count"`
		RowCount   int         `json:"row_count"`
	} `json:"result"`
}

// Operations pages through finance transactions in a window.
func (c *Client) Operations(ctx context.Context, from, to time.Time) ([]Operation, error) {
	var all []Operation
	for page := 1; ; page++ {
		req := operationListRequest{Page: page, PageSize: c.pageSize}
		req.Filter.Date.From = from
		req.Filter.Date.To = to
		req.Filter.TransactionType = "all"

		var resp operationListResponse
		if err := c.post(ctx, "/v3/finance/transaction/list", req, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Result.Operations...)
		if page >= resp.Result.PageCount {
			return all, nil
		}
	}
}
