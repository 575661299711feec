package wildberries

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Production API hosts. Content and statistics live on separate hosts
// with separate rate budgets.
const (
	DefaultContentBaseURL = "https://content-api.wildberries.ru"
	DefaultStatsBaseURL   = "https://statistics-api.wildberries.ru"
)

// Config carries the supplier token and tuning.
type Config struct {
	ContentBaseURL string
	StatsBaseURL   string
	APIKey         string
	Timeout        time.Duration
	// ReqPerMinute caps outgoing requests; the statistics API allows
	// one request per minute on some reports, the content API sixty.
	ReqPerMinute int
	PageSize     int
}

// Client talks to the Wildberries supplier APIs. Requests are rate
// limited and never retried.
type Client struct {
	httpClient     *http.Client
	contentBaseURL string
	statsBaseURL   string
	apiKey         string
	limiter        *rate.Limiter
	pageSize       int
}

// New builds a supplier API client.
func New(cfg Config) *Client {
	if cfg.ContentBaseURL == "" {
		cfg.ContentBaseURL = DefaultContentBaseURL
	}
	if cfg.StatsBaseURL == "" {
		cfg.StatsBaseURL = DefaultStatsBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ReqPerMinute <= 0 {
		cfg.ReqPerMinute = 60
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		contentBaseURL: cfg.ContentBaseURL,
		statsBaseURL:   cfg.StatsBaseURL,
		apiKey:         cfg.APIKey,
		limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.ReqPerMinute)), 1),
		pageSize:       cfg.PageSize,
	}
}

// APIError is a non-2xx supplier API response.
type APIError struct {
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wildberries: %s returned %d: %s", e.Path, e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wildberries: %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("wildberries: read %s response: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Path: req.URL.Path, Status: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("wildberries: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// CardSize groups the barcodes of one size variant.
type CardSize struct {
	Skus []string `json:"skus"`
}

// Card is one content catalogue card.
type Card struct {
	NmID       int64      `json:"nmID"`
	VendorCode string     `json:"vendorCode"`
	Title      string     `json:"title"`
	Sizes      []CardSize `json:"sizes"`
}

type cardsCursor struct {
	UpdatedAt string `json:"updatedAt,omitempty"`
	NmID      int64  `json:"nmID,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Total     int    `json:"total,omitempty"`
}

type cardsListRequest struct {
	Settings struct {
		Cursor cardsCursor `json:"cursor"`
		Filter struct {
			WithPhoto int `json:"withPhoto"`
		} `json:"filter"`
	} `json:"settings"`
}

type cardsListResponse struct {
	Cards  []Card      `json:"cards"`
	Cursor cardsCursor `json:"cursor"`
}

// Cards pages through the content catalogue using the updatedAt/nmID
// cursor the API hands back with each page.
func (c *Client) Cards(ctx context.Context) ([]Card, error) {
	var all []Card
	cursor := cardsCursor{Limit: c.pageSize}
	for {
		reqBody := cardsListRequest{}
		reqBody.Settings.Cursor = cursor
		reqBody.Settings.Filter.WithPhoto = -1

		payload, err := json.Marshal(reqBody)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.contentBaseURL+"/content/v2/get/cards/list", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		var page cardsListResponse
		if err := c.do(ctx, req, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Cards...)
		if len(page.Cards) < c.pageSize {
			return all, nil
		}
		cursor = cardsCursor{UpdatedAt: page.Cursor.UpdatedAt, NmID: page.Cursor.NmID, Limit: c.pageSize}
	}
}

// Sale is one statistics sale record. SaleID carries the record kind in
// its prefix: S for sales, R for returns.
type Sale struct {
	SaleID          string  `json:"saleID"`
	Date            string  `json:"date"`
	SupplierArticle string  `json:"supplierArticle"`
	Barcode         string  `json:"barcode"`
	PriceWithDisc   float64 `json:"priceWithDisc"`
	ForPay          float64 `json:"forPay"`
	Srid            string  `json:"srid"`
}

// IsReturn reports whether the record is a customer return.
func (s Sale) IsReturn() bool {
	return len(s.SaleID) > 0 && s.SaleID[0] == 'R'
}

// SaleDate parses the record date, which arrives without a zone.
func (s Sale) SaleDate() (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05", s.Date); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("wildberries: sale %s: bad date %q", s.SaleID, s.Date)
	}
	return t, nil
}

// Sales fetches statistics sale records changed since the given moment.
func (c *Client) Sales(ctx context.Context, since time.Time) ([]Sale, error) {
	q := url.Values{}
	q.Set("dateFrom", since.Format("2006-01-02"))
	q.Set("flag", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.statsBaseURL+"/api/v1/supplier/sales?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var out []Sale
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReportRow is one realization report detail row.
type ReportRow struct {
	RrdID               int64   `json:"rrd_id"`
	RrDt                string  `json:"rr_dt"`
	SupplierOperName    string  `json:"supplier_oper_name"`
	DeliveryRub         float64 `json:"delivery_rub"`
	PpvzSalesCommission float64 `json:"ppvz_sales_commission"`
	Penalty             float64 `json:"penalty"`
	AdditionalPayment   float64 `json:"additional_payment"`
}

// RowDate parses the row date.
func (r ReportRow) RowDate() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, r.RrDt); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", r.RrDt)
	if err != nil {
		return time.Time{}, fmt.Errorf("wildberries: report row %d: bad date %q", r.RrdID, r.RrDt)
	}
	return t, nil
}

// ReportRows pages through the realization report using rrd_id as the
// continuation token.
func (c *Client) ReportRows(ctx context.Context, from, to time.Time) ([]ReportRow, error) {
	var all []ReportRow
	var rrdID int64
	for {
		q := url.Values{}
		q.Set("dateFrom", from.Format("2006-01-02"))
		q.Set("dateTo", to.Format("2006-01-02"))
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("rrdid", strconv.FormatInt(rrdID, 10))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.statsBaseURL+"/api/v5/supplier/reportDetailByPeriod?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var page []ReportRow
		if err := c.do(ctx, req, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		rrdID = page[len(page)-1].RrdID
		if len(page) < c.pageSize {
			return all, nil
		}
	}
}
