package ozon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:  srv.URL,
		ClientID: "client-1",
		APIKey:   "key-1",
		RPS:      1000,
		PageSize: 2,
	})
}

func TestProductsJoinsListAndInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/product/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "client-1", r.Header.Get("Client-Id"))
		assert.Equal(t, "key-1", r.Header.Get("Api-Key"))

		var req productListRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.LastID == "" {
			_, _ = w.Write([]byte(`{"result":{"items":[
				{"product_id":1,"offer_id":"A1"},
				{"product_id":2,"offer_id":"A2"}
			],"last_id":"next"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":{"items":[],"last_id":""}}`))
	})
	mux.HandleFunc("/v3/product/info/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[
			{"id":1,"offer_id":"A1","name":"Box","barcodes":["B1"],"stocks":{"stocks":[{"present":3},{"present":2}]}},
			{"id":2,"offer_id":"A2","name":"Bag","barcodes":[],"stocks":{"stocks":[]}}
		]}`))
	})

	products, err := testClient(t, mux).Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "A1", products[0].OfferID)
	assert.Equal(t, "B1", products[0].Barcode)
	assert.Equal(t, int64(5), products[0].Stock)
	assert.Empty(t, products[1].Barcode)
}

func TestPostingsFollowsHasNext(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/posting/fbs/list", func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req postingListRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := postingListResponse{}
		switch req.Offset {
		case 0:
			resp.Result.Postings = []Posting{{PostingNumber: "P-1"}, {PostingNumber: "P-2"}}
			resp.Result.HasNext = true
		default:
			resp.Result.Postings = []Posting{{PostingNumber: "P-3"}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	postings, err := testClient(t, mux).Postings(context.Background(),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, postings, 3)
	assert.Equal(t, 2, calls)
}

func TestOperationsStopsAtPageCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/finance/transaction/list", func(w http.ResponseWriter, r *http.Request) {
		var req operationListRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all", req.Filter.TransactionType)

		resp := operationListResponse{}
		resp.Result.PageCount = 2
		resp.Result.Operations = []Operation{{OperationID: int64(req.Page), OperationDate: "2026-03-01 00:00:00"}}
		_ = json.NewEncoder(w).Encode(resp)
	})

	ops, err := testClient(t, mux).Operations(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, ops, 2)

	date, err := ops[0].Date()
	require.NoError(t, err)
	assert.Equal(t, 2026, date.Year())
}

func TestErrorResponseSurfacesBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid api key"}`, http.StatusForbidden)
	})

	_, err := testClient(t, mux).Products(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, apiErr.Body, "invalid api key")
}
