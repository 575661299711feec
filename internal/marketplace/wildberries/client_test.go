package wildberries

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
		ContentBaseURL: srv.URL,
		StatsBaseURL:   srv.URL,
		APIKey:         "token-1",
		ReqPerMinute:   60000,
		PageSize:       2,
	})
}

func TestCardsFollowsCursor(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/content/v2/get/cards/list", func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "token-1", r.Header.Get("Authorization"))

		var req cardsListRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Settings.Cursor.UpdatedAt == "" {
			_, _ = w.Write([]byte(`{
				"cards":[
					{"nmID":1,"vendorCode":"A1","title":"Box","sizes":[{"skus":["B1"]}]},
					{"nmID":2,"vendorCode":"A2","title":"Bag","sizes":[]}
				],
				"cursor":{"updatedAt":"2026-03-01T00:00:00Z","nmID":2,"total":3}
			}`))
			return
		}
		assert.Equal(t, int64(2), req.Settings.Cursor.NmID)
		_, _ = w.Write([]byte(`{
			"cards":[{"nmID":3,"vendorCode":"A3","title":"Tape","sizes":[{"skus":["B3"]}]}],
			"cursor":{"updatedAt":"2026-03-02T00:00:00Z","nmID":3,"total":3}
		}`))
	})

	cards, err := testClient(t, mux).Cards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "A1", cards[0].VendorCode)
	assert.Equal(t, []string{"B1"}, cards[0].Sizes[0].Skus)
}

func TestSalesParsesRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/supplier/sales", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-03-01", r.URL.Query().Get("dateFrom"))
		_, _ = w.Write([]byte(`[
			{"saleID":"S100","date":"2026-03-01T10:00:00","supplierArticle":"A1","barcode":"B1","priceWithDisc":100.5,"forPay":90.1,"srid":"sr-1"},
			{"saleID":"R200","date":"2026-03-01T11:00:00","supplierArticle":"A1","barcode":"B1","priceWithDisc":100.5,"forPay":-90.1,"srid":"sr-2"}
		]`))
	})

	sales, err := testClient(t, mux).Sales(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, sales, 2)

	assert.False(t, sales[0].IsReturn())
	assert.True(t, sales[1].IsReturn())

	date, err := sales[0].SaleDate()
	require.NoError(t, err)
	assert.Equal(t, 10, date.Hour())
}

func TestReportRowsPagesByRrdID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v5/supplier/reportDetailByPeriod", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("rrdid") {
		case "0":
			_, _ = w.Write([]byte(`[
				{"rrd_id":10,"rr_dt":"2026-03-01","supplier_oper_name":"Продажа","ppvz_sales_commission":5},
				{"rrd_id":11,"rr_dt":"2026-03-01","supplier_oper_name":"Логистика","delivery_rub":3}
			]`))
		case "11":
			_, _ = w.Write([]byte(`[{"rrd_id":12,"rr_dt":"2026-03-02","supplier_oper_name":"Штраф","penalty":7}]`))
		default:
			t.Errorf("unexpected rrdid %q", r.URL.Query().Get("rrdid"))
		}
	})

	rows, err := testClient(t, mux).ReportRows(context.Background(),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(12), rows[2].RrdID)

	date, err := rows[0].RowDate()
	require.NoError(t, err)
	assert.Equal(t, time.March, date.Month())
}

func TestErrorResponseSurfacesStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})

	_, err := testClient(t, mux).Sales(context.Background(), time.Now())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}
