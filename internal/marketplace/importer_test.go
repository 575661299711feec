package marketplace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerpulse/sellerpulse/internal/catalog"
	"github.com/sellerpulse/sellerpulse/internal/clients"
	"github.com/sellerpulse/sellerpulse/internal/marketplace/ozon"
	"github.com/sellerpulse/sellerpulse/internal/marketplace/wildberries"
	"github.com/sellerpulse/sellerpulse/internal/orders"
	"github.com/sellerpulse/sellerpulse/internal/transactions"
)

type fakeOzon struct {
	products   []ozon.Product
	postings   []ozon.Posting
	operations []ozon.Operation
	err        error
}

func (f *fakeOzon) Products(context.Context) ([]ozon.Product, error) {
	return f.products, f.err
}

func (f *fakeOzon) Postings(context.Context, time.Time, time.Time) ([]ozon.Posting, error) {
	return f.postings, f.err
}

func (f *fakeOzon) Operations(context.Context, time.Time, time.Time) ([]ozon.Operation, error) {
	return f.operations, f.err
}

type fakeWB struct {
	cards []wildberries.Card
	sales []wildberries.Sale
	rows  []wildberries.ReportRow
	err   error
}

func (f *fakeWB) Cards(context.Context) ([]wildberries.Card, error) { return f.cards, f.err }

func (f *fakeWB) Sales(context.Context, time.Time) ([]wildberries.Sale, error) {
	return f.sales, f.err
}

func (f *fakeWB) ReportRows(context.Context, time.Time, time.Time) ([]wildberries.ReportRow, error) {
	return f.rows, f.err
}

type fakeSinks struct {
	products []catalog.Product
	lines    []orders.Line
	txns     []transactions.Transaction
	started  []SyncRun
	finished []SyncRun
}

func (s *fakeSinks) Upsert(_ context.Context, rows []catalog.Product) (int64, error) {
	s.products = append(s.products, rows...)
	return int64(len(rows)), nil
}

type orderSinkFunc struct{ s *fakeSinks }

func (o orderSinkFunc) Upsert(_ context.Context, rows []orders.Line) (int64, error) {
	o.s.lines = append(o.s.lines, rows...)
	return int64(len(rows)), nil
}

type txnSinkFunc struct{ s *fakeSinks }

func (t txnSinkFunc) Upsert(_ context.Context, rows []transactions.Transaction) (int64, error) {
	t.s.txns = append(t.s.txns, rows...)
	return int64(len(rows)), nil
}

type runSinkFunc struct{ s *fakeSinks }

func (r runSinkFunc) Start(_ context.Context, run *SyncRun) error {
	r.s.started = append(r.s.started, *run)
	return nil
}

func (r runSinkFunc) Finish(_ context.Context, run *SyncRun) error {
	r.s.finished = append(r.s.finished, *run)
	return nil
}

func newTestImporter(oz OzonAPI, wb WildberriesAPI, sinks *fakeSinks) *Importer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewImporter(
		func(clients.Client) OzonAPI { return oz },
		func(clients.Client) WildberriesAPI { return wb },
		sinks, orderSinkFunc{sinks}, txnSinkFunc{sinks}, runSinkFunc{sinks},
		logger,
	)
}

func bothSources() clients.Client {
	return clients.Client{
		ID:           7,
		OzonClientID: "oz-7",
		OzonAPIKey:   "key",
		WBAPIKey:     "token",
		Active:       true,
	}
}

func TestSyncClientImportsBothSources(t *testing.T) {
	oz := &fakeOzon{
		products: []ozon.Product{{OfferID: "A1", Barcode: "B1", Name: "Box", Stock: 10}},
		postings: []ozon.Posting{{
			PostingNumber: "P-1",
			Status:        "delivered",
			InProcessAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Products:      []ozon.PostingProduct{{OfferID: "A1", Quantity: 2, Price: "100.000000"}},
		}},
		operations: []ozon.Operation{{
			OperationID:       501,
			OperationTypeName: "Sale commission",
			OperationDate:     "2026-03-01 12:00:00",
			Amount:            -20,
		}},
	}
	wb := &fakeWB{
		cards: []wildberries.Card{{NmID: 9, VendorCode: "A2", Title: "Bag", Sizes: []wildberries.CardSize{{Skus: []string{"B2"}}}}},
		sales: []wildberries.Sale{
			{SaleID: "S100", Date: "2026-03-01T10:00:00", SupplierArticle: "A2", Barcode: "B2", PriceWithDisc: 50, Srid: "sr-1"},
			{SaleID: "R200", Date: "2026-03-01T11:00:00", SupplierArticle: "A2", Barcode: "B2", PriceWithDisc: 50, Srid: "sr-2"},
		},
		rows: []wildberries.ReportRow{{RrdID: 33, RrDt: "2026-03-01", SupplierOperName: "Продажа", PpvzSalesCommission: 5, DeliveryRub: 3}},
	}
	sinks := &fakeSinks{}

	report, err := newTestImporter(oz, wb, sinks).SyncClient(context.Background(), bothSources(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, report.Runs, 2)
	assert.False(t, report.Failed())

	assert.Len(t, sinks.products, 2)
	require.Len(t, sinks.lines, 3)
	assert.Equal(t, SourceOzon, sinks.lines[0].Marketplace)
	assert.Equal(t, orders.LineSale, sinks.lines[0].Type)
	assert.Equal(t, orders.LineReturn, sinks.lines[2].Type, "R-prefixed sale record must become a return line")

	// 1 ozon operation plus commission and logistics from the report row.
	require.Len(t, sinks.txns, 3)
	assert.Equal(t, "501", sinks.txns[0].ExternalID)
	assert.True(t, sinks.txns[0].Amount.IsNegative())
	assert.Equal(t, "rrd-33-commission", sinks.txns[1].ExternalID)
	assert.Equal(t, "rrd-33-logistics", sinks.txns[2].ExternalID)
	assert.True(t, sinks.txns[2].Amount.IsNegative(), "report charges are outflows")

	require.Len(t, sinks.finished, 2)
	assert.Equal(t, RunSuccess, sinks.finished[0].Status)
	assert.Equal(t, int64(1), sinks.finished[0].OrderLines, "one posting product of quantity 2 is a single line")
}

func TestSyncClientRecordsSourceFailure(t *testing.T) {
	oz := &fakeOzon{err: errors.New("401 unauthorized")}
	wb := &fakeWB{
		cards: []wildberries.Card{{VendorCode: "A2", Title: "Bag"}},
	}
	sinks := &fakeSinks{}

	report, err := newTestImporter(oz, wb, sinks).SyncClient(context.Background(), bothSources(), time.Now())
	require.NoError(t, err)
	require.Len(t, report.Runs, 2)

	assert.True(t, report.Failed())
	assert.Equal(t, RunFailed, report.Runs[0].Status)
	assert.Contains(t, report.Runs[0].Error, "401")
	assert.Equal(t, RunSuccess, report.Runs[1].Status, "a failed source must not block the other")
}

func TestSyncClientSkipsUnconfiguredSources(t *testing.T) {
	sinks := &fakeSinks{}
	importer := newTestImporter(&fakeOzon{}, &fakeWB{}, sinks)

	report, err := importer.SyncClient(context.Background(), clients.Client{ID: 8, WBAPIKey: "token"}, time.Now())
	require.NoError(t, err)
	require.Len(t, report.Runs, 1)
	assert.Equal(t, SourceWildberries, report.Runs[0].Source)
}

func TestReportTransactionsSkipsZeroCharges(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rows := []wildberries.ReportRow{
		{RrdID: 1, RrDt: "2026-03-01", SupplierOperName: "Продажа", PpvzSalesCommission: 5},
		{RrdID: 2, RrDt: "2026-03-01", SupplierOperName: "Логистика"},
	}

	txns := reportTransactions(7, rows, logger)
	require.Len(t, txns, 1)
	assert.Equal(t, "rrd-1-commission", txns[0].ExternalID)
}
