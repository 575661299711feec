package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellerpulse/sellerpulse/internal/catalog"
	"github.com/sellerpulse/sellerpulse/internal/clients"
	"github.com/sellerpulse/sellerpulse/internal/marketplace/ozon"
	"github.com/sellerpulse/sellerpulse/internal/marketplace/wildberries"
	"github.com/sellerpulse/sellerpulse/internal/orders"
	"github.com/sellerpulse/sellerpulse/internal/transactions"
)

// OzonAPI is the slice of the Ozon client the importer consumes.
type OzonAPI interface {
	Products(ctx context.Context) ([]ozon.Product, error)
	Postings(ctx context.Context, from, to time.Time) ([]ozon.Posting, error)
	Operations(ctx context.Context, from, to time.Time) ([]ozon.Operation, error)
}

// WildberriesAPI is the slice of the Wildberries client the importer
// consumes.
type WildberriesAPI interface {
	Cards(ctx context.Context) ([]wildberries.Card, error)
	Sales(ctx context.Context, since time.Time) ([]wildberries.Sale, error)
	ReportRows(ctx context.Context, from, to time.Time) ([]wildberries.ReportRow, error)
}

// Fact sinks. All three are idempotent upserts keyed on natural
// identifiers, so replaying an import window is safe.
type (
	ProductSink interface {
		Upsert(ctx context.Context, products []catalog.Product) (int64, error)
	}
	OrderSink interface {
		Upsert(ctx context.Context, lines []orders.Line) (int64, error)
	}
	TransactionSink interface {
		Upsert(ctx context.Context, txns []transactions.Transaction) (int64, error)
	}
	RunSink interface {
		Start(ctx context.Context, run *SyncRun) error
		Finish(ctx context.Context, run *SyncRun) error
	}
)

// Importer pulls marketplace data for a client and normalises it into
// fact rows. Sources run sequentially; a failed source is recorded on
// its sync run and does not stop the other source.
type Importer struct {
	newOzon func(c clients.Client) OzonAPI
	newWB   func(c clients.Client) WildberriesAPI

	products ProductSink
	orders   OrderSink
	txns     TransactionSink
	runs     RunSink

	logger *slog.Logger
	clock  func() time.Time
}

// NewImporter wires an importer. The factories build API clients from
// per-client credentials.
func NewImporter(
	newOzon func(c clients.Client) OzonAPI,
	newWB func(c clients.Client) WildberriesAPI,
	products ProductSink,
	orderSink OrderSink,
	txnSink TransactionSink,
	runs RunSink,
	logger *slog.Logger,
) *Importer {
	return &Importer{
		newOzon:  newOzon,
		newWB:    newWB,
		products: products,
		orders:   orderSink,
		txns:     txnSink,
		runs:     runs,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// SyncClient imports every configured source for one client, pulling
// facts changed since the given moment.
func (i *Importer) SyncClient(ctx context.Context, c clients.Client, since time.Time) (SyncReport, error) {
	report := SyncReport{ClientID: c.ID}

	if c.HasOzon() {
		run := i.runSource(ctx, c, SourceOzon, func(ctx context.Context, run *SyncRun) error {
			return i.syncOzon(ctx, c, since, run)
		})
		report.Runs = append(report.Runs, run)
	}
	if c.HasWildberries() {
		run := i.runSource(ctx, c, SourceWildberries, func(ctx context.Context, run *SyncRun) error {
			return i.syncWildberries(ctx, c, since, run)
		})
		report.Runs = append(report.Runs, run)
	}

	if len(report.Runs) == 0 {
		i.logger.Warn("client has no marketplace credentials", slog.Int64("client_id", c.ID))
	}
	return report, ctx.Err()
}

// runSource wraps one source sync in a recorded run.
func (i *Importer) runSource(ctx context.Context, c clients.Client, source string, fn func(context.Context, *SyncRun) error) SyncRun {
	run := SyncRun{
		ID:        uuid.New(),
		ClientID:  c.ID,
		Source:    source,
		Status:    RunRunning,
		StartedAt: i.clock(),
	}
	if err := i.runs.Start(ctx, &run); err != nil {
		i.logger.Error("sync run insert failed", slog.String("source", source), slog.Any("error", err))
	}

	err := fn(ctx, &run)
	finished := i.clock()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		i.logger.Error("marketplace sync failed",
			slog.Int64("client_id", c.ID),
			slog.String("source", source),
			slog.Any("error", err))
	} else {
		run.Status = RunSuccess
		i.logger.Info("marketplace sync finished",
			slog.Int64("client_id", c.ID),
			slog.String("source", source),
			slog.Int64("products", run.Products),
			slog.Int64("order_lines", run.OrderLines),
			slog.Int64("transactions", run.Transactions))
	}
	if err := i.runs.Finish(ctx, &run); err != nil {
		i.logger.Error("sync run update failed", slog.String("source", source), slog.Any("error", err))
	}
	return run
}

func (i *Importer) syncOzon(ctx context.Context, c clients.Client, since time.Time, run *SyncRun) error {
	api := i.newOzon(c)
	now := i.clock()

	products, err := api.Products(ctx)
	if err != nil {
		return fmt.Errorf("products: %w", err)
	}
	catalogRows := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		catalogRows = append(catalogRows, catalog.Product{
			ClientID: c.ID,
			Article:  p.OfferID,
			Barcode:  p.Barcode,
			Name:     p.Name,
			Stock:    p.Stock,
		})
	}
	if run.Products, err = i.products.Upsert(ctx, catalogRows); err != nil {
		return fmt.Errorf("store products: %w", err)
	}

	postings, err := api.Postings(ctx, since, now)
	if err != nil {
		return fmt.Errorf("postings: %w", err)
	}
	var lines []orders.Line
	for _, posting := range postings {
		lineType := orders.LineSale
		if posting.Status == "cancelled" {
			lineType = orders.LineReturn
		}
		for _, product := range posting.Products {
			price, perr := decimal.NewFromString(product.Price)
			if perr != nil {
				i.logger.Warn("unparseable posting price, line skipped",
					slog.String("posting", posting.PostingNumber),
					slog.String("price", product.Price))
				continue
			}
			lines = append(lines, orders.Line{
				ClientID:    c.ID,
				Marketplace: SourceOzon,
				OrderID:     posting.PostingNumber,
				SKU:         product.OfferID,
				Quantity:    product.Quantity,
				Price:       price,
				Type:        lineType,
				OrderDate:   posting.InProcessAt,
			})
		}
	}
	if run.OrderLines, err = i.orders.Upsert(ctx, lines); err != nil {
		return fmt.Errorf("store order lines: %w", err)
	}

	operations, err := api.Operations(ctx, since, now)
	if err != nil {
		return fmt.Errorf("operations: %w", err)
	}
	var txns []transactions.Transaction
	for _, op := range operations {
		date, derr := op.Date()
		if derr != nil {
			i.logger.Warn("unparseable operation date, skipped", slog.Any("error", derr))
			continue
		}
		label := op.OperationTypeName
		if label == "" {
			label = op.OperationType
		}
		txns = append(txns, transactions.Transaction{
			ClientID:    c.ID,
			Marketplace: SourceOzon,
			ExternalID:  strconv.FormatInt(op.OperationID, 10),
			TypeLabel:   label,
			Amount:      decimal.NewFromFloat(op.Amount),
			Date:        date,
		})
	}
	if run.Transactions, err = i.txns.Upsert(ctx, txns); err != nil {
		return fmt.Errorf("store transactions: %w", err)
	}
	return nil
}

func (i *Importer) syncWildberries(ctx context.Context, c clients.Client, since time.Time, run *SyncRun) error {
	api := i.newWB(c)
	now := i.clock()

	cards, err := api.Cards(ctx)
	if err != nil {
		return fmt.Errorf("cards: %w", err)
	}
	catalogRows := make([]catalog.Product, 0, len(cards))
	for _, card := range cards {
		barcode := ""
		for _, size := range card.Sizes {
			if len(size.Skus) > 0 {
				barcode = size.Skus[0]
				break
			}
		}
		catalogRows = append(catalogRows, catalog.Product{
			ClientID: c.ID,
			Article:  card.VendorCode,
			Barcode:  barcode,
			Name:     card.Title,
		})
	}
	if run.Products, err = i.products.Upsert(ctx, catalogRows); err != nil {
		return fmt.Errorf("store products: %w", err)
	}

	sales, err := api.Sales(ctx, since)
	if err != nil {
		return fmt.Errorf("sales: %w", err)
	}
	var lines []orders.Line
	for _, sale := range sales {
		date, derr := sale.SaleDate()
		if derr != nil {
			i.logger.Warn("unparseable sale date, skipped", slog.Any("error", derr))
			continue
		}
		lineType := orders.LineSale
		if sale.IsReturn() {
			lineType = orders.LineReturn
		}
		lines = append(lines, orders.Line{
			ClientID:    c.ID,
			Marketplace: SourceWildberries,
			OrderID:     sale.Srid,
			SKU:         sale.SupplierArticle,
			Barcode:     sale.Barcode,
			Quantity:    1,
			Price:       decimal.NewFromFloat(sale.PriceWithDisc),
			Type:        lineType,
			OrderDate:   date,
		})
	}
	if run.OrderLines, err = i.orders.Upsert(ctx, lines); err != nil {
		return fmt.Errorf("store order lines: %w", err)
	}

	rows, err := api.ReportRows(ctx, since, now)
	if err != nil {
		return fmt.Errorf("report rows: %w", err)
	}
	txns := reportTransactions(c.ID, rows, i.logger)
	if run.Transactions, err = i.txns.Upsert(ctx, txns); err != nil {
		return fmt.Errorf("store transactions: %w", err)
	}
	return nil
}

// reportTransactions flattens realization report rows into transaction
// facts. One row can carry several charges; each becomes its own fact
// with a stable external id derived from the row id.
func reportTransactions(clientID int64, rows []wildberries.ReportRow, logger *slog.Logger) []transactions.Transaction {
	var out []transactions.Transaction
	for _, row := range rows {
		date, err := row.RowDate()
		if err != nil {
			logger.Warn("unparseable report row date, skipped", slog.Any("error", err))
			continue
		}
		add := func(suffix, label string, amount float64) {
			if amount == 0 {
				return
			}
			out = append(out, transactions.Transaction{
				ClientID:    clientID,
				Marketplace: SourceWildberries,
				ExternalID:  fmt.Sprintf("rrd-%d-%s", row.RrdID, suffix),
				TypeLabel:   label,
				Amount:      decimal.NewFromFloat(amount),
				Date:        date,
			})
		}
		add("commission", row.SupplierOperName+" комиссия", -row.PpvzSalesCommission)
		add("logistics", "логистика", -row.DeliveryRub)
		add("penalty", "штраф", -row.Penalty)
		add("extra", "доплата", row.AdditionalPayment)
	}
	return out
}
