package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ProductRepository is the persistence surface the service needs.
type ProductRepository interface {
	UpdateCostByArticle(ctx context.Context, clientID int64, article string, cost decimal.Decimal) (int64, error)
	UpdateCostByBarcode(ctx context.Context, clientID int64, barcode string, cost decimal.Decimal) (int64, error)
	ListUncosted(ctx context.Context, clientID int64) ([]Product, error)
	List(ctx context.Context, clientID int64) ([]Product, error)
}

// SalesReader reports sold quantities for replenishment estimates.
type SalesReader interface {
	SoldQuantities(ctx context.Context, clientID int64, asOf time.Time, windowDays int) (map[string]int64, error)
}

// ServiceConfig tunes replenishment advice.
type ServiceConfig struct {
	// ReplenishmentWindowDays is the trailing sales window; zero falls back
	// to 28 days.
	ReplenishmentWindowDays int
	// ReorderThresholdDays flags SKUs whose stock covers fewer days.
	ReorderThresholdDays int
}

// Service coordinates catalogue operations: cost uploads, uncosted reports
// and replenishment advice.
type Service struct {
	repo   ProductRepository
	sales  SalesReader
	logger *slog.Logger
	cfg    ServiceConfig
	clock  func() time.Time
}

// NewService wires the catalogue service.
func NewService(repo ProductRepository, sales SalesReader, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.ReplenishmentWindowDays <= 0 {
		cfg.ReplenishmentWindowDays = 28
	}
	if cfg.ReorderThresholdDays <= 0 {
		cfg.ReorderThresholdDays = 14
	}
	return &Service{
		repo:   repo,
		sales:  sales,
		logger: logger,
		cfg:    cfg,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// ImportCosts parses an uploaded XLSX cost spreadsheet and applies cost
// prices to the client's products. Rows are applied by article first and by
// barcode when the article column is empty or unmatched. Bad rows are
// logged and skipped; a spreadsheet never fails as a whole because of a
// single malformed cell.
func (s *Service) ImportCosts(ctx context.Context, clientID int64, r io.Reader) (*ImportReport, error) {
	rows, err := ParseCostSheet(r)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{}
	for _, row := range rows {
		report.Rows++
		if row.Article == "" && row.Barcode == "" {
			report.Skipped++
			continue
		}

		matched := int64(0)
		if row.Article != "" {
			matched, err = s.repo.UpdateCostByArticle(ctx, clientID, row.Article, row.Cost)
			if err != nil {
				return nil, err
			}
		}
		if matched == 0 && row.Barcode != "" {
			matched, err = s.repo.UpdateCostByBarcode(ctx, clientID, row.Barcode, row.Cost)
			if err != nil {
				return nil, err
			}
		}

		if matched == 0 {
			report.Unmatched++
			s.logger.Warn("cost row matched no product",
				slog.Int64("client_id", clientID),
				slog.String("article", row.Article),
				slog.String("barcode", row.Barcode))
			continue
		}
		report.Updated++
	}

	s.logger.Info("cost spreadsheet imported",
		slog.Int64("client_id", clientID),
		slog.Int("rows", report.Rows),
		slog.Int("updated", report.Updated),
		slog.Int("unmatched", report.Unmatched))
	return report, nil
}

// ListUncosted returns products sold without a known cost.
func (s *Service) ListUncosted(ctx context.Context, clientID int64) ([]Product, error) {
	return s.repo.ListUncosted(ctx, clientID)
}

// Replenishment computes stock cover per SKU from the trailing sales window.
func (s *Service) Replenishment(ctx context.Context, clientID int64) ([]ReplenishmentAdvice, error) {
	products, err := s.repo.List(ctx, clientID)
	if err != nil {
		return nil, err
	}
	sold, err := s.sales.SoldQuantities(ctx, clientID, s.clock(), s.cfg.ReplenishmentWindowDays)
	if err != nil {
		return nil, err
	}

	window := decimal.NewFromInt(int64(s.cfg.ReplenishmentWindowDays))
	threshold := decimal.NewFromInt(int64(s.cfg.ReorderThresholdDays))

	out := make([]ReplenishmentAdvice, 0, len(products))
	for _, p := range products {
		qty := sold[p.Article]
		perDay := decimal.NewFromInt(qty).DivRound(window, 4)
		advice := ReplenishmentAdvice{
			Article:    p.Article,
			Name:       p.Name,
			Stock:      p.Stock,
			SoldPerDay: perDay,
		}
		if perDay.IsPositive() {
			cover := decimal.NewFromInt(p.Stock).DivRound(perDay, 1)
			advice.CoverDays = &cover
			advice.NeedsReorder = cover.LessThan(threshold)
		}
		out = append(out, advice)
	}
	return out, nil
}

// Cost sheet columns are matched by header name; both the Russian and
// English spellings operators actually use are accepted.
var (
	articleHeaders = []string{"article", "артикул", "vendor code", "vendorcode", "sku"}
	barcodeHeaders = []string{"barcode", "штрихкод", "штрих-код", "ean"}
	costHeaders    = []string{"cost", "cost price", "себестоимость", "закупочная цена", "закупка"}
)

// ParseCostSheet reads the first sheet of an XLSX file into cost rows.
// The first row must be a header naming the article, barcode and cost
// columns; rows with unparseable costs are dropped.
func ParseCostSheet(r io.Reader) ([]CostRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("catalog: spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("catalog: read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("catalog: spreadsheet has no data rows")
	}

	articleCol, barcodeCol, costCol := -1, -1, -1
	for i, cell := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case articleCol < 0 && matchHeader(name, articleHeaders):
			articleCol = i
		case barcodeCol < 0 && matchHeader(name, barcodeHeaders):
			barcodeCol = i
		case costCol < 0 && matchHeader(name, costHeaders):
			costCol = i
		}
	}
	if costCol < 0 || (articleCol < 0 && barcodeCol < 0) {
		return nil, fmt.Errorf("catalog: header must name a cost column and an article or barcode column")
	}

	out := make([]CostRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cost, err := decimal.NewFromString(normalizeNumber(cellAt(row, costCol)))
		if err != nil || cost.IsNegative() {
			continue
		}
		out = append(out, CostRow{
			Article: strings.TrimSpace(cellAt(row, articleCol)),
			Barcode: strings.TrimSpace(cellAt(row, barcodeCol)),
			Cost:    cost,
		})
	}
	return out, nil
}

func matchHeader(name string, candidates []string) bool {
	for _, c := range candidates {
		if name == c {
			return true
		}
	}
	return false
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// normalizeNumber accepts "1 234,50" style values common in exported sheets.
func normalizeNumber(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, ",", ".")
}
