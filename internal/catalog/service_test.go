package catalog

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type mockProductRepo struct {
	products []Product

	costByArticle map[string]decimal.Decimal
	costByBarcode map[string]decimal.Decimal
}

func newMockProductRepo(products ...Product) *mockProductRepo {
	return &mockProductRepo{
		products:      products,
		costByArticle: make(map[string]decimal.Decimal),
		costByBarcode: make(map[string]decimal.Decimal),
	}
}

func (m *mockProductRepo) UpdateCostByArticle(_ context.Context, _ int64, article string, cost decimal.Decimal) (int64, error) {
	for _, p := range m.products {
		if p.Article == article {
			m.costByArticle[article] = cost
			return 1, nil
		}
	}
	return 0, nil
}

func (m *mockProductRepo) UpdateCostByBarcode(_ context.Context, _ int64, barcode string, cost decimal.Decimal) (int64, error) {
	for _, p := range m.products {
		if p.Barcode == barcode {
			m.costByBarcode[barcode] = cost
			return 1, nil
		}
	}
	return 0, nil
}

func (m *mockProductRepo) ListUncosted(context.Context, int64) ([]Product, error) {
	out := []Product{}
	for _, p := range m.products {
		if p.CostPrice == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) List(context.Context, int64) ([]Product, error) {
	return m.products, nil
}

type mockSales struct {
	sold map[string]int64
}

func (m *mockSales) SoldQuantities(context.Context, int64, time.Time, int) (map[string]int64, error) {
	return m.sold, nil
}

func buildSheet(t *testing.T, header []string, rows [][]string) io.Reader {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImportCostsMatchesArticleFirst(t *testing.T) {
	repo := newMockProductRepo(
		Product{Article: "A1", Barcode: "B1"},
		Product{Article: "A2", Barcode: "B2"},
	)
	svc := NewService(repo, &mockSales{}, discardLogger(), ServiceConfig{})

	sheet := buildSheet(t,
		[]string{"Артикул", "Штрихкод", "Себестоимость"},
		[][]string{
			{"A1", "B1", "100"},
			{"", "B2", "200,50"},
			{"missing", "missing", "300"},
			{"", "", "400"},
			{"A2", "", "not-a-number"},
		})

	report, err := svc.ImportCosts(context.Background(), 1, sheet)
	require.NoError(t, err)

	// The "not-a-number" row is dropped at parse time, so only four rows
	// reach the import loop.
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Unmatched)
	assert.Equal(t, 1, report.Skipped)

	require.Contains(t, repo.costByArticle, "A1")
	assert.True(t, repo.costByArticle["A1"].Equal(decimal.NewFromInt(100)))
	require.Contains(t, repo.costByBarcode, "B2")
	assert.True(t, repo.costByBarcode["B2"].Equal(decimal.RequireFromString("200.50")))
}

func TestImportCostsRejectsHeaderlessSheet(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewService(repo, &mockSales{}, discardLogger(), ServiceConfig{})

	sheet := buildSheet(t, []string{"foo", "bar"}, [][]string{{"A1", "100"}})
	_, err := svc.ImportCosts(context.Background(), 1, sheet)
	require.Error(t, err)
}

func TestReplenishmentCoverDays(t *testing.T) {
	repo := newMockProductRepo(
		Product{Article: "FAST", Name: "fast mover", Stock: 10},
		Product{Article: "SLOW", Name: "slow mover", Stock: 100},
		Product{Article: "DEAD", Name: "no sales", Stock: 5},
	)
	sales := &mockSales{sold: map[string]int64{
		"FAST": 56, // 2/day over 28d -> 5 days cover
		"SLOW": 28, // 1/day -> 100 days cover
	}}
	svc := NewService(repo, sales, discardLogger(), ServiceConfig{ReorderThresholdDays: 14})

	advice, err := svc.Replenishment(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, advice, 3)

	byArticle := map[string]ReplenishmentAdvice{}
	for _, a := range advice {
		byArticle[a.Article] = a
	}

	fast := byArticle["FAST"]
	require.NotNil(t, fast.CoverDays)
	assert.True(t, fast.CoverDays.Equal(decimal.NewFromInt(5)))
	assert.True(t, fast.NeedsReorder)

	slow := byArticle["SLOW"]
	require.NotNil(t, slow.CoverDays)
	assert.False(t, slow.NeedsReorder)

	dead := byArticle["DEAD"]
	assert.Nil(t, dead.CoverDays)
	assert.False(t, dead.NeedsReorder)
}
