package margin

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerpulse/sellerpulse/internal/catalog"
	"github.com/sellerpulse/sellerpulse/internal/orders"
	"github.com/sellerpulse/sellerpulse/internal/transactions"
)

func costPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func testClassifier(t *testing.T) transactions.Classifier {
	t.Helper()
	return transactions.NewKeywordClassifier()
}

func TestComputeFullDay(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	lines := []orders.Line{
		{OrderID: "O-1", SKU: "A1", Quantity: 2, Price: decimal.NewFromInt(100), Type: orders.LineSale, OrderDate: day},
		{OrderID: "O-2", SKU: "A2", Quantity: 1, Price: decimal.NewFromInt(50), Type: orders.LineSale, OrderDate: day},
		{OrderID: "O-3", SKU: "A2", Quantity: 1, Price: decimal.NewFromInt(50), Type: orders.LineReturn, OrderDate: day},
	}
	txns := []transactions.Transaction{
		{ExternalID: "T-1", TypeLabel: "Sale commission", Amount: decimal.NewFromInt(-20), Date: day},
		{ExternalID: "T-2", TypeLabel: "Delivery to customer", Amount: decimal.NewFromInt(-10), Date: day},
	}
	resolver := NewCostResolver([]catalog.Product{
		{Article: "A1", CostPrice: costPtr("40")},
		{Article: "A2", CostPrice: costPtr("40")},
	})

	m, stats := Compute(7, day, lines, txns, resolver, testClassifier(t))

	assert.Equal(t, int64(3), m.OrdersCount)
	assert.True(t, m.Revenue.Equal(decimal.NewFromInt(250)), "revenue %s", m.Revenue)
	assert.True(t, m.Returns.Equal(decimal.NewFromInt(50)), "returns %s", m.Returns)
	assert.True(t, m.COGS.Equal(decimal.NewFromInt(120)), "cogs %s", m.COGS)
	assert.True(t, m.Commission.Equal(decimal.NewFromInt(20)), "commission %s", m.Commission)
	assert.True(t, m.Shipping.Equal(decimal.NewFromInt(10)), "shipping %s", m.Shipping)
	assert.True(t, m.OtherExpenses.IsZero())
	assert.True(t, m.Profit.Equal(decimal.NewFromInt(50)), "profit %s", m.Profit)
	require.NotNil(t, m.MarginPercent)
	assert.Equal(t, "20", m.MarginPercent.String())
	assert.Zero(t, stats.UncostedLines)
	assert.Zero(t, stats.UnclassifiedTransactions)
}

func TestComputeProfitIdentity(t *testing.T) {
	day := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	lines := []orders.Line{
		{OrderID: "O-1", SKU: "A1", Quantity: 3, Price: decimal.RequireFromString("99.90"), Type: orders.LineSale, OrderDate: day},
		{OrderID: "O-1", SKU: "A2", Quantity: 1, Price: decimal.RequireFromString("17.45"), Type: orders.LineSale, OrderDate: day},
		{OrderID: "O-2", SKU: "A1", Quantity: 1, Price: decimal.RequireFromString("99.90"), Type: orders.LineReturn, OrderDate: day},
	}
	txns := []transactions.Transaction{
		{ExternalID: "T-1", TypeLabel: "Acquiring fee", Amount: decimal.RequireFromString("-4.31"), Date: day},
		{ExternalID: "T-2", TypeLabel: "Logistics", Amount: decimal.RequireFromString("-12.08"), Date: day},
		{ExternalID: "T-3", TypeLabel: "Storage", Amount: decimal.RequireFromString("-1.50"), Date: day},
	}
	resolver := NewCostResolver([]catalog.Product{
		{Article: "A1", CostPrice: costPtr("41.20")},
		{Article: "A2", CostPrice: costPtr("9.99")},
	})

	m, _ := Compute(1, day, lines, txns, resolver, testClassifier(t))

	sum := m.Returns.Add(m.COGS).Add(m.Commission).Add(m.Shipping).Add(m.OtherExpenses)
	assert.True(t, m.Profit.Equal(m.Revenue.Sub(sum)), "profit %s does not match components", m.Profit)
}

func TestComputeZeroRevenue(t *testing.T) {
	day := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	txns := []transactions.Transaction{
		{ExternalID: "T-1", TypeLabel: "Хранение", Amount: decimal.NewFromInt(-15), Date: day},
	}
	m, stats := Compute(1, day, nil, txns, NewCostResolver(nil), testClassifier(t))

	assert.True(t, m.Revenue.IsZero())
	assert.Nil(t, m.MarginPercent, "margin must be null when the day has no revenue")
	assert.True(t, m.Profit.Equal(decimal.NewFromInt(-15)))
	assert.Equal(t, 1, stats.UnclassifiedTransactions)
}

func TestComputeUncostedLineDegradesToZero(t *testing.T) {
	day := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)

	lines := []orders.Line{
		{OrderID: "O-1", SKU: "KNOWN", Quantity: 1, Price: decimal.NewFromInt(100), Type: orders.LineSale, OrderDate: day},
		{OrderID: "O-2", SKU: "GHOST", Quantity: 2, Price: decimal.NewFromInt(30), Type: orders.LineSale, OrderDate: day},
	}
	resolver := NewCostResolver([]catalog.Product{
		{Article: "KNOWN", CostPrice: costPtr("60")},
	})

	m, stats := Compute(1, day, lines, nil, resolver, testClassifier(t))

	assert.Equal(t, 1, stats.UncostedLines)
	assert.True(t, m.COGS.Equal(decimal.NewFromInt(60)), "uncosted line must contribute zero cost, got %s", m.COGS)
	assert.True(t, m.Profit.Equal(decimal.NewFromInt(100)))
}

func TestComputeIgnoresPositiveOtherAmounts(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	txns := []transactions.Transaction{
		{ExternalID: "T-1", TypeLabel: "Compensation", Amount: decimal.NewFromInt(30), Date: day},
		{ExternalID: "T-2", TypeLabel: "Penalty", Amount: decimal.NewFromInt(-12), Date: day},
	}
	m, _ := Compute(1, day, nil, txns, NewCostResolver(nil), testClassifier(t))

	assert.True(t, m.OtherExpenses.Equal(decimal.NewFromInt(12)), "credits must not inflate expenses, got %s", m.OtherExpenses)
}

func TestComputeDeterministic(t *testing.T) {
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	lines := []orders.Line{
		{OrderID: "O-1", SKU: "A1", Quantity: 2, Price: decimal.NewFromInt(75), Type: orders.LineSale, OrderDate: day},
	}
	txns := []transactions.Transaction{
		{ExternalID: "T-1", TypeLabel: "Commission", Amount: decimal.NewFromInt(-9), Date: day},
	}
	resolver := NewCostResolver([]catalog.Product{{Article: "A1", CostPrice: costPtr("33")}})
	classifier := testClassifier(t)

	first, _ := Compute(1, day, lines, txns, resolver, classifier)
	second, _ := Compute(1, day, lines, txns, resolver, classifier)

	assert.True(t, first.Profit.Equal(second.Profit))
	assert.True(t, first.Revenue.Equal(second.Revenue))
	assert.Equal(t, first.OrdersCount, second.OrdersCount)
}
