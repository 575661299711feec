package margin

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellerpulse/sellerpulse/internal/orders"
	"github.com/sellerpulse/sellerpulse/internal/transactions"
)

var hundred = decimal.NewFromInt(100)

// Compute produces the daily metric for one (client, date) from its order
// lines, categorised transactions and a cost snapshot. It is a pure
// function over its inputs; persistence and the transaction envelope live
// in the service.
//
// Profit is revenue − returns − cogs − commission − shipping − other.
// Returns are subtracted before cost of goods: the source system carried
// two competing formulas, and this one is the documented choice because
// the metric row stores returns as an explicit component and the identity
// profit = revenue − Σ(components) must hold exactly.
func Compute(clientID int64, date time.Time, lines []orders.Line, txns []transactions.Transaction, resolver *CostResolver, classifier transactions.Classifier) (DailyMetric, ComputeStats) {
	m := DailyMetric{
		ClientID:      clientID,
		Date:          date,
		Revenue:       decimal.Zero,
		Returns:       decimal.Zero,
		COGS:          decimal.Zero,
		Commission:    decimal.Zero,
		Shipping:      decimal.Zero,
		OtherExpenses: decimal.Zero,
	}
	var stats ComputeStats

	seenOrders := make(map[string]struct{})
	for _, line := range lines {
		seenOrders[line.OrderID] = struct{}{}
		switch line.Type {
		case orders.LineSale:
			m.Revenue = m.Revenue.Add(line.Amount())
			cost, costed := resolver.Resolve(line.SKU, line.Barcode)
			if !costed {
				stats.UncostedLines++
			}
			m.COGS = m.COGS.Add(cost.Mul(decimal.NewFromInt(line.Quantity)))
		case orders.LineReturn:
			m.Returns = m.Returns.Add(line.Amount())
		}
	}
	m.OrdersCount = int64(len(seenOrders))

	for _, t := range txns {
		switch classifier.Classify(t.TypeLabel) {
		case transactions.BucketCommission:
			m.Commission = m.Commission.Add(t.Amount.Abs())
		case transactions.BucketLogistics:
			m.Shipping = m.Shipping.Add(t.Amount.Abs())
		case transactions.BucketReturns:
			// Return charges are already reflected in return order
			// lines; the transaction-side bucket only feeds the other
			// expense totals when the marketplace reports them as
			// standalone outflows.
			if t.Amount.IsNegative() {
				m.OtherExpenses = m.OtherExpenses.Add(t.Amount.Abs())
			}
		case transactions.BucketOther:
			stats.UnclassifiedTransactions++
			// Positive amounts in the other bucket are marketplace
			// credits, not costs; counting them as expense would
			// double-count income.
			if t.Amount.IsNegative() {
				m.OtherExpenses = m.OtherExpenses.Add(t.Amount.Abs())
			}
		}
	}

	m.Profit = m.Revenue.
		Sub(m.Returns).
		Sub(m.COGS).
		Sub(m.Commission).
		Sub(m.Shipping).
		Sub(m.OtherExpenses)

	if m.Revenue.IsPositive() {
		pct := m.Profit.Div(m.Revenue).Mul(hundred).Round(2)
		m.MarginPercent = &pct
	}

	return m, stats
}
