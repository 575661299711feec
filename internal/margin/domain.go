package margin

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrBadRange indicates an invalid date range request.
var ErrBadRange = errors.New("margin: bad date range")

// DailyMetric is the per-client, per-date profit rollup. It is a derived,
// fully recomputed row: every aggregation run overwrites all computed
// fields for its (client, date) key, so re-running with unchanged facts
// yields an identical row.
type DailyMetric struct {
	ClientID      int64            `json:"client_id"`
	Date          time.Time        `json:"date"`
	OrdersCount   int64            `json:"orders_count"`
	Revenue       decimal.Decimal  `json:"revenue"`
	Returns       decimal.Decimal  `json:"returns"`
	COGS          decimal.Decimal  `json:"cogs"`
	Commission    decimal.Decimal  `json:"commission"`
	Shipping      decimal.Decimal  `json:"shipping"`
	OtherExpenses decimal.Decimal  `json:"other_expenses"`
	Profit        decimal.Decimal  `json:"profit"`
	// MarginPercent is profit/revenue*100 rounded to two decimal places,
	// nil when the day had no revenue.
	MarginPercent *decimal.Decimal `json:"margin_percent"`
	ComputedAt    time.Time        `json:"computed_at"`
}

// ComputeStats carries data-quality counters out of a single computation.
type ComputeStats struct {
	// UncostedLines counts sale lines aggregated with zero cost because
	// neither article nor barcode matched a costed product.
	UncostedLines int
	// UnclassifiedTransactions counts transactions that fell into the
	// other bucket.
	UnclassifiedTransactions int
}

// BackfillSummary reports the outcome of a date-range backfill.
type BackfillSummary struct {
	ClientID      int64    `json:"client_id"`
	From          string   `json:"from,omitempty"`
	To            string   `json:"to,omitempty"`
	Aggregated    int      `json:"aggregated"`
	FailedDates   []string `json:"failed_dates,omitempty"`
	UncostedLines int      `json:"uncosted_lines"`
}

// UpToDate reports whether the backfill had nothing to do.
func (s BackfillSummary) UpToDate() bool {
	return s.Aggregated == 0 && len(s.FailedDates) == 0
}

// RangeSummary folds a metric range into period totals.
type RangeSummary struct {
	ClientID      int64            `json:"client_id"`
	From          string           `json:"from"`
	To            string           `json:"to"`
	Days          int              `json:"days"`
	OrdersCount   int64            `json:"orders_count"`
	Revenue       decimal.Decimal  `json:"revenue"`
	Returns       decimal.Decimal  `json:"returns"`
	COGS          decimal.Decimal  `json:"cogs"`
	Commission    decimal.Decimal  `json:"commission"`
	Shipping      decimal.Decimal  `json:"shipping"`
	OtherExpenses decimal.Decimal  `json:"other_expenses"`
	Profit        decimal.Decimal  `json:"profit"`
	MarginPercent *decimal.Decimal `json:"margin_percent"`
}

// Summarize totals a slice of daily metrics. The summary margin is
// recomputed from period totals rather than averaged per day.
func Summarize(clientID int64, from, to time.Time, metrics []DailyMetric) RangeSummary {
	out := RangeSummary{
		ClientID: clientID,
		From:     from.Format("2006-01-02"),
		To:       to.Format("2006-01-02"),
		Days:     len(metrics),
	}
	for _, m := range metrics {
		out.OrdersCount += m.OrdersCount
		out.Revenue = out.Revenue.Add(m.Revenue)
		out.Returns = out.Returns.Add(m.Returns)
		out.COGS = out.COGS.Add(m.COGS)
		out.Commission = out.Commission.Add(m.Commission)
		out.Shipping = out.Shipping.Add(m.Shipping)
		out.OtherExpenses = out.OtherExpenses.Add(m.OtherExpenses)
		out.Profit = out.Profit.Add(m.Profit)
	}
	if out.Revenue.IsPositive() {
		margin := out.Profit.Div(out.Revenue).Mul(decimal.NewFromInt(100)).Round(2)
		out.MarginPercent = &margin
	}
	return out
}
