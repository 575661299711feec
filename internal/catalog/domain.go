package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the product does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Product is one SKU of a client's catalogue. CostPrice is nil until an
// operator uploads a cost spreadsheet; sales of uncosted products are
// aggregated with zero cost and flagged for operator attention.
type Product struct {
	ID        int64
	ClientID  int64
	Article   string
	Barcode   string
	Name      string
	CostPrice *decimal.Decimal
	Stock     int64
	UpdatedAt time.Time
}

// CostRow is one parsed row of an uploaded cost spreadsheet.
type CostRow struct {
	Article string
	Barcode string
	Cost    decimal.Decimal
}

// ImportReport summarises a cost spreadsheet upload.
type ImportReport struct {
	Rows      int `json:"rows"`
	Updated   int `json:"updated"`
	Unmatched int `json:"unmatched"`
	Skipped   int `json:"skipped"`
}

// ReplenishmentAdvice describes stock cover for one SKU.
type ReplenishmentAdvice struct {
	Article      string          `json:"article"`
	Name         string          `json:"name"`
	Stock        int64           `json:"stock"`
	SoldPerDay   decimal.Decimal `json:"sold_per_day"`
	CoverDays    *decimal.Decimal `json:"cover_days"`
	NeedsReorder bool            `json:"needs_reorder"`
}
