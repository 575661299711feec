package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineType distinguishes sale lines from return lines.
type LineType string

const (
	// LineSale is a sold line item.
	LineSale LineType = "sale"
	// LineReturn is a returned line item.
	LineReturn LineType = "return"
)

// Line is one order fact: a single line item of a marketplace order.
// Lines are immutable once written except for idempotent re-import, which
// upserts on (client, marketplace, order id, sku).
type Line struct {
	ID          int64
	ClientID    int64
	Marketplace string
	OrderID     string
	SKU         string
	Barcode     string
	Quantity    int64
	Price       decimal.Decimal
	Type        LineType
	OrderDate   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Amount returns quantity times unit price.
func (l Line) Amount() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(l.Quantity))
}
