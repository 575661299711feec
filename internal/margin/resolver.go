package margin

import (
	"github.com/shopspring/decimal"

	"github.com/sellerpulse/sellerpulse/internal/catalog"
)

// CostResolver resolves the unit cost for an order line from a catalogue
// snapshot taken at aggregation time. Article is the more reliable
// identifier, so it is tried first; barcode is the recovery path for lines
// whose article no longer maps to a product. Every line of one aggregation
// run shares the same snapshot, so cost changes never leak into a date
// mid-computation.
type CostResolver struct {
	byArticle map[string]decimal.Decimal
	byBarcode map[string]decimal.Decimal
}

// NewCostResolver indexes a product snapshot. Products without a cost
// price are left out of the indexes entirely: a null cost must fall
// through to the barcode lookup, not resolve to zero.
func NewCostResolver(products []catalog.Product) *CostResolver {
	r := &CostResolver{
		byArticle: make(map[string]decimal.Decimal, len(products)),
		byBarcode: make(map[string]decimal.Decimal, len(products)),
	}
	for _, p := range products {
		if p.CostPrice == nil {
			continue
		}
		if p.Article != "" {
			r.byArticle[p.Article] = *p.CostPrice
		}
		if p.Barcode != "" {
			if _, exists := r.byBarcode[p.Barcode]; !exists {
				r.byBarcode[p.Barcode] = *p.CostPrice
			}
		}
	}
	return r
}

// Resolve returns the unit cost for an article/barcode pair. The second
// return value is false when the line is uncosted; the caller degrades to
// zero cost and flags the line rather than failing the run.
func (r *CostResolver) Resolve(article, barcode string) (decimal.Decimal, bool) {
	if article != "" {
		if cost, ok := r.byArticle[article]; ok {
			return cost, true
		}
	}
	if barcode != "" {
		if cost, ok := r.byBarcode[barcode]; ok {
			return cost, true
		}
	}
	return decimal.Zero, false
}
