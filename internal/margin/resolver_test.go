package margin

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerpulse/sellerpulse/internal/catalog"
)

func TestResolverPrefersArticle(t *testing.T) {
	r := NewCostResolver([]catalog.Product{
		{Article: "A1", Barcode: "B1", CostPrice: costPtr("100")},
		{Article: "A2", Barcode: "B2", CostPrice: costPtr("200")},
	})

	cost, ok := r.Resolve("A1", "B2")
	require.True(t, ok)
	assert.True(t, cost.Equal(decimal.NewFromInt(100)), "article match must win over barcode, got %s", cost)
}

func TestResolverFallsBackToBarcode(t *testing.T) {
	r := NewCostResolver([]catalog.Product{
		{Article: "A2", Barcode: "B2", CostPrice: costPtr("200")},
	})

	cost, ok := r.Resolve("UNKNOWN", "B2")
	require.True(t, ok)
	assert.True(t, cost.Equal(decimal.NewFromInt(200)))
}

func TestResolverMissReturnsZero(t *testing.T) {
	r := NewCostResolver([]catalog.Product{
		{Article: "A1", Barcode: "B1", CostPrice: costPtr("100")},
	})

	cost, ok := r.Resolve("X", "Y")
	assert.False(t, ok)
	assert.True(t, cost.IsZero())
}

func TestResolverSkipsNullCost(t *testing.T) {
	// A product row without a cost price must not shadow a costed
	// barcode match.
	r := NewCostResolver([]catalog.Product{
		{Article: "A1", Barcode: "B1"},
		{Article: "A9", Barcode: "B1", CostPrice: costPtr("55")},
	})

	cost, ok := r.Resolve("A1", "B1")
	require.True(t, ok)
	assert.True(t, cost.Equal(decimal.NewFromInt(55)))
}

func TestResolverEmptyIdentifiers(t *testing.T) {
	r := NewCostResolver([]catalog.Product{
		{Article: "A1", Barcode: "", CostPrice: costPtr("10")},
	})

	_, ok := r.Resolve("", "")
	assert.False(t, ok)
}
