// Package pricing computes effective unit prices from catalog list prices and
// active discounts. Nothing here is cached: callers resolve again whenever the
// price matters, and the latest resolution wins.
package pricing

import (
	"github.com/shopspring/decimal"

	"storefront-orders/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is the price of one product unit at resolution time.
type Snapshot struct {
	ListPriceCents  int64  `json:"listPriceCents"`
	DiscountPercent int    `json:"discountPercent"`
	UnitPriceCents  int64  `json:"unitPriceCents"`
	Currency        string `json:"currency"`
}

// Resolve returns listPrice × (1 − discountPercent/100) rounded half-up to a
// whole cent. Non-positive discounts leave the list price untouched; discounts
// of 100 or more make the product free.
func Resolve(p domain.Product) Snapshot {
	snap := Snapshot{
		ListPriceCents:  p.ListPriceCents,
		DiscountPercent: p.DiscountPercent,
		UnitPriceCents:  p.ListPriceCents,
		Currency:        p.Currency,
	}
	switch {
	case p.DiscountPercent <= 0:
		snap.DiscountPercent = 0
	case p.DiscountPercent >= 100:
		snap.DiscountPercent = 100
		snap.UnitPriceCents = 0
	default:
		factor := hundred.Sub(decimal.NewFromInt(int64(p.DiscountPercent))).Div(hundred)
		snap.UnitPriceCents = decimal.NewFromInt(p.ListPriceCents).Mul(factor).Round(0).IntPart()
	}
	return snap
}

// LineTotal multiplies a unit price by a quantity.
func LineTotal(unitPriceCents int64, quantity int) int64 {
	return decimal.NewFromInt(unitPriceCents).Mul(decimal.NewFromInt(int64(quantity))).IntPart()
}

// LineSnapshot captures the product fields a cart line keeps for offline rendering.
func LineSnapshot(p domain.Product) domain.LineSnapshot {
	snap := Resolve(p)
	return domain.LineSnapshot{
		Name:            p.Name,
		SKU:             p.SKU,
		Currency:        p.Currency,
		ListPriceCents:  snap.ListPriceCents,
		DiscountPercent: snap.DiscountPercent,
		UnitPriceCents:  snap.UnitPriceCents,
		Stock:           p.Stock,
		Images:          p.Images(),
	}
}

// Totals recomputes every line total and the cart total from the unit prices
// held in the line snapshots.
func Totals(cart *domain.Cart) {
	var (
		total int64
		items int
	)
	for i := range cart.Lines {
		line := &cart.Lines[i]
		line.LineTotalCents = LineTotal(line.Snapshot.UnitPriceCents, line.Quantity)
		total += line.LineTotalCents
		items += line.Quantity
		if cart.Currency == "" {
			cart.Currency = line.Snapshot.Currency
		}
	}
	cart.TotalCents = total
	cart.ItemCount = items
}
