package domain

import "time"

// LineSnapshot is the denormalized product data a cart line carries so it can
// be rendered without a catalog round trip.
type LineSnapshot struct {
	Name            string   `json:"name"`
	SKU             string   `json:"sku,omitempty"`
	Currency        string   `json:"currency"`
	ListPriceCents  int64    `json:"listPriceCents"`
	DiscountPercent int      `json:"discountPercent"`
	UnitPriceCents  int64    `json:"unitPriceCents"`
	Stock           int      `json:"stock"`
	Images          []string `json:"images,omitempty"`
}

type CartLine struct {
	ProductID      string       `json:"productId"`
	Quantity       int          `json:"quantity"`
	Snapshot       LineSnapshot `json:"snapshot"`
	LineTotalCents int64        `json:"lineTotalCents"`
	Stale          bool         `json:"stale,omitempty"`
	AddedAt        time.Time    `json:"addedAt"`
}

// Cart belongs to exactly one owner: a customer account or a guest client.
type Cart struct {
	ProjectID  string     `json:"-"`
	CustomerID string     `json:"customerId,omitempty"`
	Guest      bool       `json:"guest"`
	Currency   string     `json:"currency"`
	Lines      []CartLine `json:"lines"`
	TotalCents int64      `json:"totalCents"`
	ItemCount  int        `json:"itemCount"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Line returns the line for productID, if any.
func (c *Cart) Line(productID string) (*CartLine, bool) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i], true
		}
	}
	return nil, false
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}
