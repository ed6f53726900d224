package domain

import "time"

type Product struct {
	ID              string                 `json:"id"`
	ProjectID       string                 `json:"-"`
	Key             string                 `json:"key"`
	SKU             string                 `json:"sku"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	ListPriceCents  int64                  `json:"listPriceCents"`
	DiscountPercent int                    `json:"discountPercent"`
	Stock           int                    `json:"stock"`
	Currency        string                 `json:"currency"`
	Attributes      map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// Images returns the image URLs stored in the product attributes.
func (p Product) Images() []string {
	raw, ok := p.Attributes["images"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
