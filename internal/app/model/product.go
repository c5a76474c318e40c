package model

import (
	"github.com/shopspring/decimal"
)

// Attributes maps a canonical attribute name to a single value.
// Every attribute map in the engine (selections, variant assignments,
// cart snapshots) uses this type.
type Attributes map[string]string

// Clone returns an independent copy
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold exactly the same pairs
func (a Attributes) Equal(b Attributes) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

type Product struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Description   string                `json:"description,omitempty"`
	Price         decimal.Decimal       `json:"price"`
	DiscountPrice *decimal.Decimal      `json:"discount_price,omitempty"`
	Stock         int                   `json:"stock"`
	IsActive      bool                  `json:"is_active"`
	Images        []string              `json:"images"`
	Attributes    []AttributeDefinition `json:"attributes"`
	Variants      []Variant             `json:"variants"`
}

type AttributeDefinition struct {
	Name     string   `json:"name"`
	Label    string   `json:"label,omitempty"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// DisplayName is what the UI shows for the attribute
func (d AttributeDefinition) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return d.Name
}

type Variant struct {
	ID            string           `json:"id"`
	SKU           string           `json:"sku"`
	Attributes    Attributes       `json:"attributes"`
	Stock         int              `json:"stock"`
	IsActive      bool             `json:"is_active"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
}

func (p *Product) HasVariants() bool {
	return p != nil && len(p.Variants) > 0
}

// TotalStock is the authoritative stock: the product's own count when it has
// no variants, the sum of variant stocks otherwise.
func (p *Product) TotalStock() int {
	if p == nil {
		return 0
	}
	if !p.HasVariants() {
		return p.Stock
	}
	total := 0
	for _, v := range p.Variants {
		if v.Stock > 0 {
			total += v.Stock
		}
	}
	return total
}

// FinalPrice is the product-level price a buyer pays
func (p *Product) FinalPrice() decimal.Decimal {
	return effectivePrice(p.Price, p.DiscountPrice)
}

// UnitPrice resolves the price of one unit of v. A variant price overrides the
// product price; the product discount only applies when it does not.
func (p *Product) UnitPrice(v *Variant) decimal.Decimal {
	if v == nil {
		return p.FinalPrice()
	}
	if v.Price != nil && v.Price.IsPositive() {
		return effectivePrice(*v.Price, v.DiscountPrice)
	}
	if v.DiscountPrice != nil {
		return effectivePrice(p.Price, v.DiscountPrice)
	}
	return p.FinalPrice()
}

func effectivePrice(base decimal.Decimal, discount *decimal.Decimal) decimal.Decimal {
	if discount != nil && discount.IsPositive() && discount.LessThan(base) {
		return *discount
	}
	return base
}

// PrimaryImage returns the first image reference, if any
func (p *Product) PrimaryImage() string {
	if p == nil || len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
