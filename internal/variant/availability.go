package variant

import (
	"github.com/TPAIN22/nubian-storefront/internal/app/model"
)

// Reason explains a purchasability verdict
type Reason string

const (
	ReasonOK                Reason = "OK"
	ReasonInactiveProduct   Reason = "INACTIVE_PRODUCT"
	ReasonOutOfStock        Reason = "OUT_OF_STOCK"
	ReasonMissingRequired   Reason = "MISSING_REQUIRED"
	ReasonNoMatchingVariant Reason = "NO_MATCHING_VARIANT"
)

// Verdict is the outcome of Evaluate. Missing lists the display names of
// required attributes absent from the selection; Variant is the matched
// variant when there is one.
type Verdict struct {
	Purchasable bool           `json:"purchasable"`
	Reason      Reason         `json:"reason"`
	Missing     []string       `json:"missing,omitempty"`
	Variant     *model.Variant `json:"variant,omitempty"`
	Stock       int            `json:"stock"`
}

// Evaluate decides whether the selection can be bought right now. The rules
// are checked in order and the first one that applies decides.
func Evaluate(p *model.Product, selected model.Attributes) Verdict {
	if p == nil || !p.IsActive {
		return Verdict{Reason: ReasonInactiveProduct}
	}

	if !p.HasVariants() {
		if p.Stock > 0 {
			return Verdict{Purchasable: true, Reason: ReasonOK, Stock: p.Stock}
		}
		return Verdict{Reason: ReasonOutOfStock}
	}

	sel := NormalizeStrings(selected)
	if missing := MissingRequired(p, sel); len(missing) > 0 {
		return Verdict{Reason: ReasonMissingRequired, Missing: missing}
	}

	v := Match(p, sel)
	if v == nil {
		return Verdict{Reason: ReasonNoMatchingVariant}
	}
	if !v.IsActive || v.Stock <= 0 {
		return Verdict{Reason: ReasonOutOfStock, Variant: v}
	}
	return Verdict{Purchasable: true, Reason: ReasonOK, Variant: v, Stock: v.Stock}
}

// MissingRequired returns the display names of required attributes that the
// normalized selection does not carry, in definition order.
func MissingRequired(p *model.Product, sel model.Attributes) []string {
	if p == nil {
		return nil
	}
	var missing []string
	seen := make(map[string]bool)
	for _, def := range p.Attributes {
		if !def.Required {
			continue
		}
		name := CanonicalName(def.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := sel[name]; !ok {
			missing = append(missing, def.DisplayName())
		}
	}
	return missing
}
