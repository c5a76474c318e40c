package variant

import (
	"sort"
	"strings"

	"github.com/TPAIN22/nubian-storefront/internal/app/model"
)

// Match resolves a selection to the variant whose normalized attribute map is
// exactly the selection. It returns nil when nothing is selected yet and when
// no variant carries that combination. Partial selections never match.
//
// When a catalog holds several variants with the same map the first one in
// list order is returned; DuplicateCombinations reports such catalogs.
func Match(p *model.Product, selected model.Attributes) *model.Variant {
	if p == nil || len(selected) == 0 {
		return nil
	}
	want := NormalizeStrings(selected)
	if len(want) == 0 {
		return nil
	}

	for i := range p.Variants {
		if NormalizeStrings(p.Variants[i].Attributes).Equal(want) {
			return &p.Variants[i]
		}
	}
	return nil
}

// DisplayVariant picks the variant used for default image and price before the
// buyer has chosen anything. It must not be used to decide what gets bought.
func DisplayVariant(p *model.Product) *model.Variant {
	if !p.HasVariants() {
		return nil
	}
	return &p.Variants[0]
}

// DuplicateCombinations groups the IDs of variants that share an identical
// normalized attribute map. A well-formed catalog returns nothing.
func DuplicateCombinations(p *model.Product) [][]string {
	if !p.HasVariants() {
		return nil
	}

	groups := make(map[string][]string)
	var order []string
	for _, v := range p.Variants {
		sig := LineKey("", v.Attributes)
		if _, seen := groups[sig]; !seen {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], v.ID)
	}

	var dups [][]string
	for _, sig := range order {
		if ids := groups[sig]; len(ids) > 1 {
			dups = append(dups, ids)
		}
	}
	return dups
}

// OptionValue is one selectable value of an attribute
type OptionValue struct {
	Value     string `json:"value"`
	Selected  bool   `json:"selected"`
	Available bool   `json:"available"`
}

// OptionGroup is the selector state of one attribute
type OptionGroup struct {
	Name     string        `json:"name"`
	Label    string        `json:"label"`
	Required bool          `json:"required"`
	Values   []OptionValue `json:"values"`
}

// AttributeNames lists the attributes that take part in variance: declared
// definitions first, then names only observed on variants, sorted.
func AttributeNames(p *model.Product) []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, def := range p.Attributes {
		name := CanonicalName(def.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	var extra []string
	for _, v := range p.Variants {
		for name := range NormalizeStrings(v.Attributes) {
			if !seen[name] {
				seen[name] = true
				extra = append(extra, name)
			}
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// OptionsFor returns the values of one attribute: the declared option list
// when there is one, otherwise the union of variant values in first-seen order.
func OptionsFor(p *model.Product, name string) []string {
	if p == nil {
		return nil
	}
	name = CanonicalName(name)

	for _, def := range p.Attributes {
		if CanonicalName(def.Name) != name || len(def.Options) == 0 {
			continue
		}
		seen := make(map[string]bool, len(def.Options))
		var values []string
		for _, opt := range def.Options {
			opt = strings.TrimSpace(opt)
			if opt == "" || seen[opt] {
				continue
			}
			seen[opt] = true
			values = append(values, opt)
		}
		return values
	}

	seen := make(map[string]bool)
	var values []string
	for _, v := range p.Variants {
		value, ok := NormalizeStrings(v.Attributes)[name]
		if !ok || seen[value] {
			continue
		}
		seen[value] = true
		values = append(values, value)
	}
	return values
}

// SelectableOptions reports, for every attribute, which values can still lead
// to a purchasable variant given the rest of the current selection. A value is
// available when an active in-stock variant carries it and agrees with every
// other selected attribute.
func SelectableOptions(p *model.Product, selected model.Attributes) []OptionGroup {
	if p == nil {
		return nil
	}
	sel := NormalizeStrings(selected)

	normalized := make([]model.Attributes, len(p.Variants))
	for i, v := range p.Variants {
		normalized[i] = NormalizeStrings(v.Attributes)
	}

	defs := make(map[string]model.AttributeDefinition, len(p.Attributes))
	for _, def := range p.Attributes {
		defs[CanonicalName(def.Name)] = def
	}

	names := AttributeNames(p)
	groups := make([]OptionGroup, 0, len(names))
	for _, name := range names {
		def, declared := defs[name]
		group := OptionGroup{Name: name, Label: name}
		if declared {
			group.Label = def.DisplayName()
			group.Required = def.Required
		}

		for _, value := range OptionsFor(p, name) {
			group.Values = append(group.Values, OptionValue{
				Value:     value,
				Selected:  sel[name] == value,
				Available: valueReachable(p, normalized, sel, name, value),
			})
		}
		groups = append(groups, group)
	}
	return groups
}

func valueReachable(p *model.Product, normalized []model.Attributes, sel model.Attributes, name, value string) bool {
	if !p.HasVariants() {
		return p.IsActive && p.Stock > 0
	}
	for i, attrs := range normalized {
		v := p.Variants[i]
		if !v.IsActive || v.Stock <= 0 || attrs[name] != value {
			continue
		}
		consistent := true
		for k, want := range sel {
			if k == name {
				continue
			}
			if got, ok := attrs[k]; !ok || got != want {
				consistent = false
				break
			}
		}
		if consistent {
			return true
		}
	}
	return false
}
