package variant

import (
	"sort"
	"strings"
)

const (
	pairSeparator  = "|"
	valueSeparator = ":"
)

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A", "|", "%7C")

// LineKey is the identity of a cart line: the product ID followed by the
// normalized selection as sorted name:value pairs. Equal selections give
// equal keys whatever their casing or insertion order, and an empty
// selection gives the bare product ID.
func LineKey(productID string, selected map[string]string) string {
	attrs := NormalizeStrings(selected)
	if len(attrs) == 0 {
		return productID
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(productID)
	for _, name := range names {
		b.WriteString(pairSeparator)
		b.WriteString(keyEscaper.Replace(name))
		b.WriteString(valueSeparator)
		b.WriteString(keyEscaper.Replace(attrs[name]))
	}
	return b.String()
}
