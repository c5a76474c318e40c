// Package variant holds the pure option-selection logic of the storefront:
// attribute normalization, variant matching, availability and cart line keys.
// Nothing in here performs I/O or fails on well-typed input.
package variant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/TPAIN22/nubian-storefront/internal/app/model"
)

var ErrUnsupportedAttributes = errors.New("unsupported attribute payload")

// legacySynonyms lists spellings older app builds and vendors still send
var legacySynonyms = map[string]string{
	"colors":  "color",
	"colour":  "color",
	"colours": "color",
	"sizes":   "size",
}

// Normalize canonicalizes a raw selection: keys trimmed and lower-cased,
// values stringified and trimmed, empty and null-like values dropped,
// legacy synonyms folded. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw map[string]any) model.Attributes {
	out := make(model.Attributes, len(raw))
	if len(raw) == 0 {
		return out
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	source := make(map[string]string, len(raw))
	for _, rawKey := range keys {
		key := CanonicalName(rawKey)
		if key == "" {
			continue
		}
		value, ok := stringify(raw[rawKey])
		if !ok {
			continue
		}
		// a key already in canonical form beats "Size", " size " or "colour"
		if prev, taken := source[key]; taken && (prev == key || rawKey != key) {
			continue
		}
		source[key] = rawKey
		out[key] = value
	}
	return out
}

// NormalizeStrings is Normalize for already string-typed maps
func NormalizeStrings(raw map[string]string) model.Attributes {
	generic := make(map[string]any, len(raw))
	for k, v := range raw {
		generic[k] = v
	}
	return Normalize(generic)
}

// CanonicalName folds an attribute name the way Normalize does, including
// legacy synonyms.
func CanonicalName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := legacySynonyms[key]; ok {
		return canonical
	}
	return key
}

func stringify(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	case int:
		s = strconv.Itoa(t)
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case int64:
		s = strconv.FormatInt(t, 10)
	case uint:
		s = strconv.FormatUint(uint64(t), 10)
	case uint32:
		s = strconv.FormatUint(uint64(t), 10)
	case uint64:
		s = strconv.FormatUint(t, 10)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		if len(t) != 1 {
			return "", false
		}
		return stringify(t[0])
	case []string:
		if len(t) != 1 {
			return "", false
		}
		s = t[0]
	case fmt.Stringer:
		s = t.String()
	default:
		return "", false
	}

	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "undefined") {
		return "", false
	}
	return s, true
}

// Pair is the list-shaped wire form of one attribute:
// [{"name": "Size", "value": "M"}]. Some endpoints send key or option
// instead of name.
type Pair struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Option string `json:"option"`
	Value  any    `json:"value"`
}

func (p Pair) label() string {
	switch {
	case strings.TrimSpace(p.Name) != "":
		return p.Name
	case strings.TrimSpace(p.Key) != "":
		return p.Key
	default:
		return p.Option
	}
}

// FromObject adapts the object wire shape {"Size": "M"}
func FromObject(obj map[string]any) model.Attributes {
	return Normalize(obj)
}

// FromPairs adapts the list wire shape. The first pair carrying a usable
// value for a name wins.
func FromPairs(pairs []Pair) model.Attributes {
	raw := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name := p.label()
		if name == "" {
			continue
		}
		if _, ok := stringify(p.Value); !ok {
			continue
		}
		if _, exists := raw[name]; exists {
			continue
		}
		raw[name] = p.Value
	}
	return Normalize(raw)
}

// DecodeAttributes picks the adapter for a JSON attribute payload from its
// shape. null or an empty payload yields an empty map.
func DecodeAttributes(data json.RawMessage) (model.Attributes, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return model.Attributes{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	switch trimmed[0] {
	case '{':
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedAttributes, err)
		}
		return FromObject(obj), nil
	case '[':
		var pairs []Pair
		if err := dec.Decode(&pairs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedAttributes, err)
		}
		return FromPairs(pairs), nil
	default:
		return nil, fmt.Errorf("%w: expected object or list", ErrUnsupportedAttributes)
	}
}
