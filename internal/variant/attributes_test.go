package variant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPAIN22/nubian-storefront/internal/app/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want model.Attributes
	}{
		{
			name: "trims and lower-cases keys",
			raw:  map[string]any{" Size ": "M", "COLOR": "Red"},
			want: model.Attributes{"size": "M", "color": "Red"},
		},
		{
			name: "trims values",
			raw:  map[string]any{"size": "  XL "},
			want: model.Attributes{"size": "XL"},
		},
		{
			name: "drops null-like values",
			raw:  map[string]any{"size": "", "color": "null", "fit": "Undefined", "material": nil, "length": "   "},
			want: model.Attributes{},
		},
		{
			name: "stringifies scalars",
			raw:  map[string]any{"waist": 32, "ratio": 1.5, "gift": true, "pack": json.Number("6")},
			want: model.Attributes{"waist": "32", "ratio": "1.5", "gift": "true", "pack": "6"},
		},
		{
			name: "unwraps single element lists",
			raw:  map[string]any{"size": []any{"M"}, "color": []any{"red", "blue"}},
			want: model.Attributes{"size": "M"},
		},
		{
			name: "folds legacy synonyms",
			raw:  map[string]any{"Colour": "red", "sizes": "L"},
			want: model.Attributes{"color": "red", "size": "L"},
		},
		{
			name: "canonical key wins over synonym",
			raw:  map[string]any{"colour": "red", "color": "blue"},
			want: model.Attributes{"color": "blue"},
		},
		{
			name: "canonical key wins over other casing",
			raw:  map[string]any{"Size": "L", "size": "M"},
			want: model.Attributes{"size": "M"},
		},
		{
			name: "synonym value used when canonical key is empty",
			raw:  map[string]any{"color": "", "colours": "green"},
			want: model.Attributes{"color": "green"},
		},
		{
			name: "nil map",
			raw:  nil,
			want: model.Attributes{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []map[string]any{
		{" Size ": " M ", "Colour": "Red"},
		{"COLOR": "blue", "colors": "red", "Fit": "null"},
		{"waist": 30, "length": 32.5},
		{},
	}

	for _, raw := range inputs {
		once := Normalize(raw)
		twice := NormalizeStrings(once)
		assert.Equal(t, once, twice)
	}
}

func TestFromPairs(t *testing.T) {
	pairs := []Pair{
		{Name: "Size", Value: "M"},
		{Key: "Colour", Value: "red"},
		{Option: "fit", Value: "null"},
		{Name: "size", Value: "L"},
		{Value: "orphan"},
	}

	assert.Equal(t, model.Attributes{"size": "M", "color": "red"}, FromPairs(pairs))
}

func TestDecodeAttributes(t *testing.T) {
	t.Run("object shape", func(t *testing.T) {
		attrs, err := DecodeAttributes(json.RawMessage(`{"Size":"M","waist":32}`))
		require.NoError(t, err)
		assert.Equal(t, model.Attributes{"size": "M", "waist": "32"}, attrs)
	})

	t.Run("pair list shape", func(t *testing.T) {
		attrs, err := DecodeAttributes(json.RawMessage(` [{"name":"Color","value":"Blue"},{"name":"size","value":"S"}]`))
		require.NoError(t, err)
		assert.Equal(t, model.Attributes{"color": "Blue", "size": "S"}, attrs)
	})

	t.Run("null and empty", func(t *testing.T) {
		for _, raw := range []string{"", "null", "  "} {
			attrs, err := DecodeAttributes(json.RawMessage(raw))
			require.NoError(t, err)
			assert.Empty(t, attrs)
		}
	})

	t.Run("unsupported shape", func(t *testing.T) {
		_, err := DecodeAttributes(json.RawMessage(`"size=M"`))
		assert.ErrorIs(t, err, ErrUnsupportedAttributes)
	})

	t.Run("broken object", func(t *testing.T) {
		_, err := DecodeAttributes(json.RawMessage(`{"size":`))
		assert.ErrorIs(t, err, ErrUnsupportedAttributes)
	})
}
