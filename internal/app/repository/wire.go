package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
)

// flexInt accepts 3, 3.0, "3" and null
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		*n = flexInt(i)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*n = flexInt(int(f))
	return nil
}

// wireRef is an identifier that may come bare ("abc") or populated
// ({"_id": "abc", ...})
type wireRef string

func (r *wireRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '{' {
		var obj struct {
			ID      string `json:"id"`
			MongoID string `json:"_id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*r = wireRef(firstNonEmpty(obj.ID, obj.MongoID))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = wireRef(s)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// unwrap peels the common response envelopes ({"product": ...},
// {"data": ...}) until it reaches a payload that is not one of them
func unwrap(body []byte, keys ...string) (json.RawMessage, error) {
	raw := json.RawMessage(bytes.TrimSpace(body))
	for depth := 0; depth < 3; depth++ {
		if len(raw) == 0 || raw[0] != '{' {
			return raw, nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", httpclient.ErrMalformedPayload, err)
		}
		if _, hasID := obj["_id"]; hasID {
			return raw, nil
		}
		if _, hasID := obj["id"]; hasID {
			return raw, nil
		}
		next, found := json.RawMessage(nil), false
		for _, key := range keys {
			if inner, ok := obj[key]; ok && !isNull(inner) {
				next, found = inner, true
				break
			}
		}
		if !found {
			return raw, nil
		}
		raw = bytes.TrimSpace(next)
	}
	return raw, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
