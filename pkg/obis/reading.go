package obis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Reading maps an OBIS code (or a pseudo key such as "timestamp") to the raw
// scalar returned by the endpoint. Values are json.Number, string, bool or nil.
type Reading map[string]any

func (r Reading) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Float returns the numeric value of key. ok is false when the key is missing
// or its value is not a number or a numeric string.
func (r Reading) Float(key string) (value float64, ok bool) {
	raw, found := r[key]
	if !found {
		return 0, false
	}
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// FloatOrDefault behaves like Float but reads a missing key as def.
func (r Reading) FloatOrDefault(key string, def float64) (float64, bool) {
	if !r.Has(key) {
		return def, true
	}
	return r.Float(key)
}

// Text renders the value of key the way it was received.
func (r Reading) Text(key string) (string, bool) {
	raw, found := r[key]
	if !found || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// Clone returns a shallow copy. Values are scalars so the copy is independent.
func (r Reading) Clone() Reading {
	c := make(Reading, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
