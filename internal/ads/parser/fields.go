package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
)

// errAbsent marks a field that is missing, null, an empty array, or an
// array whose first element is null.
var errAbsent = errors.New("absent")

var jsonNull = []byte("null")

// first unwraps the single-element array the ads feed puts around every
// value and returns the raw first element.
func first(rec ads.RawRecord, field string) (json.RawMessage, error) {
	raw, ok := rec[field]
	if !ok || isNull(raw) {
		return nil, errAbsent
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("expected array-wrapped value: %w", err)
	}
	if len(elems) == 0 || isNull(elems[0]) {
		return nil, errAbsent
	}
	return elems[0], nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

// int64Field accepts a JSON number or a numeric string. Integral floats such
// as 12.0 are accepted; fractional ones are not.
func int64Field(rec ads.RawRecord, field string) (int64, error) {
	raw, err := first(rec, field)
	if err != nil {
		return 0, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("expected integer: %w", err)
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if err != nil || f != math.Trunc(f) || f >= -math.MinInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("expected integer, got %s", n.String())
	}
	return int64(f), nil
}

// stringField requires a JSON string.
func stringField(rec ads.RawRecord, field string) (string, error) {
	raw, err := first(rec, field)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected string: %w", err)
	}
	return s, nil
}

// optString returns "" for an absent or malformed field. Non-string scalars
// are rendered as their literal JSON text.
func optString(rec ads.RawRecord, field string) string {
	raw, err := first(rec, field)
	if err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return ""
	}
	return string(trimmed)
}

// optFloat returns def for an absent or non-numeric field.
func optFloat(rec ads.RawRecord, field string, def float64) float64 {
	raw, err := first(rec, field)
	if err != nil {
		return def
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return def
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return def
	}
	return f
}
