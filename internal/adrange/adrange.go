// Package adrange holds the ad time range shared by every component and the
// validator applied to candidate ranges coming back from any backend.
package adrange

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Range is one contiguous advertisement interval in seconds.
// A nil *Range means no ad was found.
type Range struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// Valid reports whether 0 <= StartTime < EndTime and both bounds are finite.
func (r Range) Valid() bool {
	if math.IsNaN(r.StartTime) || math.IsNaN(r.EndTime) ||
		math.IsInf(r.StartTime, 0) || math.IsInf(r.EndTime, 0) {
		return false
	}
	return r.StartTime >= 0 && r.EndTime >= 0 && r.StartTime < r.EndTime
}

// Normalize returns r when it is valid and nil otherwise.
func Normalize(r *Range) *Range {
	if r == nil || !r.Valid() {
		return nil
	}
	out := *r
	return &out
}

// Validate turns an untrusted JSON candidate into a range.
//
// A null document, a missing or falsy startTime/endTime (0, "", false, null),
// a value that is not numeric, a negative bound, or startTime >= endTime all
// yield nil. Numeric strings are accepted and coerced to float64.
func Validate(raw json.RawMessage) *Range {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	start, ok := coerce(fields["startTime"])
	if !ok {
		return nil
	}
	end, ok := coerce(fields["endTime"])
	if !ok {
		return nil
	}
	return Normalize(&Range{StartTime: start, EndTime: end})
}

// coerce converts one field to float64. ok is false for absent, falsy, or
// non-numeric values.
func coerce(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}

	switch t := v.(type) {
	case float64:
		if t == 0 || math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
