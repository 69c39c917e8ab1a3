package adrange

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *Range
	}{
		{name: "valid", in: `{"startTime":2.5,"endTime":10}`, want: &Range{StartTime: 2.5, EndTime: 10}},
		{name: "numeric strings", in: `{"startTime":"12.25","endTime":" 40 "}`, want: &Range{StartTime: 12.25, EndTime: 40}},
		{name: "null document", in: `null`},
		{name: "empty document", in: ``},
		{name: "equal bounds", in: `{"startTime":5,"endTime":5}`},
		{name: "reversed", in: `{"startTime":30,"endTime":10}`},
		{name: "negative start", in: `{"startTime":-3,"endTime":10}`},
		{name: "negative end", in: `{"startTime":3,"endTime":-10}`},
		{name: "zero start is falsy", in: `{"startTime":0,"endTime":10}`},
		{name: "missing end", in: `{"startTime":3}`},
		{name: "null end", in: `{"startTime":3,"endTime":null}`},
		{name: "boolean", in: `{"startTime":true,"endTime":10}`},
		{name: "garbage string", in: `{"startTime":"soon","endTime":10}`},
		{name: "not an object", in: `[1,2]`},
		{name: "not json", in: `{startTime: 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(json.RawMessage(tt.in))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	assert.Nil(t, Normalize(&Range{StartTime: math.NaN(), EndTime: 3}))
	assert.Nil(t, Normalize(&Range{StartTime: 1, EndTime: math.Inf(1)}))

	in := &Range{StartTime: 0, EndTime: 3}
	out := Normalize(in)
	require.NotNil(t, out)
	assert.Equal(t, *in, *out)
	assert.NotSame(t, in, out)
}

// Any candidate with start >= end or a negative bound must validate to nil.
func TestValidate_RejectsEveryMalformedBound(t *testing.T) {
	values := []float64{-100, -1, -0.5, 0.5, 1, 2.5, 10, 300}
	for _, start := range values {
		for _, end := range values {
			raw, err := json.Marshal(map[string]float64{"startTime": start, "endTime": end})
			require.NoError(t, err)

			got := Validate(raw)
			if start >= end || start < 0 || end < 0 {
				assert.Nil(t, got, "start=%v end=%v", start, end)
				continue
			}
			require.NotNil(t, got, "start=%v end=%v", start, end)
			assert.Equal(t, Range{StartTime: start, EndTime: end}, *got)
		}
	}
}
