package search

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery_Defaults(t *testing.T) {
	q, err := ParseQuery([]byte(`{"query":"travel"}`))
	require.NoError(t, err)
	assert.Equal(t, "travel", q.Query)
	assert.NotNil(t, q.Tags)
	assert.Empty(t, q.Tags)
	assert.Equal(t, DefaultLimit, q.Limit)
}

func TestParseQuery_AllFields(t *testing.T) {
	q, err := ParseQuery([]byte(`{"query":"travel","tags":["a","b"],"limit":3,"extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, Query{Query: "travel", Tags: []string{"a", "b"}, Limit: 3}, q)
}

func TestParseQuery_NullsUseDefaults(t *testing.T) {
	q, err := ParseQuery([]byte(`{"query":"x","tags":null,"limit":null}`))
	require.NoError(t, err)
	assert.Empty(t, q.Tags)
	assert.Equal(t, DefaultLimit, q.Limit)
}

func TestParseQuery_LimitZeroAllowed(t *testing.T) {
	q, err := ParseQuery([]byte(`{"query":"x","limit":0}`))
	require.NoError(t, err)
	assert.Equal(t, 0, q.Limit)
}

func TestParseQuery_WholeFloatLimit(t *testing.T) {
	q, err := ParseQuery([]byte(`{"query":"x","limit":5.0}`))
	require.NoError(t, err)
	assert.Equal(t, 5, q.Limit)
}

func TestParseQuery_DefaultLimitOption(t *testing.T) {
	q, err := ParseQuery([]byte(`{"query":"x"}`), WithDefaultLimit(25))
	require.NoError(t, err)
	assert.Equal(t, 25, q.Limit)
}

func TestParseQuery_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		kind  ValidationKind
	}{
		{"empty query string", `{"query":"","tags":[],"limit":10}`, "query", KindInvalidValue},
		{"missing query", `{"tags":[]}`, "query", KindMissing},
		{"null query", `{"query":null}`, "query", KindMissing},
		{"query wrong type", `{"query":42}`, "query", KindWrongType},
		{"tags wrong type", `{"query":"x","tags":"travel"}`, "tags", KindWrongType},
		{"tag element wrong type", `{"query":"x","tags":["ok",1]}`, "tags[1]", KindWrongType},
		{"limit wrong type", `{"query":"x","limit":"10"}`, "limit", KindWrongType},
		{"limit fractional", `{"query":"x","limit":2.5}`, "limit", KindWrongType},
		{"limit negative", `{"query":"x","limit":-1}`, "limit", KindInvalidValue},
		{"not json", `{"query":`, "", KindMalformed},
		{"not an object", `["travel"]`, "", KindMalformed},
		{"trailing garbage", `{"query":"x"} trailing`, "", KindMalformed},
		{"second value", `{"query":"x"}{"query":"y"}`, "", KindMalformed},
		{"stray closing brace", `{"query":"x"}}`, "", KindMalformed},
		{"huge integer limit", `{"query":"x","limit":99999999999}`, "limit", KindInvalidValue},
		{"huge exponent limit", `{"query":"x","limit":1e11}`, "limit", KindInvalidValue},
		{"huge negative limit", `{"query":"x","limit":-99999999999}`, "limit", KindInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuery([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidQuery))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.kind, ve.Kind)
		})
	}
}

func TestValidateQuery_GoValues(t *testing.T) {
	q, err := ValidateQuery(map[string]any{
		"query": "travel",
		"tags":  []string{"a"},
		"limit": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, Query{Query: "travel", Tags: []string{"a"}, Limit: 2}, q)
}

func TestParseQuery_TrailingWhitespaceAllowed(t *testing.T) {
	q, err := ParseQuery([]byte("{\"query\":\"x\"}\n  \n"))
	require.NoError(t, err)
	assert.Equal(t, "x", q.Query)
}

func TestValidateQuery_LimitBoundSameForIntAndFloat(t *testing.T) {
	for _, limit := range []any{int64(1) << 40, 1 << 40, float64(1 << 40)} {
		_, err := ValidateQuery(map[string]any{"query": "x", "limit": limit})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve), "limit %v", limit)
		assert.Equal(t, KindInvalidValue, ve.Kind)
		assert.Equal(t, "is too large", ve.Message)
	}

	q, err := ValidateQuery(map[string]any{"query": "x", "limit": int64(math.MaxInt32)})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, q.Limit)
}
