package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// DefaultLimit is the result limit applied when a query does not set one.
const DefaultLimit = 10

// Query is a validated search request.
type Query struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags"`
	Limit int      `json:"limit"`
}

// ValidationKind classifies why a query was rejected.
type ValidationKind string

const (
	KindMissing      ValidationKind = "missing"
	KindWrongType    ValidationKind = "wrong_type"
	KindInvalidValue ValidationKind = "invalid_value"
	KindMalformed    ValidationKind = "malformed"
)

// ValidationError describes a rejected query field.
type ValidationError struct {
	Field   string
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid query: " + e.Message
	}
	return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrInvalidQuery) true for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidQuery
}

// ValidateOption adjusts query validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	defaultLimit int
}

// WithDefaultLimit overrides DefaultLimit for queries without a limit.
// Negative values are ignored.
func WithDefaultLimit(n int) ValidateOption {
	return func(c *validateConfig) {
		if n >= 0 {
			c.defaultLimit = n
		}
	}
}

// ParseQuery decodes and validates a JSON query body.
func ParseQuery(data []byte, opts ...ValidateOption) (Query, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Query{}, &ValidationError{Kind: KindMalformed, Message: "body is not valid JSON"}
	}
	if _, err := dec.Token(); err != io.EOF {
		return Query{}, &ValidationError{Kind: KindMalformed, Message: "body must hold a single JSON value"}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return Query{}, &ValidationError{Kind: KindMalformed, Message: "body must be a JSON object"}
	}
	return ValidateQuery(obj, opts...)
}

// ValidateQuery checks a decoded query object and fills in defaults.
// Unknown fields are ignored.
func ValidateQuery(raw map[string]any, opts ...ValidateOption) (Query, error) {
	cfg := validateConfig{defaultLimit: DefaultLimit}
	for _, opt := range opts {
		opt(&cfg)
	}

	q := Query{Tags: []string{}, Limit: cfg.defaultLimit}

	v, ok := raw["query"]
	if !ok || v == nil {
		return Query{}, &ValidationError{Field: "query", Kind: KindMissing, Message: "is required"}
	}
	s, ok := v.(string)
	if !ok {
		return Query{}, &ValidationError{Field: "query", Kind: KindWrongType, Message: "must be a string"}
	}
	if s == "" {
		return Query{}, &ValidationError{Field: "query", Kind: KindInvalidValue, Message: "must not be empty"}
	}
	q.Query = s

	if v, ok := raw["tags"]; ok && v != nil {
		tags, err := stringSlice(v)
		if err != nil {
			return Query{}, err
		}
		q.Tags = tags
	}

	if v, ok := raw["limit"]; ok && v != nil {
		n, err := integer(v)
		if err != nil {
			return Query{}, err
		}
		if n < 0 {
			return Query{}, &ValidationError{Field: "limit", Kind: KindInvalidValue, Message: "must not be negative"}
		}
		q.Limit = n
	}

	return q, nil
}

func stringSlice(v any) ([]string, error) {
	switch vals := v.(type) {
	case []string:
		return append([]string{}, vals...), nil
	case []any:
		out := make([]string, 0, len(vals))
		for i, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, &ValidationError{
					Field:   fmt.Sprintf("tags[%d]", i),
					Kind:    KindWrongType,
					Message: "must be a string",
				}
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, &ValidationError{Field: "tags", Kind: KindWrongType, Message: "must be an array of strings"}
}

// integer accepts any integral number. Values beyond math.MaxInt32 are
// rejected the same way whether they arrive as integers or in float form.
func integer(v any) (int, error) {
	wrong := &ValidationError{Field: "limit", Kind: KindWrongType, Message: "must be an integer"}

	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, wrong
		}
		f = parsed
	case float64:
		f = n
	default:
		return 0, wrong
	}

	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, wrong
	}
	if f > math.MaxInt32 {
		return 0, &ValidationError{Field: "limit", Kind: KindInvalidValue, Message: "is too large"}
	}
	return int(max(f, math.MinInt32)), nil
}
