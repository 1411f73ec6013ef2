package search

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeJSON(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		data, err := json.Marshal(OutcomeOf(Result{Notes: []ScoredNote{}, Links: []ScoredLink{}}, nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"success","data":{"notes":[],"links":[]}}`, string(data))
	})

	t.Run("failure", func(t *testing.T) {
		data, err := json.Marshal(OutcomeOf(nil, errors.New("storage unavailable")))
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"error","error":"storage unavailable"}`, string(data))
	})

	t.Run("callers switch on the variant", func(t *testing.T) {
		var o Outcome = Failure{Message: "x"}
		switch v := o.(type) {
		case Success:
			t.Fatalf("unexpected success %v", v)
		case Failure:
			assert.Equal(t, "x", v.Message)
		}
	})
}
