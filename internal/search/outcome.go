package search

import "encoding/json"

// Outcome is the status envelope returned by the platform endpoints and MCP
// tools. It is either Success or Failure.
type Outcome interface {
	json.Marshaler
	outcome()
}

// Success carries the payload of a completed request.
type Success struct {
	Data any
}

// Failure carries the message of a failed request.
type Failure struct {
	Message string
}

func (Success) outcome() {}
func (Failure) outcome() {}

func (s Success) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status string `json:"status"`
		Data   any    `json:"data"`
	}{"success", s.Data})
}

func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}{"error", f.Message})
}

// OutcomeOf wraps a payload and error pair.
func OutcomeOf(data any, err error) Outcome {
	if err != nil {
		return Failure{Message: err.Error()}
	}
	return Success{Data: data}
}
