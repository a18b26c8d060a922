package ir

import (
	"encoding/json"
	"fmt"
)

// InputStep is the reserved step name under which a nested recipe sees the
// instance it was called with.
const InputStep = "input"

// Recipe is a compiled, named sequence of bridged calls. Later steps refer
// to the results of earlier ones with "$step" or "$step.output" strings.
type Recipe struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Steps       []RecipeStep `json:"steps"`
}

// RecipeStep is one call in a recipe. A step names either an operation or
// another recipe; a nested recipe sees the step's instance as "$input" and
// yields the result of its last step.
type RecipeStep struct {
	ID        string   `json:"id"`
	Operation string   `json:"operation,omitempty"`
	Recipe    string   `json:"recipe,omitempty"`
	Instance  IRValue  `json:"instance,omitempty"`
	Args      IRArray  `json:"args"`
	Options   IRObject `json:"options,omitempty"`
}

// UnmarshalJSON reads a step written by compile --output. The instance is
// decoded as an IR value.
func (s *RecipeStep) UnmarshalJSON(data []byte) error {
	type plain RecipeStep
	var raw struct {
		plain
		Instance json.RawMessage `json:"instance,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = RecipeStep(raw.plain)
	if len(raw.Instance) > 0 {
		v, err := UnmarshalIRValue(raw.Instance)
		if err != nil {
			return fmt.Errorf("step %q instance: %w", s.ID, err)
		}
		s.Instance = v
	}
	return nil
}

// CallRecord is one journaled call, successful or not.
type CallRecord struct {
	ID            string   `json:"id"`  // UUIDv7
	Seq           int64    `json:"seq"` // Logical clock
	Operation     string   `json:"operation"`
	CallHash      string   `json:"call_hash"` // Content-addressed arguments
	Args          IRObject `json:"args"`      // instance, positional, options
	Result        IRObject `json:"result,omitempty"`
	ErrorCode     string   `json:"error_code,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	Source        string   `json:"source,omitempty"` // Recipe or scenario name
	BridgeVersion string   `json:"bridge_version"`
}

// Succeeded reports whether the call returned a result.
func (r CallRecord) Succeeded() bool {
	return r.ErrorCode == ""
}
