package harness

import (
	"github.com/roach88/pixbridge/internal/engine"
	"github.com/roach88/pixbridge/internal/ir"
)

// TraceEvent is one journaled call.
type TraceEvent struct {
	Seq       int64       `json:"seq"`
	ID        string      `json:"id"`
	Operation string      `json:"operation"`
	Source    string      `json:"source,omitempty"`
	Args      ir.IRObject `json:"args"`
	Result    ir.IRObject `json:"result,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
}

func traceEvent(rec ir.CallRecord) TraceEvent {
	return TraceEvent{
		Seq:       rec.Seq,
		ID:        rec.ID,
		Operation: rec.Operation,
		Source:    rec.Source,
		Args:      rec.Args,
		Result:    rec.Result,
		ErrorCode: rec.ErrorCode,
	}
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every journaled call in seq order.
	Trace []TraceEvent `json:"trace"`

	// Steps are the recipe steps that ran, with images described.
	Steps []engine.StepResult `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []engine.StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace adds a journaled call to the trace.
func (r *Result) AddTrace(rec ir.CallRecord) {
	r.Trace = append(r.Trace, traceEvent(rec))
}
