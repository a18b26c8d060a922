package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/pixbridge/internal/bridge"
	"github.com/roach88/pixbridge/internal/ir"
)

// StepResult is the outcome of one recipe step.
type StepResult struct {
	ID        string      `json:"id"`
	Operation string      `json:"operation,omitempty"`
	Recipe    string      `json:"recipe,omitempty"`
	Outputs   ir.IRObject `json:"outputs,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	Error     string      `json:"error,omitempty"`

	// Nested holds the steps of a nested recipe, with images described
	// rather than live.
	Nested []StepResult `json:"nested,omitempty"`

	// Names lists Outputs in harvest order.
	Names []string `json:"-"`
}

// Failed reports whether the step failed.
func (s StepResult) Failed() bool {
	return s.ErrorCode != ""
}

// Single returns the lone output when there is exactly one, otherwise all
// outputs as a map.
func (s StepResult) Single() ir.IRValue {
	if len(s.Names) == 1 {
		return s.Outputs[s.Names[0]]
	}
	out := make(ir.IRObject, len(s.Outputs))
	for k, v := range s.Outputs {
		out[k] = v
	}
	return out
}

// Execution is one run of a recipe.
type Execution struct {
	// Recipe is the nesting path of the recipe that ran.
	Recipe string

	// Steps holds the steps that ran, in order. On failure the last one
	// is the failed step.
	Steps []StepResult

	input ir.IRValue
	index map[string]int
}

func newExecution(path string, input ir.IRValue) *Execution {
	return &Execution{Recipe: path, input: input, index: map[string]int{}}
}

func (x *Execution) add(sr StepResult) {
	x.index[sr.ID] = len(x.Steps)
	x.Steps = append(x.Steps, sr)
}

// Step returns a step by id.
func (x *Execution) Step(id string) (StepResult, bool) {
	i, ok := x.index[id]
	if !ok {
		return StepResult{}, false
	}
	return x.Steps[i], true
}

// Final is what the recipe yields: the single output of its last step, or
// the map of its outputs. Nil if no step ran or the last one failed.
func (x *Execution) Final() ir.IRValue {
	if len(x.Steps) == 0 {
		return nil
	}
	last := x.Steps[len(x.Steps)-1]
	if last.Failed() {
		return nil
	}
	return last.Single()
}

// Failed returns the failed step, if any.
func (x *Execution) Failed() (StepResult, bool) {
	if len(x.Steps) == 0 || !x.Steps[len(x.Steps)-1].Failed() {
		return StepResult{}, false
	}
	return x.Steps[len(x.Steps)-1], true
}

// Value resolves a "$step" or "$step.field" reference against the steps
// that ran.
func (x *Execution) Value(ref string) (ir.IRValue, error) {
	r, ok := ir.ParseRef(ref)
	if !ok {
		return nil, fmt.Errorf("%q is not a step reference", ref)
	}
	return x.lookup(r)
}

// Trace copies the steps with every image replaced by its description, so
// the copy stays valid after Close.
func (x *Execution) Trace() []StepResult {
	out := make([]StepResult, len(x.Steps))
	for i, s := range x.Steps {
		s.Outputs = describeObject(s.Outputs)
		out[i] = s
	}
	return out
}

// Close closes every handle the steps produced.
func (x *Execution) Close() {
	for i := range x.Steps {
		bridge.CloseValue(x.Steps[i].Outputs)
		x.Steps[i].Outputs = nil
	}
}

func (x *Execution) lookup(r ir.StepRef) (ir.IRValue, error) {
	if r.Step == ir.InputStep {
		if x.input == nil {
			return nil, fmt.Errorf("%s: recipe %s was not given an input", r, x.Recipe)
		}
		if r.Field == "" {
			return x.input, nil
		}
		obj, ok := x.input.(ir.IRObject)
		if !ok {
			return nil, fmt.Errorf("%s: input is %s, not a map", r, ir.TypeName(x.input))
		}
		v, ok := obj[r.Field]
		if !ok {
			return nil, fmt.Errorf("%s: input has no field %q", r, r.Field)
		}
		return v, nil
	}

	sr, ok := x.Step(r.Step)
	if !ok || sr.Failed() {
		return nil, fmt.Errorf("%s: step %q has no result", r, r.Step)
	}
	if r.Field == "" {
		return sr.Single(), nil
	}
	v, ok := sr.Outputs[r.Field]
	if !ok {
		return nil, fmt.Errorf("%s: step %q has no output %q (has %s)", r, r.Step, r.Field, strings.Join(sr.Names, ", "))
	}
	return v, nil
}

// resolve replaces references inside v with the values they name.
func (x *Execution) resolve(v ir.IRValue) (ir.IRValue, error) {
	switch val := v.(type) {
	case ir.IRString:
		s := string(val)
		if r, ok := ir.ParseRef(s); ok {
			return x.lookup(r)
		}
		return ir.IRString(ir.Unescape(s)), nil
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			rv, err := x.resolve(elem)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			rv, err := x.resolve(elem)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func (x *Execution) resolveCall(step ir.RecipeStep) (ir.IRValue, []ir.IRValue, ir.IRObject, error) {
	var instance ir.IRValue
	if step.Instance != nil {
		v, err := x.resolve(step.Instance)
		if err != nil {
			return nil, nil, nil, err
		}
		instance = v
	}

	args := make([]ir.IRValue, len(step.Args))
	for i, a := range step.Args {
		v, err := x.resolve(a)
		if err != nil {
			return nil, nil, nil, err
		}
		args[i] = v
	}

	var options ir.IRObject
	if step.Options != nil {
		v, err := x.resolve(step.Options)
		if err != nil {
			return nil, nil, nil, err
		}
		options = v.(ir.IRObject)
	}
	return instance, args, options, nil
}

func describeObject(obj ir.IRObject) ir.IRObject {
	if obj == nil {
		return nil
	}
	return describe(obj).(ir.IRObject)
}

func describe(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case *ir.Handle:
		return ir.IRObject{"$handle": val.Describe()}
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = describe(elem)
		}
		return out
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			out[k] = describe(elem)
		}
		return out
	default:
		return v
	}
}
