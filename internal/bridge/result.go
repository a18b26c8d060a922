package bridge

import (
	"fmt"

	"github.com/roach88/pixbridge/internal/ir"
)

// Result holds the outputs of one call, keyed by parameter name, in harvest
// order. Image outputs are handles owned by the Result until taken or
// closed.
type Result struct {
	Operation string

	names  []string
	values ir.IRObject
}

func newResult(operation string) *Result {
	return &Result{Operation: operation, values: ir.IRObject{}}
}

func (r *Result) add(name string, v ir.IRValue) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = v
}

// Names lists the outputs in harvest order: required outputs first, then
// requested optional outputs.
func (r *Result) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of outputs.
func (r *Result) Len() int { return len(r.names) }

// Get returns one output.
func (r *Result) Get(name string) (ir.IRValue, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Values returns the outputs as a map. Handles are shared with the Result.
func (r *Result) Values() ir.IRObject {
	out := make(ir.IRObject, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Image returns an image output.
func (r *Result) Image(name string) (*ir.Handle, error) {
	v, ok := r.values[name]
	if !ok {
		return nil, &CallError{
			Code:      ErrCodeOutputReadFailed,
			Message:   fmt.Sprintf("no output named %q", name),
			Operation: r.Operation,
			Parameter: name,
		}
	}
	h, ok := v.(*ir.Handle)
	if !ok || h.Image() == nil {
		return nil, &CallError{
			Code:      ErrCodeTypeMismatch,
			Message:   fmt.Sprintf("output %q is %s, not an image", name, ir.TypeName(v)),
			Operation: r.Operation,
			Parameter: name,
		}
	}
	return h, nil
}

// Single returns the lone output when there is exactly one, otherwise the
// whole map.
func (r *Result) Single() ir.IRValue {
	if len(r.names) == 1 {
		return r.values[r.names[0]]
	}
	return r.Values()
}

// Take detaches an output. The caller becomes responsible for closing any
// handles in it.
func (r *Result) Take(name string) (ir.IRValue, bool) {
	v, ok := r.values[name]
	if !ok {
		return nil, false
	}
	delete(r.values, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	return v, true
}

// Close closes every handle still held by the Result, including handles
// inside arrays.
func (r *Result) Close() error {
	for _, v := range r.values {
		closeHandles(v)
	}
	return nil
}

// CloseValue closes every handle inside v.
func CloseValue(v ir.IRValue) {
	closeHandles(v)
}

func closeHandles(v ir.IRValue) {
	switch val := v.(type) {
	case *ir.Handle:
		val.Close()
	case ir.IRArray:
		for _, e := range val {
			closeHandles(e)
		}
	case ir.IRObject:
		for _, e := range val {
			closeHandles(e)
		}
	}
}
