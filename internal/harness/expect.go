package harness

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/pixbridge/internal/engine"
	"github.com/roach88/pixbridge/internal/ir"
)

// checkExpectations compares the run against the scenario's expectations.
// A run that fails without an error expectation naming the failed step is
// itself a failure.
func checkExpectations(x *engine.Execution, runErr error, expect []Expectation) []string {
	var failures []string

	failed, hasFailed := x.Failed()
	if runErr != nil && !hasFailed {
		failures = append(failures, fmt.Sprintf("run failed before any step: %v", runErr))
	}
	errorExpected := false

	for i, e := range expect {
		var err error
		switch {
		case e.Error != "":
			errorExpected = true
			err = expectError(x, e)
		case e.Image != nil:
			err = expectImage(x, e)
		default:
			err = expectEquals(x, e)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("expect[%d]: %v", i, err))
		}
	}

	if hasFailed && !errorExpected {
		failures = append(failures, fmt.Sprintf("step %s failed: %s", failed.ID, failed.Error))
	}
	return failures
}

func expectError(x *engine.Execution, e Expectation) error {
	failed, ok := x.Failed()
	if !ok {
		return fmt.Errorf("expected step %s to fail with %s, but the run succeeded", e.Step, e.Error)
	}
	if failed.ID != e.Step {
		return fmt.Errorf("expected step %s to fail with %s, but step %s failed with %s", e.Step, e.Error, failed.ID, failed.ErrorCode)
	}
	if failed.ErrorCode != e.Error {
		return fmt.Errorf("step %s failed with %s, expected %s", e.Step, failed.ErrorCode, e.Error)
	}
	return nil
}

func expectImage(x *engine.Execution, e Expectation) error {
	v, err := x.Value(e.Ref)
	if err != nil {
		return err
	}
	h, ok := v.(*ir.Handle)
	if !ok || h.Image() == nil {
		return fmt.Errorf("%s is %s, not an image", e.Ref, ir.TypeName(v))
	}
	im := h.Image()
	want := e.Image
	var errs []error
	check := func(field string, got, expected any, skip bool) {
		if !skip && got != expected {
			errs = append(errs, fmt.Errorf("%s %s = %v, expected %v", e.Ref, field, got, expected))
		}
	}
	check("width", im.Width, want.Width, want.Width == 0)
	check("height", im.Height, want.Height, want.Height == 0)
	check("bands", im.Bands, want.Bands, want.Bands == 0)
	check("format", im.Format.String(), want.Format, want.Format == "")
	check("interpretation", im.Interpretation.String(), want.Interpretation, want.Interpretation == "")
	return errors.Join(errs...)
}

func expectEquals(x *engine.Execution, e Expectation) error {
	got, err := x.Value(e.Ref)
	if err != nil {
		return err
	}
	want, err := ir.FromAny(e.Equals)
	if err != nil {
		return fmt.Errorf("equals: %w", err)
	}
	if !irEqual(got, want, e.Tolerance) {
		return fmt.Errorf("%s = %s, expected %s", e.Ref, render(got), render(want))
	}
	return nil
}

// irEqual compares IR values, treating ints and floats as numbers.
func irEqual(got, want ir.IRValue, tolerance float64) bool {
	if isNumber(got) && isNumber(want) {
		g, _ := ir.AsFloat(got)
		w, _ := ir.AsFloat(want)
		return math.Abs(g-w) <= tolerance
	}
	switch w := want.(type) {
	case ir.IRArray:
		g, ok := got.(ir.IRArray)
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range w {
			if !irEqual(g[i], w[i], tolerance) {
				return false
			}
		}
		return true
	case ir.IRObject:
		g, ok := got.(ir.IRObject)
		if !ok || len(g) != len(w) {
			return false
		}
		for k, wv := range w {
			gv, ok := g[k]
			if !ok || !irEqual(gv, wv, tolerance) {
				return false
			}
		}
		return true
	}
	gb, err1 := ir.MarshalCanonical(got)
	wb, err2 := ir.MarshalCanonical(want)
	return err1 == nil && err2 == nil && string(gb) == string(wb)
}

func render(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%s>", ir.TypeName(v))
	}
	return string(b)
}

func isNumber(v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRInt, ir.IRFloat:
		return true
	}
	return false
}
