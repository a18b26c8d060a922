package bridge

import (
	"fmt"
	"slices"

	"github.com/roach88/pixbridge/internal/ir"
)

// harvest reads the required outputs, then any optional outputs the caller
// named in the options map.
func (c *callContext) harvest() (*Result, error) {
	res := newResult(c.operation)
	names := append([]string{}, c.intro.RequiredOutput...)
	for _, name := range c.wantOutputs {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for _, name := range names {
		v, err := c.readOutput(name)
		if err != nil {
			res.Close()
			return nil, err
		}
		res.add(name, v)
	}
	return res, nil
}

func (c *callContext) readOutput(name string) (ir.IRValue, error) {
	nv, err := c.built.Get(name)
	if err != nil {
		return nil, &CallError{
			Code:      ErrCodeOutputReadFailed,
			Message:   fmt.Sprintf("cannot read output %q", name),
			Operation: c.operation,
			Parameter: name,
			Err:       err,
		}
	}
	defer nv.Unset()

	v, err := FromNative(nv)
	if err != nil {
		return nil, asCallError(err, ErrCodeOutputReadFailed, c.operation, name)
	}
	return v, nil
}
