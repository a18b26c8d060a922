package bridge

import (
	"context"
	"fmt"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
)

// CheckArgument coerces a literal against one declared argument without
// calling anything. Image arguments are not checked: a literal there is
// materialized against a reference only known at call time.
func (b *Bridge) CheckArgument(operation, param string, v ir.IRValue) error {
	op, err := b.registry.Lookup(operation)
	if err != nil {
		return &CallError{
			Code:      ErrCodeOperationNotFound,
			Message:   fmt.Sprintf("operation %q not found", operation),
			Operation: operation,
			Native:    b.takeNativeError(),
			Err:       err,
		}
	}
	defer op.Release()

	spec, ok := op.Param(param)
	if !ok {
		return newError(ErrCodeUnknownParameter, operation, "no such argument").withParam(param)
	}
	switch spec.Type.Kind {
	case native.KindImage, native.KindArrayImage:
		return nil
	}

	nv, err := ToNative(context.Background(), spec.Type, v, nil, nil)
	if err != nil {
		return asCallError(err, ErrCodeTypeMismatch, operation, param)
	}
	nv.Unset()
	return nil
}
