package bridge

import (
	"context"
	"fmt"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
)

// Is2D reports whether v is a rectangular array of rows: a non-empty array
// whose elements are arrays of one common, non-zero length.
func Is2D(v ir.IRValue) bool {
	rows, ok := v.(ir.IRArray)
	if !ok || len(rows) == 0 {
		return false
	}
	first, ok := rows[0].(ir.IRArray)
	if !ok || len(first) == 0 {
		return false
	}
	for _, r := range rows[1:] {
		row, ok := r.(ir.IRArray)
		if !ok || len(row) != len(first) {
			return false
		}
	}
	return true
}

// Materialize turns a constant into an image.
//
// A rectangular 2-D array becomes a matrix image of width = row length and
// height = row count. Anything else is broadcast: a scalar or 1-D array
// becomes an image with ref's size, format and header, one band per array
// element, every pixel set to the constant.
//
// Broadcasting runs black, linear, cast, embed and copy through the call
// path, so every intermediate goes through the operation cache. The
// returned image carries one reference owned by the caller.
func (b *Bridge) Materialize(ctx context.Context, ref *native.Image, v ir.IRValue) (*native.Image, error) {
	if Is2D(v) {
		return newMatrix(v.(ir.IRArray))
	}
	if ref == nil {
		return nil, &CallError{
			Code:    ErrCodeMissingReference,
			Message: fmt.Sprintf("cannot make an image from %s without an image argument to match", ir.TypeName(v)),
		}
	}
	return b.broadcast(ctx, ref, v)
}

func newMatrix(rows ir.IRArray) (*native.Image, error) {
	width := len(rows[0].(ir.IRArray))
	cells := make([]float64, 0, width*len(rows))
	for y, r := range rows {
		for x, c := range r.(ir.IRArray) {
			f, err := constant(c)
			if err != nil {
				return nil, &CallError{
					Code:    ErrCodeTypeMismatch,
					Message: fmt.Sprintf("matrix cell (%d, %d): %v", x, y, err),
				}
			}
			cells = append(cells, f)
		}
	}
	im, err := native.NewMatrixFromArray(width, len(rows), cells)
	if err != nil {
		return nil, &CallError{Code: ErrCodeTypeMismatch, Message: err.Error(), Err: err}
	}
	return im, nil
}

type broadcastStep struct {
	operation string
	args      ir.IRArray
	options   ir.IRObject
}

func (b *Bridge) broadcast(ctx context.Context, ref *native.Image, v ir.IRValue) (*native.Image, error) {
	var consts ir.IRArray
	for i, c := range asArray(v) {
		f, err := constant(c)
		if err != nil {
			return nil, &CallError{
				Code:    ErrCodeTypeMismatch,
				Message: fmt.Sprintf("constant element %d: %v", i, err),
			}
		}
		consts = append(consts, ir.IRFloat(f))
	}
	if len(consts) == 0 {
		return nil, &CallError{Code: ErrCodeTypeMismatch, Message: "empty array is not a constant"}
	}
	ones := make(ir.IRArray, len(consts))
	for i := range ones {
		ones[i] = ir.IRFloat(1)
	}

	steps := []broadcastStep{
		{"linear", ir.IRArray{ones, consts}, nil},
		{"cast", ir.IRArray{ir.IRString(ref.Format.String())}, nil},
		{"embed", ir.IRArray{ir.IRInt(0), ir.IRInt(0), ir.IRInt(ref.Width), ir.IRInt(ref.Height)},
			ir.IRObject{"extend": ir.IRString(native.ExtendCopy.String())}},
		{"copy", nil, ir.IRObject{
			"interpretation": ir.IRString(ref.Interpretation.String()),
			"xres":           ir.IRFloat(ref.Xres),
			"yres":           ir.IRFloat(ref.Yres),
			"xoffset":        ir.IRInt(ref.Xoffset),
			"yoffset":        ir.IRInt(ref.Yoffset),
		}},
	}

	cur, err := b.callImage(ctx, "black", nil, ir.IRArray{ir.IRInt(1), ir.IRInt(1)}, nil)
	if err != nil {
		return nil, err
	}
	for _, s := range steps {
		next, err := b.callImage(ctx, s.operation, cur, s.args, s.options)
		cur.Close()
		if err != nil {
			return nil, err
		}
		cur = next
	}
	defer cur.Close()

	im := cur.Image()
	im.Ref()
	return im, nil
}

// callImage runs a nested call and detaches its "out" image.
func (b *Bridge) callImage(ctx context.Context, name string, instance ir.IRValue, args ir.IRArray, options ir.IRObject) (*ir.Handle, error) {
	res, err := b.invoke(ctx, name, instance, args, CallOptions{Options: options})
	if err != nil {
		return nil, err
	}
	defer res.Close()
	h, err := res.Image("out")
	if err != nil {
		return nil, err
	}
	res.Take("out")
	return h, nil
}

// constant reads one numeric constant. Booleans and other kinds are rejected.
func constant(v ir.IRValue) (float64, error) {
	if !ir.IsNumeric(v) {
		return 0, fmt.Errorf("%s is not a number", ir.TypeName(v))
	}
	return ir.AsFloat(v)
}
