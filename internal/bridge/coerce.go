package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
)

// Materializer turns a constant into an image shaped like ref. The returned
// image carries one reference owned by the caller.
type Materializer interface {
	Materialize(ctx context.Context, ref *native.Image, v ir.IRValue) (*native.Image, error)
}

// ToNative coerces a dynamic value to the declared type t. The returned value
// is owned by the caller, who must Unset it.
//
// Image-typed slots accept an image handle as-is; any other value is a
// constant and is materialized against ref through m.
func ToNative(ctx context.Context, t native.Type, v ir.IRValue, ref *native.Image, m Materializer) (native.Value, error) {
	switch t.Kind {
	case native.KindString:
		s, err := ir.AsString(v)
		if err != nil {
			return native.Value{}, mismatch(t, v, err)
		}
		return native.StringValue(s), nil

	case native.KindImage:
		im, err := toImage(ctx, v, ref, m)
		if err != nil {
			return native.Value{}, err
		}
		nv := native.ImageValue(im)
		im.Unref()
		return nv, nil

	case native.KindInt:
		n, err := toInt32(v)
		if err != nil {
			return native.Value{}, mismatch(t, v, err)
		}
		return native.IntValue(n), nil

	case native.KindUint64:
		n, err := ir.AsInt(v)
		if err != nil {
			return native.Value{}, mismatch(t, v, err)
		}
		if n < 0 {
			return native.Value{}, mismatch(t, v, fmt.Errorf("%d is negative", n))
		}
		return native.Uint64Value(uint64(n)), nil

	case native.KindBool:
		return native.BoolValue(ir.Truthy(v)), nil

	case native.KindEnum:
		n, err := enumValue(t.Enum, v)
		if err != nil {
			return native.Value{}, err
		}
		return native.EnumValueOf(t, n), nil

	case native.KindFlags:
		n, err := flagsValue(t.Flags, v)
		if err != nil {
			return native.Value{}, err
		}
		return native.FlagsValueOf(t, n), nil

	case native.KindDouble:
		f, err := ir.AsFloat(v)
		if err != nil {
			return native.Value{}, mismatch(t, v, err)
		}
		return native.DoubleValue(f), nil

	case native.KindRefString:
		s, err := ir.AsString(v)
		if err != nil {
			return native.Value{}, mismatch(t, v, err)
		}
		return native.RefStringValue(s), nil

	case native.KindBlob:
		var data []byte
		switch val := v.(type) {
		case ir.IRBytes:
			data = []byte(val)
		case ir.IRString:
			data = []byte(val)
		default:
			return native.Value{}, mismatch(t, v, fmt.Errorf("need bytes or a string"))
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		return native.BlobValue(cp, freeBlob), nil

	case native.KindArrayInt:
		elems := asArray(v)
		ints := make([]int32, len(elems))
		for i, e := range elems {
			n, err := toInt32(e)
			if err != nil {
				return native.Value{}, mismatch(t, v, fmt.Errorf("element %d: %w", i, err))
			}
			ints[i] = n
		}
		return native.ArrayIntValue(ints), nil

	case native.KindArrayDouble:
		elems := asArray(v)
		doubles := make([]float64, len(elems))
		for i, e := range elems {
			f, err := ir.AsFloat(e)
			if err != nil {
				return native.Value{}, mismatch(t, v, fmt.Errorf("element %d: %w", i, err))
			}
			doubles[i] = f
		}
		return native.ArrayDoubleValue(doubles), nil

	case native.KindArrayImage:
		elems := asArray(v)
		images := make([]*native.Image, 0, len(elems))
		defer func() {
			for _, im := range images {
				im.Unref()
			}
		}()
		for i, e := range elems {
			im, err := toImage(ctx, e, ref, m)
			if err != nil {
				var ce *CallError
				if errors.As(err, &ce) {
					ce.Message = fmt.Sprintf("element %d: %s", i, ce.Message)
				}
				return native.Value{}, err
			}
			images = append(images, im)
		}
		return native.ArrayImageValue(images), nil

	default:
		return native.Value{}, &CallError{
			Code:    ErrCodeUnsupportedType,
			Message: fmt.Sprintf("no coercion rule for %s", t.Name()),
		}
	}
}

// FromNative converts a native value to a dynamic one. Image values become
// new handles, each holding its own reference.
func FromNative(nv native.Value) (ir.IRValue, error) {
	if !nv.IsSet() {
		return nil, &CallError{Code: ErrCodeOutputReadFailed, Message: "value is not set"}
	}
	t := nv.Type()
	switch t.Kind {
	case native.KindString, native.KindRefString:
		return ir.IRString(nv.Text()), nil

	case native.KindImage:
		return ir.NewHandle(nv.Image()), nil

	case native.KindInt:
		return ir.IRInt(nv.Int()), nil

	case native.KindUint64:
		u := nv.Uint64()
		if u > math.MaxInt64 {
			return nil, &CallError{
				Code:    ErrCodeOutputReadFailed,
				Message: fmt.Sprintf("%d does not fit a dynamic integer", u),
			}
		}
		return ir.IRInt(int64(u)), nil

	case native.KindBool:
		return ir.IRBool(nv.Bool()), nil

	case native.KindEnum:
		if nick, ok := t.Enum.Nick(nv.Enum()); ok {
			return ir.IRString(nick), nil
		}
		return ir.IRInt(nv.Enum()), nil

	case native.KindFlags:
		return ir.IRInt(nv.Flags()), nil

	case native.KindDouble:
		return ir.IRFloat(nv.Double()), nil

	case native.KindBlob:
		data := nv.Blob().Bytes()
		out := make(ir.IRBytes, len(data))
		copy(out, data)
		return out, nil

	case native.KindArrayInt:
		ints := nv.ArrayInt()
		out := make(ir.IRArray, len(ints))
		for i, n := range ints {
			out[i] = ir.IRInt(n)
		}
		return out, nil

	case native.KindArrayDouble:
		doubles := nv.ArrayDouble()
		out := make(ir.IRArray, len(doubles))
		for i, f := range doubles {
			out[i] = ir.IRFloat(f)
		}
		return out, nil

	case native.KindArrayImage:
		images := nv.ArrayImage()
		out := make(ir.IRArray, len(images))
		for i, im := range images {
			out[i] = ir.NewHandle(im)
		}
		return out, nil

	default:
		return nil, &CallError{
			Code:    ErrCodeUnsupportedType,
			Message: fmt.Sprintf("cannot read values of type %s", t.Name()),
		}
	}
}

// toImage returns an image holding one reference owned by the caller.
func toImage(ctx context.Context, v ir.IRValue, ref *native.Image, m Materializer) (*native.Image, error) {
	if h, ok := v.(*ir.Handle); ok {
		if h.Closed() {
			return nil, &CallError{Code: ErrCodeTypeMismatch, Message: "handle is closed"}
		}
		im := h.Image()
		if im == nil {
			return nil, &CallError{
				Code:    ErrCodeTypeMismatch,
				Message: fmt.Sprintf("handle wraps %s, not an image", h.TypeName()),
			}
		}
		im.Ref()
		return im, nil
	}
	if m == nil {
		return nil, &CallError{
			Code:    ErrCodeTypeMismatch,
			Message: fmt.Sprintf("need an image handle, got %s", ir.TypeName(v)),
		}
	}
	return m.Materialize(ctx, ref, v)
}

func toInt32(v ir.IRValue) (int32, error) {
	n, err := ir.AsInt(v)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%d is out of range for a 32-bit int", n)
	}
	return int32(n), nil
}

func enumValue(e *native.EnumType, v ir.IRValue) (int, error) {
	switch val := v.(type) {
	case ir.IRString:
		n, ok := e.FromNick(string(val))
		if !ok {
			return 0, unknownNick(e.Name, string(val), e.Nicks())
		}
		return n, nil
	case ir.IRInt, ir.IRFloat:
		n, err := ir.AsInt(val)
		if err != nil {
			return 0, mismatch(native.EnumTypeOf(e), v, err)
		}
		return int(n), nil
	default:
		return 0, mismatch(native.EnumTypeOf(e), v, fmt.Errorf("need a nick or a number"))
	}
}

func flagsValue(f *native.FlagsType, v ir.IRValue) (int, error) {
	switch val := v.(type) {
	case ir.IRString:
		n, err := f.Parse(string(val))
		if err != nil {
			return 0, unknownNick(f.Name, string(val), f.Nicks())
		}
		return n, nil
	case ir.IRArray:
		bits := 0
		for _, e := range val {
			n, err := flagsValue(f, e)
			if err != nil {
				return 0, err
			}
			bits |= n
		}
		return bits, nil
	case ir.IRInt, ir.IRFloat:
		n, err := ir.AsInt(val)
		if err != nil {
			return 0, mismatch(native.FlagsTypeOf(f), v, err)
		}
		return int(n), nil
	default:
		return 0, mismatch(native.FlagsTypeOf(f), v, fmt.Errorf("need nicks or a number"))
	}
}

// asArray treats a bare scalar as a one-element array.
func asArray(v ir.IRValue) ir.IRArray {
	if arr, ok := v.(ir.IRArray); ok {
		return arr
	}
	return ir.IRArray{v}
}

func freeBlob(data []byte) {
	clear(data)
}

func mismatch(t native.Type, v ir.IRValue, err error) *CallError {
	return &CallError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("cannot use %s as %s: %v", ir.TypeName(v), t.Name(), err),
		Err:     err,
	}
}

func unknownNick(typeName, nick string, known []string) *CallError {
	return &CallError{
		Code:    ErrCodeUnknownEnumNick,
		Message: fmt.Sprintf("%q is not a member of %s", nick, typeName),
		Details: map[string]string{
			"nick":  nick,
			"known": fmt.Sprint(known),
		},
	}
}
