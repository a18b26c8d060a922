package native

import (
	"fmt"
	"slices"
)

// Value is a typed native value, the equivalent of a GValue.
//
// A Value owns the references it holds. Copy takes new references for the
// copy; Unset drops the Value's own references exactly once. Values are
// plain structs: never duplicate one by assignment and Unset both copies.
type Value struct {
	typ Type
	set bool

	b       bool
	i       int64
	u       uint64
	f       float64
	s       string
	ref     *RefString
	blob    *Blob
	ints    []int32
	doubles []float64
	images  []*Image
	image   *Image
}

// BoolValue makes a gboolean value.
func BoolValue(b bool) Value { return Value{typ: TypeBool, set: true, b: b} }

// IntValue makes a gint value.
func IntValue(i int32) Value { return Value{typ: TypeInt, set: true, i: int64(i)} }

// Uint64Value makes a guint64 value.
func Uint64Value(u uint64) Value { return Value{typ: TypeUint64, set: true, u: u} }

// DoubleValue makes a gdouble value.
func DoubleValue(f float64) Value { return Value{typ: TypeDouble, set: true, f: f} }

// StringValue makes a gchararray value. The text is copied.
func StringValue(s string) Value { return Value{typ: TypeString, set: true, s: s} }

// EnumValueOf makes an enum value of type t.
func EnumValueOf(t Type, v int) Value { return Value{typ: t, set: true, i: int64(v)} }

// FlagsValueOf makes a flags value of type t.
func FlagsValueOf(t Type, v int) Value { return Value{typ: t, set: true, i: int64(v)} }

// RefStringValue makes a refstring value holding a fresh RefString.
func RefStringValue(s string) Value {
	return Value{typ: TypeRefString, set: true, ref: NewRefString(s)}
}

// BlobValue makes a blob value. The value takes ownership of data and calls
// free exactly once when the last reference to the blob goes.
func BlobValue(data []byte, free func([]byte)) Value {
	return Value{typ: TypeBlob, set: true, blob: NewBlob(data, free)}
}

// ArrayIntValue makes an int array value. The slice is copied.
func ArrayIntValue(ints []int32) Value {
	return Value{typ: TypeArrayInt, set: true, ints: slices.Clone(ints)}
}

// ArrayDoubleValue makes a double array value. The slice is copied.
func ArrayDoubleValue(doubles []float64) Value {
	return Value{typ: TypeArrayDouble, set: true, doubles: slices.Clone(doubles)}
}

// ArrayImageValue makes an image array value. The array takes one new
// reference on every element, independent of the caller's references.
func ArrayImageValue(images []*Image) Value {
	out := make([]*Image, len(images))
	for i, im := range images {
		im.Ref()
		out[i] = im
	}
	return Value{typ: TypeArrayImage, set: true, images: out}
}

// ImageValue makes an image value holding one new reference to im.
func ImageValue(im *Image) Value {
	im.Ref()
	return Value{typ: TypeImage, set: true, image: im}
}

// stealImage makes an image value that adopts the caller's reference.
func stealImage(im *Image) Value {
	return Value{typ: TypeImage, set: true, image: im}
}

// Type returns the value's type.
func (v Value) Type() Type { return v.typ }

// IsSet reports whether the value holds anything.
func (v Value) IsSet() bool { return v.set }

// Bool returns a gboolean.
func (v Value) Bool() bool { return v.b }

// Int returns a gint.
func (v Value) Int() int32 { return int32(v.i) }

// Uint64 returns a guint64.
func (v Value) Uint64() uint64 { return v.u }

// Double returns a gdouble.
func (v Value) Double() float64 { return v.f }

// Text returns a gchararray or the contents of a refstring.
func (v Value) Text() string {
	if v.ref != nil {
		return v.ref.String()
	}
	return v.s
}

// Enum returns the numeric value of an enum.
func (v Value) Enum() int { return int(v.i) }

// Flags returns the bitmask of a flags value.
func (v Value) Flags() int { return int(v.i) }

// RefString returns the borrowed RefString.
func (v Value) RefString() *RefString { return v.ref }

// Blob returns the borrowed Blob.
func (v Value) Blob() *Blob { return v.blob }

// ArrayInt returns a copy of an int array.
func (v Value) ArrayInt() []int32 { return slices.Clone(v.ints) }

// ArrayDouble returns a copy of a double array.
func (v Value) ArrayDouble() []float64 { return slices.Clone(v.doubles) }

// ArrayImage returns the borrowed elements of an image array.
func (v Value) ArrayImage() []*Image { return slices.Clone(v.images) }

// Image returns the borrowed image.
func (v Value) Image() *Image { return v.image }

// Copy returns an independent value, taking new references on anything
// refcounted.
func (v Value) Copy() Value {
	out := v
	if v.ref != nil {
		v.ref.Ref()
	}
	if v.blob != nil {
		v.blob.Ref()
	}
	if v.image != nil {
		v.image.Ref()
	}
	if v.images != nil {
		out.images = slices.Clone(v.images)
		for _, im := range out.images {
			im.Ref()
		}
	}
	out.ints = slices.Clone(v.ints)
	out.doubles = slices.Clone(v.doubles)
	return out
}

// Unset drops every reference the value holds and clears it.
func (v *Value) Unset() {
	if !v.set {
		return
	}
	if v.ref != nil {
		v.ref.Unref()
	}
	if v.blob != nil {
		v.blob.Unref()
	}
	if v.image != nil {
		v.image.Unref()
	}
	for _, im := range v.images {
		im.Unref()
	}
	*v = Value{}
}

// compatible reports whether a value of type have can be stored in a
// parameter declared as want.
func compatible(want, have Type) bool {
	if want.Kind != have.Kind {
		return false
	}
	switch want.Kind {
	case KindEnum:
		return want.Enum == have.Enum
	case KindFlags:
		return want.Flags == have.Flags
	}
	return true
}

func (v Value) String() string {
	if !v.set {
		return "<unset>"
	}
	switch v.typ.Kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindUint64:
		return fmt.Sprintf("%d", v.u)
	case KindDouble:
		return fmt.Sprintf("%g", v.f)
	case KindString, KindRefString:
		return fmt.Sprintf("%q", v.Text())
	case KindEnum:
		if nick, ok := v.typ.Enum.Nick(int(v.i)); ok {
			return nick
		}
		return fmt.Sprintf("%d", v.i)
	case KindFlags:
		return fmt.Sprintf("%d", v.i)
	case KindBlob:
		return v.blob.String()
	case KindArrayInt:
		return fmt.Sprint(v.ints)
	case KindArrayDouble:
		return fmt.Sprint(v.doubles)
	case KindArrayImage:
		return fmt.Sprintf("images[%d]", len(v.images))
	case KindImage:
		return v.image.String()
	default:
		return v.typ.Name()
	}
}
