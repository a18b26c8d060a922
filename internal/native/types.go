package native

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the family of a declared parameter type.
// The bridge dispatches coercion on Kind, never on the caller's value.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt // 32-bit signed
	KindUint64
	KindDouble
	KindString
	KindEnum
	KindFlags
	KindRefString
	KindBlob
	KindArrayInt
	KindArrayDouble
	KindArrayImage
	KindImage
	KindInterpolator // declared by a few operations, no coercion rule
)

var kindNames = map[Kind]string{
	KindInvalid:      "invalid",
	KindBool:         "gboolean",
	KindInt:          "gint",
	KindUint64:       "guint64",
	KindDouble:       "gdouble",
	KindString:       "gchararray",
	KindEnum:         "GEnum",
	KindFlags:        "GFlags",
	KindRefString:    "VipsRefString",
	KindBlob:         "VipsBlob",
	KindArrayInt:     "VipsArrayInt",
	KindArrayDouble:  "VipsArrayDouble",
	KindArrayImage:   "VipsArrayImage",
	KindImage:        "VipsImage",
	KindInterpolator: "VipsInterpolate",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is a declared parameter type: a Kind plus, for enums and flags,
// the registry of symbolic names.
type Type struct {
	Kind  Kind
	Enum  *EnumType
	Flags *FlagsType
}

// Name returns the type name as shown by introspection.
func (t Type) Name() string {
	switch {
	case t.Kind == KindEnum && t.Enum != nil:
		return t.Enum.Name
	case t.Kind == KindFlags && t.Flags != nil:
		return t.Flags.Name
	default:
		return t.Kind.String()
	}
}

func (t Type) String() string { return t.Name() }

// Fundamental scalar and composite types.
var (
	TypeBool         = Type{Kind: KindBool}
	TypeInt          = Type{Kind: KindInt}
	TypeUint64       = Type{Kind: KindUint64}
	TypeDouble       = Type{Kind: KindDouble}
	TypeString       = Type{Kind: KindString}
	TypeRefString    = Type{Kind: KindRefString}
	TypeBlob         = Type{Kind: KindBlob}
	TypeArrayInt     = Type{Kind: KindArrayInt}
	TypeArrayDouble  = Type{Kind: KindArrayDouble}
	TypeArrayImage   = Type{Kind: KindArrayImage}
	TypeImage        = Type{Kind: KindImage}
	TypeInterpolator = Type{Kind: KindInterpolator}
)

// EnumTypeOf wraps an enum registry as a declared type.
func EnumTypeOf(e *EnumType) Type { return Type{Kind: KindEnum, Enum: e} }

// FlagsTypeOf wraps a flags registry as a declared type.
func FlagsTypeOf(f *FlagsType) Type { return Type{Kind: KindFlags, Flags: f} }

// EnumValue pairs a numeric value with its nick.
type EnumValue struct {
	Value int
	Nick  string
}

// EnumType is the registry of nicks for one enumeration.
type EnumType struct {
	Name   string
	values []EnumValue
}

// NewEnumType creates an enum whose nicks take the values 0, 1, 2, ...
func NewEnumType(name string, nicks ...string) *EnumType {
	e := &EnumType{Name: name, values: make([]EnumValue, len(nicks))}
	for i, nick := range nicks {
		e.values[i] = EnumValue{Value: i, Nick: nick}
	}
	return e
}

// FromNick looks a nick up. Matching is case-insensitive and treats '_'
// and '-' as the same character.
func (e *EnumType) FromNick(nick string) (int, bool) {
	want := normalizeNick(nick)
	for _, v := range e.values {
		if normalizeNick(v.Nick) == want {
			return v.Value, true
		}
	}
	return 0, false
}

// Nick returns the nick for a value.
func (e *EnumType) Nick(value int) (string, bool) {
	for _, v := range e.values {
		if v.Value == value {
			return v.Nick, true
		}
	}
	return "", false
}

// Valid reports whether value is a member of the enum.
func (e *EnumType) Valid(value int) bool {
	_, ok := e.Nick(value)
	return ok
}

// Nicks lists nicks in value order.
func (e *EnumType) Nicks() []string {
	out := make([]string, len(e.values))
	for i, v := range e.values {
		out[i] = v.Nick
	}
	return out
}

// FlagsType is the registry of nicks for a bitmask.
type FlagsType struct {
	Name   string
	values []EnumValue
}

// NewFlagsType creates a flags registry from explicit bit values.
func NewFlagsType(name string, values ...EnumValue) *FlagsType {
	return &FlagsType{Name: name, values: values}
}

// FromNick looks up a single flag nick.
func (f *FlagsType) FromNick(nick string) (int, bool) {
	want := normalizeNick(nick)
	for _, v := range f.values {
		if normalizeNick(v.Nick) == want {
			return v.Value, true
		}
	}
	return 0, false
}

// Parse ORs together a '|' or ',' separated list of nicks or integers.
func (f *FlagsType) Parse(s string) (int, error) {
	result := 0
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' || r == ' ' }) {
		if n, err := strconv.Atoi(part); err == nil {
			result |= n
			continue
		}
		v, ok := f.FromNick(part)
		if !ok {
			return 0, fmt.Errorf("flags %s has no member %q", f.Name, part)
		}
		result |= v
	}
	return result, nil
}

// Nicks lists the flag nicks in declaration order.
func (f *FlagsType) Nicks() []string {
	out := make([]string, len(f.values))
	for i, v := range f.values {
		out[i] = v.Nick
	}
	return out
}

func normalizeNick(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
}

// BandFormat is the numeric format of image samples.
type BandFormat int

const (
	FormatUchar BandFormat = iota
	FormatChar
	FormatUshort
	FormatShort
	FormatUint
	FormatInt
	FormatFloat
	FormatDouble
)

// Interpretation hints how bands should be read.
type Interpretation int

const (
	InterpretationMultiband Interpretation = iota
	InterpretationBW
	InterpretationHistogram
	InterpretationXYZ
	InterpretationLab
	InterpretationCMYK
	InterpretationLabQ
	InterpretationRGB
	InterpretationCMC
	InterpretationLCh
	InterpretationLabS
	InterpretationSRGB
	InterpretationYXY
	InterpretationFourier
	InterpretationRGB16
	InterpretationGrey16
	InterpretationMatrix
	InterpretationScRGB
	InterpretationHSV
)

// Extend selects how embed fills new pixels.
type Extend int

const (
	ExtendBlack Extend = iota
	ExtendCopy
	ExtendRepeat
	ExtendMirror
	ExtendWhite
	ExtendBackground
)

// Interpolate selects the resampler used by resize.
type Interpolate int

const (
	InterpolateNearest Interpolate = iota
	InterpolateBilinear
)

// Keep flags select which metadata a saver writes.
const (
	KeepNone  = 0
	KeepExif  = 1
	KeepXMP   = 2
	KeepIPTC  = 4
	KeepICC   = 8
	KeepOther = 16
	KeepAll   = 31
)

// Enum and flags registries.
var (
	BandFormatEnum = NewEnumType("VipsBandFormat",
		"uchar", "char", "ushort", "short", "uint", "int", "float", "double")

	InterpretationEnum = NewEnumType("VipsInterpretation",
		"multiband", "b-w", "histogram", "xyz", "lab", "cmyk", "labq", "rgb",
		"cmc", "lch", "labs", "srgb", "yxy", "fourier", "rgb16", "grey16",
		"matrix", "scrgb", "hsv")

	ExtendEnum = NewEnumType("VipsExtend",
		"black", "copy", "repeat", "mirror", "white", "background")

	InterpolateEnum = NewEnumType("VipsInterpolateMode", "nearest", "bilinear")

	KeepFlags = NewFlagsType("VipsForeignKeep",
		EnumValue{KeepNone, "none"},
		EnumValue{KeepExif, "exif"},
		EnumValue{KeepXMP, "xmp"},
		EnumValue{KeepIPTC, "iptc"},
		EnumValue{KeepICC, "icc"},
		EnumValue{KeepOther, "other"},
		EnumValue{KeepAll, "all"},
	)
)

// Declared types for the enums above.
var (
	TypeBandFormat     = EnumTypeOf(BandFormatEnum)
	TypeInterpretation = EnumTypeOf(InterpretationEnum)
	TypeExtend         = EnumTypeOf(ExtendEnum)
	TypeInterpolate    = EnumTypeOf(InterpolateEnum)
	TypeKeep           = FlagsTypeOf(KeepFlags)
)

func (f BandFormat) String() string {
	if nick, ok := BandFormatEnum.Nick(int(f)); ok {
		return nick
	}
	return fmt.Sprintf("format(%d)", int(f))
}

func (i Interpretation) String() string {
	if nick, ok := InterpretationEnum.Nick(int(i)); ok {
		return nick
	}
	return fmt.Sprintf("interpretation(%d)", int(i))
}

func (e Extend) String() string {
	if nick, ok := ExtendEnum.Nick(int(e)); ok {
		return nick
	}
	return fmt.Sprintf("extend(%d)", int(e))
}

// IsInt reports whether the format stores integers.
func (f BandFormat) IsInt() bool {
	return f < FormatFloat
}

// IsUnsigned reports whether the format is an unsigned integer format.
func (f BandFormat) IsUnsigned() bool {
	return f == FormatUchar || f == FormatUshort || f == FormatUint
}

// Bits returns the sample size in bits.
func (f BandFormat) Bits() int {
	switch f {
	case FormatUchar, FormatChar:
		return 8
	case FormatUshort, FormatShort:
		return 16
	case FormatUint, FormatInt, FormatFloat:
		return 32
	default:
		return 64
	}
}

// Range returns the representable sample range.
func (f BandFormat) Range() (lo, hi float64) {
	switch f {
	case FormatUchar:
		return 0, 255
	case FormatChar:
		return -128, 127
	case FormatUshort:
		return 0, 65535
	case FormatShort:
		return -32768, 32767
	case FormatUint:
		return 0, 4294967295
	case FormatInt:
		return -2147483648, 2147483647
	case FormatFloat:
		return -3.4028234663852886e38, 3.4028234663852886e38
	default:
		return -1.7976931348623157e308, 1.7976931348623157e308
	}
}

// Max returns the "white" level for the format.
func (f BandFormat) Max() float64 {
	switch f {
	case FormatUchar:
		return 255
	case FormatUshort:
		return 65535
	case FormatChar:
		return 127
	case FormatShort:
		return 32767
	case FormatUint:
		return 4294967295
	case FormatInt:
		return 2147483647
	default:
		return 1
	}
}
