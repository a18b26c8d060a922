package native

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// BuildFunc computes an operation's outputs from its assigned inputs.
type BuildFunc func(op *Operation) error

// OperationClass declares one named operation.
type OperationClass struct {
	Name        string
	Description string

	// Params are in declaration order. The bridge walks them in this order
	// when it binds positional arguments.
	Params []ParamSpec

	Build BuildFunc

	// NoCache marks operations whose result must never be shared, such as
	// ones that draw into their arguments.
	NoCache bool
}

func (c *OperationClass) param(name string) (ParamSpec, bool) {
	name = canonicalName(name)
	for _, p := range c.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Operation is one instance of an OperationClass with its argument values.
//
// An Operation is refcounted: the creator holds the first reference and the
// cache takes its own. Releasing the last reference unsets every value.
type Operation struct {
	refcount

	class  *OperationClass
	mu     sync.Mutex
	values map[string]*Value
	built  bool
}

func newOperation(class *OperationClass) *Operation {
	op := &Operation{class: class, values: make(map[string]*Value)}
	op.init(op.dispose)
	return op
}

// TypeName implements Object.
func (op *Operation) TypeName() string { return "VipsOperation" }

// Name returns the operation nickname.
func (op *Operation) Name() string { return op.class.Name }

// Description returns the one-line summary.
func (op *Operation) Description() string { return op.class.Description }

// Params returns the argument descriptions in declaration order.
func (op *Operation) Params() []ParamSpec {
	out := make([]ParamSpec, len(op.class.Params))
	copy(out, op.class.Params)
	return out
}

// Param looks an argument up by name. '-' and '_' are interchangeable.
func (op *Operation) Param(name string) (ParamSpec, bool) {
	return op.class.param(name)
}

// Built reports whether the operation has been built.
func (op *Operation) Built() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.built
}

// Assigned reports whether an argument has a value.
func (op *Operation) Assigned(name string) bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	_, ok := op.values[canonicalName(name)]
	return ok
}

// Set stores a copy of v as the value of an input argument. The caller keeps
// ownership of v.
func (op *Operation) Set(name string, v Value) error {
	p, ok := op.Param(name)
	if !ok {
		return fmt.Errorf("%s: no property named %q", op.class.Name, name)
	}
	if !p.Input() {
		return fmt.Errorf("%s: property %q is not an input", op.class.Name, p.Name)
	}
	if !compatible(p.Type, v.Type()) {
		return fmt.Errorf("%s: property %q expects %s, got %s", op.class.Name, p.Name, p.Type.Name(), v.Type().Name())
	}

	op.mu.Lock()
	defer op.mu.Unlock()
	if op.built {
		return fmt.Errorf("%s: cannot set %q after build", op.class.Name, p.Name)
	}
	if old, ok := op.values[p.Name]; ok {
		old.Unset()
	}
	cp := v.Copy()
	op.values[p.Name] = &cp
	return nil
}

// Get returns a copy of an argument's value. The caller must Unset it.
func (op *Operation) Get(name string) (Value, error) {
	p, ok := op.Param(name)
	if !ok {
		return Value{}, fmt.Errorf("%s: no property named %q", op.class.Name, name)
	}
	op.mu.Lock()
	defer op.mu.Unlock()
	v, ok := op.values[p.Name]
	if !ok || !v.IsSet() {
		return Value{}, fmt.Errorf("%s: property %q has not been set", op.class.Name, p.Name)
	}
	return v.Copy(), nil
}

// SetFromString applies "name=value,name2=value2" settings, optionally
// wrapped in square brackets. A bare word is taken as a boolean switch.
func (op *Operation) SetFromString(s string) error {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}

	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, text, hasValue := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		p, ok := op.Param(name)
		if !ok {
			return fmt.Errorf("%s: unknown option %q", op.class.Name, name)
		}
		if !hasValue {
			if p.Type.Kind != KindBool {
				return fmt.Errorf("%s: option %q needs a value", op.class.Name, name)
			}
			text = "true"
		}
		v, err := parseValue(p.Type, strings.TrimSpace(text))
		if err != nil {
			return fmt.Errorf("%s: option %q: %w", op.class.Name, name, err)
		}
		err = op.Set(p.Name, v)
		v.Unset()
		if err != nil {
			return err
		}
	}
	return nil
}

// parseValue turns option-string text into a value of type t.
func parseValue(t Type, text string) (Value, error) {
	switch t.Kind {
	case KindBool:
		switch strings.ToLower(text) {
		case "true", "yes", "on", "1":
			return BoolValue(true), nil
		case "false", "no", "off", "0":
			return BoolValue(false), nil
		}
		return Value{}, fmt.Errorf("%q is not a boolean", text)
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not an int", text)
		}
		return IntValue(int32(n)), nil
	case KindUint64:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not an unsigned int", text)
		}
		return Uint64Value(n), nil
	case KindDouble:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not a number", text)
		}
		return DoubleValue(f), nil
	case KindString:
		return StringValue(text), nil
	case KindRefString:
		return RefStringValue(text), nil
	case KindEnum:
		if n, err := strconv.Atoi(text); err == nil && t.Enum.Valid(n) {
			return EnumValueOf(t, n), nil
		}
		n, ok := t.Enum.FromNick(text)
		if !ok {
			return Value{}, fmt.Errorf("enum %s has no member %q", t.Enum.Name, text)
		}
		return EnumValueOf(t, n), nil
	case KindFlags:
		n, err := t.Flags.Parse(text)
		if err != nil {
			return Value{}, err
		}
		return FlagsValueOf(t, n), nil
	case KindArrayInt:
		var ints []int32
		for _, f := range strings.Fields(text) {
			n, err := strconv.ParseInt(f, 10, 32)
			if err != nil {
				return Value{}, fmt.Errorf("%q is not an int", f)
			}
			ints = append(ints, int32(n))
		}
		return ArrayIntValue(ints), nil
	case KindArrayDouble:
		var doubles []float64
		for _, f := range strings.Fields(text) {
			d, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%q is not a number", f)
			}
			doubles = append(doubles, d)
		}
		return ArrayDoubleValue(doubles), nil
	default:
		return Value{}, fmt.Errorf("cannot set %s from a string", t.Name())
	}
}

// UnrefOutputs unsets every output argument.
func (op *Operation) UnrefOutputs() {
	op.mu.Lock()
	defer op.mu.Unlock()
	for _, p := range op.class.Params {
		if !p.Output() {
			continue
		}
		if v, ok := op.values[p.Name]; ok {
			v.Unset()
			delete(op.values, p.Name)
		}
	}
}

// Release drops the caller's reference.
func (op *Operation) Release() {
	op.Unref()
}

func (op *Operation) dispose() {
	op.mu.Lock()
	defer op.mu.Unlock()
	for name, v := range op.values {
		v.Unset()
		delete(op.values, name)
	}
}

// build checks required inputs and runs the class body once.
func (op *Operation) build() error {
	if op.Built() {
		return nil
	}
	for _, p := range op.class.Params {
		if p.Required() && p.Construct() && p.Input() && !p.Deprecated() && !op.Assigned(p.Name) {
			return fmt.Errorf("%s: parameter %s not set", op.class.Name, p.Name)
		}
	}
	if err := op.class.Build(op); err != nil {
		op.UnrefOutputs()
		return err
	}
	op.mu.Lock()
	op.built = true
	op.mu.Unlock()
	return nil
}

// Helpers used by operation bodies. They read assigned values without
// taking references: the operation keeps its inputs alive while it builds.

func (op *Operation) value(name string) (*Value, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	v, ok := op.values[name]
	return v, ok && v.IsSet()
}

func (op *Operation) image(name string) *Image {
	if v, ok := op.value(name); ok {
		return v.image
	}
	return nil
}

func (op *Operation) images(name string) []*Image {
	if v, ok := op.value(name); ok {
		return v.images
	}
	return nil
}

func (op *Operation) intOr(name string, def int) int {
	if v, ok := op.value(name); ok {
		return int(v.i)
	}
	return def
}

func (op *Operation) doubleOr(name string, def float64) float64 {
	if v, ok := op.value(name); ok {
		return v.f
	}
	return def
}

func (op *Operation) boolOr(name string, def bool) bool {
	if v, ok := op.value(name); ok {
		return v.b
	}
	return def
}

func (op *Operation) textOr(name, def string) string {
	if v, ok := op.value(name); ok {
		return v.Text()
	}
	return def
}

func (op *Operation) doubles(name string) []float64 {
	if v, ok := op.value(name); ok {
		return v.doubles
	}
	return nil
}

func (op *Operation) blob(name string) *Blob {
	if v, ok := op.value(name); ok {
		return v.blob
	}
	return nil
}

// SetOutput stores a copy of v as the value of an output argument. Build
// functions registered from outside this package use it; the caller keeps
// ownership of v.
func (op *Operation) SetOutput(name string, v Value) error {
	p, ok := op.Param(name)
	if !ok {
		return fmt.Errorf("%s: no property named %q", op.class.Name, name)
	}
	if !p.Output() {
		return fmt.Errorf("%s: property %q is not an output", op.class.Name, p.Name)
	}
	if !compatible(p.Type, v.Type()) {
		return fmt.Errorf("%s: property %q expects %s, got %s", op.class.Name, p.Name, p.Type.Name(), v.Type().Name())
	}
	op.setOutput(p.Name, v.Copy())
	return nil
}

// setOutput stores an output value, adopting the references v holds.
func (op *Operation) setOutput(name string, v Value) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if old, ok := op.values[name]; ok {
		old.Unset()
	}
	op.values[name] = &v
}

// setOutputImage stores an image output, adopting the caller's reference.
func (op *Operation) setOutputImage(name string, im *Image) {
	op.setOutput(name, stealImage(im))
}

// inputKey renders the assigned inputs for the cache key. Images are keyed by
// identity; everything else by value.
func (op *Operation) inputKey() string {
	op.mu.Lock()
	defer op.mu.Unlock()

	var b strings.Builder
	b.WriteString(op.class.Name)
	for _, p := range op.class.Params {
		if !p.Input() {
			continue
		}
		v, ok := op.values[p.Name]
		if !ok {
			continue
		}
		b.WriteByte('\x00')
		b.WriteString(p.Name)
		b.WriteByte('=')
		switch v.typ.Kind {
		case KindImage:
			fmt.Fprintf(&b, "#%d", v.image.ID())
		case KindArrayImage:
			for _, im := range v.images {
				fmt.Fprintf(&b, "#%d,", im.ID())
			}
		case KindBlob:
			fmt.Fprintf(&b, "%x", v.blob.Bytes())
		case KindString, KindRefString:
			b.WriteString(strconv.Quote(v.Text()))
		default:
			b.WriteString(v.String())
		}
	}
	return b.String()
}
