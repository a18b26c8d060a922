package bridge

import (
	"context"
	"fmt"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
)

// callState tracks how far a call has progressed.
type callState int

const (
	stateCreated callState = iota
	stateIntrospected
	stateBoundRequired
	stateBoundOptional
	stateBuilt
	stateHarvested
	stateFailed
)

var callStateNames = [...]string{
	stateCreated:       "created",
	stateIntrospected:  "introspected",
	stateBoundRequired: "bound_required",
	stateBoundOptional: "bound_optional",
	stateBuilt:         "built",
	stateHarvested:     "harvested",
	stateFailed:        "failed",
}

func (s callState) String() string {
	if int(s) < len(callStateNames) {
		return callStateNames[s]
	}
	return fmt.Sprintf("callState(%d)", int(s))
}

// callContext holds one call from lookup to harvest. It owns op until op is
// handed to the cache, and built from then on; release drops whichever it
// still holds.
type callContext struct {
	b         *Bridge
	operation string

	instance     ir.IRValue
	instanceUsed bool
	args         ir.IRArray
	boundCount   int

	op    *native.Operation
	built *native.Operation
	intro *Introspection

	options      ir.IRObject
	optionString string
	wantOutputs  []string

	// reference is the first image among the inputs, the shape constants
	// are broadcast to. It is borrowed from a caller's handle.
	reference *native.Image

	state callState
}

func newCallContext(b *Bridge, op *native.Operation, intro *Introspection, instance ir.IRValue, args ir.IRArray, opts CallOptions) *callContext {
	if _, ok := instance.(ir.IRNull); ok {
		instance = nil
	}
	return &callContext{
		b:            b,
		operation:    op.Name(),
		instance:     instance,
		args:         args,
		op:           op,
		intro:        intro,
		options:      opts.Options,
		optionString: opts.OptionString,
		state:        stateIntrospected,
	}
}

// run binds, builds and harvests.
func (c *callContext) run(ctx context.Context) (*Result, error) {
	c.findReference()

	options := underscoreKeys(c.options)
	if err := c.applyOptionStrings(options, c.optionString); err != nil {
		return nil, c.fail(err)
	}
	if err := c.bindRequired(ctx); err != nil {
		return nil, c.fail(err)
	}
	c.state = stateBoundRequired

	if trailing := c.trailingOptions(); trailing != nil {
		if err := c.applyOptionStrings(trailing, ""); err != nil {
			return nil, c.fail(err)
		}
		for k, v := range trailing {
			if _, ok := options[k]; !ok {
				options[k] = v
			}
		}
	}

	if err := c.bindOptional(ctx, options); err != nil {
		return nil, c.fail(err)
	}
	c.state = stateBoundOptional

	if err := c.build(ctx); err != nil {
		return nil, c.fail(err)
	}
	c.state = stateBuilt

	res, err := c.harvest()
	if err != nil {
		if f, ok := c.b.registry.(Forgetter); ok {
			f.Forget(c.built)
		}
		return nil, c.fail(err)
	}
	c.state = stateHarvested
	return res, nil
}

// findReference records the first image handle among the instance and the
// positional arguments, looking inside arrays.
func (c *callContext) findReference() {
	if im := findImage(c.instance); im != nil {
		c.reference = im
		return
	}
	for _, a := range c.args {
		if im := findImage(a); im != nil {
			c.reference = im
			return
		}
	}
}

func findImage(v ir.IRValue) *native.Image {
	switch val := v.(type) {
	case *ir.Handle:
		return val.Image()
	case ir.IRArray:
		for _, e := range val {
			if im := findImage(e); im != nil {
				return im
			}
		}
	}
	return nil
}

// trailingOptions returns the last positional argument as an options map
// when it is the single argument left over after required binding.
func (c *callContext) trailingOptions() ir.IRObject {
	if len(c.args) != c.boundCount+1 {
		return nil
	}
	trailing, ok := c.args[c.boundCount].(ir.IRObject)
	if !ok {
		return nil
	}
	return underscoreKeys(trailing)
}

func underscoreKeys(obj ir.IRObject) ir.IRObject {
	out := ir.IRObject{}
	for k, v := range obj {
		out[underscore(k)] = v
	}
	return out
}

// applyOptionStrings applies text and any string_options entry in options,
// removing the entry. Explicit option strings run before required binding,
// so required inputs they set take no positional argument; the options map
// still overwrites optional ones.
func (c *callContext) applyOptionStrings(options ir.IRObject, text string) error {
	texts := []string{}
	if text != "" {
		texts = append(texts, text)
	}
	if v, ok := options["string_options"]; ok {
		delete(options, "string_options")
		s, err := ir.AsString(v)
		if err != nil {
			return &CallError{
				Code:      ErrCodeTypeMismatch,
				Message:   fmt.Sprintf("string_options must be text, got %s", ir.TypeName(v)),
				Parameter: "string_options",
			}
		}
		texts = append(texts, s)
	}
	for _, text := range texts {
		if err := c.op.SetFromString(text); err != nil {
			return &CallError{
				Code:    ErrCodeTypeMismatch,
				Message: err.Error(),
				Native:  c.b.takeNativeError(),
				Err:     err,
			}
		}
	}
	return nil
}

// bindRequired fills required inputs in declaration order. An image slot
// takes the unused instance first; everything else takes the next
// positional argument.
func (c *callContext) bindRequired(ctx context.Context) error {
	used := 0
	missing := 0
	for _, p := range c.op.Params() {
		if !p.Required() || !p.Input() || !p.Construct() || p.Deprecated() || c.op.Assigned(p.Name) {
			continue
		}
		if p.Type.Kind == native.KindImage && c.instance != nil && !c.instanceUsed {
			if err := c.set(ctx, p, c.instance); err != nil {
				return err
			}
			c.instanceUsed = true
			continue
		}
		if used >= len(c.args) {
			missing++
			continue
		}
		if err := c.set(ctx, p, c.args[used]); err != nil {
			return err
		}
		used++
	}
	c.boundCount = used

	supplied := len(c.args)
	if missing > 0 {
		return NewArityError(c.operation, used+missing, supplied)
	}
	if supplied == used {
		return nil
	}
	if supplied == used+1 {
		if _, ok := c.args[used].(ir.IRObject); ok {
			return nil
		}
	}
	return NewArityError(c.operation, used, supplied)
}

// bindOptional sets optional inputs from the options map, in key order.
// Keys naming optional outputs are remembered for harvest.
func (c *callContext) bindOptional(ctx context.Context, options ir.IRObject) error {
	for _, name := range options.SortedKeys() {
		p, ok := c.op.Param(name)
		if !ok {
			return &CallError{
				Code:      ErrCodeUnknownParameter,
				Message:   fmt.Sprintf("optional argument %q does not exist", name),
				Parameter: name,
			}
		}
		if !p.Required() && p.Output() && !p.Deprecated() {
			c.wantOutputs = append(c.wantOutputs, underscore(p.Name))
			continue
		}
		if p.Required() || !p.Input() || p.Deprecated() {
			return &CallError{
				Code:      ErrCodeNotBindable,
				Message:   fmt.Sprintf("%q cannot be set as an option (%s)", name, p.Flags),
				Parameter: name,
			}
		}
		if err := c.set(ctx, p, options[name]); err != nil {
			return err
		}
	}
	return nil
}

// set coerces v and assigns it to p. A MODIFY image is copied first so the
// operation never writes to the caller's pixels.
func (c *callContext) set(ctx context.Context, p native.ParamSpec, v ir.IRValue) error {
	nv, err := ToNative(ctx, p.Type, v, c.reference, c.b)
	if err != nil {
		return asCallError(err, ErrCodeTypeMismatch, c.operation, p.Name)
	}
	defer nv.Unset()

	if p.Modify() && p.Type.Kind == native.KindImage {
		cp := nv.Image().CopyMemory()
		nv.Unset()
		nv = native.ImageValue(cp)
		cp.Unref()
	}
	if err := c.op.Set(p.Name, nv); err != nil {
		return asCallError(err, ErrCodeTypeMismatch, c.operation, p.Name)
	}
	return nil
}

// build hands op to the cache chokepoint. On success the context owns the
// returned operation instead.
func (c *callContext) build(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &CallError{Code: ErrCodeBuildFailed, Message: "call cancelled before build", Err: err}
	}
	built, err := c.b.registry.BuildOrFetch(c.op)
	if err != nil {
		return &CallError{
			Code:    ErrCodeBuildFailed,
			Message: "operation failed to build",
			Native:  c.b.takeNativeError(),
			Err:     err,
		}
	}
	c.op = nil
	c.built = built
	return nil
}

// fail marks the context failed and tags err with the operation name.
func (c *callContext) fail(err error) error {
	c.state = stateFailed
	return asCallError(err, ErrCodeBuildFailed, c.operation, "")
}

// release drops the context's operation reference. Safe to call more than
// once.
func (c *callContext) release() {
	if c.op != nil {
		c.op.UnrefOutputs()
		c.op.Release()
		c.op = nil
	}
	if c.built != nil {
		c.built.Release()
		c.built = nil
	}
}
