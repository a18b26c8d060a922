package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
)

// Registry is what the bridge needs from the native operation library.
// Implemented by *native.Registry.
type Registry interface {
	// Lookup creates a new unbuilt operation. The caller owns it.
	Lookup(name string) (*native.Operation, error)

	// BuildOrFetch is the only way an operation gets built. On success the
	// caller owns the returned operation and no longer owns op.
	BuildOrFetch(op *native.Operation) (*native.Operation, error)

	LastError() string
	ClearError()
}

// Forgetter is implemented by registries that can evict one cached
// operation. The bridge evicts operations whose outputs it could not read.
type Forgetter interface {
	Forget(op *native.Operation)
}

// Recorder journals top-level calls. Implemented by *store.Store.
type Recorder interface {
	WriteCall(ctx context.Context, rec ir.CallRecord) error
}

var _ Registry = (*native.Registry)(nil)

// Bridge calls native operations by name with dynamic arguments.
//
// A call looks the operation up, binds arguments by walking its declared
// parameters, builds it through the registry's cache and reads the declared
// outputs back. Constants passed where an image is expected are turned into
// images shaped like the first image argument.
//
// Thread-safety: a Bridge is safe for concurrent use. The registry is
// responsible for its own locking.
type Bridge struct {
	registry Registry
	logger   *slog.Logger
	recorder Recorder
	ids      IDGenerator
	clock    Sequencer

	introspection sync.Map // operation name -> *Introspection
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithRecorder journals every top-level call to r.
func WithRecorder(r Recorder) Option {
	return func(b *Bridge) {
		b.recorder = r
	}
}

// WithIDGenerator sets the journal ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(b *Bridge) {
		b.ids = g
	}
}

// Sequencer hands out journal seq numbers. Implemented by *Clock.
type Sequencer interface {
	Next() int64
}

// WithClock sets the logical clock. Used to append to an existing journal.
func WithClock(c Sequencer) Option {
	return func(b *Bridge) {
		b.clock = c
	}
}

// New creates a Bridge over reg.
func New(reg Registry, opts ...Option) *Bridge {
	b := &Bridge{
		registry: reg,
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		clock:    NewClock(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CallOptions are the less common inputs of a call.
type CallOptions struct {
	// Options are optional arguments, merged over any trailing map in the
	// positional arguments.
	Options ir.IRObject

	// OptionString is applied before any other argument, in the
	// "name=value,name2=value2" syntax.
	OptionString string

	// Source names the recipe or scenario making the call, for the journal.
	Source string
}

// Call runs the named operation.
//
// instance, when it is an image handle, fills the first required image
// parameter. positional fills the remaining required inputs in declaration
// order; it may end with one extra map of optional arguments. options are
// optional arguments too and win over the trailing map.
//
// The returned Result owns the handles in it; the caller must Close it.
func (b *Bridge) Call(ctx context.Context, name string, instance ir.IRValue, positional []ir.IRValue, options ir.IRObject) (*Result, error) {
	return b.CallWith(ctx, name, instance, positional, CallOptions{Options: options})
}

// CallWith is Call with the full set of call options.
func (b *Bridge) CallWith(ctx context.Context, name string, instance ir.IRValue, positional []ir.IRValue, opts CallOptions) (*Result, error) {
	args := ir.IRArray(positional)
	if args == nil {
		args = ir.IRArray{}
	}

	b.logger.Debug("call",
		"operation", name,
		"instance", describe(instance),
		"args", len(args),
		"options", len(opts.Options),
	)

	res, err := b.invoke(ctx, name, instance, args, opts)
	if err != nil {
		b.logger.Debug("call failed",
			"operation", name,
			"code", string(CodeOf(err)),
			"error", err,
		)
	} else {
		b.logger.Debug("result",
			"operation", name,
			"outputs", res.Names(),
		)
	}

	if b.recorder != nil {
		b.journal(ctx, name, instance, args, opts, res, err)
	}
	return res, err
}

// invoke is the call path shared by top-level and nested calls.
func (b *Bridge) invoke(ctx context.Context, name string, instance ir.IRValue, args ir.IRArray, opts CallOptions) (*Result, error) {
	op, err := b.registry.Lookup(name)
	if err != nil {
		return nil, &CallError{
			Code:      ErrCodeOperationNotFound,
			Message:   fmt.Sprintf("operation %q not found", name),
			Operation: name,
			Native:    b.takeNativeError(),
			Err:       err,
		}
	}
	intro := b.introspectOp(op)

	cc := newCallContext(b, op, intro, instance, args, opts)
	defer cc.release()
	return cc.run(ctx)
}

// Introspect describes the named operation. Results are cached per name.
func (b *Bridge) Introspect(name string) (*Introspection, error) {
	if v, ok := b.introspection.Load(name); ok {
		return v.(*Introspection), nil
	}
	op, err := b.registry.Lookup(name)
	if err != nil {
		return nil, &CallError{
			Code:      ErrCodeOperationNotFound,
			Message:   fmt.Sprintf("operation %q not found", name),
			Operation: name,
			Native:    b.takeNativeError(),
			Err:       err,
		}
	}
	defer op.Release()
	return b.introspectOp(op), nil
}

func (b *Bridge) introspectOp(op *native.Operation) *Introspection {
	if v, ok := b.introspection.Load(op.Name()); ok {
		return v.(*Introspection)
	}
	v, _ := b.introspection.LoadOrStore(op.Name(), introspect(op))
	return v.(*Introspection)
}

// takeNativeError returns and clears the registry's error text.
func (b *Bridge) takeNativeError() string {
	text := b.registry.LastError()
	b.registry.ClearError()
	return text
}

func (b *Bridge) journal(ctx context.Context, name string, instance ir.IRValue, args ir.IRArray, opts CallOptions, res *Result, callErr error) {
	options := opts.Options
	if options == nil {
		options = ir.IRObject{}
	}
	var inst ir.IRValue = ir.IRNull{}
	if instance != nil {
		inst = instance
	}

	rec := ir.CallRecord{
		ID:        b.ids.Generate(),
		Seq:       b.clock.Next(),
		Operation: name,
		Args: ir.IRObject{
			"instance":   inst,
			"positional": args,
			"options":    options,
		},
		Source:        opts.Source,
		BridgeVersion: ir.BridgeVersion,
	}
	if opts.OptionString != "" {
		rec.Args["option_string"] = ir.IRString(opts.OptionString)
	}
	hash, err := ir.CallHash(name, inst, args, options)
	if err != nil {
		b.logger.Warn("call not hashable", "operation", name, "error", err)
	}
	rec.CallHash = hash

	if callErr != nil {
		rec.ErrorCode = string(CodeOf(callErr))
		if rec.ErrorCode == "" {
			rec.ErrorCode = "ERROR"
		}
		rec.ErrorMessage = callErr.Error()
	} else {
		rec.Result = res.Values()
	}

	if err := b.recorder.WriteCall(ctx, rec); err != nil {
		b.logger.Warn("journal write failed",
			"operation", name,
			"seq", rec.Seq,
			"error", err,
		)
	}
}

func describe(v ir.IRValue) string {
	switch val := v.(type) {
	case nil:
		return "none"
	case *ir.Handle:
		return val.String()
	default:
		return ir.TypeName(v)
	}
}
