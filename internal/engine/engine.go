package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/pixbridge/internal/bridge"
	"github.com/roach88/pixbridge/internal/ir"
)

// Caller makes one top-level bridged call. Implemented by *bridge.Bridge.
type Caller interface {
	CallWith(ctx context.Context, name string, instance ir.IRValue, positional []ir.IRValue, opts bridge.CallOptions) (*bridge.Result, error)
}

var _ Caller = (*bridge.Bridge)(nil)

// DefaultMaxSteps is the default maximum number of calls per run.
const DefaultMaxSteps = 1000

// Engine runs compiled recipes against a Caller.
//
// Thread-safety: an Engine is immutable after New and may run recipes from
// several goroutines; each Run has its own quota and scope.
type Engine struct {
	caller   Caller
	recipes  map[string]ir.Recipe
	names    []string // declaration order
	logger   *slog.Logger
	maxSteps int
	source   string
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxSteps sets the maximum number of calls one run may make.
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSource prefixes the journal source of every call, e.g. with the
// scenario that drives the run.
func WithSource(source string) EngineOption {
	return func(e *Engine) {
		e.source = source
	}
}

// New creates an Engine over recipes. The slice is copied; later recipes
// with a duplicate name are ignored, since validation reports them.
func New(caller Caller, recipes []ir.Recipe, opts ...EngineOption) *Engine {
	e := &Engine{
		caller:   caller,
		recipes:  make(map[string]ir.Recipe, len(recipes)),
		logger:   slog.Default(),
		maxSteps: DefaultMaxSteps,
	}
	for _, r := range recipes {
		if _, dup := e.recipes[r.Name]; dup {
			continue
		}
		e.recipes[r.Name] = r
		e.names = append(e.names, r.Name)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recipes lists recipe names in declaration order.
func (e *Engine) Recipes() []string {
	return slices.Clone(e.names)
}

// Recipe returns a recipe by name.
func (e *Engine) Recipe(name string) (ir.Recipe, bool) {
	r, ok := e.recipes[name]
	return r, ok
}

// MaxSteps returns the per-run call limit.
func (e *Engine) MaxSteps() int {
	return e.maxSteps
}

// Run executes the named recipe. input is what "$input" resolves to and
// may be nil.
//
// The returned Execution is non-nil whenever the recipe exists and has
// steps, even on failure, and holds the steps that ran. The caller must Close it.
func (e *Engine) Run(ctx context.Context, name string, input ir.IRValue) (*Execution, error) {
	quota := NewQuotaEnforcer(e.maxSteps)
	x, err := e.run(ctx, name, input, nil, quota)
	if err != nil {
		e.logger.Debug("recipe failed", "recipe", name, "steps", quota.Current(), "error", err)
	} else {
		e.logger.Debug("recipe completed", "recipe", name, "steps", quota.Current())
	}
	return x, err
}

func (e *Engine) run(ctx context.Context, name string, input ir.IRValue, stack []string, quota *QuotaEnforcer) (*Execution, error) {
	path := strings.Join(append(slices.Clone(stack), name), "/")
	if slices.Contains(stack, name) {
		return nil, NewCycleError(path, name)
	}
	r, ok := e.recipes[name]
	if !ok {
		return nil, &RuntimeError{
			Code:    ErrCodeUnknownRecipe,
			Message: fmt.Sprintf("recipe %q is not defined", name),
			Recipe:  strings.Join(stack, "/"),
		}
	}

	if len(r.Steps) == 0 {
		return nil, &RuntimeError{
			Code:    ErrCodeEmptyRecipe,
			Message: fmt.Sprintf("recipe %q has no steps", name),
			Recipe:  path,
		}
	}

	x := newExecution(path, input)
	stack = append(slices.Clone(stack), name)

	for _, step := range r.Steps {
		if err := ctx.Err(); err != nil {
			return x, err
		}
		var (
			sr  StepResult
			err error
		)
		if step.Recipe != "" {
			sr, err = e.runNested(ctx, x, step, stack, quota)
		} else {
			sr, err = e.runOperation(ctx, x, step, quota)
		}
		x.add(sr)
		if err != nil {
			return x, err
		}
	}
	return x, nil
}

func (e *Engine) runOperation(ctx context.Context, x *Execution, step ir.RecipeStep, quota *QuotaEnforcer) (StepResult, error) {
	sr := StepResult{ID: step.ID, Operation: step.Operation}

	if err := quota.Check(x.Recipe); err != nil {
		sr.ErrorCode = string(ErrCodeQuotaExceeded)
		sr.Error = err.Error()
		return sr, stepError(ErrCodeQuotaExceeded, x.Recipe, step.ID, err, "run exceeded %d calls", quota.MaxSteps())
	}

	instance, args, options, err := x.resolveCall(step)
	if err != nil {
		sr.ErrorCode = string(ErrCodeUnresolvedReference)
		sr.Error = err.Error()
		return sr, stepError(ErrCodeUnresolvedReference, x.Recipe, step.ID, err, "cannot resolve arguments")
	}

	res, err := e.caller.CallWith(ctx, step.Operation, instance, args, bridge.CallOptions{
		Options: options,
		Source:  e.sourceFor(x.Recipe),
	})
	if err != nil {
		sr.ErrorCode = string(bridge.CodeOf(err))
		sr.Error = err.Error()
		return sr, stepError(ErrCodeStepFailed, x.Recipe, step.ID, err, "%s failed", step.Operation)
	}

	sr.Outputs = res.Values()
	sr.Names = res.Names()
	e.logger.Debug("step completed",
		"recipe", x.Recipe,
		"step", step.ID,
		"operation", step.Operation,
		"outputs", sr.Names,
	)
	return sr, nil
}

func (e *Engine) runNested(ctx context.Context, x *Execution, step ir.RecipeStep, stack []string, quota *QuotaEnforcer) (StepResult, error) {
	sr := StepResult{ID: step.ID, Recipe: step.Recipe}

	var input ir.IRValue
	if step.Instance != nil {
		v, err := x.resolve(step.Instance)
		if err != nil {
			sr.ErrorCode = string(ErrCodeUnresolvedReference)
			sr.Error = err.Error()
			return sr, stepError(ErrCodeUnresolvedReference, x.Recipe, step.ID, err, "cannot resolve instance")
		}
		input = v
	}

	inner, err := e.run(ctx, step.Recipe, input, stack, quota)
	if inner != nil {
		sr.Nested = inner.Trace()
		defer inner.Close()
	}
	if err != nil {
		sr.ErrorCode = string(runtimeCode(err))
		sr.Error = err.Error()
		return sr, err
	}

	last := &inner.Steps[len(inner.Steps)-1]
	sr.Outputs, sr.Names = last.Outputs, last.Names
	last.Outputs = nil
	return sr, nil
}

func (e *Engine) sourceFor(path string) string {
	if e.source == "" {
		return path
	}
	return e.source + "/" + path
}

func runtimeCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ErrCodeStepFailed
}
