package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pixbridge/internal/bridge"
	"github.com/roach88/pixbridge/internal/compiler"
	"github.com/roach88/pixbridge/internal/engine"
	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
	"github.com/roach88/pixbridge/internal/store"
	"github.com/roach88/pixbridge/internal/testutil"
)

// Harness is the test execution environment for one scenario: a fresh
// registry, an in-memory journal and deterministic IDs and clock.
type Harness struct {
	store    *store.Store
	registry *native.Registry
	bridge   *bridge.Bridge
	clock    *testutil.DeterministicClock
	ids      *testutil.SequentialIDs
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database and registry for
// isolation. An error is returned when the scenario cannot be set up; a
// failing expectation or assertion is reported in the Result.
//
// Execution flow:
// 1. Compile recipe files and the inline recipe
// 2. Validate them against the registry (unless skip_validation)
// 3. Run the recipe with the input image
// 4. Check expectations against the step results
// 5. Read the journal and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	recipes, err := scenarioRecipes(scenario)
	if err != nil {
		return nil, err
	}

	h, err := newHarness(scenario.Name)
	if err != nil {
		return nil, err
	}
	defer h.close()

	if !scenario.SkipValidation {
		if errs := compiler.ValidateSet(recipes, h.bridge); len(errs) > 0 {
			return nil, fmt.Errorf("invalid recipes: %w", joinValidation(errs))
		}
	}

	var input ir.IRValue
	if scenario.Input != nil {
		in, err := scenario.Input.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build input: %w", err)
		}
		defer in.Close()
		input = in
	}

	eng := engine.New(h.bridge, recipes,
		engine.WithLogger(h.logger),
		engine.WithSource(scenario.Name),
	)

	result := NewResult()
	x, runErr := eng.Run(ctx, scenario.RecipeName(), input)
	if x == nil {
		return nil, fmt.Errorf("failed to run %s: %w", scenario.RecipeName(), runErr)
	}
	defer x.Close()
	result.Steps = x.Trace()

	for _, msg := range checkExpectations(x, runErr, scenario.Expect) {
		result.AddError(msg)
	}

	records, err := h.store.ReadCalls(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	for _, rec := range records {
		result.AddTrace(rec)
	}

	actx := &AssertionContext{Store: h.store, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"calls", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

func newHarness(name string) (*Harness, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h := &Harness{
		store:    st,
		registry: native.NewStandardRegistry(),
		clock:    testutil.NewDeterministicClock(),
		ids:      testutil.NewSequentialIDs(name),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.bridge = bridge.New(h.registry,
		bridge.WithLogger(h.logger),
		bridge.WithRecorder(st),
		bridge.WithIDGenerator(h.ids),
		bridge.WithClock(h.clock),
	)
	return h, nil
}

func (h *Harness) close() {
	h.registry.DropAll()
	h.store.Close()
}

// scenarioRecipes compiles the recipe files, then appends the inline recipe.
func scenarioRecipes(s *Scenario) ([]ir.Recipe, error) {
	recipes, err := compiler.CompileFiles(s.Recipes...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile recipes: %w", err)
	}
	if len(s.Steps) > 0 {
		inline, err := s.InlineRecipe()
		if err != nil {
			return nil, fmt.Errorf("failed to convert steps: %w", err)
		}
		recipes = append(recipes, inline)
	}
	return recipes, nil
}

func joinValidation(errs []compiler.ValidationError) error {
	list := make([]error, len(errs))
	for i, e := range errs {
		list[i] = e
	}
	return errors.Join(list...)
}
