package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file and
	// prefixes journal IDs.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Recipes lists CUE recipe files. Relative paths are resolved against
	// the scenario file's directory by LoadScenario.
	Recipes []string `yaml:"recipes,omitempty"`

	// Steps is an inline recipe named after the scenario.
	Steps []StepSpec `yaml:"steps,omitempty"`

	// Run names the recipe to run. Defaults to the inline recipe.
	Run string `yaml:"run,omitempty"`

	// Input is the image "$input" resolves to.
	Input *ImageSpec `yaml:"input,omitempty"`

	// SkipValidation runs recipes without checking them against the
	// registry first, so that call failures can be exercised.
	SkipValidation bool `yaml:"skip_validation,omitempty"`

	// Expect checks step results.
	Expect []Expectation `yaml:"expect,omitempty"`

	// Assertions check the call journal.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// StepSpec is a recipe step as written in YAML.
type StepSpec struct {
	ID        string         `yaml:"id"`
	Operation string         `yaml:"operation,omitempty"`
	Recipe    string         `yaml:"recipe,omitempty"`
	Instance  any            `yaml:"instance,omitempty"`
	Args      []any          `yaml:"args,omitempty"`
	Options   map[string]any `yaml:"options,omitempty"`
}

// ImageSpec describes an input image filled with a constant per band.
type ImageSpec struct {
	Width  int       `yaml:"width"`
	Height int       `yaml:"height"`
	Bands  int       `yaml:"bands,omitempty"`
	Format string    `yaml:"format,omitempty"`
	Fill   []float64 `yaml:"fill,omitempty"`
}

// Expectation checks one step result. Exactly one of Equals, Image or
// Error is set; Error pairs with Step, the others with Ref.
type Expectation struct {
	// Ref is "$step" or "$step.field".
	Ref string `yaml:"ref,omitempty"`

	// Equals is compared after conversion to IR; numbers compare within
	// Tolerance.
	Equals    any     `yaml:"equals,omitempty"`
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Image checks the header of an image result. Zero fields are not checked.
	Image *ImageExpect `yaml:"image,omitempty"`

	// Step and Error expect the run to stop at Step with the given error code.
	Step  string `yaml:"step,omitempty"`
	Error string `yaml:"error,omitempty"`
}

// ImageExpect is a subset of an image header.
type ImageExpect struct {
	Width          int    `yaml:"width,omitempty"`
	Height         int    `yaml:"height,omitempty"`
	Bands          int    `yaml:"bands,omitempty"`
	Format         string `yaml:"format,omitempty"`
	Interpretation string `yaml:"interpretation,omitempty"`
}

// Assertion validates the call journal.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check operation appears in the journal with options
	// - "trace_order": Check operations appear in order
	// - "trace_count": Check operation appears exactly N times
	// - "final_state": Query the journal and verify expected values
	Type string `yaml:"type"`

	// Operation is used by trace_contains and trace_count.
	Operation string `yaml:"operation,omitempty"`

	// Options are the expected call options (trace_contains).
	// Subset match - only specified fields are validated.
	Options map[string]any `yaml:"options,omitempty"`

	// Table is the journal table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state).
	// Subset match; a null value expects SQL NULL.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Operations is the expected call order (trace_order).
	Operations []string `yaml:"operations,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Recipe paths are resolved relative to the scenario file. Returns an error
// if the file doesn't exist, is malformed, contains unknown fields (typos),
// or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, p := range scenario.Recipes {
		if !filepath.IsAbs(p) {
			scenario.Recipes[i] = filepath.Join(base, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// RecipeName is the recipe the scenario runs.
func (s *Scenario) RecipeName() string {
	if s.Run != "" {
		return s.Run
	}
	return s.Name
}

// InlineRecipe converts Steps into a recipe named after the scenario.
func (s *Scenario) InlineRecipe() (ir.Recipe, error) {
	r := ir.Recipe{Name: s.Name, Description: s.Description}
	for i, spec := range s.Steps {
		step, err := spec.toIR()
		if err != nil {
			return ir.Recipe{}, fmt.Errorf("steps[%d]: %w", i, err)
		}
		r.Steps = append(r.Steps, step)
	}
	return r, nil
}

func (spec StepSpec) toIR() (ir.RecipeStep, error) {
	step := ir.RecipeStep{ID: spec.ID, Operation: spec.Operation, Recipe: spec.Recipe, Args: ir.IRArray{}}
	if spec.Instance != nil {
		v, err := ir.FromAny(spec.Instance)
		if err != nil {
			return step, fmt.Errorf("instance: %w", err)
		}
		step.Instance = v
	}
	for i, a := range spec.Args {
		v, err := ir.FromAny(a)
		if err != nil {
			return step, fmt.Errorf("args[%d]: %w", i, err)
		}
		step.Args = append(step.Args, v)
	}
	if spec.Options != nil {
		step.Options = ir.IRObject{}
		for k, o := range spec.Options {
			v, err := ir.FromAny(o)
			if err != nil {
				return step, fmt.Errorf("options.%s: %w", k, err)
			}
			step.Options[k] = v
		}
	}
	return step, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Recipes) == 0 && len(s.Steps) == 0 {
		return fmt.Errorf("recipes or steps is required")
	}
	if len(s.Steps) == 0 && s.Run == "" {
		return fmt.Errorf("run is required when the scenario has no inline steps")
	}
	if len(s.Expect) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}

	for _, p := range s.Recipes {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("recipe file not found: %s", p)
		}
	}

	for i, step := range s.Steps {
		if step.ID == "" {
			return fmt.Errorf("steps[%d]: id is required", i)
		}
		if step.Operation == "" && step.Recipe == "" {
			return fmt.Errorf("steps[%d]: operation or recipe is required", i)
		}
	}

	if s.Input != nil {
		if err := s.Input.validate(); err != nil {
			return fmt.Errorf("input: %w", err)
		}
	}

	for i, e := range s.Expect {
		if err := validateExpectation(i, &e); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateExpectation(index int, e *Expectation) error {
	set := 0
	if e.Equals != nil {
		set++
	}
	if e.Image != nil {
		set++
	}
	if e.Error != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("expect[%d]: exactly one of equals, image or error is required", index)
	}
	if e.Error != "" {
		if e.Step == "" {
			return fmt.Errorf("expect[%d]: step is required with error", index)
		}
		return nil
	}
	if _, ok := ir.ParseRef(e.Ref); !ok {
		return fmt.Errorf("expect[%d]: ref %q is not a step reference", index, e.Ref)
	}
	if e.Tolerance < 0 {
		return fmt.Errorf("expect[%d]: tolerance must be non-negative", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Operations) == 0 {
			return fmt.Errorf("assertions[%d]: operations list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func (in *ImageSpec) validate() error {
	if in.Width <= 0 || in.Height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	if in.Bands < 0 {
		return fmt.Errorf("bands must be positive")
	}
	if in.Format != "" {
		if _, ok := native.BandFormatEnum.FromNick(in.Format); !ok {
			return fmt.Errorf("unknown format %q", in.Format)
		}
	}
	if n := len(in.Fill); n > 1 && n != in.bands() {
		return fmt.Errorf("fill has %d values for %d bands", n, in.bands())
	}
	return nil
}

func (in *ImageSpec) bands() int {
	if in.Bands == 0 {
		return 1
	}
	return in.Bands
}

// Build creates the image. The caller owns the returned handle.
func (in *ImageSpec) Build() (*ir.Handle, error) {
	format := native.FormatUchar
	if in.Format != "" {
		v, ok := native.BandFormatEnum.FromNick(in.Format)
		if !ok {
			return nil, fmt.Errorf("unknown format %q", in.Format)
		}
		format = native.BandFormat(v)
	}
	bands := in.bands()
	samples := make([]float64, in.Width*in.Height*bands)
	if len(in.Fill) > 0 {
		for i := range samples {
			samples[i] = in.Fill[min(i%bands, len(in.Fill)-1)]
		}
	}
	im, err := native.NewImageFromMemory(in.Width, in.Height, bands, format, samples)
	if err != nil {
		return nil, err
	}
	h := ir.NewHandle(im)
	im.Unref()
	return h, nil
}
