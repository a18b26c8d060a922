package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pixbridge/internal/bridge"
	"github.com/roach88/pixbridge/internal/compiler"
	"github.com/roach88/pixbridge/internal/engine"
	"github.com/roach88/pixbridge/internal/harness"
	"github.com/roach88/pixbridge/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	Input      string // image spec as JSON or YAML
	Save       string // raw sample file for the final image
	Source     string
	MaxSteps   int
	NoValidate bool
}

// RunResult is the outcome of a recipe run.
type RunResult struct {
	Recipe string              `json:"recipe"`
	Steps  []engine.StepResult `json:"steps"`
	Final  ir.IRValue          `json:"final,omitempty"`
	Saved  string              `json:"saved,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <recipes-dir> <recipe>",
		Short: "Run a recipe",
		Long: `Run a named recipe from a directory of CUE recipes.

Recipes are validated against the operation registry first. With --db,
every call is journaled to a SQLite database (created if it doesn't
exist) and sequence numbers continue from the last recorded call.

The input image, seen by the recipe as "$input", is described by --input:
  {"width": 64, "height": 48, "bands": 3, "format": "uchar", "fill": [10, 20, 30]}

Example:
  pixbridge run ./recipes contact --input '{"width": 4, "height": 2, "fill": [100]}'
  pixbridge run ./recipes thumb --db ./calls.db --save out.raw`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecipe(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal calls to this SQLite database")
	cmd.Flags().StringVar(&opts.Input, "input", "", "input image spec (JSON or YAML)")
	cmd.Flags().StringVar(&opts.Save, "save", "", "write the final image's raw samples to this file")
	cmd.Flags().StringVar(&opts.Source, "source", "cli", "source recorded in the journal")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "maximum calls per run")
	cmd.Flags().BoolVar(&opts.NoValidate, "no-validate", false, "skip validation against the registry")

	return cmd
}

func runRecipe(opts *RunOptions, recipesDir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	recipes, err := compileRecipes(recipesDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile recipes", err)
	}
	slog.Debug("recipes compiled", "dir", recipesDir, "recipes", len(recipes))

	ctx, stop := signalContext(cmd)
	defer stop()

	sess, err := openSession(ctx, opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	if !opts.NoValidate {
		if errs := compiler.ValidateSet(recipes, sess.bridge); len(errs) > 0 {
			return outputValidationErrors(formatter, errs)
		}
	}

	if deps := compiler.Expand(recipes, name); len(deps) > 1 {
		formatter.VerboseLog("Recipe %s reaches: %s", name, strings.Join(deps, ", "))
	}

	input, err := buildInput(opts.Input)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --input", err)
	}
	if input != nil {
		defer input.Close()
	}

	eng := engine.New(sess.bridge, recipes,
		engine.WithLogger(slog.Default()),
		engine.WithMaxSteps(opts.MaxSteps),
		engine.WithSource(opts.Source),
	)

	var in ir.IRValue
	if input != nil {
		in = input
	}
	x, runErr := eng.Run(ctx, name, in)
	if x == nil {
		return outputRunError(formatter, runErr)
	}
	defer x.Close()

	result := RunResult{Recipe: name, Steps: x.Trace()}
	if runErr == nil {
		if opts.Save != "" {
			if err := saveFinal(ctx, sess.bridge, x.Final(), opts.Save); err != nil {
				return WrapExitError(ExitCommandError, "failed to save image", err)
			}
			result.Saved = opts.Save
		}
		result.Final = describeValue(x.Final())
	}

	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if runErr != nil {
			response.Status = "error"
			response.Error = runCLIError(runErr)
		}
		if err := encodeJSON(formatter.Writer, response); err != nil {
			return err
		}
	} else {
		writeSteps(formatter, result.Steps, "")
		if runErr == nil {
			fmt.Fprintf(formatter.Writer, "%s %s → %s\n", formatter.Mark(true), name, render(result.Final))
			if result.Saved != "" {
				fmt.Fprintf(formatter.Writer, "Wrote raw samples to %s\n", result.Saved)
			}
		} else {
			fmt.Fprintf(formatter.Writer, "%s %s: %v\n", formatter.Mark(false), name, runErr)
		}
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "recipe failed", runErr)
	}
	return nil
}

// compileRecipes loads and compiles all CUE recipes from a directory.
func compileRecipes(dir string) ([]ir.Recipe, error) {
	loadResult, loadErrors := LoadRecipes(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	return loadResult.Recipes, nil
}

// buildInput parses an image spec. JSON is valid YAML, so both are accepted.
func buildInput(spec string) (*ir.Handle, error) {
	if spec == "" {
		return nil, nil
	}
	var in harness.ImageSpec
	if err := yaml.Unmarshal([]byte(spec), &in); err != nil {
		return nil, err
	}
	if in.Width <= 0 || in.Height <= 0 {
		return nil, fmt.Errorf("width and height must be positive")
	}
	return in.Build()
}

// saveFinal writes the raw samples of an image result.
func saveFinal(ctx context.Context, b *bridge.Bridge, final ir.IRValue, path string) error {
	h, ok := final.(*ir.Handle)
	if !ok || h.Image() == nil {
		return fmt.Errorf("final result is %s, not an image", ir.TypeName(final))
	}
	res, err := b.Call(ctx, "rawsave_buffer", h, nil, nil)
	if err != nil {
		return err
	}
	defer res.Close()
	buf, ok := res.Get("buffer")
	if !ok {
		return fmt.Errorf("rawsave_buffer returned no buffer")
	}
	data, ok := buf.(ir.IRBytes)
	if !ok {
		return fmt.Errorf("rawsave_buffer returned %s", ir.TypeName(buf))
	}
	return os.WriteFile(path, data, 0644)
}

// signalContext is the command's context, canceled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// describeValue replaces live handles with their descriptions.
func describeValue(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case *ir.Handle:
		return ir.IRObject{"$handle": val.Describe()}
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = describeValue(elem)
		}
		return out
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			out[k] = describeValue(elem)
		}
		return out
	}
	return v
}

// render prints a value as canonical JSON.
func render(v ir.IRValue) string {
	if v == nil {
		return "null"
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%s>", ir.TypeName(v))
	}
	return string(b)
}

// writeSteps prints one line per step, nested recipes indented.
func writeSteps(formatter *OutputFormatter, steps []engine.StepResult, indent string) {
	for _, step := range steps {
		target := step.Operation
		if step.Recipe != "" {
			target = "[" + step.Recipe + "]"
		}
		if step.Failed() {
			fmt.Fprintf(formatter.Writer, "%s%s %s %s: %s\n", indent, formatter.Mark(false), step.ID, target, step.ErrorCode)
			if formatter.Verbose {
				fmt.Fprintf(formatter.Writer, "%s    %s\n", indent, step.Error)
			}
		} else {
			fmt.Fprintf(formatter.Writer, "%s%s %s %s → %s\n", indent, formatter.Mark(true), step.ID, target, render(step.Single()))
		}
		writeSteps(formatter, step.Nested, indent+"  ")
	}
}

// runCLIError maps a run error to the JSON error structure.
func runCLIError(err error) *CLIError {
	e := &CLIError{Code: ErrCodeGeneric, Message: err.Error()}
	var rtErr *engine.RuntimeError
	if errors.As(err, &rtErr) {
		e.Code = string(rtErr.Code)
		if code := bridge.CodeOf(err); code != "" {
			e.Details = map[string]string{"call_error": string(code), "step": rtErr.Step}
		}
	}
	return e
}

// outputRunError reports a run that could not start.
func outputRunError(formatter *OutputFormatter, err error) error {
	e := runCLIError(err)
	_ = formatter.Error(e.Code, e.Message, e.Details)
	return WrapExitError(ExitCommandError, "recipe could not run", err)
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
