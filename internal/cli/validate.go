package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/pixbridge/internal/bridge"
	"github.com/roach88/pixbridge/internal/compiler"
	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Recipes int                        `json:"recipes"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <recipes-dir>",
		Short: "Validate recipes against the operation registry",
		Long: `Validate CUE recipes without running them.

Checks the shape of every recipe, that referenced steps come earlier,
that operations exist and receive the right number of arguments, that
options and literal values are accepted by each argument's type, and
that nested recipes do not call each other in a loop.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, recipesDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadRecipes(recipesDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, recipesDir)

	validationErrors := loadValidationErrors(loadErrors)
	for _, r := range loadResult.Recipes {
		formatter.VerboseLog("Validating recipe: %s", r.Name)
	}
	validationErrors = append(validationErrors, validateRecipes(loadResult.Recipes)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, len(loadResult.Recipes))
}

// validateRecipes checks recipes against the standard operations.
func validateRecipes(recipes []ir.Recipe) []compiler.ValidationError {
	reg := native.NewStandardRegistry()
	defer reg.DropAll()
	return compiler.ValidateSet(recipes, bridge.New(reg, bridge.WithLogger(slog.Default())))
}

// loadValidationErrors reports compile errors as validation errors.
func loadValidationErrors(errs []error) []compiler.ValidationError {
	var out []compiler.ValidationError
	for _, err := range errs {
		code, message := parseCompileError(err)
		ve := compiler.ValidationError{Field: "load", Message: message, Code: code}
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			ve.Field = fmt.Sprintf("%s:%d", loadErr.Pos.Filename(), loadErr.Pos.Line())
		}
		out = append(out, ve)
	}
	return out
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, count int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Recipes: count})
	}

	fmt.Fprintf(formatter.Writer, "%s All %d recipe(s) valid\n", formatter.Mark(true), count)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintf(formatter.Writer, "%s Validation failed\n", formatter.Mark(false))
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", err.Error())
	}
	fmt.Fprintln(formatter.Writer)

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateRecipesDir validates all recipes in a directory.
// This is a helper function for external callers.
func ValidateRecipesDir(recipesDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadRecipes(recipesDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	errs := loadValidationErrors(loadErrors)
	errs = append(errs, validateRecipes(loadResult.Recipes)...)
	return errs, nil
}
