package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pixbridge/internal/bridge"
	"github.com/roach88/pixbridge/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Structural errors (E101-E109)
	ErrRecipeNameEmpty   = "E101" // recipe name is required
	ErrRecipeNoSteps     = "E102" // at least one step required
	ErrInvalidStepID     = "E103" // missing, malformed, reserved or duplicate step id
	ErrStepTarget        = "E104" // step must name exactly one operation or recipe
	ErrInvalidReference  = "E105" // reference to a step that is not earlier
	ErrDuplicateRecipe   = "E106" // two recipes share a name
	ErrRecursiveRecipes  = "E107" // nested recipes call each other
	ErrUnknownRecipe     = "E108" // nested recipe not defined
	ErrNestedRecipeShape = "E109" // nested recipe given args or options

	// Registry errors (E110-E119)
	ErrUnknownOperation = "E110" // operation not in the registry
	ErrArity            = "E111" // wrong number of positional arguments
	ErrUnknownOption    = "E112" // option is not an optional argument
	ErrBadLiteral       = "E113" // literal rejected by the argument's type
	ErrUnknownOutput    = "E114" // reference names an output the step does not produce
)

// ValidationError represents a recipe validation error.
type ValidationError struct {
	Recipe  string `json:"recipe,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Recipe != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Recipe, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Catalog is what validation needs to know about operations.
// *bridge.Bridge implements it.
type Catalog interface {
	Introspect(name string) (*bridge.Introspection, error)
	CheckArgument(operation, param string, v ir.IRValue) error
}

var _ Catalog = (*bridge.Bridge)(nil)

// ValidateSet validates a set of recipes that may nest one another.
// Returns all errors found (does not fail-fast).
func ValidateSet(recipes []ir.Recipe, cat Catalog) []ValidationError {
	var errs []ValidationError

	byName := make(map[string]*ir.Recipe, len(recipes))
	for i := range recipes {
		r := &recipes[i]
		if _, dup := byName[r.Name]; dup && r.Name != "" {
			errs = append(errs, ValidationError{
				Recipe:  r.Name,
				Field:   "name",
				Message: fmt.Sprintf("duplicate recipe name %q", r.Name),
				Code:    ErrDuplicateRecipe,
			})
			continue
		}
		byName[r.Name] = r
	}

	for i := range recipes {
		errs = append(errs, validateRecipe(&recipes[i], byName, cat)...)
	}

	for _, w := range AnalyzeNesting(recipes) {
		errs = append(errs, ValidationError{
			Recipe:  w.Path[0],
			Field:   "steps",
			Message: w.Message,
			Code:    ErrRecursiveRecipes,
		})
	}

	return errs
}

// Validate checks a single recipe that does not nest others.
func Validate(r *ir.Recipe, cat Catalog) []ValidationError {
	return ValidateSet([]ir.Recipe{*r}, cat)
}

func validateRecipe(r *ir.Recipe, byName map[string]*ir.Recipe, cat Catalog) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Recipe:  r.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	for _, e := range r.Validate() {
		add(e.Field, structuralCode(e), "%s", e.Message)
	}

	// Outputs each step is known to produce, for checking "$step.field".
	outputs := make(map[string][]string, len(r.Steps))

	for i, step := range r.Steps {
		field := fmt.Sprintf("steps[%d]", i)

		for _, ref := range step.Refs() {
			if ref.Field == "" || ref.Step == ir.InputStep {
				continue
			}
			produced, known := outputs[ref.Step]
			if known && !slices.Contains(produced, ref.Field) {
				add(field, ErrUnknownOutput, "step %q has no output %q (has %s)",
					ref.Step, ref.Field, strings.Join(produced, ", "))
			}
		}

		if step.Recipe != "" {
			if _, ok := byName[step.Recipe]; !ok {
				add(field+".recipe", ErrUnknownRecipe, "recipe %q is not defined", step.Recipe)
			}
			continue
		}
		if step.Operation == "" {
			continue
		}

		intro, err := cat.Introspect(step.Operation)
		if err != nil {
			add(field+".operation", ErrUnknownOperation, "operation %q not found", step.Operation)
			continue
		}
		outputs[step.ID] = producedOutputs(intro, step.Options)

		errs = append(errs, validateCall(r.Name, field, step, intro, cat)...)
	}

	return errs
}

// validateCall checks a step's arguments the way the call path will bind
// them: instance first, then positionals, then options.
func validateCall(recipe, field string, step ir.RecipeStep, intro *bridge.Introspection, cat Catalog) []ValidationError {
	var errs []ValidationError
	add := func(f, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Recipe:  recipe,
			Field:   f,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	args := step.Args
	options := step.Options
	if n := len(args); n > 0 {
		if trailing, ok := args[n-1].(ir.IRObject); ok {
			args = args[:n-1]
			merged := ir.IRObject{}
			for k, v := range trailing {
				merged[k] = v
			}
			for k, v := range options {
				merged[k] = v
			}
			options = merged
		}
	}

	slots := intro.RequiredInput
	if step.Instance != nil && intro.MemberThis != "" {
		slots = intro.MethodArgs
	}

	// Option strings can fill required slots, so arity is only known without them.
	if _, hasOptionString := options["string_options"]; !hasOptionString && len(args) != len(slots) {
		add(field+".args", ErrArity, "%s takes %d positional arguments (%s), got %d",
			step.Operation, len(slots), strings.Join(slots, ", "), len(args))
	}

	for i, arg := range args {
		if i >= len(slots) {
			break
		}
		checkLiteral(cat, step.Operation, slots[i], arg, func(err error) {
			add(fmt.Sprintf("%s.args[%d]", field, i), ErrBadLiteral, "%v", err)
		})
	}

	for _, key := range options.SortedKeys() {
		name := strings.ReplaceAll(key, "-", "_")
		switch {
		case name == "string_options":
		case slices.Contains(intro.OptionalInput, name):
			checkLiteral(cat, step.Operation, name, options[key], func(err error) {
				add(field+".options."+key, ErrBadLiteral, "%v", err)
			})
		case slices.Contains(intro.OptionalOutput, name):
		default:
			add(field+".options."+key, ErrUnknownOption, "%s has no optional argument %q", step.Operation, key)
		}
	}

	return errs
}

// checkLiteral reports a literal the argument's type rejects. Values that
// contain references are resolved at run time and skipped here.
func checkLiteral(cat Catalog, operation, param string, v ir.IRValue, report func(error)) {
	if len(ir.CollectRefs(v)) > 0 {
		return
	}
	if err := cat.CheckArgument(operation, param, v); err != nil {
		report(err)
	}
}

// producedOutputs lists what a step's result will hold.
func producedOutputs(intro *bridge.Introspection, options ir.IRObject) []string {
	out := slices.Clone(intro.RequiredOutput)
	for _, key := range options.SortedKeys() {
		name := strings.ReplaceAll(key, "-", "_")
		if intro.IsOptionalOutput(name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func structuralCode(e ir.ValidationError) string {
	switch {
	case e.Field == "name":
		return ErrRecipeNameEmpty
	case e.Field == "steps":
		return ErrRecipeNoSteps
	case strings.HasSuffix(e.Field, ".id"):
		return ErrInvalidStepID
	case strings.HasSuffix(e.Field, ".operation"):
		return ErrStepTarget
	case strings.HasSuffix(e.Field, ".recipe"):
		if strings.Contains(e.Message, "only an instance") {
			return ErrNestedRecipeShape
		}
		return ErrStepTarget
	default:
		return ErrInvalidReference
	}
}
