package ir

import "fmt"

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the structural rules of a recipe. "$input" is always a
// valid reference; it is null unless the recipe is nested. Whether operations
// exist is checked against a registry by the compiler.
// Returns all errors (not fail-fast) for better developer experience.
func (r *Recipe) Validate() []ValidationError {
	var errs []ValidationError

	if r.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "recipe name is required"})
	}
	if len(r.Steps) == 0 {
		errs = append(errs, ValidationError{Field: "steps", Message: "at least one step is required"})
	}

	seen := make(map[string]bool, len(r.Steps))
	for i, step := range r.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if step.ID == "" {
			errs = append(errs, ValidationError{Field: field + ".id", Message: "step id is required"})
		} else if _, ok := ParseRef("$" + step.ID); !ok {
			errs = append(errs, ValidationError{Field: field + ".id", Message: fmt.Sprintf("invalid step id %q", step.ID)})
		} else if step.ID == InputStep {
			errs = append(errs, ValidationError{Field: field + ".id", Message: fmt.Sprintf("step id %q is reserved", InputStep)})
		} else if seen[step.ID] {
			errs = append(errs, ValidationError{Field: field + ".id", Message: fmt.Sprintf("duplicate step id %q", step.ID)})
		}
		switch {
		case step.Operation == "" && step.Recipe == "":
			errs = append(errs, ValidationError{Field: field + ".operation", Message: "operation or recipe is required"})
		case step.Operation != "" && step.Recipe != "":
			errs = append(errs, ValidationError{Field: field + ".recipe", Message: "a step names an operation or a recipe, not both"})
		case step.Recipe != "" && (len(step.Args) > 0 || len(step.Options) > 0):
			errs = append(errs, ValidationError{Field: field + ".recipe", Message: "a nested recipe takes only an instance"})
		}

		// References may only point backwards.
		for _, ref := range step.Refs() {
			if ref.Step != InputStep && !seen[ref.Step] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("reference %s does not name an earlier step", ref),
				})
			}
		}
		seen[step.ID] = true
	}

	return errs
}

// Refs lists the step references used by the step's arguments.
func (s RecipeStep) Refs() []StepRef {
	var refs []StepRef
	if s.Instance != nil {
		refs = append(refs, CollectRefs(s.Instance)...)
	}
	refs = append(refs, CollectRefs(s.Args)...)
	refs = append(refs, CollectRefs(s.Options)...)
	return refs
}
