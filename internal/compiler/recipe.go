package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/pixbridge/internal/ir"
)

// CompileRecipes compiles every recipe under the "recipe" field of a CUE
// value, in declaration order.
//
//	recipe: brighten: {
//		description: "Lift a black canvas"
//		steps: [
//			{id: "base", operation: "black", args: [64, 64], options: bands: 3},
//			{id: "lit", operation: "linear", instance: "$base", args: [[1, 1, 1], [10, 20, 30]]},
//		]
//	}
func CompileRecipes(v cue.Value) ([]ir.Recipe, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	recipesVal := v.LookupPath(cue.ParsePath("recipe"))
	if !recipesVal.Exists() {
		return []ir.Recipe{}, nil
	}

	iter, err := recipesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	recipes := []ir.Recipe{}
	for iter.Next() {
		r, err := CompileRecipe(iter.Value())
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *r)
	}
	return recipes, nil
}

// CompileRecipe parses a CUE value into a Recipe.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the recipe struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`recipe: brighten: { ... }`)
//	r, err := CompileRecipe(v.LookupPath(cue.ParsePath("recipe.brighten")))
func CompileRecipe(v cue.Value) (*ir.Recipe, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	r := &ir.Recipe{}

	// Name comes from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		r.Name = labels[len(labels)-1].String()
	}

	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		r.Description = desc
	}

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return nil, &CompileError{
			Field:   "steps",
			Message: "steps are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := stepsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		step, err := parseStep(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		r.Steps = append(r.Steps, step)
	}

	if len(r.Steps) == 0 {
		return nil, &CompileError{
			Field:   "steps",
			Message: "at least one step is required",
			Pos:     stepsVal.Pos(),
		}
	}

	return r, nil
}

func parseStep(v cue.Value, index int) (ir.RecipeStep, error) {
	var step ir.RecipeStep
	field := fmt.Sprintf("steps[%d]", index)

	var err error
	if step.ID, err = requiredString(v, "id", field); err != nil {
		return step, err
	}
	if step.Operation, err = optionalString(v, "operation"); err != nil {
		return step, err
	}
	if step.Recipe, err = optionalString(v, "recipe"); err != nil {
		return step, err
	}
	if step.Operation == "" && step.Recipe == "" {
		return step, &CompileError{
			Field:   field + ".operation",
			Message: "operation or recipe is required",
			Pos:     v.Pos(),
		}
	}

	if instVal := v.LookupPath(cue.ParsePath("instance")); instVal.Exists() {
		if step.Instance, err = cueToIR(instVal, field+".instance"); err != nil {
			return step, err
		}
	}

	step.Args = ir.IRArray{}
	if argsVal := v.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
		args, err := cueToIR(argsVal, field+".args")
		if err != nil {
			return step, err
		}
		arr, ok := args.(ir.IRArray)
		if !ok {
			return step, &CompileError{Field: field + ".args", Message: "args must be a list", Pos: argsVal.Pos()}
		}
		step.Args = arr
	}

	if optsVal := v.LookupPath(cue.ParsePath("options")); optsVal.Exists() {
		opts, err := cueToIR(optsVal, field+".options")
		if err != nil {
			return step, err
		}
		obj, ok := opts.(ir.IRObject)
		if !ok {
			return step, &CompileError{Field: field + ".options", Message: "options must be a struct", Pos: optsVal.Pos()}
		}
		step.Options = obj
	}

	return step, nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// cueToIR converts a concrete CUE value to an IRValue. Integral numbers stay
// integers; CUE floats become IRFloat.
func cueToIR(v cue.Value, field string) (ir.IRValue, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.IncompleteKind() {
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			key := iter.Selector().Unquoted()
			val, err := cueToIR(iter.Value(), field+"."+key)
			if err != nil {
				return nil, err
			}
			obj[key] = val
		}
		return obj, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for i := 0; iter.Next(); i++ {
			val, err := cueToIR(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil
	}

	if !v.IsConcrete() {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRFloat(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.BytesKind:
		b, err := v.Bytes()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBytes(b), nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
