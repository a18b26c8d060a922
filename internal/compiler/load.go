package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/pixbridge/internal/ir"
)

// CompileFiles compiles the recipes of several standalone CUE files, in file
// then declaration order. Each file is evaluated on its own and the values
// are unified, so files may live in different directories but cannot share
// definitions.
func CompileFiles(paths ...string) ([]ir.Recipe, error) {
	ctx := cuecontext.New()
	var merged cue.Value
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read recipes: %w", err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if i == 0 {
			merged = v
		} else {
			merged = merged.Unify(v)
		}
	}
	if len(paths) == 0 {
		return []ir.Recipe{}, nil
	}
	return CompileRecipes(merged)
}
