package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pixbridge/internal/ir"
)

const brightenRecipe = `
package recipes

recipe: brighten: {
	description: "Lift a black image and average it"
	steps: [
		{id: "base", operation: "black", args: [4, 2]},
		{id: "lit", operation: "linear", instance: "$base", args: [1, 10]},
		{id: "mean", operation: "avg", instance: "$lit"},
	]
}
`

const framedRecipe = `
package recipes

recipe: framed: {
	description: "Brighten the input inside a nested recipe"
	steps: [
		{id: "inner", recipe: "lift", instance: "$input"},
		{id: "mean", operation: "avg", instance: "$inner"},
	]
}

recipe: lift: {
	steps: [
		{id: "lit", operation: "linear", instance: "$input", args: [2, 1]},
	]
}
`

// writeRecipes writes CUE files into a fresh directory.
func writeRecipes(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestCompileValidRecipes(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 1 recipe(s), 3 step(s)")
	assert.Contains(t, output, "brighten: black → linear → avg")
}

func TestCompileValidRecipesJSON(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestCompileNestedRecipes(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"framed.cue": framedRecipe})

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "framed: [lift] → avg")
}

func TestCompileOutputToFile(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--output", outputFile})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Wrote IR to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Recipes, 1)
	assert.Equal(t, "brighten", result.Recipes[0].Name)
	assert.Len(t, result.Recipes[0].Steps, 3)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, buf.String(), "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileEmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestCompileInvalidRecipe(t *testing.T) {
	tests := []struct {
		name    string
		recipe  string
		code    string
		message string
	}{
		{
			name: "no steps",
			recipe: `package recipes
recipe: empty: steps: []
`,
			code:    "E102",
			message: "at least one step is required",
		},
		{
			name: "missing id",
			recipe: `package recipes
recipe: bad: steps: [{operation: "black", args: [1, 1]}]
`,
			code:    "E103",
			message: "id is required",
		},
		{
			name: "no target",
			recipe: `package recipes
recipe: bad: steps: [{id: "a", args: [1, 1]}]
`,
			code:    "E104",
			message: "operation or recipe is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeRecipes(t, map[string]string{"bad.cue": tt.recipe})

			buf := &bytes.Buffer{}
			cmd := NewCompileCommand(&RootOptions{Format: "text"})
			cmd.SetOut(buf)
			cmd.SetArgs([]string{dir})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			output := buf.String()
			assert.Contains(t, output, "✗ Compilation failed")
			assert.Contains(t, output, tt.code)
			assert.Contains(t, output, tt.message)
		})
	}
}

func TestCompileInvalidRecipeJSON(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"bad.cue": `package recipes
recipe: empty: steps: []
`})

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.Error(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E102", resp.Error.Code)
}

func TestCompileVerboseOutput(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Found 1 CUE file(s)")
	assert.Contains(t, errBuf.String(), "Compiled recipe: brighten")
	assert.NotContains(t, buf.String(), "Found 1 CUE file(s)")
}

func TestCompileFloatLiterals(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"scale.cue": `package recipes
recipe: scale: steps: [
	{id: "base", operation: "black", args: [4, 4]},
	{id: "half", operation: "resize", instance: "$base", args: [0.5]},
]
`})

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "scale: black → resize")
}

func TestFindCUEFiles(t *testing.T) {
	dir := writeRecipes(t, map[string]string{
		"a.cue":     brightenRecipe,
		"notes.txt": "not cue",
	})
	sub := filepath.Join(dir, "more")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.cue"), []byte("package recipes\n"), 0644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"steps", "E102"},
		{"steps[0].id", "E103"},
		{"steps[1].operation", "E104"},
		{"steps[0].args", "E113"},
		{"steps[2].options", "E113"},
		{"steps[0].instance", "E113"},
		{"description", "E001"},
		{"", "E001"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestCalculateStats(t *testing.T) {
	result := &CompilationResult{
		Recipes: []ir.Recipe{
			{Name: "a", Steps: []ir.RecipeStep{{ID: "x", Operation: "black"}, {ID: "y", Operation: "avg"}}},
			{Name: "b", Steps: []ir.RecipeStep{{ID: "z", Recipe: "a"}}},
		},
	}

	stats := calculateStats(result)
	assert.Equal(t, 2, stats.RecipeCount)
	assert.Equal(t, 3, stats.StepCount)
	assert.Equal(t, 1, stats.NestedCount)
}

func TestStepTargets(t *testing.T) {
	r := ir.Recipe{Name: "r", Steps: []ir.RecipeStep{
		{ID: "a", Operation: "black"},
		{ID: "b", Recipe: "thumb"},
		{ID: "c", Operation: "avg"},
	}}
	assert.Equal(t, "black → [thumb] → avg", stepTargets(r))
}
