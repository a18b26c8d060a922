package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidRecipes(t *testing.T) {
	dir := writeRecipes(t, map[string]string{
		"brighten.cue": brightenRecipe,
		"framed.cue":   framedRecipe,
	})

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ All 3 recipe(s) valid")
}

func TestValidateValidRecipesJSON(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Recipes)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/recipes"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
}

func TestValidateEmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestValidateRegistryErrors(t *testing.T) {
	tests := []struct {
		name   string
		recipe string
		want   string
	}{
		{
			name: "arity",
			recipe: `package recipes
recipe: short: steps: [{id: "base", operation: "black", args: [4]}]
`,
			want: "[E111] short",
		},
		{
			name: "unknown operation",
			recipe: `package recipes
recipe: nope: steps: [{id: "a", operation: "sharpen_everything"}]
`,
			want: "[E110] nope",
		},
		{
			name: "unknown option",
			recipe: `package recipes
recipe: opt: steps: [{id: "a", operation: "black", args: [1, 1], options: {colour: true}}]
`,
			want: "[E112] opt",
		},
		{
			name: "forward reference",
			recipe: `package recipes
recipe: fwd: steps: [
	{id: "a", operation: "invert", instance: "$b"},
	{id: "b", operation: "black", args: [1, 1]},
]
`,
			want: "[E105] fwd",
		},
		{
			name: "unknown nested recipe",
			recipe: `package recipes
recipe: outer: steps: [{id: "a", recipe: "missing"}]
`,
			want: "[E108] outer",
		},
		{
			name: "recursive recipes",
			recipe: `package recipes
recipe: ping: steps: [{id: "a", recipe: "pong"}]
recipe: pong: steps: [{id: "a", recipe: "ping"}]
`,
			want: "[E107]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeRecipes(t, map[string]string{"bad.cue": tt.recipe})

			buf := &bytes.Buffer{}
			cmd := NewValidateCommand(&RootOptions{Format: "text"})
			cmd.SetOut(buf)
			cmd.SetArgs([]string{dir})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			output := buf.String()
			assert.Contains(t, output, "✗ Validation failed")
			assert.Contains(t, output, tt.want)
		})
	}
}

func TestValidateInvalidRecipeJSON(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"bad.cue": `package recipes
recipe: short: steps: [{id: "base", operation: "black", args: [4]}]
`})

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.Error(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E111", resp.Error.Code)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "short", resp.Data.Errors[0].Recipe)
}

func TestValidateCompileAndRegistryErrorsTogether(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"mixed.cue": `package recipes
recipe: empty: steps: []
recipe: short: steps: [{id: "base", operation: "black", args: [4]}]
`})

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.Error(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "E102")
	assert.Contains(t, output, "E111")
}

func TestValidateVerboseOutput(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Validating recipe: brighten")
}

func TestValidateRecipesDir(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	errs, err := ValidateRecipesDir(dir)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidateRecipesDirInvalid(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"bad.cue": `package recipes
recipe: short: steps: [{id: "base", operation: "black", args: [4]}]
`})

	errs, err := ValidateRecipesDir(dir)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "E111", errs[0].Code)
}

func TestValidateRecipesDirNonExistent(t *testing.T) {
	_, err := ValidateRecipesDir("/nonexistent/recipes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005")
}

func TestParseCompileError(t *testing.T) {
	code, msg := parseCompileError(&LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found in x"})
	assert.Equal(t, "E003", code)
	assert.Equal(t, "no CUE files found in x", msg)

	code, msg = parseCompileError(assert.AnError)
	assert.Equal(t, ErrCodeGeneric, code)
	assert.Equal(t, assert.AnError.Error(), msg)
}
