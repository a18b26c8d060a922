package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/store"
)

const badCastRecipe = `
package recipes

recipe: badcast: steps: [
	{id: "base", operation: "black", args: [1, 1]},
	{id: "c", operation: "cast", instance: "$base", args: ["bogus"]},
]
`

func executeRun(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunRecipe(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	output, err := executeRun(t, &RootOptions{Format: "text"}, dir, "brighten")
	require.NoError(t, err)

	assert.Contains(t, output, "✓ base black → ")
	assert.Contains(t, output, "✓ lit linear → ")
	assert.Contains(t, output, "✓ mean avg → 10")
	assert.Contains(t, output, "✓ brighten → 10")
}

func TestRunRecipeJSON(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	output, err := executeRun(t, &RootOptions{Format: "json"}, dir, "brighten")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Recipe string          `json:"recipe"`
			Steps  []any           `json:"steps"`
			Final  json.RawMessage `json:"final"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "brighten", resp.Data.Recipe)
	assert.Len(t, resp.Data.Steps, 3)
	assert.JSONEq(t, "10", string(resp.Data.Final))
}

func TestRunNestedRecipeWithInput(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"framed.cue": framedRecipe})

	output, err := executeRun(t, &RootOptions{Format: "text"}, dir, "framed",
		"--input", `{"width": 2, "height": 2, "fill": [5]}`)
	require.NoError(t, err)

	assert.Contains(t, output, "✓ inner [lift] → ")
	assert.Contains(t, output, "  ✓ lit linear → ")
	assert.Contains(t, output, "✓ framed → 11")
}

func TestRunVerboseListsReachableRecipes(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"framed.cue": framedRecipe})

	errBuf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{dir, "framed", "--input", `{"width": 1, "height": 1, "fill": [1]}`})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Recipe framed reaches: lift, framed")
}

func TestRunYAMLInput(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"framed.cue": framedRecipe})

	output, err := executeRun(t, &RootOptions{Format: "text"}, dir, "framed",
		"--input", "{width: 3, height: 1, bands: 1, format: uchar, fill: [2]}")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ framed → 5")
}

func TestRunInvalidInput(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"framed.cue": framedRecipe})

	tests := []struct {
		name  string
		input string
	}{
		{"not yaml", "{width: ["},
		{"zero size", `{"width": 0, "height": 2}`},
		{"unknown format", `{"width": 1, "height": 1, "format": "rgb"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRun(t, &RootOptions{Format: "text"}, dir, "framed", "--input", tt.input)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "invalid --input")
		})
	}
}

func TestRunJournalsCalls(t *testing.T) {
	dir := writeRecipes(t, map[string]string{
		"brighten.cue": brightenRecipe,
		"framed.cue":   framedRecipe,
	})
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	_, err := executeRun(t, &RootOptions{Format: "text"}, dir, "brighten", "--db", dbPath)
	require.NoError(t, err)
	_, err = executeRun(t, &RootOptions{Format: "text"}, dir, "framed", "--db", dbPath,
		"--source", "batch", "--input", `{"width": 1, "height": 1}`)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	calls, err := st.ReadCalls(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, calls, 5)

	var ops, sources []string
	for i, c := range calls {
		assert.Equal(t, int64(i+1), c.Seq, "seq continues across runs")
		ops = append(ops, c.Operation)
		sources = append(sources, c.Source)
	}
	assert.Equal(t, []string{"black", "linear", "avg", "linear", "avg"}, ops)
	assert.Equal(t, []string{"cli/brighten", "cli/brighten", "cli/brighten", "batch/framed/lift", "batch/framed"}, sources)
}

func TestRunSave(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"lift.cue": `package recipes
recipe: lift: steps: [
	{id: "base", operation: "black", args: [2, 1]},
	{id: "lit", operation: "linear", instance: "$base", args: [1, 7], options: uchar: true},
]
`})
	savePath := filepath.Join(t.TempDir(), "out.raw")

	output, err := executeRun(t, &RootOptions{Format: "text"}, dir, "lift", "--save", savePath)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote raw samples to "+savePath)

	data, err := os.ReadFile(savePath)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 2)
	assert.Equal(t, []byte{7, 7}, data[:2])
}

func TestRunSaveNonImage(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	_, err := executeRun(t, &RootOptions{Format: "text"}, dir, "brighten",
		"--save", filepath.Join(t.TempDir(), "out.raw"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not an image")
}

func TestRunStepFailure(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"badcast.cue": badCastRecipe})

	output, err := executeRun(t, &RootOptions{Format: "text"}, dir, "badcast", "--no-validate")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✓ base black")
	assert.Contains(t, output, "✗ c cast: UNKNOWN_ENUM_NICK")
	assert.Contains(t, output, "✗ badcast: ")
}

func TestRunStepFailureJSON(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"badcast.cue": badCastRecipe})

	output, err := executeRun(t, &RootOptions{Format: "json"}, dir, "badcast", "--no-validate")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "STEP_FAILED", resp.Error.Code)
	assert.Equal(t, map[string]any{"call_error": "UNKNOWN_ENUM_NICK", "step": "c"}, resp.Error.Details)
}

func TestRunValidatesBeforeRunning(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"badcast.cue": badCastRecipe})
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	output, err := executeRun(t, &RootOptions{Format: "text"}, dir, "badcast", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "[E113] badcast")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	last, err := st.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, last, "nothing runs when validation fails")
}

func TestRunUnknownRecipe(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	output, err := executeRun(t, &RootOptions{Format: "json"}, dir, "nope", "--no-validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_RECIPE", resp.Error.Code)
}

func TestRunMaxSteps(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"brighten.cue": brightenRecipe})

	output, err := executeRun(t, &RootOptions{Format: "json"}, dir, "brighten", "--max-steps", "2")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "QUOTA_EXCEEDED", resp.Error.Code)
}

func TestRunNonExistentRecipesDir(t *testing.T) {
	_, err := executeRun(t, &RootOptions{Format: "text"}, "/nonexistent/recipes", "brighten")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to compile recipes")
}

func TestRunMissingArgs(t *testing.T) {
	_, err := executeRun(t, &RootOptions{Format: "text"}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestCompileRecipes(t *testing.T) {
	dir := writeRecipes(t, map[string]string{"framed.cue": framedRecipe})

	recipes, err := compileRecipes(dir)
	require.NoError(t, err)
	assert.Len(t, recipes, 2)

	_, err = compileRecipes(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
}

func TestDescribeValue(t *testing.T) {
	h, err := buildInput(`{"width": 2, "height": 3}`)
	require.NoError(t, err)
	defer h.Close()

	got := describeValue(ir.IRObject{"out": h, "n": ir.IRInt(1), "list": ir.IRArray{h}})
	obj := got.(ir.IRObject)
	assert.Equal(t, ir.IRInt(1), obj["n"])
	assert.Equal(t, ir.IRObject{"$handle": h.Describe()}, obj["out"])
	assert.Equal(t, ir.IRArray{ir.IRObject{"$handle": h.Describe()}}, obj["list"])
}

func TestRender(t *testing.T) {
	assert.Equal(t, "null", render(nil))
	assert.Equal(t, "[1,2.5]", render(ir.IRArray{ir.IRInt(1), ir.IRFloat(2.5)}))
	assert.Equal(t, `{"a":"x"}`, render(ir.IRObject{"a": ir.IRString("x")}))
}

func TestBuildInputEmpty(t *testing.T) {
	h, err := buildInput("")
	require.NoError(t, err)
	assert.Nil(t, h)
}
