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

func executeInvoke(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewInvokeCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInvokeConstructor(t *testing.T) {
	output, err := executeInvoke(t, &RootOptions{Format: "text"}, "black", "--args", "[2, 3]")
	require.NoError(t, err)

	assert.Contains(t, output, `out = {"$handle":{`)
	assert.Contains(t, output, `"width":2`)
	assert.Contains(t, output, `"height":3`)
	assert.Contains(t, output, `"format":"uchar"`)
}

func TestInvokeWithInstance(t *testing.T) {
	output, err := executeInvoke(t, &RootOptions{Format: "text"}, "avg",
		"--input", `{"width": 2, "height": 2, "fill": [4]}`)
	require.NoError(t, err)
	assert.Equal(t, "out = 4\n", output)
}

func TestInvokeOptionalOutputs(t *testing.T) {
	output, err := executeInvoke(t, &RootOptions{Format: "text"}, "min",
		"--input", `{"width": 2, "height": 1}`,
		"--options", `{"x": true, "y": true}`)
	require.NoError(t, err)

	assert.Contains(t, output, "out = 0\n")
	assert.Contains(t, output, "x = 0\n")
	assert.Contains(t, output, "y = 0\n")
}

func TestInvokeOptionString(t *testing.T) {
	output, err := executeInvoke(t, &RootOptions{Format: "text"}, "black",
		"--args", "[1, 1]", "--option-string", "bands=3")
	require.NoError(t, err)
	assert.Contains(t, output, `"bands":3`)
}

func TestInvokeJSON(t *testing.T) {
	output, err := executeInvoke(t, &RootOptions{Format: "json"}, "getpoint",
		"--input", `{"width": 2, "height": 2, "bands": 2, "fill": [1, 9]}`,
		"--args", "[1, 1]")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Operation string         `json:"operation"`
			Outputs   map[string]any `json:"outputs"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "getpoint", resp.Data.Operation)
	assert.Equal(t, []any{1.0, 9.0}, resp.Data.Outputs["out_array"])
}

func TestInvokeCallErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"arity", []string{"black", "--args", "[2]"}, "ARITY_MISMATCH"},
		{"unknown operation", []string{"sharpen_everything"}, "OPERATION_NOT_FOUND"},
		{"unknown option", []string{"black", "--args", "[1, 1]", "--options", `{"colour": 1}`}, "UNKNOWN_PARAMETER"},
		{"bad nick", []string{"cast", "--input", `{"width": 1, "height": 1}`, "--args", `["bogus"]`}, "UNKNOWN_ENUM_NICK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeInvoke(t, &RootOptions{Format: "json"}, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(output), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestInvokeCallErrorText(t *testing.T) {
	output, err := executeInvoke(t, &RootOptions{Format: "text"}, "black", "--args", "[2]")
	require.Error(t, err)
	assert.Contains(t, output, "Error [ARITY_MISMATCH]")
}

func TestInvokeInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"args not json", []string{"black", "--args", "[1,"}, "invalid --args JSON"},
		{"args not array", []string{"black", "--args", `{"a": 1}`}, "invalid --args JSON"},
		{"options not object", []string{"black", "--options", "[1]"}, "invalid --options JSON"},
		{"bad input", []string{"avg", "--input", `{"width": -1, "height": 1}`}, "invalid --input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeInvoke(t, &RootOptions{Format: "text"}, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInvokeJournalsCall(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	_, err := executeInvoke(t, &RootOptions{Format: "text"}, "black", "--args", "[2, 2]", "--db", dbPath)
	require.NoError(t, err)
	_, err = executeInvoke(t, &RootOptions{Format: "text"}, "black", "--args", "[2]", "--db", dbPath, "--source", "manual")
	require.Error(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	calls, err := st.ReadCalls(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Equal(t, int64(1), calls[0].Seq)
	assert.Equal(t, "cli", calls[0].Source)
	assert.True(t, calls[0].Succeeded())
	assert.Equal(t, ir.IRArray{ir.IRInt(2), ir.IRInt(2)}, calls[0].Args["positional"])

	assert.Equal(t, int64(2), calls[1].Seq)
	assert.Equal(t, "manual", calls[1].Source)
	assert.Equal(t, "ARITY_MISMATCH", calls[1].ErrorCode)
}

func TestInvokeSave(t *testing.T) {
	savePath := filepath.Join(t.TempDir(), "black.raw")

	output, err := executeInvoke(t, &RootOptions{Format: "text"}, "black", "--args", "[3, 1]", "--save", savePath)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote raw samples to "+savePath)

	data, err := os.ReadFile(savePath)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 3)
	assert.Equal(t, []byte{0, 0, 0}, data[:3])
}

func TestInvokeMissingOperation(t *testing.T) {
	_, err := executeInvoke(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestInvokeHelpText(t *testing.T) {
	cmd := NewInvokeCommand(&RootOptions{Format: "text"})
	assert.Equal(t, "invoke <operation>", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}
