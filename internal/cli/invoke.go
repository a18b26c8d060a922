package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/pixbridge/internal/bridge"
	"github.com/roach88/pixbridge/internal/ir"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args         string // positional arguments as a JSON array
	Options      string // optional arguments as a JSON object
	OptionString string
	Input        string // instance image spec
	Database     string
	Source       string
	Save         string
}

// InvokeResult is the outcome of one call.
type InvokeResult struct {
	Operation string      `json:"operation"`
	Outputs   ir.IRObject `json:"outputs"`
	Saved     string      `json:"saved,omitempty"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <operation>",
		Short: "Call one operation",
		Long: `Call one operation by name and print its outputs.

Positional arguments fill the required inputs in declaration order; with
--input, the described image fills the first required image input. Images
in the outputs are printed as descriptions.

Example:
  pixbridge invoke black --args '[64, 48]' --options '{"bands": 3}'
  pixbridge invoke linear --input '{"width": 2, "height": 2}' --args '[2, 10]'
  pixbridge invoke avg --input '{"width": 2, "height": 2, "fill": [7]}' --db ./calls.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeOperation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "[]", "positional arguments as a JSON array")
	cmd.Flags().StringVar(&opts.Options, "options", "{}", "optional arguments as a JSON object")
	cmd.Flags().StringVar(&opts.OptionString, "option-string", "", `options as "name=value,name2=value2"`)
	cmd.Flags().StringVar(&opts.Input, "input", "", "instance image spec (JSON or YAML)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal the call to this SQLite database")
	cmd.Flags().StringVar(&opts.Source, "source", "cli", "source recorded in the journal")
	cmd.Flags().StringVar(&opts.Save, "save", "", "write the raw samples of an image result to this file")

	return cmd
}

func invokeOperation(opts *InvokeOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var positional ir.IRArray
	if err := json.Unmarshal([]byte(opts.Args), &positional); err != nil {
		return WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}
	var options ir.IRObject
	if err := json.Unmarshal([]byte(opts.Options), &options); err != nil {
		return WrapExitError(ExitCommandError, "invalid --options JSON", err)
	}

	input, err := buildInput(opts.Input)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --input", err)
	}
	var instance ir.IRValue
	if input != nil {
		defer input.Close()
		instance = input
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	sess, err := openSession(ctx, opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.bridge.CallWith(ctx, name, instance, positional, bridge.CallOptions{
		Options:      options,
		OptionString: opts.OptionString,
		Source:       opts.Source,
	})
	if err != nil {
		code := string(bridge.CodeOf(err))
		if code == "" {
			code = ErrCodeGeneric
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "call failed", err)
	}
	defer res.Close()
	slog.Debug("call returned", "operation", name, "outputs", res.Names())

	result := InvokeResult{Operation: name, Outputs: describeValue(res.Values()).(ir.IRObject)}
	if opts.Save != "" {
		if err := saveFinal(ctx, sess.bridge, res.Single(), opts.Save); err != nil {
			return WrapExitError(ExitCommandError, "failed to save image", err)
		}
		result.Saved = opts.Save
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, n := range res.Names() {
		fmt.Fprintf(formatter.Writer, "%s = %s\n", n, render(result.Outputs[n]))
	}
	if result.Saved != "" {
		fmt.Fprintf(formatter.Writer, "Wrote raw samples to %s\n", result.Saved)
	}
	return nil
}
