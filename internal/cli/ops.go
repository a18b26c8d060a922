package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pixbridge/internal/bridge"
)

// OperationSummary is one line of the operation list.
type OperationSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Signature   string `json:"signature"`
}

// NewOpsCommand creates the ops command and its subcommands.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List and describe operations",
	}
	cmd.AddCommand(newOpsListCommand(rootOpts))
	cmd.AddCommand(newOpsDescribeCommand(rootOpts))
	return cmd
}

func newOpsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the registered operations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpsList(rootOpts, cmd)
		},
	}
}

func newOpsDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <operation>",
		Short: "Describe an operation's arguments",
		Long: `Describe an operation's arguments, grouped the way a call consumes them:
the instance slot, the positional arguments, options and outputs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpsDescribe(rootOpts, args[0], cmd)
		},
	}
}

func runOpsList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	sess, err := openSession(cmd.Context(), opts, "")
	if err != nil {
		return err
	}
	defer sess.Close()

	var ops []OperationSummary
	for _, name := range sess.registry.Names() {
		in, err := sess.bridge.Introspect(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to introspect "+name, err)
		}
		ops = append(ops, OperationSummary{Name: name, Description: in.Description, Signature: signature(in)})
	}

	if formatter.Format == "json" {
		return formatter.Success(ops)
	}
	width := 0
	for _, op := range ops {
		width = max(width, len(op.Signature))
	}
	for _, op := range ops {
		fmt.Fprintf(formatter.Writer, "%-*s  %s\n", width, op.Signature, op.Description)
	}
	return nil
}

func runOpsDescribe(opts *RootOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	sess, err := openSession(cmd.Context(), opts, "")
	if err != nil {
		return err
	}
	defer sess.Close()

	in, err := sess.bridge.Introspect(name)
	if err != nil {
		_ = formatter.Error(string(bridge.CodeOf(err)), err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown operation", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(in)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s - %s\n\n", signature(in), in.Description)
	if in.MemberThis != "" {
		fmt.Fprintf(w, "instance: %s\n", in.MemberThis)
	}
	fmt.Fprintf(w, "positional: %s\n", listOrNone(in.MethodArgs))
	fmt.Fprintf(w, "options: %s\n", listOrNone(in.OptionalInput))
	fmt.Fprintf(w, "outputs: %s\n", listOrNone(in.RequiredOutput))
	if len(in.OptionalOutput) > 0 {
		fmt.Fprintf(w, "optional outputs: %s\n", strings.Join(in.OptionalOutput, ", "))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	for _, p := range in.Params {
		fmt.Fprintf(w, "  %-14s %-14s %s\n", p.Name, p.Type, strings.Join(p.Flags, "|"))
		if p.Blurb != "" && formatter.Verbose {
			fmt.Fprintf(w, "  %-14s %s\n", "", p.Blurb)
		}
		if len(p.Nicks) > 0 {
			fmt.Fprintf(w, "  %-14s one of: %s\n", "", strings.Join(p.Nicks, ", "))
		}
	}
	return nil
}

// signature renders a call shape like "in.linear(a, b)" or "black(width, height)".
func signature(in *bridge.Introspection) string {
	call := fmt.Sprintf("%s(%s)", in.Name, strings.Join(in.MethodArgs, ", "))
	if in.MemberThis != "" {
		return in.MemberThis + "." + call
	}
	return call
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
