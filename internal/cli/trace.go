package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database     string
	Operation    string
	Source       string
	SourcePrefix string
	CallHash     string
	ErrorCode    string
	Failed       bool
	After        int64
	Limit        int
	Last         int
}

// TraceEvent represents a single call in the trace timeline.
type TraceEvent struct {
	Seq       int64          `json:"seq"`
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Source    string         `json:"source,omitempty"`
	CallHash  string         `json:"call_hash"`
	Args      map[string]any `json:"args,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEvent           `json:"timeline"`
	Summary  []store.OperationStats `json:"summary"`
	Stats    TraceStats             `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalCalls int `json:"total_calls"`
	Failures   int `json:"failures"`
	Distinct   int `json:"distinct"` // distinct call hashes
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query the call journal",
		Long: `Query the call journal.

Lists journaled calls in sequence order, filtered by operation, source,
call hash or error code, with per-operation statistics.

The output includes:
- Timeline: Chronological list of calls with their arguments and results
- Summary: Calls, failures and distinct call hashes per operation
- Stats: Totals for the listed calls

Examples:
  pixbridge trace --db ./calls.db
  pixbridge trace --db ./calls.db --source contact --operation min
  pixbridge trace --db ./calls.db --failed --last 10
  pixbridge trace --db ./calls.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "only calls to this operation")
	cmd.Flags().StringVar(&opts.Source, "source", "", "only calls from this source")
	cmd.Flags().StringVar(&opts.SourcePrefix, "source-prefix", "", "only calls whose source starts with this prefix")
	cmd.Flags().StringVar(&opts.CallHash, "call-hash", "", "only calls with this call hash")
	cmd.Flags().StringVar(&opts.ErrorCode, "error-code", "", "only calls that failed with this code")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only failed calls")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only calls after this seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "at most this many calls, oldest first")
	cmd.Flags().IntVar(&opts.Last, "last", 0, "only the most recent calls")
	cmd.MarkFlagsMutuallyExclusive("limit", "last")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	calls, err := st.ReadCalls(ctx, opts.filter())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	summary, err := st.Summarize(ctx, opts.Source)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize journal", err)
	}
	if opts.Operation != "" {
		summary = filterSummary(summary, opts.Operation)
	}

	result := TraceResult{
		Timeline: buildTimeline(calls),
		Summary:  summary,
		Stats:    traceStats(calls),
	}

	if formatter.Format == "json" {
		return encodeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result})
	}

	if len(calls) == 0 {
		fmt.Fprintln(formatter.Writer, "No calls found.")
		return nil
	}
	return outputTraceText(formatter, result)
}

func (o *TraceOptions) filter() store.Filter {
	return store.Filter{
		Operation:    o.Operation,
		Source:       o.Source,
		SourcePrefix: o.SourcePrefix,
		CallHash:     o.CallHash,
		ErrorCode:    o.ErrorCode,
		FailedOnly:   o.Failed,
		AfterSeq:     o.After,
		Limit:        o.Limit,
		Last:         o.Last,
	}
}

// buildTimeline converts journal records to trace timeline events.
func buildTimeline(calls []ir.CallRecord) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(calls))
	for _, rec := range calls {
		timeline = append(timeline, TraceEvent{
			Seq:       rec.Seq,
			ID:        rec.ID,
			Operation: rec.Operation,
			Source:    rec.Source,
			CallHash:  rec.CallHash,
			Args:      irObjectToMap(rec.Args),
			Result:    irObjectToMap(rec.Result),
			ErrorCode: rec.ErrorCode,
			Error:     rec.ErrorMessage,
		})
	}
	return timeline
}

func traceStats(calls []ir.CallRecord) TraceStats {
	stats := TraceStats{TotalCalls: len(calls)}
	hashes := make(map[string]bool, len(calls))
	for _, rec := range calls {
		if !rec.Succeeded() {
			stats.Failures++
		}
		hashes[rec.CallHash] = true
	}
	stats.Distinct = len(hashes)
	return stats
}

func filterSummary(summary []store.OperationStats, operation string) []store.OperationStats {
	out := []store.OperationStats{}
	for _, s := range summary {
		if s.Operation == operation {
			out = append(out, s)
		}
	}
	return out
}

// irObjectToMap converts an ir.IRObject to a plain map.
func irObjectToMap(obj ir.IRObject) map[string]any {
	if len(obj) == 0 {
		return nil
	}
	m, _ := ir.ToAny(obj).(map[string]any)
	return m
}

// outputTraceText outputs the trace result as text.
func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	fmt.Fprintln(w, "=== Timeline ===")
	for _, event := range result.Timeline {
		formatTimelineEvent(formatter, event)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Summary ===")
	for _, s := range result.Summary {
		fmt.Fprintf(w, "  %-16s %4d calls  %4d failed  %4d distinct  seq %d-%d\n",
			s.Operation, s.Calls, s.Failures, s.Distinct, s.FirstSeq, s.LastSeq)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Calls: %d\n", result.Stats.TotalCalls)
	fmt.Fprintf(w, "  Failures:    %d\n", result.Stats.Failures)
	fmt.Fprintf(w, "  Distinct:    %d\n", result.Stats.Distinct)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(formatter *OutputFormatter, event TraceEvent) {
	w := formatter.Writer
	source := ""
	if event.Source != "" {
		source = " (" + event.Source + ")"
	}

	if event.ErrorCode != "" {
		fmt.Fprintf(w, "  [%d] %s %s%s: %s\n", event.Seq, formatter.Mark(false), event.Operation, source, event.ErrorCode)
	} else {
		fmt.Fprintf(w, "  [%d] %s %s%s\n", event.Seq, formatter.Mark(true), event.Operation, source)
	}

	if !formatter.Verbose {
		return
	}
	fmt.Fprintf(w, "       Args: %s\n", formatArgs(event.Args))
	if event.ErrorCode != "" {
		fmt.Fprintf(w, "       Error: %s\n", event.Error)
	} else {
		fmt.Fprintf(w, "       Result: %s\n", formatArgs(event.Result))
	}
	fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
	fmt.Fprintf(w, "       Hash: %s\n", truncateID(event.CallHash))
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
