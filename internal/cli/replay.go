package cli

import (
	"context"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Source   string // optional - specific source only
}

// ReplaySourceResult holds the replay result for the calls of one source.
type ReplaySourceResult struct {
	Source        string   `json:"source"`
	Calls         int      `json:"calls"`
	Failures      int      `json:"failures"`
	HashMismatch  []string `json:"hash_mismatch,omitempty"` // IDs whose call hash does not match their args
	OutOfOrder    []string `json:"out_of_order,omitempty"`  // IDs whose seq does not increase
	Deterministic bool     `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sources          []ReplaySourceResult `json:"sources"`
	TotalSources     int                  `json:"total_sources"`
	AllDeterministic bool                 `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-read the call journal and verify it",
		Long: `Re-read the call journal and verify its integrity.

For each source, the journal is read twice and the two reads are compared,
every call hash is recomputed from the recorded arguments, and sequence
numbers are checked to increase.

Exit codes:
  0 - The journal verified
  1 - Verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  pixbridge replay --db ./calls.db
  pixbridge replay --db ./calls.db --source contact
  pixbridge replay --db ./calls.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Source, "source", "", "replay one source only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var sources []string
	if opts.Source != "" {
		sources = []string{opts.Source}
	} else {
		sources, err = st.Sources(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sources", err)
		}
	}

	result := ReplayResult{
		Sources:          make([]ReplaySourceResult, 0, len(sources)),
		TotalSources:     len(sources),
		AllDeterministic: true,
	}

	if len(sources) == 0 {
		if formatter.Format == "json" {
			return outputReplayJSON(formatter, result)
		}
		fmt.Fprintln(formatter.Writer, "No calls found in database.")
		return nil
	}

	for _, source := range sources {
		sr, err := replayAndVerifySource(ctx, st, source)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay source %s", source), err)
		}
		result.Sources = append(result.Sources, sr)
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if formatter.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// replayAndVerifySource reads one source's calls twice and verifies them.
func replayAndVerifySource(ctx context.Context, st *store.Store, source string) (ReplaySourceResult, error) {
	filter := store.Filter{Source: source}

	calls1, err := st.ReadCalls(ctx, filter)
	if err != nil {
		return ReplaySourceResult{}, fmt.Errorf("first replay failed: %w", err)
	}
	calls2, err := st.ReadCalls(ctx, filter)
	if err != nil {
		return ReplaySourceResult{}, fmt.Errorf("second replay failed: %w", err)
	}

	sr := ReplaySourceResult{Source: source, Calls: len(calls1)}
	var last int64
	for _, rec := range calls1 {
		if !rec.Succeeded() {
			sr.Failures++
		}
		if !callHashMatches(rec) {
			sr.HashMismatch = append(sr.HashMismatch, rec.ID)
		}
		if rec.Seq <= last {
			sr.OutOfOrder = append(sr.OutOfOrder, rec.ID)
		}
		last = rec.Seq
	}
	sr.Deterministic = compareCallSequences(calls1, calls2) &&
		len(sr.HashMismatch) == 0 && len(sr.OutOfOrder) == 0
	return sr, nil
}

// callHashMatches recomputes a record's call hash from its args. Images
// were recorded as descriptions, which hash the same as the live handles.
func callHashMatches(rec ir.CallRecord) bool {
	positional, _ := rec.Args["positional"].(ir.IRArray)
	options, _ := rec.Args["options"].(ir.IRObject)
	h, err := ir.CallHash(rec.Operation, rec.Args["instance"], positional, options)
	return err == nil && h == rec.CallHash
}

// compareCallSequences compares two reads of the journal for equality.
func compareCallSequences(a, b []ir.CallRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "journal verification failed",
		}
	}

	if err := encodeJSON(formatter.Writer, response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Verification failure = exit code 1
		return NewExitError(ExitFailure, "journal verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay Summary: %d source(s)\n", result.TotalSources)
	fmt.Fprintln(w)

	for _, src := range result.Sources {
		fmt.Fprintf(w, "%s Source: %s\n", formatter.Mark(src.Deterministic), src.Source)
		fmt.Fprintf(w, "  Calls: %d (%d failed)\n", src.Calls, src.Failures)

		for _, id := range src.HashMismatch {
			fmt.Fprintf(w, "  Call hash mismatch: %s\n", id)
		}
		for _, id := range src.OutOfOrder {
			fmt.Fprintf(w, "  Out of order: %s\n", id)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintf(w, "%s Journal verified\n", formatter.Mark(true))
		return nil
	}

	fmt.Fprintf(w, "%s Journal verification failed\n", formatter.Mark(false))
	return NewExitError(ExitFailure, "journal verification failed")
}
