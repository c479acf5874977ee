package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/normware/internal/ir"
	"github.com/roach88/normware/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Type   string // optional - filter to one action type
	Limit  int
	Verify bool
}

// TraceEntry is one journaled action in the trace output.
type TraceEntry struct {
	Seq      int64           `json:"seq"`
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Error    bool            `json:"error,omitempty"`
	Digest   string          `json:"digest"`
	Verified *bool           `json:"verified,omitempty"`
	Action   json.RawMessage `json:"action"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Total    int            `json:"total"`
	Errors   int            `json:"errors"`
	ByType   map[string]int `json:"by_type"`
	Mismatch int            `json:"digest_mismatches,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Journal string       `json:"journal"`
	Entries []TraceEntry `json:"entries"`
	Stats   TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List actions recorded in a journal",
		Long: `List the actions recorded in a journal, in the order they reached the
reducer.

Each entry stores the canonical JSON of the forwarded action and its
digest. With --verify the digest of every entry is recomputed; any
mismatch exits with code 1.

Examples:
  normware trace --journal ./actions.db
  normware trace --journal ./actions.db --type ARTICLE_LOADED --limit 10
  normware trace --journal ./actions.db --verify --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "filter to one action type")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "recompute entry digests")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Journal == "" {
		_ = formatter.Error(ErrCodeNotFound, "no journal: pass --journal or set journal in normware.yaml", nil)
		return NewExitError(ExitCommandError, "no journal configured")
	}
	// Open would create a missing database.
	if _, err := os.Stat(opts.Journal); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", opts.Journal), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid limit %d: must be non-negative", opts.Limit))
	}

	j, err := journal.Open(opts.Journal, journal.WithLogger(opts.logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	entries, err := j.Entries(cmd.Context(), journal.Filter{Type: opts.Type, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := buildTraceResult(opts.Journal, entries, opts.Verify)

	if opts.Format == "json" {
		if result.Stats.Mismatch > 0 {
			msg := fmt.Sprintf("%d entry digest(s) do not match", result.Stats.Mismatch)
			if err := formatter.Failure(result, ErrCodeJournal, msg); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return formatter.Success(result)
	}

	outputTraceText(formatter.Writer, result, opts.Verbose)
	if result.Stats.Mismatch > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d entry digest(s) do not match", result.Stats.Mismatch))
	}
	return nil
}

// buildTraceResult converts journal entries to trace output.
func buildTraceResult(path string, entries []journal.Entry, verify bool) TraceResult {
	result := TraceResult{
		Journal: path,
		Entries: make([]TraceEntry, 0, len(entries)),
		Stats:   TraceStats{ByType: make(map[string]int)},
	}

	for _, e := range entries {
		te := TraceEntry{
			Seq:    e.Seq,
			ID:     e.ID,
			Type:   e.Type,
			Error:  e.Error,
			Digest: e.Digest,
			Action: json.RawMessage(e.Body),
		}
		if verify {
			ok := e.Verify() == nil
			te.Verified = &ok
			if !ok {
				result.Stats.Mismatch++
			}
		}
		result.Entries = append(result.Entries, te)

		result.Stats.Total++
		result.Stats.ByType[e.Type]++
		if e.Error {
			result.Stats.Errors++
		}
	}
	return result
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Journal: %s\n", result.Journal)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Entries ===")
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "  (no entries)")
	}
	for _, e := range result.Entries {
		formatTraceEntry(w, e, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total:  %d\n", result.Stats.Total)
	fmt.Fprintf(w, "  Errors: %d\n", result.Stats.Errors)
	types := make([]string, 0, len(result.Stats.ByType))
	for typ := range result.Stats.ByType {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		fmt.Fprintf(w, "  %s: %d\n", typ, result.Stats.ByType[typ])
	}
	if result.Stats.Mismatch > 0 {
		fmt.Fprintf(w, "  Digest mismatches: %d\n", result.Stats.Mismatch)
	}
}

// formatTraceEntry formats a single entry for text output.
func formatTraceEntry(w io.Writer, e TraceEntry, verbose bool) {
	line := fmt.Sprintf("  [%d] %s", e.Seq, e.Type)
	if e.Error {
		line += " (error)"
	}
	if e.Verified != nil {
		if *e.Verified {
			line += " " + markOK
		} else {
			line += " " + markFail + " digest mismatch"
		}
	}
	fmt.Fprintln(w, line)

	if !verbose {
		return
	}
	if v, err := ir.UnmarshalValue(e.Action); err == nil {
		if doc, ok := v.(ir.Object); ok {
			if payload, ok := doc["payload"]; ok {
				fmt.Fprintf(w, "       Payload: %s\n", formatValue(ir.ToAny(payload)))
			}
			if meta, ok := doc["meta"]; ok {
				fmt.Fprintf(w, "       Meta: %s\n", formatValue(ir.ToAny(meta)))
			}
		}
	}
	fmt.Fprintf(w, "       ID: %s\n", truncateID(e.ID))
}

// formatArgs formats a map for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]interface{}) string {
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
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		return formatArgs(val)
	case []interface{}:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	case nil:
		return "null"
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
