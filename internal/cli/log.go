package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaban-mb/wikilift/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Database string
	Limit    int
	Token    string
}

// LogEntry is one journaled run in the log command's output.
type LogEntry struct {
	Token       string       `json:"token"`
	Source      string       `json:"source"`
	Entity      string       `json:"entity,omitempty"`
	Resolved    bool         `json:"resolved"`
	Handled     int          `json:"handled"`
	Total       int          `json:"total"`
	Submitted   bool         `json:"submitted"`
	FailureCode string       `json:"failure_code,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Items       []ItemReport `json:"items,omitempty"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List recorded conversion runs",
		Long: `List runs recorded in the audit store, newest first.

With --token, shows the single run including per-item dispositions.

Examples:
  wikilift log --db ./wikilift.db
  wikilift log --db ./wikilift.db --limit 5
  wikilift log --db ./wikilift.db --token 0190b7c2-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the audit store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 = all)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "show one run by token")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open audit store", err)
	}
	defer st.Close()

	ctx := context.Background()

	if opts.Token != "" {
		rec, err := st.GetConversion(ctx, opts.Token)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load run", err)
		}
		entry := logEntry(rec)
		if opts.Format == "json" {
			return formatter.Success(entry)
		}
		return formatter.Success(renderLogEntries([]LogEntry{entry}))
	}

	records, err := st.ListConversions(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	entries := make([]LogEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, logEntry(rec))
	}
	if opts.Format == "json" {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		return formatter.Success("no recorded runs")
	}
	return formatter.Success(renderLogEntries(entries))
}

func logEntry(rec store.ConversionRecord) LogEntry {
	entry := LogEntry{
		Token:       rec.Token,
		Source:      rec.Source,
		Entity:      rec.Entity,
		Resolved:    rec.Resolved,
		Handled:     rec.HandledCount,
		Total:       rec.ItemCount,
		Submitted:   rec.Submitted,
		FailureCode: rec.FailureCode,
		CreatedAt:   rec.CreatedAt,
	}
	for _, item := range rec.Items {
		entry.Items = append(entry.Items, ItemReport{
			Position:       item.Position,
			Classification: item.Classification,
			Outcome:        item.Outcome,
			State:          item.FinalState,
		})
	}
	return entry
}

func renderLogEntries(entries []LogEntry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		status := "not submitted"
		if e.Submitted {
			status = "submitted"
		}
		outcome := e.Entity
		if !e.Resolved {
			outcome = "unresolved (" + e.FailureCode + ")"
		}
		fmt.Fprintf(&b, "%s  %s  %s  %d/%d  %s  %s",
			e.CreatedAt.Format(time.RFC3339), e.Token, outcome,
			e.Handled, e.Total, status, e.Source)
		for _, item := range e.Items {
			fmt.Fprintf(&b, "\n  [%d] %s: %s (%s)", item.Position, item.Classification, item.Outcome, item.State)
		}
	}
	return b.String()
}
