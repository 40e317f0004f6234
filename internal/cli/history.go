package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/queryloom/internal/convo"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB    string
	Clear bool
}

// HistoryEntry is one conversation turn in the JSON payload.
type HistoryEntry struct {
	Query      string    `json:"query"`
	SQL        string    `json:"sql"`
	TablesUsed []string  `json:"tables_used,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Show stored turns for a conversation",
		Long: `Show stored turns for a conversation, oldest first.

Reads the conversation-memory database written by the pipeline. With
--clear, deletes the conversation's turns instead of listing them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "conversation database path (required)")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "delete the conversation's turns")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, conversationID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := convo.Open(opts.DB, 0)
	if err != nil {
		storeErr := &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("opening %s", opts.DB), Err: err}
		return reportExitError(formatter, ErrCodeGeneric, storeErr)
	}
	defer store.Close()

	if opts.Clear {
		if err := store.Clear(cmd.Context(), conversationID); err != nil {
			clearErr := &ExitError{Code: ExitCommandError, Message: "clearing conversation", Err: err}
			return reportExitError(formatter, ErrCodeGeneric, clearErr)
		}
		return formatter.Success(fmt.Sprintf("Cleared conversation %s.", conversationID),
			map[string]string{"cleared": conversationID})
	}

	turns, err := store.History(cmd.Context(), conversationID)
	if err != nil {
		histErr := &ExitError{Code: ExitCommandError, Message: "reading history", Err: err}
		return reportExitError(formatter, ErrCodeGeneric, histErr)
	}

	entries := make([]HistoryEntry, len(turns))
	for i, turn := range turns {
		entries[i] = HistoryEntry{
			Query:      turn.Query,
			SQL:        turn.SQL,
			TablesUsed: turn.TablesUsed,
			CreatedAt:  turn.CreatedAt,
		}
	}
	return formatter.Success(renderHistory(conversationID, entries), entries)
}

func renderHistory(conversationID string, entries []HistoryEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No turns stored for conversation %s.", conversationID)
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s\n   SQL: %s", i+1, e.Query, e.SQL)
	}
	return b.String()
}
