package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Order    string
}

// ExecutionEntry is one recorded execution.
type ExecutionEntry struct {
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Sold      string `json:"sold"`
	Bought    string `json:"bought"`
}

// HistoryResult lists an order's executions, oldest first.
type HistoryResult struct {
	OrderHash  string           `json:"order_hash"`
	Executions []ExecutionEntry `json:"executions"`
}

// RenderText implements TextRenderer.
func (r HistoryResult) RenderText(w io.Writer) {
	if len(r.Executions) == 0 {
		fmt.Fprintf(w, "No executions for %s.\n", r.OrderHash)
		return
	}
	fmt.Fprintf(w, "%d execution(s) for %s:\n", len(r.Executions), r.OrderHash)
	for _, e := range r.Executions {
		fmt.Fprintf(w, "  %d run=%s sold=%s bought=%s\n", e.Timestamp, e.RunID, e.Sold, e.Bought)
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show an order's execution history",
		Long: `Show every successful execution of an order. History is kept after
the order itself is deleted.

Example:
  trickle history --db ./trickle.db --order 0x5f1c...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Order, "order", "", "order hash (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	orderHash, err := parseHashFlag(formatter, "order", opts.Order)
	if err != nil {
		return err
	}

	st, err := openExistingStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	execs, err := st.Executions(cmd.Context(), orderHash)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read history", err)
	}

	result := HistoryResult{OrderHash: orderHash.Hex(), Executions: make([]ExecutionEntry, len(execs))}
	for i, e := range execs {
		result.Executions[i] = ExecutionEntry{
			RunID:     e.RunID,
			Timestamp: e.Timestamp,
			Sold:      e.SoldAmount.String(),
			Bought:    e.BoughtAmount.String(),
		}
	}
	return formatter.Success(result)
}
