package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/trickle/internal/harness"
	"github.com/roach88/trickle/internal/ir"
	"github.com/roach88/trickle/internal/store"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Database string
	Config   string
}

// SimulateResult is the outcome of one scenario run.
type SimulateResult struct {
	Scenario   string         `json:"scenario"`
	Pass       bool           `json:"pass"`
	Errors     []string       `json:"errors,omitempty"`
	Trace      []any          `json:"trace"`
	FinalState map[string]any `json:"final_state"`
}

// RenderText prints one line per step, then the final state and any
// failures.
func (r SimulateResult) RenderText(w io.Writer) {
	status := "PASS"
	if !r.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s %s\n", status, r.Scenario)
	for i, event := range r.Trace {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, canonicalLine(event))
	}
	fmt.Fprintf(w, "  final: %s\n", canonicalLine(r.FinalState))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
}

func canonicalLine(v any) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a recurring-order scenario",
		Long: `Run a scenario against a simulated token ledger and exchange.

The scenario declares tokens, pools, balances and a sequence of steps
(register, delete, approve, advance, check, upkeep). Each step is
recorded in the trace. With --db the orders are persisted to SQLite and
can be inspected afterwards with check, orders and history. With --config
the engine's minimum interval, address and router come from a deployment
configuration instead of the scenario.

Exit codes:
  0 - Scenario passed
  1 - A step expectation or assertion failed
  2 - Command error (scenario not found, invalid scenario, etc.)

Examples:
  trickle simulate ./scenarios/dca.yaml
  trickle simulate ./scenarios/dca.yaml --db ./trickle.db --format json
  trickle simulate ./scenarios/dca.yaml --config ./trickle.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "persist orders to this SQLite database")
	cmd.Flags().StringVar(&opts.Config, "config", "", "deployment configuration (.yaml or .cue) for the engine")

	return cmd
}

func runSimulate(ctx context.Context, opts *SimulateOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidScenario, "failed to load scenario", err)
	}

	var runOpts []harness.Option
	if opts.Config != "" {
		cfg, err := loadConfig(formatter, opts.Config)
		if err != nil {
			return err
		}
		runOpts = append(runOpts, harness.WithConfig(cfg))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer st.Close()
		runOpts = append(runOpts, harness.WithStore(st))
	}

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "scenario execution failed", err)
	}

	out := SimulateResult{
		Scenario:   scenario.Name,
		Pass:       result.Pass,
		Errors:     result.Errors,
		Trace:      result.Trace,
		FinalState: result.State,
	}
	if err := formatter.Success(out); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}
