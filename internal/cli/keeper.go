package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/trickle/internal/engine"
	"github.com/roach88/trickle/internal/harness"
	"github.com/roach88/trickle/internal/store"
)

// KeeperOptions holds flags for the keeper command.
type KeeperOptions struct {
	*RootOptions
	Config   string
	Database string
	Scenario string
	Duration time.Duration
}

// KeeperResult summarizes a keeper session.
type KeeperResult struct {
	Scenario string `json:"scenario"`
	Interval string `json:"interval"`
	Cycles   int    `json:"cycles"`
	Executed int    `json:"executed"`
	Skipped  int    `json:"skipped"`
}

// RenderText implements TextRenderer.
func (r KeeperResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Keeper stopped after %d upkeep cycle(s) every %s\n", r.Cycles, r.Interval)
	fmt.Fprintf(w, "  executed: %d\n", r.Executed)
	fmt.Fprintf(w, "  skipped:  %d\n", r.Skipped)
}

// NewKeeperCommand creates the keeper command.
func NewKeeperCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeeperOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keeper",
		Short: "Run the upkeep loop on the wall clock",
		Long: `Run a keeper against a persisted order store. Every keeper_interval
from the configuration it calls checkUpkeep and, when orders are due,
performUpkeep.

The scenario supplies the simulated market (tokens, pools, balances) and
its register, delete, approve and check steps run first on the wall clock.
Advance steps are rejected. The keeper stops on interrupt or after
--duration.

Example:
  trickle keeper --config ./trickle.yaml --db ./trickle.db --scenario ./market.yaml --duration 5m`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeeper(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "deployment configuration (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario describing the market (required)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (default: until interrupted)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}

func runKeeper(opts *KeeperOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	cfg, err := loadConfig(formatter, opts.Config)
	if err != nil {
		return err
	}

	scenario, err := harness.LoadScenario(opts.Scenario)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidScenario, "failed to load scenario", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	// onReport runs inside Keeper.Run on this goroutine.
	result := KeeperResult{Scenario: scenario.Name, Interval: cfg.KeeperInterval.String()}
	onReport := func(r engine.Report) {
		result.Cycles++
		result.Executed += r.Executed()
		result.Skipped += len(r.Outcomes) - r.Executed()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	h, err := harness.Setup(ctx, scenario,
		harness.WithStore(st),
		harness.WithConfig(cfg),
		harness.WithClock(engine.SystemClock{}),
		harness.WithReportHandler(onReport),
	)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to set up market", err)
	}

	setup, err := h.Play(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidScenario, "scenario steps failed", err)
	}
	if !setup.Pass {
		return formatter.Fail(ExitFailure, ErrCodeInvalidScenario, "scenario expectations failed",
			errors.New(strings.Join(setup.Errors, "; ")))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	err = h.Keeper().Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "keeper failed", err)
	}
	return formatter.Success(result)
}
