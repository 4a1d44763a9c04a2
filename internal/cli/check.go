package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/roach88/trickle/internal/engine"
	"github.com/roach88/trickle/internal/exchange"
	"github.com/roach88/trickle/internal/ir"
	"github.com/roach88/trickle/internal/token"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Database string
	Config   string
	At       int64
}

// DueEntry is one order that would be executed.
type DueEntry struct {
	OrderHash     string `json:"order_hash"`
	TokenPairHash string `json:"token_pair_hash"`
	Owner         string `json:"owner"`
	SellToken     string `json:"sell_token"`
	BuyToken      string `json:"buy_token"`
	SellAmount    string `json:"sell_amount"`
}

// CheckResult is the read-only upkeep scan.
type CheckResult struct {
	At           int64      `json:"at"`
	UpkeepNeeded bool       `json:"upkeep_needed"`
	PerformData  string     `json:"perform_data"`
	Due          []DueEntry `json:"due"`
}

// RenderText implements TextRenderer.
func (r CheckResult) RenderText(w io.Writer) {
	if !r.UpkeepNeeded {
		fmt.Fprintf(w, "No orders due at %d.\n", r.At)
		return
	}
	fmt.Fprintf(w, "%d order(s) due at %d:\n", len(r.Due), r.At)
	for _, d := range r.Due {
		fmt.Fprintf(w, "  %s owner=%s sell=%s %s buy=%s\n", d.OrderHash, d.Owner, d.SellAmount, d.SellToken, d.BuyToken)
	}
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "List orders due for upkeep",
		Long: `Run checkUpkeep against a persisted order store and list the orders
that upkeep would execute, along with the encoded performData a keeper
would submit. Nothing is modified.

Examples:
  trickle check --config ./trickle.yaml --db ./trickle.db
  trickle check --config ./trickle.yaml --db ./trickle.db --at 1700010000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "deployment configuration (required)")
	cmd.Flags().Int64Var(&opts.At, "at", 0, "unix time to evaluate at (default now)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	cfg, err := loadConfig(formatter, opts.Config)
	if err != nil {
		return err
	}

	st, err := openExistingStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	at := opts.At
	if at == 0 {
		at = time.Now().Unix()
	}

	// CheckUpkeep never reaches the ledger or the exchange, so an empty
	// market is enough.
	ledger := token.NewMemoryLedger()
	eng, err := engine.New(cfg.EngineConfig(), st, ledger,
		exchange.NewPoolAdapter(cfg.RouterAddress, cfg.RouterAddress, ledger),
		engine.WithClock(engine.ClockFunc(func() int64 { return at })),
	)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, "invalid configuration", err)
	}

	needed, data, err := eng.CheckUpkeep(cmd.Context(), nil)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to scan orders", err)
	}
	due, err := ir.DecodePerformData(data)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to decode performData", err)
	}

	result := CheckResult{
		At:           at,
		UpkeepNeeded: needed,
		PerformData:  hexutil.Encode(data),
		Due:          make([]DueEntry, len(due)),
	}
	for i, d := range due {
		result.Due[i] = DueEntry{
			OrderHash:     d.OrderHash.Hex(),
			TokenPairHash: d.TokenPairHash.Hex(),
			Owner:         d.Owner.Hex(),
			SellToken:     d.SellToken.Hex(),
			BuyToken:      d.BuyToken.Hex(),
			SellAmount:    d.SellAmount.String(),
		}
	}
	return formatter.Success(result)
}
