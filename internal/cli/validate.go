package cli

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/trickle/internal/config"
)

// ValidationResult summarizes a valid configuration.
type ValidationResult struct {
	Valid                 bool   `json:"valid"`
	MinimumUpkeepInterval int64  `json:"minimum_upkeep_interval"`
	EngineAddress         string `json:"engine_address"`
	RouterAddress         string `json:"router_address,omitempty"`
	KeeperInterval        string `json:"keeper_interval"`
}

// RenderText implements TextRenderer.
func (r ValidationResult) RenderText(w io.Writer) {
	fmt.Fprintln(w, "✓ Configuration is valid")
	fmt.Fprintf(w, "  minimum upkeep interval: %ds\n", r.MinimumUpkeepInterval)
	fmt.Fprintf(w, "  engine address:          %s\n", r.EngineAddress)
	if r.RouterAddress != "" {
		fmt.Fprintf(w, "  router address:          %s\n", r.RouterAddress)
	}
	fmt.Fprintf(w, "  keeper interval:         %s\n", r.KeeperInterval)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a deployment configuration",
		Long: `Load and validate an engine configuration file (.yaml, .yml or .cue).

CUE files are checked against the built-in schema, YAML files are decoded
strictly. Both are then range-checked.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	cfg, err := config.Load(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, "invalid configuration", err)
	}

	result := ValidationResult{
		Valid:                 true,
		MinimumUpkeepInterval: cfg.MinimumUpkeepInterval,
		EngineAddress:         cfg.EngineAddress.Hex(),
		KeeperInterval:        cfg.KeeperInterval.String(),
	}
	if cfg.RouterAddress != (common.Address{}) {
		result.RouterAddress = cfg.RouterAddress.Hex()
	}
	return formatter.Success(result)
}
