package cli

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/roach88/trickle/internal/config"
	"github.com/roach88/trickle/internal/store"
)

// loadConfig loads the deployment configuration at path.
func loadConfig(f *OutputFormatter, path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, f.Fail(ExitCommandError, ErrCodeInvalidConfig, "invalid configuration", err)
	}
	return cfg, nil
}

// openExistingStore opens a database that must already exist. Read-only
// commands never create one.
func openExistingStore(f *OutputFormatter, path string) (*store.Store, error) {
	if path == "" {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, "--db is required", nil)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}

func parseAddressFlag(f *OutputFormatter, name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, f.Fail(ExitCommandError, ErrCodeInvalidArgument,
			fmt.Sprintf("--%s: invalid address %q", name, value), nil)
	}
	return common.HexToAddress(value), nil
}

func parseHashFlag(f *OutputFormatter, name, value string) (common.Hash, error) {
	b, err := hexutil.Decode(value)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, f.Fail(ExitCommandError, ErrCodeInvalidArgument,
			fmt.Sprintf("--%s: invalid hash %q", name, value), nil)
	}
	return common.BytesToHash(b), nil
}
