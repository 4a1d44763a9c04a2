package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketScenario = `name: wall_clock_market
description: Alice sells WETH for DAI hourly on the wall clock.
start_time: 1700000000
accounts: [alice]
tokens:
  - {symbol: WETH, decimals: 18, supply: "1000e18"}
  - {symbol: DAI, decimals: 18, supply: "1000000e18"}
pools:
  - {token_a: WETH, token_b: DAI, amount_a: "100e18", amount_b: "200000e18"}
balances:
  - {account: alice, token: WETH, amount: "10e18"}
steps:
  - register: {owner: alice, sell: WETH, buy: DAI, amount: "1e18", interval: 3600}
  - approve: {owner: alice, token: WETH, amount: "10e18"}
`

const fastKeeperConfig = `minimum_upkeep_interval: 60
engine_address: "0x00000000000000000000000000000000000000aa"
keeper_interval: 10ms
`

func TestKeeper_ExecutesDueOrders(t *testing.T) {
	cfg := writeFile(t, "trickle.yaml", fastKeeperConfig)
	scenario := writeFile(t, "market.yaml", marketScenario)
	db := filepath.Join(t.TempDir(), "trickle.db")

	out, err := executeCommand(t, "keeper",
		"--config", cfg, "--db", db, "--scenario", scenario,
		"--duration", "300ms", "--format", "json")
	require.NoError(t, err)

	result := decodeData[KeeperResult](t, out)
	assert.Equal(t, "wall_clock_market", result.Scenario)
	assert.Equal(t, "10ms", result.Interval)
	assert.Equal(t, 1, result.Cycles)
	assert.Equal(t, 1, result.Executed)
	assert.Equal(t, 0, result.Skipped)

	out, err = executeCommand(t, "history", "--db", db, "--order", wethDaiOrder("alice"), "--format", "json")
	require.NoError(t, err)
	history := decodeData[HistoryResult](t, out)
	assert.Len(t, history.Executions, 1)
}

func TestKeeper_ConfigMinimumIntervalEnforced(t *testing.T) {
	cfg := writeFile(t, "trickle.yaml", `minimum_upkeep_interval: 7200
engine_address: "0x00000000000000000000000000000000000000aa"
keeper_interval: 10ms
`)
	scenario := writeFile(t, "market.yaml", marketScenario)

	out, err := executeCommand(t, "keeper",
		"--config", cfg, "--db", filepath.Join(t.TempDir(), "trickle.db"),
		"--scenario", scenario, "--duration", "50ms", "--verbose")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "INTERVAL_TOO_SHORT")
}

func TestKeeper_RejectsAdvanceSteps(t *testing.T) {
	cfg := writeFile(t, "trickle.yaml", fastKeeperConfig)

	out, err := executeCommand(t, "keeper",
		"--config", cfg, "--db", filepath.Join(t.TempDir(), "trickle.db"),
		"--scenario", dcaScenario, "--duration", "50ms")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeInvalidScenario)
}
