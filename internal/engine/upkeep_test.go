package engine

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trickle/internal/ir"
	"github.com/roach88/trickle/internal/testutil"
	"github.com/roach88/trickle/internal/token"
)

// oneEtherOut is the DAI bought by selling 1 WETH into a fresh
// 100 WETH / 200,000 DAI pool.
const oneEtherOut = "1974316068794122597700"

func TestCheckUpkeep_EmptyStore(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		needed, data, err := f.engine.CheckUpkeep(f.ctx, []byte("ignored"))
		require.NoError(t, err)
		assert.False(t, needed)
		assert.NotNil(t, data)
		assert.Empty(t, data)
	})
}

func TestCheckUpkeep_FutureStartNeverDue(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		_, err := f.engine.SetRecurringOrderWithStartTimestamp(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000, startTime+500)
		require.NoError(t, err)

		needed, data, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		assert.False(t, needed)
		assert.Empty(t, data)

		f.clock.Advance(499)
		needed, _, err = f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		assert.False(t, needed, "one second before start")

		f.clock.Advance(1)
		needed, data, err = f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		assert.True(t, needed, "at start")

		due, err := ir.DecodePerformData(data)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, alice, due[0].Owner)
		assert.Equal(t, weth, due[0].SellToken)
		assert.Equal(t, dai, due[0].BuyToken)
		assert.Equal(t, 0, testutil.Ether(1).Cmp(due[0].SellAmount))
	})
}

func TestCheckUpkeep_DoesNotMutate(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		orderHash, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			needed, _, err := f.engine.CheckUpkeep(f.ctx, nil)
			require.NoError(t, err)
			assert.True(t, needed)
		}

		o := f.order(t, ir.TokenPairHash(weth, dai), orderHash)
		assert.Equal(t, int64(0), o.LastExecution)
		assert.Equal(t, 0, f.balance(t, weth, engineAddr).Sign())
	})
}

func TestPerformUpkeep_WithoutApprovalSkips(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.fund(t, weth, alice, testutil.Ether(10))
		orderHash, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		needed, data, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		require.True(t, needed)

		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err, "unfunded orders are not surfaced as errors")
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, OutcomeSkippedUnfunded, report.Outcomes[0].Status)
		assert.Equal(t, 0, report.Executed())

		assert.Equal(t, 0, testutil.Ether(10).Cmp(f.balance(t, weth, alice)))
		assert.Equal(t, 0, f.balance(t, dai, alice).Sign())
		assert.Equal(t, int64(0), f.order(t, ir.TokenPairHash(weth, dai), orderHash).LastExecution)

		// Still due next cycle
		needed, _, err = f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		assert.True(t, needed)

		execs, err := f.engine.GetExecutions(f.ctx, orderHash)
		require.NoError(t, err)
		assert.Empty(t, execs)
	})
}

func TestPerformUpkeep_InsufficientBalanceSkips(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.fund(t, weth, alice, big.NewInt(1))
		f.approve(t, weth, alice, testutil.Ether(1))
		_, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		_, data, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkippedUnfunded, report.Outcomes[0].Status)

		allowance, err := f.ledger.Allowance(f.ctx, weth, alice, engineAddr)
		require.NoError(t, err)
		assert.Equal(t, 0, testutil.Ether(1).Cmp(allowance), "allowance untouched")
	})
}

func TestPerformUpkeep_WithApprovalExecutes(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.fund(t, weth, alice, testutil.Ether(10))
		f.approve(t, weth, alice, testutil.Ether(1))
		orderHash, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		f.clock.Advance(5)
		needed, data, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		require.True(t, needed)

		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err)
		assert.Equal(t, "run-1", report.RunID)
		require.Len(t, report.Outcomes, 1)
		outcome := report.Outcomes[0]
		assert.Equal(t, OutcomeExecuted, outcome.Status)
		assert.Equal(t, oneEtherOut, outcome.Bought.String())

		assert.Equal(t, 0, testutil.Ether(9).Cmp(f.balance(t, weth, alice)))
		assert.Equal(t, oneEtherOut, f.balance(t, dai, alice).String())
		assert.Equal(t, 0, f.balance(t, weth, engineAddr).Sign(), "engine keeps nothing")

		exAllowance, err := f.ledger.Allowance(f.ctx, weth, engineAddr, adapterAddr)
		require.NoError(t, err)
		assert.Equal(t, 0, exAllowance.Sign())

		pairHash := ir.TokenPairHash(weth, dai)
		assert.Equal(t, startTime+5, f.order(t, pairHash, orderHash).LastExecution)

		execs, err := f.engine.GetExecutions(f.ctx, orderHash)
		require.NoError(t, err)
		require.Len(t, execs, 1)
		assert.Equal(t, "run-1", execs[0].RunID)
		assert.Equal(t, startTime+5, execs[0].Timestamp)
		assert.Equal(t, 0, testutil.Ether(1).Cmp(execs[0].SoldAmount))
		assert.Equal(t, oneEtherOut, execs[0].BoughtAmount.String())
	})
}

func TestPerformUpkeep_DueAgainAfterInterval(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.fund(t, weth, alice, testutil.Ether(10))
		f.approve(t, weth, alice, token.MaxUint256)
		_, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		_, data, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		require.NoError(t, f.engine.PerformUpkeep(f.ctx, data))

		needed, _, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		assert.False(t, needed, "just executed")

		f.clock.Advance(9_999)
		needed, _, err = f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		assert.False(t, needed, "one second early")

		f.clock.Advance(1)
		needed, data, err = f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		assert.True(t, needed)

		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err)
		assert.Equal(t, "1935660920217381489358", report.Outcomes[0].Bought.String())
		assert.Equal(t, 0, testutil.Ether(8).Cmp(f.balance(t, weth, alice)))
	})
}

func TestPerformUpkeep_BatchIsolation(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		// Bob registers first but never approves
		f.fund(t, weth, bob, testutil.Ether(10))
		f.fund(t, weth, alice, testutil.Ether(10))
		f.approve(t, weth, alice, testutil.Ether(1))

		bobOrder, err := f.engine.SetRecurringOrder(f.ctx, bob, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)
		aliceOrder, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		_, data, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)

		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err)
		require.Len(t, report.Outcomes, 2)
		assert.Equal(t, bobOrder, report.Outcomes[0].OrderHash)
		assert.Equal(t, OutcomeSkippedUnfunded, report.Outcomes[0].Status)
		assert.Equal(t, aliceOrder, report.Outcomes[1].OrderHash)
		assert.Equal(t, OutcomeExecuted, report.Outcomes[1].Status)

		assert.Equal(t, oneEtherOut, f.balance(t, dai, alice).String())
		assert.Equal(t, 0, f.balance(t, dai, bob).Sign())

		pairHash := ir.TokenPairHash(weth, dai)
		assert.Equal(t, int64(0), f.order(t, pairHash, bobOrder).LastExecution)
		assert.Equal(t, startTime, f.order(t, pairHash, aliceOrder).LastExecution)

		// Only bob is due now
		_, data, err = f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		due, err := ir.DecodePerformData(data)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, bobOrder, due[0].OrderHash)
	})
}

func TestPerformUpkeep_StalePayload(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.fund(t, weth, alice, testutil.Ether(10))
		f.approve(t, weth, alice, token.MaxUint256)
		pairHash := ir.TokenPairHash(weth, dai)
		orderHash, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		_, data, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)

		require.NoError(t, f.engine.DeleteRecurringOrder(f.ctx, alice, pairHash, orderHash))

		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, OutcomeSkippedStale, report.Outcomes[0].Status)
		assert.Equal(t, 0, testutil.Ether(10).Cmp(f.balance(t, weth, alice)))
	})
}

func TestPerformUpkeep_ReplayedPayloadExecutesOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.fund(t, weth, alice, testutil.Ether(10))
		f.approve(t, weth, alice, token.MaxUint256)
		orderHash, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		_, data, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)

		require.NoError(t, f.engine.PerformUpkeep(f.ctx, data))
		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkippedStale, report.Outcomes[0].Status)

		assert.Equal(t, 0, testutil.Ether(9).Cmp(f.balance(t, weth, alice)))
		execs, err := f.engine.GetExecutions(f.ctx, orderHash)
		require.NoError(t, err)
		assert.Len(t, execs, 1)
	})
}

func TestPerformUpkeep_ForgedOwnerIsStale(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.fund(t, weth, alice, testutil.Ether(10))
		f.approve(t, weth, alice, token.MaxUint256)
		pairHash := ir.TokenPairHash(weth, dai)
		orderHash, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		data, err := ir.EncodePerformData([]ir.DueOrder{{
			TokenPairHash: pairHash,
			OrderHash:     orderHash,
			Owner:         bob,
			SellToken:     weth,
			BuyToken:      dai,
			SellAmount:    testutil.Ether(1),
		}})
		require.NoError(t, err)

		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkippedStale, report.Outcomes[0].Status)
		assert.Equal(t, int64(0), f.order(t, pairHash, orderHash).LastExecution)
	})
}

func TestPerformUpkeep_UsesCurrentSellAmount(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		f.fund(t, weth, alice, testutil.Ether(10))
		f.approve(t, weth, alice, token.MaxUint256)
		_, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		_, data, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)

		_, err = f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(2), 10_000)
		require.NoError(t, err)

		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err)
		require.Equal(t, OutcomeExecuted, report.Outcomes[0].Status)
		assert.Equal(t, 0, testutil.Ether(2).Cmp(report.Outcomes[0].Sold))
		assert.Equal(t, "3910033923564131223405", report.Outcomes[0].Bought.String())
		assert.Equal(t, 0, testutil.Ether(8).Cmp(f.balance(t, weth, alice)))
	})
}

func TestPerformUpkeep_SwapFailureRefunds(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		// No WETH/USDC pool exists
		f.fund(t, weth, alice, testutil.Ether(10))
		f.approve(t, weth, alice, testutil.Ether(1))
		pairHash := ir.TokenPairHash(weth, usdc)
		orderHash, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, usdc, testutil.Ether(1), 10_000)
		require.NoError(t, err)

		_, data, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)

		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSwapFailed, report.Outcomes[0].Status)

		assert.Equal(t, 0, testutil.Ether(10).Cmp(f.balance(t, weth, alice)))
		assert.Equal(t, 0, f.balance(t, weth, engineAddr).Sign())
		assert.Equal(t, int64(0), f.order(t, pairHash, orderHash).LastExecution)

		allowance, err := f.ledger.Allowance(f.ctx, weth, alice, engineAddr)
		require.NoError(t, err)
		assert.Equal(t, 0, testutil.Ether(1).Cmp(allowance), "allowance restored")

		exAllowance, err := f.ledger.Allowance(f.ctx, weth, engineAddr, adapterAddr)
		require.NoError(t, err)
		assert.Equal(t, 0, exAllowance.Sign())
	})
}

func TestPerformUpkeep_MalformedPayload(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		err := f.engine.PerformUpkeep(f.ctx, []byte{0x01, 0x02, 0x03})
		assert.ErrorIs(t, err, ir.ErrMalformedPayload)
	})
}

func TestPerformUpkeep_EmptyPayload(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		report, err := f.engine.PerformUpkeepWithReport(f.ctx, []byte{})
		require.NoError(t, err)
		assert.Empty(t, report.Outcomes)
	})
}

func TestScanDue_IndexOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		var hashes []common.Hash
		for _, owner := range []common.Address{bob, alice} {
			h, err := f.engine.SetRecurringOrder(f.ctx, owner, dai, weth, testutil.Ether(100), 60)
			require.NoError(t, err)
			hashes = append(hashes, h)
		}

		due, err := ScanDue(f.ctx, f.store, f.clock.Now())
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, hashes[0], due[0].OrderHash)
		assert.Equal(t, hashes[1], due[1].OrderHash)
	})
}
