package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trickle/internal/ir"
	"github.com/roach88/trickle/internal/memstore"
	"github.com/roach88/trickle/internal/testutil"
)

var errDiskFull = errors.New("disk full")

// brokenStore is a memstore whose order writes can be made to fail.
type brokenStore struct {
	*memstore.Store
	advanceErr error
	recordErr  error
}

func (s *brokenStore) SetLastExecution(ctx context.Context, orderHash common.Hash, timestamp int64) error {
	if s.advanceErr != nil {
		return s.advanceErr
	}
	return s.Store.SetLastExecution(ctx, orderHash, timestamp)
}

func (s *brokenStore) RecordExecution(ctx context.Context, exec ir.Execution) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	return s.Store.RecordExecution(ctx, exec)
}

func TestPerformUpkeep_HistoryWriteFailureDoesNotRepeatSwap(t *testing.T) {
	s := &brokenStore{Store: memstore.New(), recordErr: errDiskFull}
	f := newFixture(t, s)
	f.fund(t, weth, alice, testutil.Ether(10))
	f.approve(t, weth, alice, testutil.Ether(10))
	orderHash, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
	require.NoError(t, err)

	needed, data, err := f.engine.CheckUpkeep(f.ctx, nil)
	require.NoError(t, err)
	require.True(t, needed)

	report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
	require.ErrorIs(t, err, errDiskFull)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, OutcomeExecuted, report.Outcomes[0].Status)
	assert.Equal(t, oneEtherOut, report.Outcomes[0].Bought.String())
	assert.Equal(t, 1, report.Executed())

	// Same timestamp: the order already ran this interval.
	for cycle := 1; cycle < 3; cycle++ {
		needed, _, err := f.engine.CheckUpkeep(f.ctx, nil)
		require.NoError(t, err)
		assert.False(t, needed, "cycle %d", cycle)

		report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
		require.NoError(t, err)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, OutcomeSkippedStale, report.Outcomes[0].Status, "cycle %d", cycle)
	}

	assert.Equal(t, testutil.Ether(9).String(), f.balance(t, weth, alice).String())
	assert.Equal(t, oneEtherOut, f.balance(t, dai, alice).String())
	assert.Equal(t, startTime, f.order(t, ir.TokenPairHash(weth, dai), orderHash).LastExecution)

	execs, err := f.engine.GetExecutions(f.ctx, orderHash)
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestPerformUpkeep_AdvanceFailureRefunds(t *testing.T) {
	s := &brokenStore{Store: memstore.New(), advanceErr: errDiskFull}
	f := newFixture(t, s)
	f.fund(t, weth, alice, testutil.Ether(10))
	f.approve(t, weth, alice, testutil.Ether(3))
	orderHash, err := f.engine.SetRecurringOrder(f.ctx, alice, weth, dai, testutil.Ether(1), 10_000)
	require.NoError(t, err)

	_, data, err := f.engine.CheckUpkeep(f.ctx, nil)
	require.NoError(t, err)

	report, err := f.engine.PerformUpkeepWithReport(f.ctx, data)
	require.ErrorIs(t, err, errDiskFull)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, OutcomeStorageFailed, report.Outcomes[0].Status)
	assert.Equal(t, 0, report.Executed())

	assert.Equal(t, testutil.Ether(10).String(), f.balance(t, weth, alice).String())
	assert.Equal(t, 0, f.balance(t, weth, engineAddr).Sign())
	assert.Equal(t, 0, f.balance(t, dai, alice).Sign())
	allowance, err := f.ledger.Allowance(f.ctx, weth, alice, engineAddr)
	require.NoError(t, err)
	assert.Equal(t, testutil.Ether(3).String(), allowance.String())
	assert.Equal(t, int64(0), f.order(t, ir.TokenPairHash(weth, dai), orderHash).LastExecution)

	// Storage recovers: the order runs on the next cycle.
	s.advanceErr = nil
	needed, data, err := f.engine.CheckUpkeep(f.ctx, nil)
	require.NoError(t, err)
	require.True(t, needed)
	report, err = f.engine.PerformUpkeepWithReport(f.ctx, data)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, report.Outcomes[0].Status)
	assert.Equal(t, testutil.Ether(9).String(), f.balance(t, weth, alice).String())
}
