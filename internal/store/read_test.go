package store

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trickle/internal/ir"
)

func TestTokenPair_Unknown(t *testing.T) {
	s := createTestStore(t)
	pair, found, err := s.TokenPair(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, pair.IsZero())
}

func TestOrder_Unknown(t *testing.T) {
	s := createTestStore(t)
	_, found, err := s.Order(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListings_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	pairs, err := s.TokenPairsByOwner(ctx, alice)
	require.NoError(t, err)
	assert.NotNil(t, pairs)
	assert.Empty(t, pairs)

	hashes, err := s.OrderHashes(ctx, alice, ir.TokenPairHash(weth, dai))
	require.NoError(t, err)
	assert.NotNil(t, hashes)

	active, err := s.ActiveOrders(ctx)
	require.NoError(t, err)
	assert.NotNil(t, active)
	assert.Empty(t, active)

	execs, err := s.Executions(ctx, common.Hash{})
	require.NoError(t, err)
	assert.NotNil(t, execs)
}

func TestActiveOrders_InsertionOrderAcrossOwners(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	pair1, order1 := createTestOrder(bob, dai, usdc, 1)
	pair2, order2 := createTestOrder(alice, weth, dai, 2)
	pair3, order3 := createTestOrder(alice, dai, usdc, 3)
	for _, p := range []struct {
		pair  ir.TokenPair
		order ir.Order
	}{{pair1, order1}, {pair2, order2}, {pair3, order3}} {
		require.NoError(t, s.PutOrder(ctx, p.pair, p.order))
	}

	active, err := s.ActiveOrders(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, order1.Hash, active[0].Hash)
	assert.Equal(t, order2.Hash, active[1].Hash)
	assert.Equal(t, order3.Hash, active[2].Hash)

	// Two owners can share a pair
	hashes, err := s.OrderHashes(ctx, bob, pair3.Hash)
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{order1.Hash}, hashes)
}

func TestOrderHashes_OtherOwnerPairIsEmpty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	pair, order := createTestOrder(alice, weth, dai, 1)
	require.NoError(t, s.PutOrder(ctx, pair, order))

	hashes, err := s.OrderHashes(ctx, bob, pair.Hash)
	require.NoError(t, err)
	assert.Empty(t, hashes)
}
