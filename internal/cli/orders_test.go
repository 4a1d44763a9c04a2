package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trickle/internal/ir"
	"github.com/roach88/trickle/internal/testutil"
)

func TestOrders_ListsRemainingOrder(t *testing.T) {
	db := simulatedDB(t)
	alice := testutil.Addr("alice")

	out, err := executeCommand(t, "orders", "--db", db, "--owner", alice.Hex(), "--format", "json")
	require.NoError(t, err)

	result := decodeData[OrdersResult](t, out)
	assert.Equal(t, alice.Hex(), result.Owner)
	require.Len(t, result.Orders, 1)

	pairHash := ir.TokenPairHash(testutil.Addr("WETH"), testutil.Addr("DAI"))
	order := result.Orders[0]
	assert.Equal(t, ir.OrderHash(alice, pairHash).Hex(), order.OrderHash)
	assert.Equal(t, pairHash.Hex(), order.TokenPairHash)
	assert.Equal(t, "1000000000000000000", order.SellAmount)
	assert.Equal(t, int64(10000), order.Interval)
	assert.Equal(t, int64(1700010000), order.LastExecution)
	assert.Equal(t, int64(1700020000), order.NextDue)
}

func TestOrders_DeletedOwnerHasNone(t *testing.T) {
	db := simulatedDB(t)
	bob := testutil.Addr("bob")

	out, err := executeCommand(t, "orders", "--db", db, "--owner", bob.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "No orders for "+bob.Hex())
}

func TestOrders_InvalidOwner(t *testing.T) {
	db := simulatedDB(t)

	out, err := executeCommand(t, "orders", "--db", db, "--owner", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeInvalidArgument)
}
