package store

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/trickle/internal/ir"
)

var (
	weth  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	dai   = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	usdc  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	alice = common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000B0B")
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOrder builds a pair and an order for owner with minimal fields.
func createTestOrder(owner, sell, buy common.Address, amount int64) (ir.TokenPair, ir.Order) {
	pair := ir.NewTokenPair(sell, buy)
	return pair, ir.Order{
		Hash:           ir.OrderHash(owner, pair.Hash),
		TokenPairHash:  pair.Hash,
		Owner:          owner,
		SellAmount:     big.NewInt(amount),
		Interval:       3600,
		StartTimestamp: 1_700_000_000,
	}
}
