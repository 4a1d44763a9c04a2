// Package exchange binds the engine to an external swap venue.
//
// An Adapter swaps an exact amount of one token for another in a single hop
// and delivers the proceeds to a recipient. A swap either fully succeeds or
// fails with nothing moved.
package exchange

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNoPool is returned when no pool exists for the requested pair.
	ErrNoPool = errors.New("no pool for pair")

	// ErrInsufficientLiquidity is returned when a pool cannot quote the swap.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrInsufficientOutput is returned when a swap would buy nothing.
	ErrInsufficientOutput = errors.New("insufficient output amount")
)

// SwapRequest describes one exact-input swap. The adapter pulls Amount of
// SellToken from Payer (which must have approved Adapter.Address) and sends
// the bought BuyToken to Recipient.
type SwapRequest struct {
	SellToken common.Address
	BuyToken  common.Address
	Amount    *big.Int
	Payer     common.Address
	Recipient common.Address
}

// Adapter is the swap capability consumed by the engine.
type Adapter interface {
	// Address is the account that must be approved to pull sell tokens.
	Address() common.Address

	// RouterAddress identifies the underlying exchange router.
	RouterAddress() common.Address

	// SwapExactTokensForTokens executes req and returns the bought amount.
	SwapExactTokensForTokens(ctx context.Context, req SwapRequest) (*big.Int, error)
}
