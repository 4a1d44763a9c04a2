// Package token provides the fungible-token transfer capability used by the
// engine to pull sell tokens from order owners.
//
// Semantics follow ERC-20: TransferFrom moves tokens on behalf of an owner
// up to a pre-approved allowance, and fails as a unit (nothing moves) when
// either the allowance or the balance is insufficient.
package token

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance is returned when the source account holds
	// fewer tokens than requested.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance is returned when the spender has not been
	// approved for at least the requested amount.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrUnknownToken is returned for operations on a token that was never
	// deployed to the ledger.
	ErrUnknownToken = errors.New("unknown token")

	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// MaxUint256 is the largest representable token amount. An allowance of
// MaxUint256 is treated as infinite and never decremented.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Ledger is the token-transfer capability.
type Ledger interface {
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error
	Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *big.Int) error
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0 && amount.Cmp(MaxUint256) <= 0
}
