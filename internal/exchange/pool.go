package exchange

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/trickle/internal/token"
)

// Compile-time check that PoolAdapter implements Adapter
var _ Adapter = (*PoolAdapter)(nil)

// Fee is charged on the input amount in parts per thousand (0.3%).
const (
	feeNumerator   = 997
	feeDenominator = 1000
)

type poolKey struct {
	token0 common.Address
	token1 common.Address
}

func sortTokens(a, b common.Address) poolKey {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return poolKey{a, b}
	}
	return poolKey{b, a}
}

// PoolAddress derives the deterministic account that holds a pool's
// reserves from its sorted token pair.
func PoolAddress(router, tokenA, tokenB common.Address) common.Address {
	k := sortTokens(tokenA, tokenB)
	h := crypto.Keccak256(router.Bytes(), k.token0.Bytes(), k.token1.Bytes())
	return common.BytesToAddress(h[12:])
}

// PoolAdapter swaps against constant-product (x*y=k) pools whose reserves
// are balances held in a token ledger, the way a Uniswap-V2 style router
// does. Each swap is single-hop.
type PoolAdapter struct {
	mu      sync.Mutex
	address common.Address
	router  common.Address
	ledger  token.Ledger
	pools   map[poolKey]common.Address
}

// NewPoolAdapter creates an adapter at address routing through router.
func NewPoolAdapter(address, router common.Address, ledger token.Ledger) *PoolAdapter {
	return &PoolAdapter{
		address: address,
		router:  router,
		ledger:  ledger,
		pools:   make(map[poolKey]common.Address),
	}
}

// Address implements Adapter.
func (a *PoolAdapter) Address() common.Address {
	return a.address
}

// RouterAddress implements Adapter.
func (a *PoolAdapter) RouterAddress() common.Address {
	return a.router
}

// AddLiquidity creates the pool for (tokenA, tokenB) if needed and moves
// amountA and amountB from provider into it.
func (a *PoolAdapter) AddLiquidity(ctx context.Context, provider, tokenA, tokenB common.Address, amountA, amountB *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pool := a.poolLocked(tokenA, tokenB)
	if err := a.ledger.Transfer(ctx, tokenA, provider, pool, amountA); err != nil {
		return fmt.Errorf("add liquidity: %w", err)
	}
	if err := a.ledger.Transfer(ctx, tokenB, provider, pool, amountB); err != nil {
		// Undo the first leg so the provider is left untouched
		if rerr := a.ledger.Transfer(ctx, tokenA, pool, provider, amountA); rerr != nil {
			slog.Error("add liquidity rollback failed", "token", tokenA.Hex(), "error", rerr)
		}
		return fmt.Errorf("add liquidity: %w", err)
	}
	return nil
}

// Reserves returns the pool's reserves of sellToken and buyToken.
func (a *PoolAdapter) Reserves(ctx context.Context, sellToken, buyToken common.Address) (*big.Int, *big.Int, error) {
	a.mu.Lock()
	pool, ok := a.pools[sortTokens(sellToken, buyToken)]
	a.mu.Unlock()
	if !ok {
		return nil, nil, ErrNoPool
	}
	return a.reserves(ctx, pool, sellToken, buyToken)
}

// Quote returns the amount of buyToken that amountIn of sellToken buys now.
func (a *PoolAdapter) Quote(ctx context.Context, sellToken, buyToken common.Address, amountIn *big.Int) (*big.Int, error) {
	reserveIn, reserveOut, err := a.Reserves(ctx, sellToken, buyToken)
	if err != nil {
		return nil, err
	}
	return GetAmountOut(amountIn, reserveIn, reserveOut)
}

// SwapExactTokensForTokens implements Adapter.
func (a *PoolAdapter) SwapExactTokensForTokens(ctx context.Context, req SwapRequest) (*big.Int, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("swap: %w", token.ErrInvalidAmount)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pool, ok := a.pools[sortTokens(req.SellToken, req.BuyToken)]
	if !ok || req.SellToken == req.BuyToken {
		return nil, fmt.Errorf("swap %s -> %s: %w", req.SellToken.Hex(), req.BuyToken.Hex(), ErrNoPool)
	}

	reserveIn, reserveOut, err := a.reserves(ctx, pool, req.SellToken, req.BuyToken)
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	amountOut, err := GetAmountOut(req.Amount, reserveIn, reserveOut)
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}

	if err := a.ledger.TransferFrom(ctx, req.SellToken, a.address, req.Payer, pool, req.Amount); err != nil {
		return nil, fmt.Errorf("swap: pull input: %w", err)
	}
	if err := a.ledger.Transfer(ctx, req.BuyToken, pool, req.Recipient, amountOut); err != nil {
		// Return the input so the swap fails as a unit
		if rerr := a.ledger.Transfer(ctx, req.SellToken, pool, req.Payer, req.Amount); rerr != nil {
			slog.Error("swap rollback failed", "token", req.SellToken.Hex(), "error", rerr)
		}
		return nil, fmt.Errorf("swap: pay output: %w", err)
	}

	slog.Debug("swap executed",
		"sell_token", req.SellToken.Hex(),
		"buy_token", req.BuyToken.Hex(),
		"amount_in", req.Amount.String(),
		"amount_out", amountOut.String(),
		"recipient", req.Recipient.Hex(),
	)
	return amountOut, nil
}

// GetAmountOut applies the constant-product formula with the 0.3% input fee:
//
//	out = in*997*reserveOut / (reserveIn*1000 + in*997)
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInsufficientOutput
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(feeNumerator))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator))
	denominator.Add(denominator, inWithFee)

	out := numerator.Div(numerator, denominator)
	if out.Sign() == 0 {
		return nil, ErrInsufficientOutput
	}
	return out, nil
}

func (a *PoolAdapter) poolLocked(tokenA, tokenB common.Address) common.Address {
	k := sortTokens(tokenA, tokenB)
	pool, ok := a.pools[k]
	if !ok {
		pool = PoolAddress(a.router, tokenA, tokenB)
		a.pools[k] = pool
	}
	return pool
}

func (a *PoolAdapter) reserves(ctx context.Context, pool, sellToken, buyToken common.Address) (*big.Int, *big.Int, error) {
	reserveIn, err := a.ledger.BalanceOf(ctx, sellToken, pool)
	if err != nil {
		return nil, nil, err
	}
	reserveOut, err := a.ledger.BalanceOf(ctx, buyToken, pool)
	if err != nil {
		return nil, nil, err
	}
	return reserveIn, reserveOut, nil
}
