package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/trickle/internal/exchange"
	"github.com/roach88/trickle/internal/ir"
	"github.com/roach88/trickle/internal/token"
)

// DefaultMinimumUpkeepInterval is the minimum order interval, in seconds,
// used when a deployment does not configure one.
const DefaultMinimumUpkeepInterval = 10

// Config is fixed at construction and read-only thereafter.
type Config struct {
	// MinimumUpkeepInterval is the shortest interval, in seconds, an order
	// may be registered with.
	MinimumUpkeepInterval int64

	// Address is the engine's own account: the spender in transferFrom and
	// the recipient-of-record of pulled funds.
	Address common.Address
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MinimumUpkeepInterval <= 0 {
		return fmt.Errorf("minimum upkeep interval must be positive, got %d", c.MinimumUpkeepInterval)
	}
	if c.Address == (common.Address{}) {
		return fmt.Errorf("engine address is required")
	}
	return nil
}

// Engine registers recurring orders and executes them when due.
//
// Thread-safety model:
//   - SetRecurringOrder*, DeleteRecurringOrder, PerformUpkeep: exclusive
//   - CheckUpkeep and Get*: shared, each observes one consistent snapshot
type Engine struct {
	mu sync.RWMutex

	cfg      Config
	store    OrderStore
	ledger   token.Ledger
	exchange exchange.Adapter
	clock    Clock
	runIDs   RunIDGenerator
}

// Option allows configuration of optional engine collaborators.
type Option func(*Engine)

// WithClock replaces the wall clock. Used by tests and simulations.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRunIDGenerator replaces the UUIDv7 run id generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// New creates an Engine. The configuration is validated and copied.
func New(cfg Config, s OrderStore, ledger token.Ledger, ex exchange.Adapter, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if s == nil || ledger == nil || ex == nil {
		return nil, fmt.Errorf("invalid engine config: store, ledger and exchange are required")
	}

	e := &Engine{
		cfg:      cfg,
		store:    s,
		ledger:   ledger,
		exchange: ex,
		clock:    SystemClock{},
		runIDs:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// SetRecurringOrder registers (or overwrites) caller's order on the
// (sellToken, buyToken) pair, starting now. Returns the order hash.
func (e *Engine) SetRecurringOrder(
	ctx context.Context,
	caller, sellToken, buyToken common.Address,
	sellAmount *big.Int,
	interval int64,
) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setRecurringOrder(ctx, caller, sellToken, buyToken, sellAmount, interval, e.clock.Now())
}

// SetRecurringOrderWithStartTimestamp is SetRecurringOrder with an explicit
// start time. A start in the future delays the first execution.
func (e *Engine) SetRecurringOrderWithStartTimestamp(
	ctx context.Context,
	caller, sellToken, buyToken common.Address,
	sellAmount *big.Int,
	interval, startTimestamp int64,
) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setRecurringOrder(ctx, caller, sellToken, buyToken, sellAmount, interval, startTimestamp)
}

// setRecurringOrder validates and writes an order. Caller holds e.mu.
//
// Overwriting resets LastExecution, so a re-registered order is due again
// at its (new) start time.
func (e *Engine) setRecurringOrder(
	ctx context.Context,
	caller, sellToken, buyToken common.Address,
	sellAmount *big.Int,
	interval, startTimestamp int64,
) (common.Hash, error) {
	if sellAmount == nil || sellAmount.Sign() <= 0 {
		return common.Hash{}, NewInvalidAmountError("sell amount must be greater than zero")
	}
	if sellAmount.Cmp(token.MaxUint256) > 0 {
		return common.Hash{}, NewInvalidAmountError("sell amount exceeds uint256")
	}
	if interval < e.cfg.MinimumUpkeepInterval {
		return common.Hash{}, NewIntervalTooShortError(interval, e.cfg.MinimumUpkeepInterval)
	}

	pair := ir.NewTokenPair(sellToken, buyToken)
	order := ir.Order{
		Hash:           ir.OrderHash(caller, pair.Hash),
		TokenPairHash:  pair.Hash,
		Owner:          caller,
		SellAmount:     new(big.Int).Set(sellAmount),
		Interval:       interval,
		StartTimestamp: startTimestamp,
		LastExecution:  0,
	}

	if err := e.store.PutOrder(ctx, pair, order); err != nil {
		return common.Hash{}, fmt.Errorf("set recurring order: %w", err)
	}

	slog.Info("recurring order set",
		"order", order.Hash.Hex(),
		"owner", caller.Hex(),
		"sell_token", sellToken.Hex(),
		"buy_token", buyToken.Hex(),
		"sell_amount", sellAmount.String(),
		"interval", interval,
		"start", startTimestamp,
	)
	return order.Hash, nil
}

// DeleteRecurringOrder removes caller's order. Fails with NotFound if the
// order does not exist, is on a different pair, or belongs to someone else.
func (e *Engine) DeleteRecurringOrder(ctx context.Context, caller common.Address, tokenPairHash, orderHash common.Hash) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, found, err := e.store.Order(ctx, orderHash)
	if err != nil {
		return fmt.Errorf("delete recurring order: %w", err)
	}
	if !found || order.Owner != caller || order.TokenPairHash != tokenPairHash {
		return NewNotFoundError(orderHash)
	}

	if err := e.store.DeleteOrder(ctx, orderHash); err != nil {
		return fmt.Errorf("delete recurring order: %w", err)
	}

	slog.Info("recurring order deleted", "order", orderHash.Hex(), "owner", caller.Hex())
	return nil
}

// GetTokenPairs returns the pairs on which user has an active order, in
// insertion order. Empty if none.
func (e *Engine) GetTokenPairs(ctx context.Context, user common.Address) ([]common.Hash, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.TokenPairsByOwner(ctx, user)
}

// GetOrders returns user's order hashes on a pair: zero or one element.
func (e *Engine) GetOrders(ctx context.Context, user common.Address, tokenPairHash common.Hash) ([]common.Hash, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.OrderHashes(ctx, user, tokenPairHash)
}

// GetTokenPairData returns the pair's tokens, or two zero addresses if the
// hash is unknown.
func (e *Engine) GetTokenPairData(ctx context.Context, tokenPairHash common.Hash) (sellToken, buyToken common.Address, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pair, _, err := e.store.TokenPair(ctx, tokenPairHash)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return pair.SellToken, pair.BuyToken, nil
}

// GetOrderData returns a snapshot of the order, or ir.ZeroOrder() if the
// order is unknown or not on tokenPairHash.
func (e *Engine) GetOrderData(ctx context.Context, tokenPairHash, orderHash common.Hash) (ir.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orderData(ctx, tokenPairHash, orderHash)
}

func (e *Engine) orderData(ctx context.Context, tokenPairHash, orderHash common.Hash) (ir.Order, error) {
	order, found, err := e.store.Order(ctx, orderHash)
	if err != nil {
		return ir.ZeroOrder(), err
	}
	if !found || order.TokenPairHash != tokenPairHash {
		return ir.ZeroOrder(), nil
	}
	return order, nil
}

// GetAllOrders returns snapshots of every order user currently has, in pair
// insertion order.
func (e *Engine) GetAllOrders(ctx context.Context, user common.Address) ([]ir.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pairs, err := e.store.TokenPairsByOwner(ctx, user)
	if err != nil {
		return nil, err
	}

	orders := make([]ir.Order, 0, len(pairs))
	for _, pairHash := range pairs {
		hashes, err := e.store.OrderHashes(ctx, user, pairHash)
		if err != nil {
			return nil, err
		}
		for _, h := range hashes {
			order, err := e.orderData(ctx, pairHash, h)
			if err != nil {
				return nil, err
			}
			if !order.IsZero() {
				orders = append(orders, order)
			}
		}
	}
	return orders, nil
}

// GetExecutions returns the execution history of an order, oldest first.
// History outlives the order itself.
func (e *Engine) GetExecutions(ctx context.Context, orderHash common.Hash) ([]ir.Execution, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Executions(ctx, orderHash)
}
