package ir

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenPair is an ordered (sell, buy) token pair. Immutable once created.
type TokenPair struct {
	Hash      common.Hash    `json:"hash"`
	SellToken common.Address `json:"sell_token"`
	BuyToken  common.Address `json:"buy_token"`
}

// IsZero reports whether p is the empty sentinel returned for unknown hashes.
func (p TokenPair) IsZero() bool {
	return p.Hash == (common.Hash{}) && p.SellToken == (common.Address{}) && p.BuyToken == (common.Address{})
}

// Order is one owner's standing instruction to sell SellAmount of the pair's
// sell token every Interval seconds, starting at StartTimestamp.
//
// LastExecution is 0 until the first successful execution.
type Order struct {
	Hash           common.Hash    `json:"hash"`
	TokenPairHash  common.Hash    `json:"token_pair_hash"`
	Owner          common.Address `json:"owner"`
	SellAmount     *big.Int       `json:"sell_amount"`
	Interval       int64          `json:"interval"`
	StartTimestamp int64          `json:"start_timestamp"`
	LastExecution  int64          `json:"last_execution"`
}

// ZeroOrder returns the sentinel snapshot used for unknown order hashes.
// SellAmount is a non-nil zero so callers can compare without nil checks.
func ZeroOrder() Order {
	return Order{SellAmount: new(big.Int)}
}

// IsZero reports whether o is the unknown-order sentinel.
func (o Order) IsZero() bool {
	return o.Hash == (common.Hash{})
}

// NextDue returns the earliest timestamp at which the order may execute.
//
// An order that never executed is due once its start time passes. After an
// execution it is due again once a full interval has elapsed, but never
// before its start time.
func (o Order) NextDue() int64 {
	if o.LastExecution == 0 {
		return o.StartTimestamp
	}
	next := o.LastExecution + o.Interval
	if o.StartTimestamp > next {
		return o.StartTimestamp
	}
	return next
}

// IsDue reports whether the order is executable at now.
func (o Order) IsDue(now int64) bool {
	return now >= o.NextDue()
}

// Clone returns a deep copy so callers cannot mutate stored amounts.
func (o Order) Clone() Order {
	c := o
	if o.SellAmount != nil {
		c.SellAmount = new(big.Int).Set(o.SellAmount)
	}
	return c
}

// DueOrder is one entry of a performData payload. The owner, tokens and
// amount are denormalized from the store at scan time; they are advisory and
// re-validated before execution.
type DueOrder struct {
	TokenPairHash common.Hash
	OrderHash     common.Hash
	Owner         common.Address
	SellToken     common.Address
	BuyToken      common.Address
	SellAmount    *big.Int
}

// Execution records one successful transfer-and-swap of an order.
type Execution struct {
	OrderHash    common.Hash `json:"order_hash"`
	RunID        string      `json:"run_id"`
	SoldAmount   *big.Int    `json:"sold_amount"`
	BoughtAmount *big.Int    `json:"bought_amount"`
	Timestamp    int64       `json:"timestamp"`
}
