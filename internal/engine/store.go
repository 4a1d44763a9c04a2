package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/trickle/internal/ir"
)

// OrderStore is the hash-indexed storage the engine runs on.
// Implemented by store.Store (SQLite) and memstore.Store (maps).
//
// Lookups report absence with found=false rather than an error; errors are
// reserved for storage failures. Listings are in insertion order and never
// nil.
type OrderStore interface {
	// PutOrder atomically creates the pair if absent and inserts or
	// overwrites the order, keeping an overwritten order's index position.
	PutOrder(ctx context.Context, pair ir.TokenPair, order ir.Order) error

	// DeleteOrder removes the order from every index.
	DeleteOrder(ctx context.Context, orderHash common.Hash) error

	// SetLastExecution overwrites the order's LastExecution without
	// writing history. Upkeep uses it to advance an order before its swap
	// and to roll the order back if the swap fails.
	SetLastExecution(ctx context.Context, orderHash common.Hash, timestamp int64) error

	// RecordExecution appends exec and sets the order's LastExecution to
	// exec.Timestamp in one step.
	RecordExecution(ctx context.Context, exec ir.Execution) error

	TokenPair(ctx context.Context, hash common.Hash) (ir.TokenPair, bool, error)
	Order(ctx context.Context, hash common.Hash) (ir.Order, bool, error)
	TokenPairsByOwner(ctx context.Context, owner common.Address) ([]common.Hash, error)
	OrderHashes(ctx context.Context, owner common.Address, tokenPairHash common.Hash) ([]common.Hash, error)
	ActiveOrders(ctx context.Context) ([]ir.Order, error)
	Executions(ctx context.Context, orderHash common.Hash) ([]ir.Execution, error)
}
