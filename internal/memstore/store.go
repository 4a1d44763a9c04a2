// store.go provides an in-memory implementation of the order store.
//
// Token pairs and orders are plain hash -> struct maps; the reverse lookups
// are explicit insertion-ordered index sets that are updated together with
// the maps under one lock. Data is lost on process restart; use the SQLite
// store for durability.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/trickle/internal/ir"
)

type ownerPair struct {
	owner common.Address
	pair  common.Hash
}

// Store is a map-backed order store. All operations are thread-safe.
type Store struct {
	mu sync.RWMutex

	pairs  map[common.Hash]ir.TokenPair
	orders map[common.Hash]ir.Order

	ordersByUser             map[common.Address]*orderedSet[common.Hash]
	orderHashesByUserAndPair map[ownerPair]common.Hash
	allActiveOrders          *orderedSet[common.Hash]

	executions map[common.Hash][]ir.Execution
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		pairs:                    make(map[common.Hash]ir.TokenPair),
		orders:                   make(map[common.Hash]ir.Order),
		ordersByUser:             make(map[common.Address]*orderedSet[common.Hash]),
		orderHashesByUserAndPair: make(map[ownerPair]common.Hash),
		allActiveOrders:          newOrderedSet[common.Hash](),
		executions:               make(map[common.Hash][]ir.Execution),
	}
}

// PutOrder writes a token pair (if absent) and inserts or overwrites an order.
func (s *Store) PutOrder(ctx context.Context, pair ir.TokenPair, order ir.Order) error {
	if order.SellAmount == nil || order.SellAmount.Sign() < 0 {
		return fmt.Errorf("put order: invalid sell amount")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pairs[pair.Hash]; !ok {
		s.pairs[pair.Hash] = pair
	}
	s.orders[order.Hash] = order.Clone()

	userPairs, ok := s.ordersByUser[order.Owner]
	if !ok {
		userPairs = newOrderedSet[common.Hash]()
		s.ordersByUser[order.Owner] = userPairs
	}
	userPairs.Add(order.TokenPairHash)
	s.orderHashesByUserAndPair[ownerPair{order.Owner, order.TokenPairHash}] = order.Hash
	s.allActiveOrders.Add(order.Hash)
	return nil
}

// DeleteOrder removes an order from the map and every index.
// Deleting an absent order is a no-op.
func (s *Store) DeleteOrder(ctx context.Context, orderHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderHash]
	if !ok {
		return nil
	}

	delete(s.orders, orderHash)
	s.allActiveOrders.Remove(orderHash)
	delete(s.orderHashesByUserAndPair, ownerPair{order.Owner, order.TokenPairHash})
	if userPairs, ok := s.ordersByUser[order.Owner]; ok {
		userPairs.Remove(order.TokenPairHash)
		if userPairs.Len() == 0 {
			delete(s.ordersByUser, order.Owner)
		}
	}
	return nil
}

// RecordExecution appends an execution and advances the order's
// LastExecution. Fails if the order no longer exists.
func (s *Store) RecordExecution(ctx context.Context, exec ir.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[exec.OrderHash]
	if !ok {
		return fmt.Errorf("record execution: order %s not found", exec.OrderHash.Hex())
	}
	order.LastExecution = exec.Timestamp
	s.orders[exec.OrderHash] = order
	s.executions[exec.OrderHash] = append(s.executions[exec.OrderHash], exec)
	return nil
}

// SetLastExecution overwrites the order's LastExecution without touching
// its history. Fails if the order no longer exists.
func (s *Store) SetLastExecution(ctx context.Context, orderHash common.Hash, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderHash]
	if !ok {
		return fmt.Errorf("set last execution: order %s not found", orderHash.Hex())
	}
	order.LastExecution = timestamp
	s.orders[orderHash] = order
	return nil
}

// TokenPair returns the pair for hash, or found=false.
func (s *Store) TokenPair(ctx context.Context, hash common.Hash) (ir.TokenPair, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pair, ok := s.pairs[hash]
	return pair, ok, nil
}

// Order returns a copy of the order for hash, or found=false.
func (s *Store) Order(ctx context.Context, hash common.Hash) (ir.Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[hash]
	if !ok {
		return ir.Order{}, false, nil
	}
	return order.Clone(), true, nil
}

// TokenPairsByOwner returns owner's active pairs in insertion order.
func (s *Store) TokenPairsByOwner(ctx context.Context, owner common.Address) ([]common.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userPairs, ok := s.ordersByUser[owner]
	if !ok {
		return []common.Hash{}, nil
	}
	return userPairs.Values(), nil
}

// OrderHashes returns owner's order on a pair as a zero- or one-element slice.
func (s *Store) OrderHashes(ctx context.Context, owner common.Address, tokenPairHash common.Hash) ([]common.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.orderHashesByUserAndPair[ownerPair{owner, tokenPairHash}]; ok {
		return []common.Hash{h}, nil
	}
	return []common.Hash{}, nil
}

// ActiveOrders returns copies of every order in insertion order.
func (s *Store) ActiveOrders(ctx context.Context) ([]ir.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hashes := s.allActiveOrders.Values()
	orders := make([]ir.Order, 0, len(hashes))
	for _, h := range hashes {
		orders = append(orders, s.orders[h].Clone())
	}
	return orders, nil
}

// Executions returns an order's execution history, oldest first.
func (s *Store) Executions(ctx context.Context, orderHash common.Hash) ([]ir.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	execs := make([]ir.Execution, len(s.executions[orderHash]))
	copy(execs, s.executions[orderHash])
	return execs, nil
}
