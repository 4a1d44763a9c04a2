package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/trickle/internal/ir"
)

const orderColumns = `hash, token_pair_hash, owner, sell_amount, interval_seconds, start_timestamp, last_execution`

// TokenPair retrieves a token pair by hash.
// Returns found=false (and no error) if the hash is unknown.
func (s *Store) TokenPair(ctx context.Context, hash common.Hash) (ir.TokenPair, bool, error) {
	var sell, buy string
	err := s.db.QueryRowContext(ctx, `
		SELECT sell_token, buy_token FROM token_pairs WHERE hash = ?
	`, hash.Hex()).Scan(&sell, &buy)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.TokenPair{}, false, nil
	}
	if err != nil {
		return ir.TokenPair{}, false, fmt.Errorf("read token pair: %w", err)
	}

	sellToken, err := unmarshalAddress(sell)
	if err != nil {
		return ir.TokenPair{}, false, fmt.Errorf("read token pair: %w", err)
	}
	buyToken, err := unmarshalAddress(buy)
	if err != nil {
		return ir.TokenPair{}, false, fmt.Errorf("read token pair: %w", err)
	}

	return ir.TokenPair{Hash: hash, SellToken: sellToken, BuyToken: buyToken}, true, nil
}

// Order retrieves an order by hash.
// Returns found=false (and no error) if the hash is unknown.
func (s *Store) Order(ctx context.Context, hash common.Hash) (ir.Order, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE hash = ?
	`, hash.Hex())

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Order{}, false, nil
	}
	if err != nil {
		return ir.Order{}, false, fmt.Errorf("read order: %w", err)
	}
	return order, true, nil
}

// TokenPairsByOwner returns the pairs for which owner has an active order,
// in insertion order. Returns an empty slice (not nil) if there are none.
func (s *Store) TokenPairsByOwner(ctx context.Context, owner common.Address) ([]common.Hash, error) {
	return s.queryHashes(ctx, `
		SELECT token_pair_hash FROM orders
		WHERE owner = ?
		ORDER BY seq ASC
	`, owner.Hex())
}

// OrderHashes returns the hashes of owner's orders on a pair. By
// construction of the order key this has zero or one element.
func (s *Store) OrderHashes(ctx context.Context, owner common.Address, tokenPairHash common.Hash) ([]common.Hash, error) {
	return s.queryHashes(ctx, `
		SELECT hash FROM orders
		WHERE owner = ? AND token_pair_hash = ?
		ORDER BY seq ASC
	`, owner.Hex(), tokenPairHash.Hex())
}

// ActiveOrders returns every order in insertion order.
func (s *Store) ActiveOrders(ctx context.Context) ([]ir.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query active orders: %w", err)
	}
	defer rows.Close()

	orders := []ir.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// Executions returns the execution history of an order, oldest first.
func (s *Store) Executions(ctx context.Context, orderHash common.Hash) ([]ir.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, sold_amount, bought_amount, timestamp
		FROM executions
		WHERE order_hash = ?
		ORDER BY id ASC
	`, orderHash.Hex())
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	execs := []ir.Execution{}
	for rows.Next() {
		var sold, bought string
		exec := ir.Execution{OrderHash: orderHash}
		if err := rows.Scan(&exec.RunID, &sold, &bought, &exec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if exec.SoldAmount, err = unmarshalAmount(sold); err != nil {
			return nil, err
		}
		if exec.BoughtAmount, err = unmarshalAmount(bought); err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return execs, nil
}

func (s *Store) queryHashes(ctx context.Context, query string, args ...any) ([]common.Hash, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query hashes: %w", err)
	}
	defer rows.Close()

	hashes := []common.Hash{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		h, err := unmarshalHash(raw)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hashes: %w", err)
	}
	return hashes, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanOrder scans a row selected with orderColumns into an Order.
func scanOrder(row rowScanner) (ir.Order, error) {
	var hash, pairHash, owner, amount string
	var order ir.Order

	if err := row.Scan(&hash, &pairHash, &owner, &amount,
		&order.Interval, &order.StartTimestamp, &order.LastExecution); err != nil {
		return ir.Order{}, err
	}

	var err error
	if order.Hash, err = unmarshalHash(hash); err != nil {
		return ir.Order{}, err
	}
	if order.TokenPairHash, err = unmarshalHash(pairHash); err != nil {
		return ir.Order{}, err
	}
	if order.Owner, err = unmarshalAddress(owner); err != nil {
		return ir.Order{}, err
	}
	if order.SellAmount, err = unmarshalAmount(amount); err != nil {
		return ir.Order{}, err
	}
	return order, nil
}
