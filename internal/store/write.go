package store

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/trickle/internal/ir"
)

// PutOrder atomically writes a token pair and an order.
//
// The token pair is inserted if absent (pairs are immutable and never
// deleted). The order is inserted, or overwritten in place if its hash
// already exists; an overwrite keeps the order's original seq so its
// position in every listing is unchanged.
func (s *Store) PutOrder(ctx context.Context, pair ir.TokenPair, order ir.Order) error {
	amount, err := marshalAmount(order.SellAmount)
	if err != nil {
		return fmt.Errorf("put order: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put order: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO token_pairs (hash, sell_token, buy_token)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, pair.Hash.Hex(), pair.SellToken.Hex(), pair.BuyToken.Hex())
	if err != nil {
		return fmt.Errorf("put order: insert token pair: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders
		(hash, token_pair_hash, owner, sell_amount, interval_seconds, start_timestamp, last_execution, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM orders))
		ON CONFLICT(hash) DO UPDATE SET
			sell_amount      = excluded.sell_amount,
			interval_seconds = excluded.interval_seconds,
			start_timestamp  = excluded.start_timestamp,
			last_execution   = excluded.last_execution
	`,
		order.Hash.Hex(),
		order.TokenPairHash.Hex(),
		order.Owner.Hex(),
		amount,
		order.Interval,
		order.StartTimestamp,
		order.LastExecution,
	)
	if err != nil {
		return fmt.Errorf("put order: upsert order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put order: commit: %w", err)
	}
	return nil
}

// DeleteOrder removes an order. Deleting an absent order is a no-op.
// The order's execution history is kept.
func (s *Store) DeleteOrder(ctx context.Context, orderHash common.Hash) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE hash = ?`, orderHash.Hex())
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// SetLastExecution overwrites an order's last_execution without writing
// history. Returns an error if the order does not exist.
func (s *Store) SetLastExecution(ctx context.Context, orderHash common.Hash, timestamp int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET last_execution = ? WHERE hash = ?
	`, timestamp, orderHash.Hex())
	if err != nil {
		return fmt.Errorf("set last execution: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set last execution: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("set last execution: order %s not found", orderHash.Hex())
	}
	return nil
}

// RecordExecution atomically appends an execution and advances the order's
// last_execution to the execution timestamp.
//
// Returns an error if the order no longer exists; the execution is not
// written in that case.
func (s *Store) RecordExecution(ctx context.Context, exec ir.Execution) error {
	sold, err := marshalAmount(exec.SoldAmount)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	bought, err := marshalAmount(exec.BoughtAmount)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record execution: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET last_execution = ? WHERE hash = ?
	`, exec.Timestamp, exec.OrderHash.Hex())
	if err != nil {
		return fmt.Errorf("record execution: update order: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record execution: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("record execution: order %s not found", exec.OrderHash.Hex())
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO executions (order_hash, run_id, sold_amount, bought_amount, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, exec.OrderHash.Hex(), exec.RunID, sold, bought, exec.Timestamp)
	if err != nil {
		return fmt.Errorf("record execution: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record execution: commit: %w", err)
	}
	return nil
}
