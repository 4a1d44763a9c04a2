package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/trickle/internal/exchange"
	"github.com/roach88/trickle/internal/ir"
)

// OutcomeStatus classifies what happened to one performData entry.
type OutcomeStatus string

const (
	// OutcomeExecuted means the pull and swap succeeded and LastExecution advanced.
	OutcomeExecuted OutcomeStatus = "executed"

	// OutcomeSkippedUnfunded means the owner's balance or allowance did not
	// cover the sell amount. Nothing moved.
	OutcomeSkippedUnfunded OutcomeStatus = "skipped_unfunded"

	// OutcomeSkippedStale means the entry no longer matches a due order.
	OutcomeSkippedStale OutcomeStatus = "skipped_stale"

	// OutcomeSwapFailed means the exchange rejected the swap. The pulled
	// funds were returned to the owner.
	OutcomeSwapFailed OutcomeStatus = "swap_failed"

	// OutcomeStorageFailed means the order could not be advanced before the
	// swap. The pulled funds were returned and nothing executed.
	OutcomeStorageFailed OutcomeStatus = "storage_failed"
)

// Outcome is the per-entry result of an upkeep run.
type Outcome struct {
	OrderHash common.Hash
	Owner     common.Address
	Status    OutcomeStatus
	Sold      *big.Int
	Bought    *big.Int
}

// Report summarizes one PerformUpkeep call.
type Report struct {
	RunID     string
	Timestamp int64
	Outcomes  []Outcome
}

// Executed returns the number of entries that executed.
func (r Report) Executed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == OutcomeExecuted {
			n++
		}
	}
	return n
}

// ScanDue returns every order in s that is due at now, in index order.
// It never writes to s.
func ScanDue(ctx context.Context, s OrderStore, now int64) ([]ir.DueOrder, error) {
	orders, err := s.ActiveOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan due orders: %w", err)
	}

	due := make([]ir.DueOrder, 0, len(orders))
	for _, order := range orders {
		if !order.IsDue(now) {
			continue
		}
		pair, found, err := s.TokenPair(ctx, order.TokenPairHash)
		if err != nil {
			return nil, fmt.Errorf("scan due orders: %w", err)
		}
		if !found {
			return nil, fmt.Errorf("scan due orders: order %s references missing pair %s",
				order.Hash.Hex(), order.TokenPairHash.Hex())
		}
		due = append(due, ir.DueOrder{
			TokenPairHash: pair.Hash,
			OrderHash:     order.Hash,
			Owner:         order.Owner,
			SellToken:     pair.SellToken,
			BuyToken:      pair.BuyToken,
			SellAmount:    new(big.Int).Set(order.SellAmount),
		})
	}
	return due, nil
}

// CheckUpkeep reports whether any order is due and, if so, the performData
// payload listing them. checkData is accepted for keeper compatibility and
// ignored. Returns (false, empty) when nothing is due.
func (e *Engine) CheckUpkeep(ctx context.Context, checkData []byte) (bool, []byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	due, err := ScanDue(ctx, e.store, e.clock.Now())
	if err != nil {
		return false, []byte{}, err
	}

	data, err := ir.EncodePerformData(due)
	if err != nil {
		return false, []byte{}, err
	}
	return len(due) > 0, data, nil
}

// PerformUpkeep executes the orders listed in performData.
//
// Unfunded, stale and unswappable entries are absorbed and the batch
// continues. The returned error is non-nil only for malformed performData
// or storage failures.
func (e *Engine) PerformUpkeep(ctx context.Context, performData []byte) error {
	_, err := e.PerformUpkeepWithReport(ctx, performData)
	return err
}

// PerformUpkeepWithReport is PerformUpkeep returning the per-entry outcomes.
func (e *Engine) PerformUpkeepWithReport(ctx context.Context, performData []byte) (Report, error) {
	entries, err := ir.DecodePerformData(performData)
	if err != nil {
		return Report{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	report := Report{
		RunID:     e.runIDs.Generate(),
		Timestamp: e.clock.Now(),
		Outcomes:  make([]Outcome, 0, len(entries)),
	}

	slog.Info("upkeep starting", "run_id", report.RunID, "entries", len(entries), "now", report.Timestamp)

	var errs []error
	for _, entry := range entries {
		outcome, err := e.executeEntry(ctx, report.RunID, report.Timestamp, entry)
		if err != nil {
			// Storage failure for this entry only; siblings still run.
			slog.Error("upkeep entry failed",
				"run_id", report.RunID,
				"order", entry.OrderHash.Hex(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("order %s: %w", entry.OrderHash.Hex(), err))
		}
		report.Outcomes = append(report.Outcomes, outcome)
		logOutcome(report.RunID, outcome)
	}

	slog.Info("upkeep finished",
		"run_id", report.RunID,
		"entries", len(entries),
		"executed", report.Executed(),
	)
	return report, errors.Join(errs...)
}

// executeEntry runs one entry. Caller holds e.mu.
//
// The entry is re-validated against current state and the stored sell
// amount is used, not the payload's.
func (e *Engine) executeEntry(ctx context.Context, runID string, now int64, entry ir.DueOrder) (Outcome, error) {
	outcome := Outcome{
		OrderHash: entry.OrderHash,
		Owner:     entry.Owner,
		Status:    OutcomeSkippedStale,
	}

	order, found, err := e.store.Order(ctx, entry.OrderHash)
	if err != nil {
		return outcome, err
	}
	if !found || order.Owner != entry.Owner || order.TokenPairHash != entry.TokenPairHash || !order.IsDue(now) {
		return outcome, nil
	}
	pair, found, err := e.store.TokenPair(ctx, order.TokenPairHash)
	if err != nil {
		return outcome, err
	}
	if !found {
		return outcome, nil
	}

	amount := new(big.Int).Set(order.SellAmount)
	outcome.Sold = amount

	// The owner's allowance is restored along with the funds if the order
	// does not execute, so it stays executable next cycle.
	allowance, err := e.ledger.Allowance(ctx, pair.SellToken, order.Owner, e.cfg.Address)
	if err != nil {
		outcome.Status = OutcomeSkippedUnfunded
		slog.Warn("order unfunded", "run_id", runID, "order", order.Hash.Hex(), "reason", err)
		return outcome, nil
	}

	// Pull. Any failure here leaves every balance untouched.
	if err := e.ledger.TransferFrom(ctx, pair.SellToken, e.cfg.Address, order.Owner, e.cfg.Address, amount); err != nil {
		outcome.Status = OutcomeSkippedUnfunded
		slog.Warn("order unfunded",
			"run_id", runID,
			"order", order.Hash.Hex(),
			"owner", order.Owner.Hex(),
			"reason", err,
		)
		return outcome, nil
	}

	// Advance the order before any tokens reach the exchange. Once the swap
	// has happened the order must not be due again this interval, even if
	// the history write below fails.
	if err := e.store.SetLastExecution(ctx, order.Hash, now); err != nil {
		outcome.Status = OutcomeStorageFailed
		if rerr := e.refund(ctx, pair, order.Owner, amount, allowance); rerr != nil {
			return outcome, errors.Join(fmt.Errorf("advance order: %w", err), fmt.Errorf("refund: %w", rerr))
		}
		return outcome, fmt.Errorf("advance order: %w", err)
	}

	bought, err := e.swap(ctx, pair, order.Owner, amount)
	if err != nil {
		outcome.Status = OutcomeSwapFailed
		slog.Warn("swap failed",
			"run_id", runID,
			"order", order.Hash.Hex(),
			"reason", err,
		)
		var errs []error
		if rerr := e.refund(ctx, pair, order.Owner, amount, allowance); rerr != nil {
			errs = append(errs, fmt.Errorf("refund after failed swap: %w", rerr))
		}
		if rerr := e.store.SetLastExecution(ctx, order.Hash, order.LastExecution); rerr != nil {
			errs = append(errs, fmt.Errorf("roll back order after failed swap: %w", rerr))
		}
		return outcome, errors.Join(errs...)
	}

	outcome.Status = OutcomeExecuted
	outcome.Bought = bought

	exec := ir.Execution{
		OrderHash:    order.Hash,
		RunID:        runID,
		SoldAmount:   amount,
		BoughtAmount: bought,
		Timestamp:    now,
	}
	if err := e.store.RecordExecution(ctx, exec); err != nil {
		return outcome, fmt.Errorf("record execution: %w", err)
	}
	return outcome, nil
}

// swap approves the exchange for exactly amount and swaps it into the buy
// token for owner.
func (e *Engine) swap(ctx context.Context, pair ir.TokenPair, owner common.Address, amount *big.Int) (*big.Int, error) {
	if err := e.ledger.Approve(ctx, pair.SellToken, e.cfg.Address, e.exchange.Address(), amount); err != nil {
		return nil, fmt.Errorf("approve exchange: %w", err)
	}
	return e.exchange.SwapExactTokensForTokens(ctx, exchange.SwapRequest{
		SellToken: pair.SellToken,
		BuyToken:  pair.BuyToken,
		Amount:    amount,
		Payer:     e.cfg.Address,
		Recipient: owner,
	})
}

// refund undoes a pull: it clears the exchange allowance, returns amount
// to owner and puts owner's allowance back to what it was before the pull.
func (e *Engine) refund(ctx context.Context, pair ir.TokenPair, owner common.Address, amount, allowance *big.Int) error {
	if err := e.ledger.Approve(ctx, pair.SellToken, e.cfg.Address, e.exchange.Address(), new(big.Int)); err != nil {
		return err
	}
	if err := e.ledger.Transfer(ctx, pair.SellToken, e.cfg.Address, owner, amount); err != nil {
		return err
	}
	return e.ledger.Approve(ctx, pair.SellToken, owner, e.cfg.Address, allowance)
}

func logOutcome(runID string, o Outcome) {
	attrs := []any{
		"run_id", runID,
		"order", o.OrderHash.Hex(),
		"owner", o.Owner.Hex(),
		"status", string(o.Status),
	}
	if o.Status == OutcomeExecuted {
		attrs = append(attrs, "sold", o.Sold.String(), "bought", o.Bought.String())
	}
	slog.Debug("upkeep outcome", attrs...)
}
