package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Keeper drives an Engine the way an external automation network would:
// on every tick it calls CheckUpkeep and, when upkeep is needed, feeds the
// returned payload to PerformUpkeep.
type Keeper struct {
	engine   *Engine
	interval time.Duration
	onReport func(Report)
}

// KeeperOption configures a Keeper.
type KeeperOption func(*Keeper)

// WithReportHandler registers fn to receive the report of every cycle Run
// performs, including cycles whose perform step returned an error.
func WithReportHandler(fn func(Report)) KeeperOption {
	return func(k *Keeper) {
		k.onReport = fn
	}
}

// NewKeeper creates a Keeper that ticks every interval.
func NewKeeper(e *Engine, interval time.Duration, opts ...KeeperOption) (*Keeper, error) {
	if e == nil {
		return nil, fmt.Errorf("keeper requires an engine")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("keeper interval must be positive, got %s", interval)
	}
	k := &Keeper{engine: e, interval: interval}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Interval returns the tick interval.
func (k *Keeper) Interval() time.Duration {
	return k.interval
}

// Tick runs one check/perform cycle. performed is false when nothing was due.
func (k *Keeper) Tick(ctx context.Context) (report Report, performed bool, err error) {
	needed, data, err := k.engine.CheckUpkeep(ctx, nil)
	if err != nil {
		return Report{}, false, fmt.Errorf("check upkeep: %w", err)
	}
	if !needed {
		return Report{}, false, nil
	}

	report, err = k.engine.PerformUpkeepWithReport(ctx, data)
	if err != nil {
		return report, true, fmt.Errorf("perform upkeep: %w", err)
	}
	return report, true, nil
}

// Run ticks until ctx is cancelled. Tick errors are logged and the loop
// continues; a failed cycle is retried on the next tick.
func (k *Keeper) Run(ctx context.Context) error {
	slog.Info("keeper starting", "interval", k.interval)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("keeper stopping: context cancelled")
			return ctx.Err()

		case <-ticker.C:
			report, performed, err := k.Tick(ctx)
			if performed && k.onReport != nil {
				k.onReport(report)
			}
			if err != nil {
				slog.Error("keeper tick failed", "error", err)
				continue
			}
			if performed {
				slog.Info("keeper performed upkeep",
					"run_id", report.RunID,
					"executed", report.Executed(),
					"entries", len(report.Outcomes),
				)
			}
		}
	}
}
