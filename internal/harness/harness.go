package harness

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/trickle/internal/config"
	"github.com/roach88/trickle/internal/engine"
	"github.com/roach88/trickle/internal/exchange"
	"github.com/roach88/trickle/internal/ir"
	"github.com/roach88/trickle/internal/memstore"
	"github.com/roach88/trickle/internal/testutil"
	"github.com/roach88/trickle/internal/token"
)

// Fixed participants of every simulation. Their addresses are derived from
// these names, so they cannot be used as account names.
const (
	deployerName = "deployer"
	engineName   = "trickle"
	routerName   = "router"
	adapterName  = "adapter"
)

var reservedNames = map[string]bool{
	deployerName: true,
	engineName:   true,
	routerName:   true,
	adapterName:  true,
}

// Harness is the scenario execution environment: a clock, an in-memory
// token ledger with constant-product pools, and an engine over an Order
// Store.
type Harness struct {
	engine *engine.Engine
	keeper *engine.Keeper
	store  engine.OrderStore
	ledger *token.MemoryLedger
	clock  engine.Clock
	manual *testutil.ManualClock // nil when an external clock is used

	engineAddr common.Address
	scenario   *Scenario
	names      map[common.Address]string
}

// Option configures a harness run.
type Option func(*runOptions)

type runOptions struct {
	store  engine.OrderStore
	config *config.Config
	clock  engine.Clock
	onTick func(engine.Report)
}

// WithStore runs the scenario against s instead of a fresh in-memory store.
func WithStore(s engine.OrderStore) Option {
	return func(o *runOptions) {
		o.store = s
	}
}

// WithConfig builds the engine, exchange router and keeper from a loaded
// deployment configuration instead of the scenario's defaults.
func WithConfig(cfg config.Config) Option {
	return func(o *runOptions) {
		o.config = &cfg
	}
}

// WithClock replaces the scenario's manual clock. Scenarios run this way
// cannot contain advance steps.
func WithClock(c engine.Clock) Option {
	return func(o *runOptions) {
		o.clock = c
	}
}

// WithReportHandler is called with the report of every keeper cycle that
// performed upkeep.
func WithReportHandler(fn func(engine.Report)) Option {
	return func(o *runOptions) {
		o.onTick = fn
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Deploy tokens, seed pools and fund accounts
//  2. Execute steps in order, recording a trace event per step
//  3. Snapshot final balances and orders
//  4. Evaluate assertions
//
// The returned error is for infrastructure failures only. Unexpected step
// results and failed assertions are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h, err := Setup(ctx, scenario, opts...)
	if err != nil {
		return nil, err
	}
	return h.Play(ctx)
}

// Setup deploys the scenario's tokens, pools and balances and builds the
// engine and keeper, without executing any step.
func Setup(ctx context.Context, scenario *Scenario, opts ...Option) (*Harness, error) {
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = memstore.New()
	}

	h, err := newHarness(ctx, scenario, o)
	if err != nil {
		return nil, fmt.Errorf("failed to set up scenario: %w", err)
	}
	return h, nil
}

// Play executes the scenario's steps, snapshots the final state and
// evaluates the assertions.
func (h *Harness) Play(ctx context.Context) (*Result, error) {
	result := NewResult()
	for i, step := range h.scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	if err := h.snapshot(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to snapshot final state: %w", err)
	}

	for _, msg := range h.evaluateAssertions(ctx, h.scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// Keeper returns the keeper driving the harness engine.
func (h *Harness) Keeper() *engine.Keeper {
	return h.keeper
}

func newHarness(ctx context.Context, s *Scenario, o runOptions) (*Harness, error) {
	engineCfg := engine.Config{
		MinimumUpkeepInterval: s.MinimumUpkeepInterval,
		Address:               testutil.Addr(engineName),
	}
	if engineCfg.MinimumUpkeepInterval == 0 {
		engineCfg.MinimumUpkeepInterval = engine.DefaultMinimumUpkeepInterval
	}
	router := testutil.Addr(routerName)
	// Ticks of a scenario keeper are driven by upkeep steps, not the interval.
	keeperInterval := time.Second
	if o.config != nil {
		engineCfg = o.config.EngineConfig()
		if o.config.RouterAddress != (common.Address{}) {
			router = o.config.RouterAddress
		}
		keeperInterval = o.config.KeeperInterval
	}

	h := &Harness{
		store:      o.store,
		ledger:     token.NewMemoryLedger(),
		engineAddr: engineCfg.Address,
		scenario:   s,
		names:      make(map[common.Address]string),
	}
	if o.clock != nil {
		h.clock = o.clock
	} else {
		h.manual = testutil.NewManualClock(s.StartTime)
		h.clock = h.manual
	}

	for name := range reservedNames {
		h.names[testutil.Addr(name)] = name
	}
	h.names[h.engineAddr] = engineName
	h.names[router] = routerName
	for _, a := range s.Accounts {
		h.names[testutil.Addr(a)] = a
	}

	deployer := testutil.Addr(deployerName)
	for _, t := range s.Tokens {
		supply, err := ParseAmount(t.Supply)
		if err != nil {
			return nil, err
		}
		addr := testutil.Addr(t.Symbol)
		h.names[addr] = t.Symbol
		info := token.Info{Address: addr, Symbol: t.Symbol, Decimals: t.Decimals}
		if err := h.ledger.Deploy(info, deployer, supply); err != nil {
			return nil, err
		}
	}

	adapter := exchange.NewPoolAdapter(testutil.Addr(adapterName), router, h.ledger)
	for _, p := range s.Pools {
		amountA, err := ParseAmount(p.AmountA)
		if err != nil {
			return nil, err
		}
		amountB, err := ParseAmount(p.AmountB)
		if err != nil {
			return nil, err
		}
		if err := adapter.AddLiquidity(ctx, deployer, testutil.Addr(p.TokenA), testutil.Addr(p.TokenB), amountA, amountB); err != nil {
			return nil, fmt.Errorf("pool %s/%s: %w", p.TokenA, p.TokenB, err)
		}
	}

	for _, b := range s.Balances {
		amount, err := ParseAmount(b.Amount)
		if err != nil {
			return nil, err
		}
		if err := h.ledger.Transfer(ctx, testutil.Addr(b.Token), deployer, testutil.Addr(b.Account), amount); err != nil {
			return nil, fmt.Errorf("fund %s with %s: %w", b.Account, b.Token, err)
		}
	}

	engineOpts := []engine.Option{engine.WithClock(h.clock)}
	if h.manual != nil {
		// Reproducible traces: run ids restart with every scenario.
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(engine.NewSequenceGenerator("run")))
	}
	eng, err := engine.New(engineCfg, o.store, h.ledger, adapter, engineOpts...)
	if err != nil {
		return nil, err
	}
	h.engine = eng

	var keeperOpts []engine.KeeperOption
	if o.onTick != nil {
		keeperOpts = append(keeperOpts, engine.WithReportHandler(o.onTick))
	}
	h.keeper, err = engine.NewKeeper(eng, keeperInterval, keeperOpts...)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	switch {
	case step.Register != nil:
		return h.register(ctx, i, step.Register, result)
	case step.Delete != nil:
		return h.delete(ctx, i, step.Delete, result)
	case step.Approve != nil:
		return h.approve(ctx, step.Approve, result)
	case step.Advance > 0:
		if h.manual == nil {
			return fmt.Errorf("advance requires the scenario clock")
		}
		now := h.manual.Advance(step.Advance)
		result.AddTrace(map[string]any{"step": "advance", "now": now})
		return nil
	case step.Check != nil:
		return h.check(ctx, i, step.Check, result)
	case step.Upkeep != nil:
		return h.upkeep(ctx, i, step.Upkeep, result)
	default:
		return fmt.Errorf("empty step")
	}
}

func (h *Harness) register(ctx context.Context, i int, r *RegisterStep, result *Result) error {
	amount, err := ParseAmount(r.Amount)
	if err != nil {
		return err
	}
	owner, sell, buy := testutil.Addr(r.Owner), testutil.Addr(r.Sell), testutil.Addr(r.Buy)

	if r.Start != nil {
		_, err = h.engine.SetRecurringOrderWithStartTimestamp(ctx, owner, sell, buy, amount, r.Interval, *r.Start)
	} else {
		_, err = h.engine.SetRecurringOrder(ctx, owner, sell, buy, amount, r.Interval)
	}

	event := map[string]any{
		"step":     "register",
		"owner":    r.Owner,
		"pair":     r.Sell + "/" + r.Buy,
		"amount":   amount.String(),
		"interval": r.Interval,
	}
	code, err := errorCode(err)
	if err != nil {
		return err
	}
	event["result"] = code
	result.AddTrace(event)

	h.expectCode(i, "register", r.ExpectError, code, result)
	return nil
}

func (h *Harness) delete(ctx context.Context, i int, d *DeleteStep, result *Result) error {
	caller := d.Caller
	if caller == "" {
		caller = d.Owner
	}
	err := h.engine.DeleteRecurringOrder(ctx, h.addr(caller), h.pairHash(d.Sell, d.Buy), h.orderHash(d.Owner, d.Sell, d.Buy))
	code, err := errorCode(err)
	if err != nil {
		return err
	}
	result.AddTrace(map[string]any{
		"step":   "delete",
		"owner":  d.Owner,
		"caller": caller,
		"pair":   d.Sell + "/" + d.Buy,
		"result": code,
	})

	h.expectCode(i, "delete", d.ExpectError, code, result)
	return nil
}

func (h *Harness) approve(ctx context.Context, a *ApproveStep, result *Result) error {
	amount, err := ParseAmount(a.Amount)
	if err != nil {
		return err
	}
	if err := h.ledger.Approve(ctx, testutil.Addr(a.Token), testutil.Addr(a.Owner), h.engineAddr, amount); err != nil {
		return err
	}
	result.AddTrace(map[string]any{
		"step":   "approve",
		"owner":  a.Owner,
		"token":  a.Token,
		"amount": amount.String(),
	})
	return nil
}

func (h *Harness) check(ctx context.Context, i int, k *KeeperStep, result *Result) error {
	needed, data, err := h.engine.CheckUpkeep(ctx, nil)
	if err != nil {
		return err
	}
	due, err := ir.DecodePerformData(data)
	if err != nil {
		return err
	}

	dueList := make([]any, len(due))
	for j, d := range due {
		dueList[j] = map[string]any{
			"owner":  h.name(d.Owner),
			"pair":   h.name(d.SellToken) + "/" + h.name(d.BuyToken),
			"amount": d.SellAmount.String(),
		}
	}
	result.AddTrace(map[string]any{
		"step":          "check",
		"now":           h.clock.Now(),
		"upkeep_needed": needed,
		"due":           dueList,
	})

	h.expectNeeded(i, k, needed, result)
	return nil
}

// upkeep runs one keeper tick: check, then perform only when needed.
func (h *Harness) upkeep(ctx context.Context, i int, k *KeeperStep, result *Result) error {
	report, performed, err := h.keeper.Tick(ctx)
	if err != nil {
		return err
	}
	h.expectNeeded(i, k, performed, result)

	event := map[string]any{
		"step":          "upkeep",
		"now":           h.clock.Now(),
		"upkeep_needed": performed,
	}
	if !performed {
		result.AddTrace(event)
		return nil
	}

	outcomes := make([]any, len(report.Outcomes))
	for j, o := range report.Outcomes {
		entry := map[string]any{
			"owner":  h.name(o.Owner),
			"status": string(o.Status),
		}
		if o.Status == engine.OutcomeExecuted {
			entry["sold"] = o.Sold.String()
			entry["bought"] = o.Bought.String()
		}
		outcomes[j] = entry
	}
	event["run_id"] = report.RunID
	event["outcomes"] = outcomes
	result.AddTrace(event)
	return nil
}

// snapshot records balances and orders of every declared account.
func (h *Harness) snapshot(ctx context.Context, result *Result) error {
	for _, account := range h.scenario.Accounts {
		addr := testutil.Addr(account)

		balances := make(map[string]any, len(h.scenario.Tokens))
		for _, t := range h.scenario.Tokens {
			b, err := h.ledger.BalanceOf(ctx, testutil.Addr(t.Symbol), addr)
			if err != nil {
				return err
			}
			balances[t.Symbol] = b.String()
		}

		orders, err := h.engine.GetAllOrders(ctx, addr)
		if err != nil {
			return err
		}
		orderList := make([]any, 0, len(orders))
		for _, o := range orders {
			sell, buy, err := h.engine.GetTokenPairData(ctx, o.TokenPairHash)
			if err != nil {
				return err
			}
			execs, err := h.engine.GetExecutions(ctx, o.Hash)
			if err != nil {
				return err
			}
			orderList = append(orderList, map[string]any{
				"pair":           h.name(sell) + "/" + h.name(buy),
				"amount":         o.SellAmount.String(),
				"interval":       o.Interval,
				"start":          o.StartTimestamp,
				"last_execution": o.LastExecution,
				"executions":     len(execs),
			})
		}

		result.State[account] = map[string]any{
			"balances": balances,
			"orders":   orderList,
		}
	}
	return nil
}

func (h *Harness) expectCode(i int, action, want, got string, result *Result) {
	if want == "" {
		want = "ok"
	}
	if want != got {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", i, action, want, got))
	}
}

func (h *Harness) expectNeeded(i int, k *KeeperStep, needed bool, result *Result) {
	if k.ExpectNeeded != nil && *k.ExpectNeeded != needed {
		result.AddError(fmt.Sprintf("steps[%d]: expected upkeep_needed=%t, got %t", i, *k.ExpectNeeded, needed))
	}
}

func (h *Harness) name(addr common.Address) string {
	if n, ok := h.names[addr]; ok {
		return n
	}
	return addr.Hex()
}

// errorCode maps an engine input error to its code, "ok" for nil, and
// passes other errors through.
func errorCode(err error) (string, error) {
	if err == nil {
		return "ok", nil
	}
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return string(engErr.Code), nil
	}
	return "", err
}

func (h *Harness) addr(name string) common.Address {
	return testutil.Addr(name)
}

func (h *Harness) pairHash(sell, buy string) common.Hash {
	return ir.TokenPairHash(h.addr(sell), h.addr(buy))
}

func (h *Harness) orderHash(owner, sell, buy string) common.Hash {
	return ir.OrderHash(h.addr(owner), h.pairHash(sell, buy))
}

func (h *Harness) balance(ctx context.Context, account, tok string) (*big.Int, error) {
	return h.ledger.BalanceOf(ctx, h.addr(tok), h.addr(account))
}
