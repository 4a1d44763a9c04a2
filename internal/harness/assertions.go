package harness

import (
	"context"
	"fmt"
)

// evaluateAssertions checks final state and returns one message per
// failed assertion.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := h.evaluateAssertion(ctx, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return failures
}

func (h *Harness) evaluateAssertion(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertBalance:
		want, err := ParseAmount(a.Amount)
		if err != nil {
			return err
		}
		got, err := h.balance(ctx, a.Account, a.Token)
		if err != nil {
			return err
		}
		if got.Cmp(want) != 0 {
			return fmt.Errorf("%s %s balance: expected %s, got %s", a.Account, a.Token, want, got)
		}

	case AssertLastExecution:
		pairHash := h.pairHash(a.Sell, a.Buy)
		order, err := h.engine.GetOrderData(ctx, pairHash, h.orderHash(a.Account, a.Sell, a.Buy))
		if err != nil {
			return err
		}
		if order.IsZero() {
			return fmt.Errorf("%s has no %s/%s order", a.Account, a.Sell, a.Buy)
		}
		if order.LastExecution != a.Value {
			return fmt.Errorf("expected %d, got %d", a.Value, order.LastExecution)
		}

	case AssertExecutions:
		execs, err := h.engine.GetExecutions(ctx, h.orderHash(a.Account, a.Sell, a.Buy))
		if err != nil {
			return err
		}
		if int64(len(execs)) != a.Value {
			return fmt.Errorf("expected %d executions, got %d", a.Value, len(execs))
		}

	case AssertOrderCount:
		orders, err := h.engine.GetAllOrders(ctx, h.addr(a.Account))
		if err != nil {
			return err
		}
		if int64(len(orders)) != a.Value {
			return fmt.Errorf("expected %d orders, got %d", a.Value, len(orders))
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
