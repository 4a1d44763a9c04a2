package harness

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a simulation: a token world, a sequence of user and
// keeper actions against the engine, and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. Used as the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// StartTime is the simulated unix time of the first step.
	StartTime int64 `yaml:"start_time"`

	// MinimumUpkeepInterval overrides the engine default when non-zero.
	MinimumUpkeepInterval int64 `yaml:"minimum_upkeep_interval,omitempty"`

	// Accounts lists the user names whose balances and orders are reported.
	Accounts []string `yaml:"accounts"`

	// Tokens are deployed with their whole supply held by the deployer.
	Tokens []TokenSpec `yaml:"tokens"`

	// Pools are seeded from the deployer's holdings.
	Pools []PoolSpec `yaml:"pools,omitempty"`

	// Balances are transferred from the deployer before the first step.
	Balances []BalanceSpec `yaml:"balances,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// TokenSpec declares a token. Its address is derived from the symbol.
type TokenSpec struct {
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
	Supply   string `yaml:"supply"`
}

// PoolSpec declares constant-product liquidity for a token pair.
type PoolSpec struct {
	TokenA  string `yaml:"token_a"`
	TokenB  string `yaml:"token_b"`
	AmountA string `yaml:"amount_a"`
	AmountB string `yaml:"amount_b"`
}

// BalanceSpec funds an account.
type BalanceSpec struct {
	Account string `yaml:"account"`
	Token   string `yaml:"token"`
	Amount  string `yaml:"amount"`
}

// Step is one action. Exactly one field must be set.
type Step struct {
	Register *RegisterStep `yaml:"register,omitempty"`
	Delete   *DeleteStep   `yaml:"delete,omitempty"`
	Approve  *ApproveStep  `yaml:"approve,omitempty"`
	Advance  int64         `yaml:"advance,omitempty"`
	Check    *KeeperStep   `yaml:"check,omitempty"`
	Upkeep   *KeeperStep   `yaml:"upkeep,omitempty"`
}

// RegisterStep calls SetRecurringOrder (or the start-timestamp variant
// when Start is set).
type RegisterStep struct {
	Owner    string `yaml:"owner"`
	Sell     string `yaml:"sell"`
	Buy      string `yaml:"buy"`
	Amount   string `yaml:"amount"`
	Interval int64  `yaml:"interval"`
	Start    *int64 `yaml:"start,omitempty"`

	// ExpectError is the expected engine error code, if the call should fail.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// DeleteStep calls DeleteRecurringOrder as Caller for Owner's order on
// (Sell, Buy). Caller defaults to Owner.
type DeleteStep struct {
	Owner       string `yaml:"owner"`
	Caller      string `yaml:"caller,omitempty"`
	Sell        string `yaml:"sell"`
	Buy         string `yaml:"buy"`
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ApproveStep sets Owner's allowance for the engine over Token.
type ApproveStep struct {
	Owner  string `yaml:"owner"`
	Token  string `yaml:"token"`
	Amount string `yaml:"amount"`
}

// KeeperStep is a keeper call. With ExpectNeeded set, the step fails the
// scenario if CheckUpkeep disagrees.
type KeeperStep struct {
	ExpectNeeded *bool `yaml:"expect_needed,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of balance, last_execution, executions, order_count.
	Type string `yaml:"type"`

	Account string `yaml:"account,omitempty"`
	Token   string `yaml:"token,omitempty"`
	Sell    string `yaml:"sell,omitempty"`
	Buy     string `yaml:"buy,omitempty"`

	// Amount is compared by balance.
	Amount string `yaml:"amount,omitempty"`

	// Value is compared by last_execution, executions and order_count.
	Value int64 `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertBalance       = "balance"
	AssertLastExecution = "last_execution"
	AssertExecutions    = "executions"
	AssertOrderCount    = "order_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// name refers to a declared token or account.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Tokens) == 0 {
		return fmt.Errorf("tokens list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	tokens := make(map[string]bool)
	for i, t := range s.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("tokens[%d]: symbol is required", i)
		}
		if tokens[t.Symbol] {
			return fmt.Errorf("tokens[%d]: duplicate symbol %q", i, t.Symbol)
		}
		if _, err := ParseAmount(t.Supply); err != nil {
			return fmt.Errorf("tokens[%d]: supply: %w", i, err)
		}
		tokens[t.Symbol] = true
	}

	accounts := make(map[string]bool)
	for i, a := range s.Accounts {
		if a == "" || tokens[a] || reservedNames[a] {
			return fmt.Errorf("accounts[%d]: invalid account name %q", i, a)
		}
		accounts[a] = true
	}

	checkToken := func(where, sym string) error {
		if !tokens[sym] {
			return fmt.Errorf("%s: unknown token %q", where, sym)
		}
		return nil
	}
	checkAccount := func(where, name string) error {
		if !accounts[name] {
			return fmt.Errorf("%s: unknown account %q", where, name)
		}
		return nil
	}
	checkAmount := func(where, amount string) error {
		if _, err := ParseAmount(amount); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		return nil
	}

	for i, p := range s.Pools {
		where := fmt.Sprintf("pools[%d]", i)
		if err := errorsFirst(
			checkToken(where, p.TokenA),
			checkToken(where, p.TokenB),
			checkAmount(where, p.AmountA),
			checkAmount(where, p.AmountB),
		); err != nil {
			return err
		}
	}

	for i, b := range s.Balances {
		where := fmt.Sprintf("balances[%d]", i)
		if err := errorsFirst(
			checkAccount(where, b.Account),
			checkToken(where, b.Token),
			checkAmount(where, b.Amount),
		); err != nil {
			return err
		}
	}

	for i, step := range s.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		if n := step.kinds(); n != 1 {
			return fmt.Errorf("%s: exactly one action is required, got %d", where, n)
		}
		var err error
		switch {
		case step.Register != nil:
			r := step.Register
			// Zero and malformed amounts are allowed through so scenarios
			// can exercise the engine's own validation.
			err = errorsFirst(checkAccount(where, r.Owner), checkToken(where, r.Sell), checkToken(where, r.Buy))
		case step.Delete != nil:
			d := step.Delete
			err = errorsFirst(checkAccount(where, d.Owner), checkToken(where, d.Sell), checkToken(where, d.Buy))
			if err == nil && d.Caller != "" {
				err = checkAccount(where, d.Caller)
			}
		case step.Approve != nil:
			a := step.Approve
			err = errorsFirst(checkAccount(where, a.Owner), checkToken(where, a.Token), checkAmount(where, a.Amount))
		case step.Advance < 0:
			err = fmt.Errorf("%s: advance must be positive", where)
		}
		if err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		where := fmt.Sprintf("assertions[%d]", i)
		var err error
		switch a.Type {
		case AssertBalance:
			err = errorsFirst(checkAccount(where, a.Account), checkToken(where, a.Token), checkAmount(where, a.Amount))
		case AssertLastExecution, AssertExecutions:
			err = errorsFirst(checkAccount(where, a.Account), checkToken(where, a.Sell), checkToken(where, a.Buy))
		case AssertOrderCount:
			err = checkAccount(where, a.Account)
		case "":
			err = fmt.Errorf("%s: type is required", where)
		default:
			err = fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s Step) kinds() int {
	n := 0
	for _, set := range []bool{s.Register != nil, s.Delete != nil, s.Approve != nil, s.Advance != 0, s.Check != nil, s.Upkeep != nil} {
		if set {
			n++
		}
	}
	return n
}

func errorsFirst(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ParseAmount parses a non-negative integer amount written either plainly
// ("1500") or with a decimal exponent ("15e17", "1e18").
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is required")
	}

	mantissa, exp := s, 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa = s[:i]
		e, err := strconv.Atoi(s[i+1:])
		if err != nil || e < 0 || e > 77 {
			return nil, fmt.Errorf("invalid amount %q", s)
		}
		exp = e
	}

	v, ok := new(big.Int).SetString(mantissa, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if exp > 0 {
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	}
	return v, nil
}
