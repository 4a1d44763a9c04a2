package token

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Compile-time check that MemoryLedger implements Ledger
var _ Ledger = (*MemoryLedger)(nil)

// Info describes a deployed token.
type Info struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

type erc20 struct {
	info        Info
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[allowanceKey]*big.Int
}

// MemoryLedger is an in-memory multi-token ERC-20 ledger.
// All operations are thread-safe and each operation is atomic.
type MemoryLedger struct {
	mu     sync.RWMutex
	tokens map[common.Address]*erc20
}

// NewMemoryLedger creates a ledger with no tokens.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{tokens: make(map[common.Address]*erc20)}
}

// Deploy registers a token and mints initialSupply to deployer.
// Deploying an address twice is an error.
func (l *MemoryLedger) Deploy(info Info, deployer common.Address, initialSupply *big.Int) error {
	if !validAmount(initialSupply) {
		return fmt.Errorf("deploy %s: %w", info.Symbol, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tokens[info.Address]; ok {
		return fmt.Errorf("deploy %s: token %s already deployed", info.Symbol, info.Address.Hex())
	}
	l.tokens[info.Address] = &erc20{
		info:        info,
		totalSupply: new(big.Int).Set(initialSupply),
		balances:    map[common.Address]*big.Int{deployer: new(big.Int).Set(initialSupply)},
		allowances:  make(map[allowanceKey]*big.Int),
	}
	return nil
}

// Mint creates amount new tokens for to.
func (l *MemoryLedger) Mint(token, to common.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return fmt.Errorf("mint: %w", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.token(token)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	t.totalSupply.Add(t.totalSupply, amount)
	t.credit(to, amount)
	return nil
}

// TotalSupply returns the token's total supply.
func (l *MemoryLedger) TotalSupply(token common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, err := l.token(token)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(t.totalSupply), nil
}

// TokenInfo returns the metadata of a deployed token.
func (l *MemoryLedger) TokenInfo(token common.Address) (Info, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, err := l.token(token)
	if err != nil {
		return Info{}, err
	}
	return t.info, nil
}

// BalanceOf returns account's balance of token.
func (l *MemoryLedger) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, err := l.token(token)
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return new(big.Int).Set(t.balance(account)), nil
}

// Allowance returns how much spender may still move on behalf of owner.
func (l *MemoryLedger) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, err := l.token(token)
	if err != nil {
		return nil, fmt.Errorf("allowance: %w", err)
	}
	return new(big.Int).Set(t.allowance(owner, spender)), nil
}

// Approve sets spender's allowance over owner's tokens, replacing any
// previous value.
func (l *MemoryLedger) Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return fmt.Errorf("approve: %w", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.token(token)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	t.allowances[allowanceKey{owner, spender}] = new(big.Int).Set(amount)
	return nil
}

// Transfer moves amount of token from one account to another.
func (l *MemoryLedger) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return fmt.Errorf("transfer: %w", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.token(token)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if t.balance(from).Cmp(amount) < 0 {
		return fmt.Errorf("transfer %s: %w", t.info.Symbol, ErrInsufficientBalance)
	}
	t.debit(from, amount)
	t.credit(to, amount)
	return nil
}

// TransferFrom moves amount of token from from to to, spending spender's
// allowance. Nothing moves unless both allowance and balance suffice.
func (l *MemoryLedger) TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return fmt.Errorf("transferFrom: %w", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.token(token)
	if err != nil {
		return fmt.Errorf("transferFrom: %w", err)
	}

	allowed := t.allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("transferFrom %s: %w", t.info.Symbol, ErrInsufficientAllowance)
	}
	if t.balance(from).Cmp(amount) < 0 {
		return fmt.Errorf("transferFrom %s: %w", t.info.Symbol, ErrInsufficientBalance)
	}

	if allowed.Cmp(MaxUint256) != 0 {
		t.allowances[allowanceKey{from, spender}] = new(big.Int).Sub(allowed, amount)
	}
	t.debit(from, amount)
	t.credit(to, amount)
	return nil
}

func (l *MemoryLedger) token(addr common.Address) (*erc20, error) {
	t, ok := l.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return t, nil
}

func (t *erc20) balance(account common.Address) *big.Int {
	if b, ok := t.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (t *erc20) allowance(owner, spender common.Address) *big.Int {
	if a, ok := t.allowances[allowanceKey{owner, spender}]; ok {
		return a
	}
	return new(big.Int)
}

func (t *erc20) credit(account common.Address, amount *big.Int) {
	t.balances[account] = new(big.Int).Add(t.balance(account), amount)
}

func (t *erc20) debit(account common.Address, amount *big.Int) {
	t.balances[account] = new(big.Int).Sub(t.balance(account), amount)
}
