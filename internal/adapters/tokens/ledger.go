// Package tokens is an in-memory token ledger. It supplies voting balances
// and doubles as the atomic action executor: a proposal's action values are
// paid out of a treasury account in a single all-or-nothing batch.
package tokens

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// Transfer moves Amount from one account to another
type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

// Ledger keeps balances and the total supply
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
	supply   *uint256.Int
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]*uint256.Int),
		supply:   new(uint256.Int),
	}
}

// BalanceOf returns the balance of account
func (l *Ledger) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[account]; ok {
		return b.Clone(), nil
	}
	return new(uint256.Int), nil
}

// TotalSupply returns the sum of all balances
func (l *Ledger) TotalSupply(_ context.Context) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply.Clone(), nil
}

// Mint credits amount to account
func (l *Ledger) Mint(_ context.Context, account common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return fmt.Errorf("minting %s overflows the total supply", amount.Dec())
	}
	balance := l.balances[account]
	if balance == nil {
		balance = new(uint256.Int)
	}
	l.balances[account] = new(uint256.Int).Add(balance, amount)
	l.supply = supply
	return nil
}

// Apply runs transfers as one batch. If any transfer lacks funds no balance changes.
func (l *Ledger) Apply(_ context.Context, transfers []Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[common.Address]*uint256.Int)
	balance := func(a common.Address) *uint256.Int {
		if b, ok := staged[a]; ok {
			return b
		}
		b := new(uint256.Int)
		if cur, ok := l.balances[a]; ok {
			b.Set(cur)
		}
		staged[a] = b
		return b
	}

	for i, t := range transfers {
		from := balance(t.From)
		if from.Lt(t.Amount) {
			return fmt.Errorf("transfer %d: %s holds %s, needs %s", i, t.From.Hex(), from.Dec(), t.Amount.Dec())
		}
		from.Sub(from, t.Amount)
		to := balance(t.To)
		to.Add(to, t.Amount)
	}

	for a, b := range staged {
		l.balances[a] = b
	}
	return nil
}

// ActionHook observes one action before its value moves. Hooks stand in for
// the target contract's code; an error aborts the whole batch.
type ActionHook func(ctx context.Context, proposalID common.Hash, action domain.Action) error

// Executor pays proposal actions out of the treasury
type Executor struct {
	ledger   *Ledger
	treasury common.Address
	log      *slog.Logger

	mu    sync.RWMutex
	hooks []ActionHook
}

// NewExecutor creates an executor paying from the configured treasury
func NewExecutor(ledger *Ledger, cfg *config.EngineConfig, log *slog.Logger) *Executor {
	return &Executor{
		ledger:   ledger,
		treasury: common.HexToAddress(cfg.Executor.Treasury),
		log:      log.With("component", "executor"),
	}
}

// Treasury returns the account action values are paid from
func (e *Executor) Treasury() common.Address {
	return e.treasury
}

// OnAction registers a hook run for every executed action
func (e *Executor) OnAction(hook ActionHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, hook)
}

// ExecuteActions runs the hooks of every action, then applies all value
// transfers at once. Hooks run without any ledger lock held.
func (e *Executor) ExecuteActions(ctx context.Context, proposalID common.Hash, actions []domain.Action) error {
	e.mu.RLock()
	hooks := append([]ActionHook(nil), e.hooks...)
	e.mu.RUnlock()

	transfers := make([]Transfer, 0, len(actions))
	for i, a := range actions {
		for _, hook := range hooks {
			if err := hook(ctx, proposalID, a); err != nil {
				return fmt.Errorf("action %d on %s: %w", i, a.Target.Hex(), err)
			}
		}
		if value := a.ValueOrZero(); !value.IsZero() {
			transfers = append(transfers, Transfer{From: e.treasury, To: a.Target, Amount: value})
		}
	}
	if err := e.ledger.Apply(ctx, transfers); err != nil {
		return err
	}
	e.log.Debug("actions executed", "proposal", proposalID.Hex(), "actions", len(actions), "transfers", len(transfers))
	return nil
}

var (
	_ usecase.TokenLedger    = (*Ledger)(nil)
	_ usecase.TokenIssuer    = (*Ledger)(nil)
	_ usecase.ActionExecutor = (*Executor)(nil)
)
