package usecase

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
)

// Clock is the shared monotonic clock every deadline is evaluated against
type Clock interface {
	Now() time.Time
}

// TokenLedger provides the balances voting weight derives from
type TokenLedger interface {
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
	TotalSupply(ctx context.Context) (*uint256.Int, error)
}

// ActionExecutor runs a proposal's actions as one atomic batch. Either every
// action applies or none does.
type ActionExecutor interface {
	ExecuteActions(ctx context.Context, proposalID common.Hash, actions []domain.Action) error
}

// VerifierRegistry keeps the verifier addresses of every expertise domain
type VerifierRegistry interface {
	IsVerifier(domainID string, account common.Address) bool
	AddVerifier(domainID string, account common.Address)
	Verifiers(domainID string) []common.Address
}

// EventLog is the ordered stream of governance events
type EventLog interface {
	domain.EventSink
	Events() []domain.Event
}

// HistoryStore persists history ledger snapshots between runs
type HistoryStore interface {
	Load(ctx context.Context) (*domain.HistorySnapshot, error)
	Save(ctx context.Context, snapshot domain.HistorySnapshot) error
	GetPath() string
}

// EventFilter selects archived events. Zero fields match everything.
type EventFilter struct {
	Type       domain.EventType
	ProposalID *common.Hash
	Account    *common.Address
	Limit      int
}

// EventArchive appends events to durable storage and reads them back
type EventArchive interface {
	Append(ctx context.Context, events []domain.Event) error
	Query(ctx context.Context, filter EventFilter) ([]domain.Event, error)
	GetPath() string
}

// ScenarioLoader reads scenario files
type ScenarioLoader interface {
	LoadScenario(ctx context.Context, path string) (*domain.Scenario, error)
}

// LocalConfigRepository manages local configuration persistence
type LocalConfigRepository interface {
	Exists() bool
	Load(ctx context.Context) (*config.LocalConfig, error)
	Save(ctx context.Context, config *config.LocalConfig) error
	GetPath() string
}

// TokenIssuer credits balances when a scenario seeds the token ledger
type TokenIssuer interface {
	Mint(ctx context.Context, account common.Address, amount *uint256.Int) error
}

// ClockController moves a manual clock
type ClockController interface {
	Clock
	Set(t time.Time)
	Advance(d time.Duration) time.Time
}

// ProgressEvent reports one step of a long-running use case
type ProgressEvent struct {
	Stage   string
	Current int
	Total   int
	Message string
	// Metadata carries the stage-specific payload, e.g. a StepOutcome
	Metadata any
}

// ProgressSink receives progress updates
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}
