package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/govopt/internal/adapters/clock"
	"github.com/trebuchet-org/govopt/internal/adapters/events"
	"github.com/trebuchet-org/govopt/internal/adapters/tokens"
	"github.com/trebuchet-org/govopt/internal/adapters/verifiers"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/governance/expertise"
	"github.com/trebuchet-org/govopt/internal/governance/history"
	"github.com/trebuchet-org/govopt/internal/governance/privacy"
	"github.com/trebuchet-org/govopt/internal/governance/selector"
	"github.com/trebuchet-org/govopt/internal/governance/voting"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
	carol = common.HexToAddress("0xCA20100000000000000000000000000000000003")
	start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

// MockActionExecutor is a mock implementation of ActionExecutor
type MockActionExecutor struct {
	mock.Mock
}

func (m *MockActionExecutor) ExecuteActions(ctx context.Context, proposalID common.Hash, actions []domain.Action) error {
	args := m.Called(ctx, proposalID, actions)
	return args.Error(0)
}

type engine struct {
	cfg       *config.EngineConfig
	clock     *clock.ManualClock
	tokens    *tokens.Ledger
	verifiers *verifiers.Set
	expertise *expertise.Ledger
	history   *history.Ledger
	selector  *selector.Selector
	gate      *privacy.Gate
	events    *events.Log
	executor  *MockActionExecutor
	lifecycle *usecase.ProposalLifecycle
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, mutate func(*config.EngineConfig)) *engine {
	t.Helper()
	cfg := config.DefaultEngineConfig()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	log := discardLogger()

	e := &engine{
		cfg:       cfg,
		clock:     clock.NewManualClock(),
		tokens:    tokens.NewLedger(),
		verifiers: verifiers.NewSet(),
		events:    events.NewLog(),
		executor:  &MockActionExecutor{},
	}
	e.clock.Set(start)
	e.expertise = expertise.NewLedger(cfg, e.verifiers, e.events, log)
	e.history = history.NewLedger(e.events, log)
	registry := voting.NewRegistry(e.tokens, e.expertise, cfg)
	e.selector = selector.New(cfg, registry, e.events, log)
	e.gate = privacy.NewGate(cfg, e.expertise, e.events, log)
	e.lifecycle = usecase.NewProposalLifecycle(cfg, e.selector, e.history, e.gate, e.tokens, e.executor, e.clock, e.events, log)
	return e
}

func (e *engine) mint(t *testing.T, account common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, e.tokens.Mint(context.Background(), account, uint256.NewInt(amount)))
}

func (e *engine) register(t *testing.T, desc domain.ModuleDescriptor) {
	t.Helper()
	_, err := e.selector.RegisterModule(context.Background(), &desc, e.clock.Now())
	require.NoError(t, err)
}

func tokenModule(id uint64, quorum string, private bool) domain.ModuleDescriptor {
	return domain.ModuleDescriptor{
		ID:                 id,
		Name:               "token",
		Kind:               domain.ModuleKindToken,
		SuitableCategories: []string{"general"},
		MinUrgency:         0,
		MaxUrgency:         10,
		Private:            private,
		Params: domain.ModuleParams{
			QuorumWeight: quorum,
			ThresholdBps: 5000,
		},
	}
}

func (e *engine) create(t *testing.T, creator common.Address, metadata string) *domain.Proposal {
	t.Helper()
	p, err := e.lifecycle.CreateProposal(context.Background(), usecase.CreateProposalParams{
		Creator:     creator,
		MetadataURI: metadata,
		Context:     domain.ContextParams{Category: "general"},
		Actions:     []domain.Action{{Target: bob, Value: uint256.NewInt(1)}},
	})
	require.NoError(t, err)
	return p
}

func (e *engine) vote(t *testing.T, id common.Hash, voter common.Address, support bool) {
	t.Helper()
	_, err := e.lifecycle.CastVote(context.Background(), usecase.VoteParams{ProposalID: id, Voter: voter, Support: support})
	require.NoError(t, err)
}

func eventTypes(evs []domain.Event) []domain.EventType {
	out := make([]domain.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}
