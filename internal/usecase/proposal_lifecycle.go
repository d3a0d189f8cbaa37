package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/governance/history"
	"github.com/trebuchet-org/govopt/internal/governance/privacy"
	"github.com/trebuchet-org/govopt/internal/governance/selector"
	"github.com/trebuchet-org/govopt/internal/governance/voting"
)

// ProposalLifecycle drives proposals from creation to execution. Mutations of
// one proposal never interleave: each takes the proposal's guard, and a nested
// mutation from a collaborator callback fails with ErrReentrancyRejected.
type ProposalLifecycle struct {
	cfg      *config.EngineConfig
	selector *selector.Selector
	history  *history.Ledger
	gate     *privacy.Gate
	tokens   TokenLedger
	executor ActionExecutor
	clock    Clock
	events   domain.EventSink
	log      *slog.Logger

	mu        sync.RWMutex
	proposals map[common.Hash]*proposalEntry
	nonces    map[common.Address]uint64
	epoch     uint64

	guardMu  sync.Mutex
	inFlight map[common.Hash]string
}

type proposalEntry struct {
	proposal *domain.Proposal
	decision *domain.DecisionContext
	votes    []domain.VoteRecord
}

// NewProposalLifecycle creates the lifecycle orchestrator
func NewProposalLifecycle(
	cfg *config.EngineConfig,
	sel *selector.Selector,
	ledger *history.Ledger,
	gate *privacy.Gate,
	tokens TokenLedger,
	executor ActionExecutor,
	clock Clock,
	events domain.EventSink,
	log *slog.Logger,
) *ProposalLifecycle {
	return &ProposalLifecycle{
		cfg:       cfg,
		selector:  sel,
		history:   ledger,
		gate:      gate,
		tokens:    tokens,
		executor:  executor,
		clock:     clock,
		events:    events,
		log:       log.With("component", "lifecycle"),
		proposals: make(map[common.Hash]*proposalEntry),
		nonces:    make(map[common.Address]uint64),
		inFlight:  make(map[common.Hash]string),
	}
}

// CreateProposalParams contains parameters for creating a proposal
type CreateProposalParams struct {
	Creator     common.Address
	MetadataURI string
	Context     domain.ContextParams
	Actions     []domain.Action
}

// VoteParams contains parameters for a direct vote
type VoteParams struct {
	ProposalID common.Hash
	Voter      common.Address
	Support    bool
	Reason     string
}

// CommitParams contains parameters for committing a hidden vote
type CommitParams struct {
	ProposalID common.Hash
	Voter      common.Address
	Digest     common.Hash
}

// RevealParams contains parameters for revealing a committed vote
type RevealParams struct {
	ProposalID common.Hash
	Voter      common.Address
	Support    bool
	Salt       common.Hash
}

// ProposalView is a proposal together with its context and bound module
type ProposalView struct {
	Proposal *domain.Proposal
	Context  *domain.DecisionContext
	Module   *domain.ModuleDescriptor
	Quorum   *uint256.Int
	Schedule *domain.PhaseSchedule
}

// SetNonceEpoch moves proposal nonces into a new range so that proposals of
// a resumed session never reuse the identifiers of persisted history.
func (l *ProposalLifecycle) SetNonceEpoch(epoch uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch = epoch
}

// guard marks proposalID as being mutated by op; the returned func releases it
func (l *ProposalLifecycle) guard(proposalID common.Hash, op string) (func(), error) {
	l.guardMu.Lock()
	defer l.guardMu.Unlock()
	if running, busy := l.inFlight[proposalID]; busy {
		return nil, fmt.Errorf("%w: %s on %s while %s is in progress", domain.ErrReentrancyRejected, op, proposalID.Hex(), running)
	}
	l.inFlight[proposalID] = op
	return func() {
		l.guardMu.Lock()
		delete(l.inFlight, proposalID)
		l.guardMu.Unlock()
	}, nil
}

// snapshot returns copies of a proposal and its context
func (l *ProposalLifecycle) snapshot(proposalID common.Hash) (*domain.Proposal, *domain.DecisionContext, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.proposals[proposalID]
	if !ok {
		return nil, nil, fmt.Errorf("proposal %s: %w", proposalID.Hex(), domain.ErrNotFound)
	}
	return entry.proposal.Clone(), entry.decision, nil
}

// transition moves a stored proposal to next and returns the state-changed
// event. The caller holds l.mu and emits the event after releasing it.
func (l *ProposalLifecycle) transition(p *domain.Proposal, next domain.ProposalState, at time.Time) domain.Event {
	prev := p.State
	p.State = next
	l.log.Info("proposal state changed", "proposal", p.ID.Hex(), "from", prev, "to", next)
	return domain.NewEvent(domain.EventTypeStateChanged, at).
		WithProposal(p.ID).
		WithModule(p.ModuleID).
		With("from", prev).
		With("to", next)
}

// CreateProposal classifies the context, binds the best module and opens voting
func (l *ProposalLifecycle) CreateProposal(ctx context.Context, params CreateProposalParams) (*domain.Proposal, error) {
	decision, err := domain.NewDecisionContext(params.Context)
	if err != nil {
		return nil, err
	}
	module, err := l.selector.Select(decision)
	if err != nil {
		return nil, err
	}
	desc := module.Descriptor()

	actions := make([]domain.Action, len(params.Actions))
	for i, a := range params.Actions {
		actions[i] = domain.Action{Target: a.Target, Value: a.ValueOrZero().Clone(), Payload: append([]byte(nil), a.Payload...)}
	}

	l.mu.RLock()
	nonce := l.nonces[params.Creator]
	epoch := l.epoch
	l.mu.RUnlock()
	id, err := domain.ProposalIDFor(params.Creator, epoch<<32|nonce, params.MetadataURI, decision.ID, actions)
	if err != nil {
		return nil, fmt.Errorf("failed to derive proposal id: %w", err)
	}

	release, err := l.guard(id, "create")
	if err != nil {
		return nil, err
	}
	defer release()

	l.mu.RLock()
	_, exists := l.proposals[id]
	l.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("proposal %s: %w", id.Hex(), domain.ErrAlreadyExists)
	}

	now := l.clock.Now()
	private := decision.Private || desc.Private
	deadline := now.Add(config.Relieve(l.cfg.Voting.VotingDuration.Duration, decision.UrgencyLevel, l.cfg.Voting.UrgencyReliefPct))
	if private {
		deadline = l.gate.Schedule(decision, now).RevealDeadline
	}

	if err := module.Initialize(id, decision); err != nil {
		return nil, err
	}
	if private {
		if _, err := l.gate.Open(id, decision, now); err != nil {
			module.Discard(id)
			return nil, err
		}
	}

	p := &domain.Proposal{
		ID:             id,
		Creator:        params.Creator,
		MetadataURI:    params.MetadataURI,
		Actions:        actions,
		State:          domain.ProposalStatePending,
		ContextID:      decision.ID,
		ModuleID:       desc.ID,
		Private:        private,
		CreatedAt:      now,
		VotingDeadline: deadline,
		Tally:          domain.NewTally(),
	}

	created := domain.NewEvent(domain.EventTypeProposalCreated, now).
		WithProposal(id).
		WithAccount(params.Creator).
		WithModule(desc.ID).
		With("context", decision.ID.Hex()).
		With("category", decision.Category).
		With("urgency", decision.UrgencyLevel).
		With("private", private).
		With("deadline", deadline.Format(time.RFC3339))

	l.mu.Lock()
	l.proposals[id] = &proposalEntry{proposal: p, decision: decision}
	l.nonces[params.Creator] = nonce + 1
	activated := l.transition(p, domain.ProposalStateActive, now)
	out := p.Clone()
	l.mu.Unlock()

	l.events.Emit(ctx, created)
	l.events.Emit(ctx, activated)

	l.log.Info("proposal created",
		"proposal", id.Hex(),
		"creator", params.Creator.Hex(),
		"module", desc.Name,
		"category", decision.Category,
		"urgency", decision.UrgencyLevel,
		"private", private,
	)
	return out, nil
}

// activeModule loads a proposal that must be Active and its bound module
func (l *ProposalLifecycle) activeModule(proposalID common.Hash) (*domain.Proposal, *voting.Module, error) {
	p, _, err := l.snapshot(proposalID)
	if err != nil {
		return nil, nil, err
	}
	if p.State != domain.ProposalStateActive {
		return nil, nil, fmt.Errorf("%w: %s is %s", domain.ErrProposalNotActive, proposalID.Hex(), p.State)
	}
	module, err := l.selector.GetModule(p.ModuleID)
	if err != nil {
		return nil, nil, err
	}
	return p, module, nil
}

// count computes the voter's weight and adds it to the module tally
func (l *ProposalLifecycle) count(ctx context.Context, module *voting.Module, proposalID common.Hash, voter common.Address, support bool, at time.Time) (voting.Power, error) {
	if module.HasVoted(proposalID, voter) {
		return voting.Power{}, fmt.Errorf("%s on %s: %w", voter.Hex(), proposalID.Hex(), domain.ErrDuplicateVote)
	}
	power, err := module.CalculateVotingPower(ctx, proposalID, voter, at)
	if err != nil {
		return voting.Power{}, err
	}
	if power.Weight.IsZero() {
		return voting.Power{}, fmt.Errorf("%s on %s: %w", voter.Hex(), proposalID.Hex(), domain.ErrNoVotingPower)
	}
	if err := module.Count(proposalID, voter, support, power); err != nil {
		return voting.Power{}, err
	}
	return power, nil
}

// recordVote stores a counted vote and refreshes the proposal's tally
func (l *ProposalLifecycle) recordVote(ctx context.Context, module *voting.Module, vote domain.VoteRecord) error {
	tally, err := module.Tally(vote.ProposalID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	entry := l.proposals[vote.ProposalID]
	entry.proposal.Tally = tally
	entry.votes = append(entry.votes, vote)
	l.mu.Unlock()

	l.log.Debug("vote counted",
		"proposal", vote.ProposalID.Hex(),
		"voter", vote.Voter.Hex(),
		"support", vote.Support,
		"weight", vote.Weight.Dec(),
		"private", vote.Private,
	)
	l.events.Emit(ctx, domain.NewEvent(domain.EventTypeVoteCast, vote.CastAt).
		WithProposal(vote.ProposalID).
		WithAccount(vote.Voter).
		WithModule(module.ID()).
		With("support", vote.Support).
		With("weight", vote.Weight.Dec()).
		With("private", vote.Private))
	return nil
}

// CastVote counts a direct vote on a proposal that is not privacy-gated
func (l *ProposalLifecycle) CastVote(ctx context.Context, params VoteParams) (*domain.VoteRecord, error) {
	release, err := l.guard(params.ProposalID, "vote")
	if err != nil {
		return nil, err
	}
	defer release()

	p, module, err := l.activeModule(params.ProposalID)
	if err != nil {
		return nil, err
	}
	now := l.clock.Now()
	if !now.Before(p.VotingDeadline) {
		return nil, fmt.Errorf("%w: voting on %s ended at %s", domain.ErrPhaseClosed, p.ID.Hex(), p.VotingDeadline.Format(time.RFC3339))
	}
	if p.Private {
		return nil, fmt.Errorf("%w: %s only accepts commit-reveal votes", domain.ErrPrivacyRequired, p.ID.Hex())
	}

	power, err := l.count(ctx, module, p.ID, params.Voter, params.Support, now)
	if err != nil {
		return nil, err
	}
	vote := domain.VoteRecord{
		ProposalID: p.ID,
		Voter:      params.Voter,
		Support:    params.Support,
		Weight:     power.Weight,
		Reason:     params.Reason,
		CastAt:     now,
	}
	if err := l.recordVote(ctx, module, vote); err != nil {
		return nil, err
	}
	return &vote, nil
}

// CommitVote stores a hidden vote on a privacy-gated proposal
func (l *ProposalLifecycle) CommitVote(ctx context.Context, params CommitParams) error {
	release, err := l.guard(params.ProposalID, "commit")
	if err != nil {
		return err
	}
	defer release()

	p, _, err := l.activeModule(params.ProposalID)
	if err != nil {
		return err
	}
	if !p.Private {
		return fmt.Errorf("%w: %s is not privacy-gated", domain.ErrInvalidState, p.ID.Hex())
	}
	return l.gate.Commit(ctx, p.ID, params.Voter, params.Digest, l.clock.Now())
}

// RevealVote opens a commitment and counts the vote it hides
func (l *ProposalLifecycle) RevealVote(ctx context.Context, params RevealParams) (*domain.VoteRecord, error) {
	release, err := l.guard(params.ProposalID, "reveal")
	if err != nil {
		return nil, err
	}
	defer release()

	p, module, err := l.activeModule(params.ProposalID)
	if err != nil {
		return nil, err
	}
	if !p.Private {
		return nil, fmt.Errorf("%w: %s is not privacy-gated", domain.ErrInvalidState, p.ID.Hex())
	}

	now := l.clock.Now()
	var power voting.Power
	err = l.gate.Reveal(ctx, p.ID, params.Voter, params.Support, params.Salt, now, func(support bool) error {
		var err error
		power, err = l.count(ctx, module, p.ID, params.Voter, support, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	vote := domain.VoteRecord{
		ProposalID: p.ID,
		Voter:      params.Voter,
		Support:    params.Support,
		Weight:     power.Weight,
		Private:    true,
		CastAt:     now,
	}
	if err := l.recordVote(ctx, module, vote); err != nil {
		return nil, err
	}
	return &vote, nil
}

// participationBps is the share of the token supply that took part
func (l *ProposalLifecycle) participationBps(ctx context.Context, tally *domain.Tally) (uint64, error) {
	supply, err := l.tokens.TotalSupply(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read total supply: %w", err)
	}
	if supply.IsZero() {
		return 0, nil
	}
	share, overflow := new(uint256.Int).MulDivOverflow(tally.ParticipatingBalance, uint256.NewInt(domain.MaxBps), supply)
	if overflow || share.GtUint64(domain.MaxBps) {
		return domain.MaxBps, nil
	}
	return share.Uint64(), nil
}

// FinalizeProposal decides an Active proposal. Before the deadline only an
// early success is accepted; afterwards the proposal succeeds iff it met
// quorum and threshold. The outcome is written to the history ledger and fed
// back to module selection.
func (l *ProposalLifecycle) FinalizeProposal(ctx context.Context, proposalID common.Hash) (*domain.Proposal, error) {
	release, err := l.guard(proposalID, "finalize")
	if err != nil {
		return nil, err
	}
	defer release()

	p, module, err := l.activeModule(proposalID)
	if err != nil {
		return nil, err
	}
	_, decision, err := l.snapshot(proposalID)
	if err != nil {
		return nil, err
	}

	quorum, err := module.HasQuorum(proposalID)
	if err != nil {
		return nil, err
	}
	passed, err := module.HasPassed(proposalID)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	outcome := domain.ProposalStateFailed
	if quorum && passed {
		outcome = domain.ProposalStateSucceeded
	}
	if now.Before(p.VotingDeadline) {
		switch {
		case p.Private:
			return nil, fmt.Errorf("%w: reveal on %s closes at %s", domain.ErrVotingPeriodOpen, p.ID.Hex(), p.VotingDeadline.Format(time.RFC3339))
		case !quorum:
			return nil, fmt.Errorf("%w: %s before its deadline", domain.ErrQuorumNotMet, p.ID.Hex())
		case !passed:
			return nil, fmt.Errorf("%w: %s before its deadline", domain.ErrThresholdNotMet, p.ID.Hex())
		}
	}

	tally, err := module.Tally(proposalID)
	if err != nil {
		return nil, err
	}
	participation, err := l.participationBps(ctx, tally)
	if err != nil {
		return nil, err
	}
	record := domain.HistoryRecord{
		ProposalID:           p.ID,
		ContextID:            p.ContextID,
		ModuleID:             p.ModuleID,
		Category:             decision.Category,
		ParticipationBps:     participation,
		ExecutionTimeSeconds: uint64(now.Sub(p.CreatedAt) / time.Second),
		Succeeded:            outcome == domain.ProposalStateSucceeded,
		RecordedAt:           now,
	}
	root, err := l.history.RecordHistory(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to record outcome of %s: %w", p.ID.Hex(), err)
	}

	l.mu.Lock()
	stored := l.proposals[proposalID].proposal
	stored.Tally = tally
	finalizedAt := now
	stored.FinalizedAt = &finalizedAt
	changed := l.transition(stored, outcome, now)
	out := stored.Clone()
	l.mu.Unlock()
	l.events.Emit(ctx, changed)

	err = l.selector.UpdatePerformance(selector.Sample{
		ModuleID:         record.ModuleID,
		Category:         record.Category,
		ParticipationBps: record.ParticipationBps,
		ExecutionTime:    now.Sub(p.CreatedAt),
		Succeeded:        record.Succeeded,
	})
	if err != nil {
		l.log.Warn("failed to update module performance", "module", record.ModuleID, "error", err)
	}

	l.log.Info("proposal finalized",
		"proposal", p.ID.Hex(),
		"state", outcome,
		"support", tally.SupportWeight.Dec(),
		"against", tally.AgainstWeight.Dec(),
		"participation_bps", participation,
		"root", root.Hex(),
	)
	return out, nil
}

// ExecuteProposal runs a Succeeded proposal's actions atomically. A failed
// batch leaves the proposal Succeeded so execution can be retried.
func (l *ProposalLifecycle) ExecuteProposal(ctx context.Context, proposalID common.Hash) (*domain.Proposal, error) {
	release, err := l.guard(proposalID, "execute")
	if err != nil {
		return nil, err
	}
	defer release()

	p, decision, err := l.snapshot(proposalID)
	if err != nil {
		return nil, err
	}
	if p.State != domain.ProposalStateSucceeded {
		return nil, fmt.Errorf("%w: cannot execute %s in state %s", domain.ErrInvalidState, p.ID.Hex(), p.State)
	}
	if err := l.history.Halted(); err != nil {
		return nil, err
	}
	latest, err := l.history.Latest(p.ID)
	if err != nil {
		return nil, err
	}

	if err := l.executor.ExecuteActions(ctx, p.ID, p.Actions); err != nil {
		l.log.Warn("proposal execution failed", "proposal", p.ID.Hex(), "error", err)
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExecutionFailed, p.ID.Hex(), err)
	}

	now := l.clock.Now()
	l.mu.Lock()
	stored := l.proposals[proposalID].proposal
	executedAt := now
	stored.ExecutedAt = &executedAt
	changed := l.transition(stored, domain.ProposalStateExecuted, now)
	out := stored.Clone()
	l.mu.Unlock()
	l.events.Emit(ctx, changed)

	amendment := latest
	amendment.Category = decision.Category
	amendment.Executed = true
	amendment.ExecutionTimeSeconds = uint64(now.Sub(p.CreatedAt) / time.Second)
	amendment.RecordedAt = now
	if _, err := l.history.RecordHistory(ctx, amendment); err != nil {
		l.log.Error("failed to record execution", "proposal", p.ID.Hex(), "error", err)
		return out, fmt.Errorf("executed %s but failed to record it: %w", p.ID.Hex(), err)
	}

	l.log.Info("proposal executed", "proposal", p.ID.Hex(), "actions", len(p.Actions))
	return out, nil
}

// CancelProposal cancels a Pending or Active proposal on behalf of its creator
func (l *ProposalLifecycle) CancelProposal(ctx context.Context, proposalID common.Hash, caller common.Address) (*domain.Proposal, error) {
	release, err := l.guard(proposalID, "cancel")
	if err != nil {
		return nil, err
	}
	defer release()

	p, _, err := l.snapshot(proposalID)
	if err != nil {
		return nil, err
	}
	if caller != p.Creator {
		return nil, fmt.Errorf("%w: only %s may cancel %s", domain.ErrUnauthorized, p.Creator.Hex(), p.ID.Hex())
	}
	if p.State != domain.ProposalStatePending && p.State != domain.ProposalStateActive {
		return nil, fmt.Errorf("%w: cannot cancel %s in state %s", domain.ErrInvalidState, p.ID.Hex(), p.State)
	}

	now := l.clock.Now()
	l.mu.Lock()
	stored := l.proposals[proposalID].proposal
	changed := l.transition(stored, domain.ProposalStateCanceled, now)
	out := stored.Clone()
	l.mu.Unlock()
	l.events.Emit(ctx, changed)

	l.log.Info("proposal canceled", "proposal", p.ID.Hex(), "caller", caller.Hex())
	return out, nil
}

// GetProposal returns a copy of a proposal
func (l *ProposalLifecycle) GetProposal(proposalID common.Hash) (*domain.Proposal, error) {
	p, _, err := l.snapshot(proposalID)
	return p, err
}

// GetProposalState returns the current state of a proposal
func (l *ProposalLifecycle) GetProposalState(proposalID common.Hash) (domain.ProposalState, error) {
	p, _, err := l.snapshot(proposalID)
	if err != nil {
		return 0, err
	}
	return p.State, nil
}

// GetProposalVotingModule returns the descriptor of the module bound to a proposal
func (l *ProposalLifecycle) GetProposalVotingModule(proposalID common.Hash) (*domain.ModuleDescriptor, error) {
	p, _, err := l.snapshot(proposalID)
	if err != nil {
		return nil, err
	}
	module, err := l.selector.GetModule(p.ModuleID)
	if err != nil {
		return nil, err
	}
	return module.Descriptor(), nil
}

// GetVotingPower previews a voter's weight on a proposal without counting it
func (l *ProposalLifecycle) GetVotingPower(ctx context.Context, proposalID common.Hash, voter common.Address) (voting.Power, error) {
	p, _, err := l.snapshot(proposalID)
	if err != nil {
		return voting.Power{}, err
	}
	module, err := l.selector.GetModule(p.ModuleID)
	if err != nil {
		return voting.Power{}, err
	}
	return module.CalculateVotingPower(ctx, proposalID, voter, l.clock.Now())
}

// GetContext returns the decision context bound to a proposal
func (l *ProposalLifecycle) GetContext(proposalID common.Hash) (*domain.DecisionContext, error) {
	_, decision, err := l.snapshot(proposalID)
	return decision, err
}

// Votes returns the counted votes of a proposal in counting order
func (l *ProposalLifecycle) Votes(proposalID common.Hash) ([]domain.VoteRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.proposals[proposalID]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", proposalID.Hex(), domain.ErrNotFound)
	}
	return append([]domain.VoteRecord(nil), entry.votes...), nil
}

// View returns a proposal with its context, module and quorum requirement
func (l *ProposalLifecycle) View(proposalID common.Hash) (*ProposalView, error) {
	p, decision, err := l.snapshot(proposalID)
	if err != nil {
		return nil, err
	}
	module, err := l.selector.GetModule(p.ModuleID)
	if err != nil {
		return nil, err
	}
	quorum, err := module.QuorumRequirement(proposalID)
	if err != nil {
		return nil, err
	}
	view := &ProposalView{Proposal: p, Context: decision, Module: module.Descriptor(), Quorum: quorum}
	if p.Private {
		schedule, err := l.gate.PhaseSchedule(proposalID)
		if err != nil {
			return nil, err
		}
		view.Schedule = &schedule
	}
	return view, nil
}

// Proposals returns every proposal ordered by creation time
func (l *ProposalLifecycle) Proposals() []*domain.Proposal {
	l.mu.RLock()
	out := make([]*domain.Proposal, 0, len(l.proposals))
	for _, entry := range l.proposals {
		out = append(out, entry.proposal.Clone())
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Big().Cmp(out[j].ID.Big()) < 0
	})
	return out
}
