// Package voting implements the fixed set of voting strategies a proposal can
// be bound to. Every strategy shares one per-proposal tally; they differ only
// in how a voter's weight is derived.
package voting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/trebuchet-org/govopt/internal/domain"
)

const (
	// DefaultExpertiseCapBps caps the expertise multiplier at 2x
	DefaultExpertiseCapBps uint64 = 20_000
	// DefaultStakeholderBoostBps boosts stakeholders by 1.5x
	DefaultStakeholderBoostBps uint64 = 15_000
)

var bpsDenominator = uint256.NewInt(domain.MaxBps)

// BalanceReader reads token balances
type BalanceReader interface {
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
}

// ExpertiseReader reads decay-adjusted expertise scores
type ExpertiseReader interface {
	EffectiveScore(account common.Address, domainID string, at time.Time) uint64
}

// Power is a voter's weight under a module together with the raw balance it derives from
type Power struct {
	Weight  *uint256.Int
	Balance *uint256.Int
}

type session struct {
	decision *domain.DecisionContext
	tally    *domain.Tally
	voters   map[common.Address]bool
}

// Module is one registered voting strategy and the tallies of the proposals bound to it
type Module struct {
	desc          *domain.ModuleDescriptor
	quorum        *uint256.Int
	balances      BalanceReader
	expertise     ExpertiseReader
	urgencyRelief uint64

	mu       sync.RWMutex
	sessions map[common.Hash]*session
}

// NewModule builds a module from a validated descriptor
func NewModule(desc *domain.ModuleDescriptor, balances BalanceReader, expertise ExpertiseReader, urgencyReliefPct uint64) (*Module, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	quorum, err := desc.Params.Quorum()
	if err != nil {
		return nil, err
	}
	return &Module{
		desc:          desc.Clone(),
		quorum:        quorum,
		balances:      balances,
		expertise:     expertise,
		urgencyRelief: urgencyReliefPct,
		sessions:      make(map[common.Hash]*session),
	}, nil
}

// Descriptor returns a copy of the module's descriptor
func (m *Module) Descriptor() *domain.ModuleDescriptor {
	return m.desc.Clone()
}

// ID returns the module ID
func (m *Module) ID() uint64 {
	return m.desc.ID
}

// Initialize opens a tally for a proposal bound to this module
func (m *Module) Initialize(proposalID common.Hash, decision *domain.DecisionContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[proposalID]; exists {
		return fmt.Errorf("module %d already initialized for %s: %w", m.desc.ID, proposalID.Hex(), domain.ErrAlreadyExists)
	}
	m.sessions[proposalID] = &session{
		decision: decision,
		tally:    domain.NewTally(),
		voters:   make(map[common.Address]bool),
	}
	return nil
}

// Discard drops the tally opened for a proposal that was never created
func (m *Module) Discard(proposalID common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, proposalID)
}

func (m *Module) session(proposalID common.Hash) (*session, error) {
	s, ok := m.sessions[proposalID]
	if !ok {
		return nil, fmt.Errorf("proposal %s not bound to module %d: %w", proposalID.Hex(), m.desc.ID, domain.ErrNotFound)
	}
	return s, nil
}

// CalculateVotingPower computes voter's weight on the proposal without counting it
func (m *Module) CalculateVotingPower(ctx context.Context, proposalID common.Hash, voter common.Address, at time.Time) (Power, error) {
	m.mu.RLock()
	s, err := m.session(proposalID)
	m.mu.RUnlock()
	if err != nil {
		return Power{}, err
	}

	balance, err := m.balances.BalanceOf(ctx, voter)
	if err != nil {
		return Power{}, fmt.Errorf("failed to read balance of %s: %w", voter.Hex(), err)
	}
	weight, err := m.weight(s.decision, voter, balance, at)
	if err != nil {
		return Power{}, err
	}
	return Power{Weight: weight, Balance: balance.Clone()}, nil
}

// weight dispatches over the closed set of strategies
func (m *Module) weight(decision *domain.DecisionContext, voter common.Address, balance *uint256.Int, at time.Time) (*uint256.Int, error) {
	switch m.desc.Kind {
	case domain.ModuleKindToken:
		return balance.Clone(), nil
	case domain.ModuleKindQuadratic:
		return new(uint256.Int).Sqrt(balance), nil
	case domain.ModuleKindExpertise:
		return m.expertiseWeight(decision, voter, balance, at)
	case domain.ModuleKindHybrid:
		return m.hybridWeight(decision, voter, balance, at)
	case domain.ModuleKindStakeholder:
		if !decision.IsStakeholder(voter) {
			return balance.Clone(), nil
		}
		boost := m.desc.Params.StakeholderBoostBps
		if boost == 0 {
			boost = DefaultStakeholderBoostBps
		}
		return mulDiv(balance, uint256.NewInt(boost), bpsDenominator)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidModule, m.desc.Kind)
	}
}

// ExpertiseMultiplierBps maps a score in [0,100] to 1 + score/100, capped
func ExpertiseMultiplierBps(score, capBps uint64) uint64 {
	if score > domain.MaxExpertiseScore {
		score = domain.MaxExpertiseScore
	}
	if capBps == 0 {
		capBps = DefaultExpertiseCapBps
	}
	mult := domain.MaxBps + score*100
	if mult > capBps {
		return capBps
	}
	return mult
}

// averageScore is the mean effective score over the context's required domains
func (m *Module) averageScore(decision *domain.DecisionContext, voter common.Address, at time.Time) uint64 {
	if len(decision.RequiredExpertise) == 0 || m.expertise == nil {
		return 0
	}
	var sum uint64
	for _, d := range decision.RequiredExpertise {
		sum += m.expertise.EffectiveScore(voter, d, at)
	}
	return sum / uint64(len(decision.RequiredExpertise))
}

func (m *Module) expertiseWeight(decision *domain.DecisionContext, voter common.Address, balance *uint256.Int, at time.Time) (*uint256.Int, error) {
	mult := ExpertiseMultiplierBps(m.averageScore(decision, voter, at), m.desc.Params.ExpertiseCapBps)
	return mulDiv(balance, uint256.NewInt(mult), bpsDenominator)
}

func (m *Module) hybridWeight(decision *domain.DecisionContext, voter common.Address, balance *uint256.Int, at time.Time) (*uint256.Int, error) {
	blend := decision.BlendBps
	if blend == 0 {
		blend = m.desc.Params.BlendBps
	}
	expert, err := m.expertiseWeight(decision, voter, balance, at)
	if err != nil {
		return nil, err
	}
	tokenPart, overflow := new(uint256.Int).MulOverflow(balance, uint256.NewInt(domain.MaxBps-blend))
	if overflow {
		return nil, fmt.Errorf("hybrid weight overflow for %s", voter.Hex())
	}
	expertPart, overflow := new(uint256.Int).MulOverflow(expert, uint256.NewInt(blend))
	if overflow {
		return nil, fmt.Errorf("hybrid weight overflow for %s", voter.Hex())
	}
	sum, overflow := new(uint256.Int).AddOverflow(tokenPart, expertPart)
	if overflow {
		return nil, fmt.Errorf("hybrid weight overflow for %s", voter.Hex())
	}
	return sum.Div(sum, bpsDenominator), nil
}

// HasVoted reports whether voter already has a counted vote
func (m *Module) HasVoted(proposalID common.Hash, voter common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[proposalID]
	return ok && s.voters[voter]
}

// Count adds a computed vote to the tally exactly once per voter
func (m *Module) Count(proposalID common.Hash, voter common.Address, support bool, power Power) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.session(proposalID)
	if err != nil {
		return err
	}
	if s.voters[voter] {
		return fmt.Errorf("%s on %s: %w", voter.Hex(), proposalID.Hex(), domain.ErrDuplicateVote)
	}

	var side *uint256.Int
	if support {
		side = s.tally.SupportWeight
	} else {
		side = s.tally.AgainstWeight
	}
	next, overflow := new(uint256.Int).AddOverflow(side, power.Weight)
	if overflow {
		return fmt.Errorf("tally overflow on %s", proposalID.Hex())
	}
	participating, overflow := new(uint256.Int).AddOverflow(s.tally.ParticipatingBalance, power.Balance)
	if overflow {
		return fmt.Errorf("participation overflow on %s", proposalID.Hex())
	}

	side.Set(next)
	s.tally.ParticipatingBalance = participating
	s.tally.Voters++
	s.voters[voter] = true
	return nil
}

// Tally returns a copy of the proposal's tally
func (m *Module) Tally(proposalID common.Hash) (*domain.Tally, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, err := m.session(proposalID)
	if err != nil {
		return nil, err
	}
	return s.tally.Clone(), nil
}

// QuorumRequirement is the module quorum lowered by the context's urgency
func (m *Module) QuorumRequirement(proposalID common.Hash) (*uint256.Int, error) {
	m.mu.RLock()
	s, err := m.session(proposalID)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	factor := 100 - m.urgencyRelief*uint64(s.decision.UrgencyLevel)
	return mulDiv(m.quorum, uint256.NewInt(factor), uint256.NewInt(100))
}

// ApprovalThreshold is the support share in basis points required to pass
func (m *Module) ApprovalThreshold() uint64 {
	return m.desc.Params.ThresholdBps
}

// HasQuorum reports whether the counted weight reached the quorum requirement
func (m *Module) HasQuorum(proposalID common.Hash) (bool, error) {
	required, err := m.QuorumRequirement(proposalID)
	if err != nil {
		return false, err
	}
	tally, err := m.Tally(proposalID)
	if err != nil {
		return false, err
	}
	return !tally.TotalWeight().Lt(required), nil
}

// HasPassed reports whether the truncated support share meets the threshold
func (m *Module) HasPassed(proposalID common.Hash) (bool, error) {
	tally, err := m.Tally(proposalID)
	if err != nil {
		return false, err
	}
	return Passes(tally, m.desc.Params.ThresholdBps), nil
}

// SupportBps returns floor(support * 10000 / total), or 0 with no votes
func SupportBps(t *domain.Tally) *uint256.Int {
	total := t.TotalWeight()
	if total.IsZero() {
		return new(uint256.Int)
	}
	share, overflow := new(uint256.Int).MulDivOverflow(t.SupportWeight, bpsDenominator, total)
	if overflow {
		// support <= total, so the share is at most 10000
		return bpsDenominator.Clone()
	}
	return share
}

// Passes compares the truncated support share against thresholdBps
func Passes(t *domain.Tally, thresholdBps uint64) bool {
	if t.TotalWeight().IsZero() {
		return false
	}
	return !SupportBps(t).Lt(uint256.NewInt(thresholdBps))
}

func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, fmt.Errorf("weight overflow: %s * %s / %s", x.Dec(), y.Dec(), d.Dec())
	}
	return z, nil
}
