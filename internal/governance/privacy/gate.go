// Package privacy runs commit-reveal sessions for privacy-gated proposals.
// Phases are never scheduled: each call evaluates the phase of the session
// against the time it is given.
package privacy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
)

// ScoreReader reads decay-adjusted expertise scores for eligibility checks
type ScoreReader interface {
	EffectiveScore(account common.Address, domainID string, at time.Time) uint64
}

// CountFunc counts a revealed vote. An error leaves the commitment unrevealed.
type CountFunc func(support bool) error

type session struct {
	decision    *domain.DecisionContext
	schedule    domain.PhaseSchedule
	commitments map[common.Address]*domain.Commitment
	reveals     int
}

// Gate holds one commit-reveal session per privacy-gated proposal
type Gate struct {
	cfg       config.PrivacyConfig
	expertise ScoreReader
	events    domain.EventSink
	log       *slog.Logger

	mu       sync.RWMutex
	sessions map[common.Hash]*session
}

// NewGate creates a gate with no open sessions
func NewGate(cfg *config.EngineConfig, expertise ScoreReader, events domain.EventSink, log *slog.Logger) *Gate {
	return &Gate{
		cfg:       cfg.Privacy,
		expertise: expertise,
		events:    events,
		log:       log.With("component", "privacy"),
		sessions:  make(map[common.Hash]*session),
	}
}

// Schedule computes the phase deadlines of a session opened at now. Both
// phases shrink by the configured relief per urgency level.
func (g *Gate) Schedule(decision *domain.DecisionContext, now time.Time) domain.PhaseSchedule {
	commit := config.Relieve(g.cfg.CommitDuration.Duration, decision.UrgencyLevel, g.cfg.UrgencyReliefPct)
	reveal := config.Relieve(g.cfg.RevealDuration.Duration, decision.UrgencyLevel, g.cfg.UrgencyReliefPct)
	return domain.PhaseSchedule{
		OpenedAt:       now,
		CommitDeadline: now.Add(commit),
		RevealDeadline: now.Add(commit + reveal),
	}
}

// Open starts the commit phase for a proposal
func (g *Gate) Open(proposalID common.Hash, decision *domain.DecisionContext, now time.Time) (domain.PhaseSchedule, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.sessions[proposalID]; exists {
		return domain.PhaseSchedule{}, fmt.Errorf("privacy session for %s: %w", proposalID.Hex(), domain.ErrAlreadyExists)
	}
	schedule := g.Schedule(decision, now)
	g.sessions[proposalID] = &session{
		decision:    decision,
		schedule:    schedule,
		commitments: make(map[common.Address]*domain.Commitment),
	}
	g.log.Debug("privacy session opened",
		"proposal", proposalID.Hex(),
		"commit_deadline", schedule.CommitDeadline,
		"reveal_deadline", schedule.RevealDeadline,
	)
	return schedule, nil
}

func (g *Gate) session(proposalID common.Hash) (*session, error) {
	s, ok := g.sessions[proposalID]
	if !ok {
		return nil, fmt.Errorf("privacy session for %s: %w", proposalID.Hex(), domain.ErrNotFound)
	}
	return s, nil
}

// checkEligible requires the minimum score in every required domain
func (g *Gate) checkEligible(decision *domain.DecisionContext, voter common.Address, at time.Time) error {
	if g.cfg.MinEligibleScore == 0 || len(decision.RequiredExpertise) == 0 || g.expertise == nil {
		return nil
	}
	for _, d := range decision.RequiredExpertise {
		if score := g.expertise.EffectiveScore(voter, d, at); score < g.cfg.MinEligibleScore {
			return fmt.Errorf("%w: %s has %d in %s, needs %d", domain.ErrNotEligible, voter.Hex(), score, d, g.cfg.MinEligibleScore)
		}
	}
	return nil
}

// Commit stores a hidden vote while the commit phase is open
func (g *Gate) Commit(ctx context.Context, proposalID common.Hash, voter common.Address, digest common.Hash, now time.Time) error {
	g.mu.Lock()
	s, err := g.session(proposalID)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if phase := s.schedule.PhaseAt(now); phase != domain.PhaseCommitOpen {
		g.mu.Unlock()
		return fmt.Errorf("%w: commit on %s during %s phase", domain.ErrPhaseClosed, proposalID.Hex(), phase)
	}
	if err := g.checkEligible(s.decision, voter, now); err != nil {
		g.mu.Unlock()
		return err
	}
	if _, exists := s.commitments[voter]; exists && g.cfg.CommitmentPolicy != domain.CommitmentReplace {
		g.mu.Unlock()
		return fmt.Errorf("%s on %s: %w", voter.Hex(), proposalID.Hex(), domain.ErrDuplicateCommitment)
	}
	s.commitments[voter] = &domain.Commitment{
		ProposalID:  proposalID,
		Voter:       voter,
		Digest:      digest,
		CommittedAt: now,
	}
	count := len(s.commitments)
	g.mu.Unlock()

	g.log.Debug("vote committed", "proposal", proposalID.Hex(), "voter", voter.Hex(), "commitments", count)
	g.events.Emit(ctx, domain.NewEvent(domain.EventTypeCommitmentMade, now).
		WithProposal(proposalID).
		WithAccount(voter).
		With("digest", digest.Hex()))
	return nil
}

// Reveal opens a commitment and hands the vote to count. The commitment is
// consumed only after count succeeds, so a failed count can be retried.
func (g *Gate) Reveal(ctx context.Context, proposalID common.Hash, voter common.Address, support bool, salt common.Hash, now time.Time, count CountFunc) error {
	g.mu.RLock()
	s, err := g.session(proposalID)
	if err != nil {
		g.mu.RUnlock()
		return err
	}
	phase := s.schedule.PhaseAt(now)
	c, committed := s.commitments[voter]
	var commitment domain.Commitment
	if committed {
		commitment = *c
	}
	decision := s.decision
	g.mu.RUnlock()

	if phase != domain.PhaseRevealOpen {
		return fmt.Errorf("%w: reveal on %s during %s phase", domain.ErrPhaseClosed, proposalID.Hex(), phase)
	}
	if !committed {
		return fmt.Errorf("%s on %s: %w", voter.Hex(), proposalID.Hex(), domain.ErrCommitmentNotFound)
	}
	if commitment.Revealed {
		return fmt.Errorf("%s already revealed on %s: %w", voter.Hex(), proposalID.Hex(), domain.ErrDuplicateVote)
	}
	if domain.CommitmentHash(proposalID, voter, support, salt) != commitment.Digest {
		return fmt.Errorf("%s on %s: %w", voter.Hex(), proposalID.Hex(), domain.ErrCommitmentMismatch)
	}
	if err := g.checkEligible(decision, voter, now); err != nil {
		return err
	}

	if err := count(support); err != nil {
		return err
	}

	g.mu.Lock()
	c = s.commitments[voter]
	if c.Revealed {
		g.mu.Unlock()
		return fmt.Errorf("%s already revealed on %s: %w", voter.Hex(), proposalID.Hex(), domain.ErrDuplicateVote)
	}
	revealedAt := now
	c.Revealed = true
	c.RevealedAt = &revealedAt
	s.reveals++
	g.mu.Unlock()

	g.log.Debug("vote revealed", "proposal", proposalID.Hex(), "voter", voter.Hex(), "support", support)
	g.events.Emit(ctx, domain.NewEvent(domain.EventTypeVoteRevealed, now).
		WithProposal(proposalID).
		WithAccount(voter).
		With("support", support))
	return nil
}

// Gated reports whether the proposal has a privacy session
func (g *Gate) Gated(proposalID common.Hash) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.sessions[proposalID]
	return ok
}

// PhaseSchedule returns the deadlines of a proposal's session
func (g *Gate) PhaseSchedule(proposalID common.Hash) (domain.PhaseSchedule, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.session(proposalID)
	if err != nil {
		return domain.PhaseSchedule{}, err
	}
	return s.schedule, nil
}

// Phase evaluates the session's phase at the given time
func (g *Gate) Phase(proposalID common.Hash, at time.Time) (domain.Phase, error) {
	schedule, err := g.PhaseSchedule(proposalID)
	if err != nil {
		return domain.PhaseClosed, err
	}
	return schedule.PhaseAt(at), nil
}

// IsCommitPhaseActive reports whether commitments are accepted at the given time
func (g *Gate) IsCommitPhaseActive(proposalID common.Hash, at time.Time) bool {
	phase, err := g.Phase(proposalID, at)
	return err == nil && phase == domain.PhaseCommitOpen
}

// IsRevealPhaseActive reports whether reveals are accepted at the given time
func (g *Gate) IsRevealPhaseActive(proposalID common.Hash, at time.Time) bool {
	phase, err := g.Phase(proposalID, at)
	return err == nil && phase == domain.PhaseRevealOpen
}

// CommitCount returns the number of voters holding a commitment
func (g *Gate) CommitCount(proposalID common.Hash) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.session(proposalID)
	if err != nil {
		return 0, err
	}
	return len(s.commitments), nil
}

// RevealCount returns the number of counted reveals
func (g *Gate) RevealCount(proposalID common.Hash) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.session(proposalID)
	if err != nil {
		return 0, err
	}
	return s.reveals, nil
}

// Commitment returns a copy of a voter's commitment
func (g *Gate) Commitment(proposalID common.Hash, voter common.Address) (*domain.Commitment, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, err := g.session(proposalID)
	if err != nil {
		return nil, err
	}
	c, ok := s.commitments[voter]
	if !ok {
		return nil, fmt.Errorf("%s on %s: %w", voter.Hex(), proposalID.Hex(), domain.ErrCommitmentNotFound)
	}
	cp := *c
	return &cp, nil
}
