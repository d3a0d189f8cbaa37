package privacy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
)

type scores map[string]uint64

func (s scores) EffectiveScore(account common.Address, domainID string, _ time.Time) uint64 {
	return s[account.Hex()+"/"+domainID]
}

type recordingSink struct {
	events []domain.Event
}

func (r *recordingSink) Emit(_ context.Context, e domain.Event) {
	r.events = append(r.events, e)
}

var (
	t0    = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	pid   = common.HexToHash("0xfeed")
	voter = common.HexToAddress("0x5000000000000000000000000000000000000005")
	salt  = common.HexToHash("0x01")
)

func newTestGate(t *testing.T, mutate func(*config.EngineConfig), exp ScoreReader) (*Gate, *recordingSink) {
	t.Helper()
	cfg := config.DefaultEngineConfig()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	sink := &recordingSink{}
	return NewGate(cfg, exp, sink, slog.New(slog.NewTextHandler(io.Discard, nil))), sink
}

func openSession(t *testing.T, g *Gate, params domain.ContextParams) domain.PhaseSchedule {
	t.Helper()
	if params.Category == "" {
		params.Category = "general"
	}
	decision, err := domain.NewDecisionContext(params)
	require.NoError(t, err)
	schedule, err := g.Open(pid, decision, t0)
	require.NoError(t, err)
	return schedule
}

func TestCommitRevealScenario(t *testing.T) {
	g, sink := newTestGate(t, nil, nil)
	schedule := openSession(t, g, domain.ContextParams{})
	ctx := context.Background()

	require.NoError(t, g.Commit(ctx, pid, voter, domain.CommitmentHash(pid, voter, true, salt), t0.Add(time.Hour)))
	assert.True(t, g.IsCommitPhaseActive(pid, t0.Add(time.Hour)))

	revealAt := schedule.CommitDeadline.Add(time.Minute)
	assert.True(t, g.IsRevealPhaseActive(pid, revealAt))

	var counted []bool
	count := func(support bool) error {
		counted = append(counted, support)
		return nil
	}

	err := g.Reveal(ctx, pid, voter, false, salt, revealAt, count)
	assert.True(t, errors.Is(err, domain.ErrCommitmentMismatch))
	assert.Empty(t, counted)

	require.NoError(t, g.Reveal(ctx, pid, voter, true, salt, revealAt, count))
	assert.Equal(t, []bool{true}, counted)

	err = g.Reveal(ctx, pid, voter, true, salt, revealAt, count)
	assert.True(t, errors.Is(err, domain.ErrDuplicateVote))
	assert.Len(t, counted, 1)

	commits, err := g.CommitCount(pid)
	require.NoError(t, err)
	reveals, err := g.RevealCount(pid)
	require.NoError(t, err)
	assert.Equal(t, 1, commits)
	assert.Equal(t, 1, reveals)

	require.Len(t, sink.events, 2)
	assert.Equal(t, domain.EventTypeCommitmentMade, sink.events[0].Type)
	assert.Equal(t, domain.EventTypeVoteRevealed, sink.events[1].Type)
}

func TestRevealMismatchForAnyOtherPair(t *testing.T) {
	g, _ := newTestGate(t, nil, nil)
	schedule := openSession(t, g, domain.ContextParams{})
	ctx := context.Background()
	require.NoError(t, g.Commit(ctx, pid, voter, domain.CommitmentHash(pid, voter, true, salt), t0))

	revealAt := schedule.CommitDeadline
	never := func(bool) error {
		t.Fatal("count must not run on mismatch")
		return nil
	}
	pairs := []struct {
		support bool
		salt    common.Hash
	}{
		{false, salt},
		{true, common.HexToHash("0x02")},
		{false, common.HexToHash("0x02")},
		{true, common.Hash{}},
	}
	for _, p := range pairs {
		err := g.Reveal(ctx, pid, voter, p.support, p.salt, revealAt, never)
		assert.True(t, errors.Is(err, domain.ErrCommitmentMismatch), "support=%v salt=%s", p.support, p.salt.Hex())
	}
}

func TestCommitmentIsBoundToVoterAndProposal(t *testing.T) {
	g, _ := newTestGate(t, nil, nil)
	schedule := openSession(t, g, domain.ContextParams{})
	ctx := context.Background()

	copier := common.HexToAddress("0xC0C0000000000000000000000000000000000001")
	// a digest lifted from another voter does not open for the copier
	require.NoError(t, g.Commit(ctx, pid, copier, domain.CommitmentHash(pid, voter, true, salt), t0))
	err := g.Reveal(ctx, pid, copier, true, salt, schedule.CommitDeadline, func(bool) error { return nil })
	assert.True(t, errors.Is(err, domain.ErrCommitmentMismatch))
}

func TestPhaseWindows(t *testing.T) {
	g, _ := newTestGate(t, nil, nil)
	schedule := openSession(t, g, domain.ContextParams{})
	ctx := context.Background()
	digest := domain.CommitmentHash(pid, voter, true, salt)
	ok := func(bool) error { return nil }

	err := g.Reveal(ctx, pid, voter, true, salt, t0, ok)
	assert.True(t, errors.Is(err, domain.ErrPhaseClosed))

	err = g.Commit(ctx, pid, voter, digest, schedule.CommitDeadline)
	assert.True(t, errors.Is(err, domain.ErrPhaseClosed))

	err = g.Reveal(ctx, pid, voter, true, salt, schedule.CommitDeadline, ok)
	assert.True(t, errors.Is(err, domain.ErrCommitmentNotFound))

	err = g.Reveal(ctx, pid, voter, true, salt, schedule.RevealDeadline, ok)
	assert.True(t, errors.Is(err, domain.ErrPhaseClosed))
	assert.False(t, g.IsCommitPhaseActive(pid, schedule.RevealDeadline))
	assert.False(t, g.IsRevealPhaseActive(pid, schedule.RevealDeadline))

	err = g.Commit(ctx, common.HexToHash("0x99"), voter, digest, t0)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, g.IsCommitPhaseActive(common.HexToHash("0x99"), t0))
}

func TestUrgencyShortensPhases(t *testing.T) {
	g, _ := newTestGate(t, nil, nil)
	schedule := openSession(t, g, domain.ContextParams{UrgencyLevel: 10})
	assert.Equal(t, t0.Add(24*time.Hour), schedule.CommitDeadline)
	assert.Equal(t, t0.Add(36*time.Hour), schedule.RevealDeadline)

	normal, err := domain.NewDecisionContext(domain.ContextParams{Category: "general"})
	require.NoError(t, err)
	relaxed := g.Schedule(normal, t0)
	assert.Equal(t, t0.Add(48*time.Hour), relaxed.CommitDeadline)
	assert.Equal(t, t0.Add(72*time.Hour), relaxed.RevealDeadline)
}

func TestCommitmentPolicy(t *testing.T) {
	ctx := context.Background()

	g, _ := newTestGate(t, nil, nil)
	openSession(t, g, domain.ContextParams{})
	require.NoError(t, g.Commit(ctx, pid, voter, domain.CommitmentHash(pid, voter, true, salt), t0))
	err := g.Commit(ctx, pid, voter, domain.CommitmentHash(pid, voter, false, salt), t0)
	assert.True(t, errors.Is(err, domain.ErrDuplicateCommitment))
	c, err := g.Commitment(pid, voter)
	require.NoError(t, err)
	assert.Equal(t, domain.CommitmentHash(pid, voter, true, salt), c.Digest)

	replacing, _ := newTestGate(t, func(c *config.EngineConfig) {
		c.Privacy.CommitmentPolicy = domain.CommitmentReplace
	}, nil)
	openSession(t, replacing, domain.ContextParams{})
	require.NoError(t, replacing.Commit(ctx, pid, voter, domain.CommitmentHash(pid, voter, true, salt), t0))
	require.NoError(t, replacing.Commit(ctx, pid, voter, domain.CommitmentHash(pid, voter, false, salt), t0))
	c, err = replacing.Commitment(pid, voter)
	require.NoError(t, err)
	assert.Equal(t, domain.CommitmentHash(pid, voter, false, salt), c.Digest)
	n, err := replacing.CommitCount(pid)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFailedCountLeavesCommitmentLive(t *testing.T) {
	g, _ := newTestGate(t, nil, nil)
	schedule := openSession(t, g, domain.ContextParams{})
	ctx := context.Background()
	require.NoError(t, g.Commit(ctx, pid, voter, domain.CommitmentHash(pid, voter, true, salt), t0))

	boom := errors.New("balance unavailable")
	err := g.Reveal(ctx, pid, voter, true, salt, schedule.CommitDeadline, func(bool) error { return boom })
	assert.ErrorIs(t, err, boom)

	c, err := g.Commitment(pid, voter)
	require.NoError(t, err)
	assert.False(t, c.Revealed)

	require.NoError(t, g.Reveal(ctx, pid, voter, true, salt, schedule.CommitDeadline, func(bool) error { return nil }))
	n, err := g.RevealCount(pid)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEligibilityGate(t *testing.T) {
	expertVoter := common.HexToAddress("0xE000000000000000000000000000000000000001")
	exp := scores{
		expertVoter.Hex() + "/defi":  70,
		expertVoter.Hex() + "/legal": 55,
		voter.Hex() + "/defi":        90,
	}
	g, _ := newTestGate(t, func(c *config.EngineConfig) {
		c.Privacy.MinEligibleScore = 50
	}, exp)
	openSession(t, g, domain.ContextParams{RequiredExpertise: []string{"defi", "legal"}})
	ctx := context.Background()

	require.NoError(t, g.Commit(ctx, pid, expertVoter, domain.CommitmentHash(pid, expertVoter, true, salt), t0))
	err := g.Commit(ctx, pid, voter, domain.CommitmentHash(pid, voter, true, salt), t0)
	assert.True(t, errors.Is(err, domain.ErrNotEligible))

	// score drops below the minimum between commit and reveal
	exp[expertVoter.Hex()+"/legal"] = 40
	schedule, err := g.PhaseSchedule(pid)
	require.NoError(t, err)
	err = g.Reveal(ctx, pid, expertVoter, true, salt, schedule.CommitDeadline, func(bool) error { return nil })
	assert.True(t, errors.Is(err, domain.ErrNotEligible))
}

func TestOpenTwice(t *testing.T) {
	g, _ := newTestGate(t, nil, nil)
	openSession(t, g, domain.ContextParams{})
	decision, err := domain.NewDecisionContext(domain.ContextParams{Category: "general"})
	require.NoError(t, err)
	_, err = g.Open(pid, decision, t0)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
	assert.True(t, g.Gated(pid))
}
