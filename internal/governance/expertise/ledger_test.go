package expertise

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

type verifierSet map[string][]common.Address

func (v verifierSet) IsVerifier(domainID string, account common.Address) bool {
	for _, a := range v[domainID] {
		if a == account {
			return true
		}
	}
	return false
}

type recordingSink struct {
	events []domain.Event
}

func (r *recordingSink) Emit(_ context.Context, e domain.Event) {
	r.events = append(r.events, e)
}

var (
	v1      = common.HexToAddress("0x1000000000000000000000000000000000000001")
	v2      = common.HexToAddress("0x1000000000000000000000000000000000000002")
	v3      = common.HexToAddress("0x1000000000000000000000000000000000000003")
	expert  = common.HexToAddress("0xE000000000000000000000000000000000000001")
	outside = common.HexToAddress("0xBAD0000000000000000000000000000000000001")
	t0      = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newTestLedger(t *testing.T, mutate func(*config.EngineConfig)) (*Ledger, *recordingSink) {
	t.Helper()
	cfg := config.DefaultEngineConfig()
	if mutate != nil {
		mutate(cfg)
	}
	sink := &recordingSink{}
	verifiers := verifierSet{"defi": {v1, v2, v3}}
	return NewLedger(cfg, verifiers, sink, slog.New(slog.NewTextHandler(io.Discard, nil))), sink
}

func attest(t *testing.T, l *Ledger, verifier common.Address, score uint64, at time.Time) *VerifyResult {
	t.Helper()
	res, err := l.VerifyExpertise(context.Background(), VerifyRequest{
		Verifier:   verifier,
		Account:    expert,
		Domain:     "defi",
		Score:      score,
		ValidUntil: t0.Add(100 * 24 * time.Hour),
	}, at)
	require.NoError(t, err)
	return res
}

func TestSingleAttestationIsNotEffective(t *testing.T) {
	l, sink := newTestLedger(t, nil)

	res := attest(t, l, v1, 60, t0)
	assert.False(t, res.Effective)
	assert.Equal(t, 1, res.Attestations)
	assert.Equal(t, uint64(0), l.EffectiveScore(expert, "defi", t0))

	_, err := l.GetExpertise(expert, "defi", t0)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventTypeExpertiseVerified, sink.events[0].Type)
}

func TestTwoVerifiersAverage(t *testing.T) {
	l, _ := newTestLedger(t, nil)

	attest(t, l, v1, 60, t0)
	res := attest(t, l, v2, 80, t0.Add(time.Hour))
	require.True(t, res.Effective)
	assert.Equal(t, uint64(70), res.Record.Score)

	view, err := l.GetExpertise(expert, "defi", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(70), view.EffectiveScore)
	assert.Len(t, view.Record.Attestations, 2)
}

func TestMedianAggregation(t *testing.T) {
	l, _ := newTestLedger(t, func(c *config.EngineConfig) {
		c.Expertise.Aggregation = domain.AggregationMedian
		c.Expertise.MinVerifiers = 3
	})

	attest(t, l, v1, 10, t0)
	attest(t, l, v2, 90, t0)
	res := attest(t, l, v3, 60, t0)
	require.True(t, res.Effective)
	assert.Equal(t, uint64(60), res.Record.Score)
}

func TestAggregate(t *testing.T) {
	assert.Equal(t, uint64(0), Aggregate(domain.AggregationAverage, nil))
	assert.Equal(t, uint64(70), Aggregate(domain.AggregationAverage, []uint64{60, 80}))
	assert.Equal(t, uint64(33), Aggregate(domain.AggregationAverage, []uint64{33, 33, 34}))
	assert.Equal(t, uint64(75), Aggregate(domain.AggregationMedian, []uint64{100, 60, 90, 10}))
}

func TestSameVerifierReplacesItsAttestation(t *testing.T) {
	l, _ := newTestLedger(t, nil)

	attest(t, l, v1, 60, t0)
	res := attest(t, l, v1, 90, t0.Add(time.Minute))
	assert.False(t, res.Effective)
	assert.Equal(t, 1, res.Attestations)
	assert.Equal(t, uint64(90), l.PendingAttestations(expert, "defi")[0].Score)
}

func TestAttestationsOutsideWindowAreDropped(t *testing.T) {
	l, _ := newTestLedger(t, func(c *config.EngineConfig) {
		c.Expertise.Window = config.Duration{Duration: 24 * time.Hour}
	})

	attest(t, l, v1, 60, t0)
	res := attest(t, l, v2, 80, t0.Add(48*time.Hour))
	assert.False(t, res.Effective)
	assert.Equal(t, 1, res.Attestations)
}

func TestVerifyExpertiseRejections(t *testing.T) {
	l, _ := newTestLedger(t, nil)
	ctx := context.Background()

	_, err := l.VerifyExpertise(ctx, VerifyRequest{Verifier: outside, Account: expert, Domain: "defi", Score: 50, ValidUntil: t0.Add(time.Hour)}, t0)
	assert.True(t, errors.Is(err, domain.ErrUnauthorizedVerifier))

	_, err = l.VerifyExpertise(ctx, VerifyRequest{Verifier: v1, Account: expert, Domain: "legal", Score: 50, ValidUntil: t0.Add(time.Hour)}, t0)
	assert.True(t, errors.Is(err, domain.ErrUnauthorizedVerifier))

	_, err = l.VerifyExpertise(ctx, VerifyRequest{Verifier: v1, Account: expert, Domain: "defi", Score: 101, ValidUntil: t0.Add(time.Hour)}, t0)
	assert.True(t, errors.Is(err, domain.ErrInvalidScore))

	_, err = l.VerifyExpertise(ctx, VerifyRequest{Verifier: v1, Account: expert, Domain: "defi", Score: 50, ValidUntil: t0}, t0)
	assert.True(t, errors.Is(err, domain.ErrInvalidScore))

	assert.Empty(t, l.PendingAttestations(expert, "defi"))
	assert.True(t, l.IsVerifier("defi", v1))
	assert.False(t, l.IsVerifier("defi", outside))
}

func TestDecayIsMonotonicAndReachesFloor(t *testing.T) {
	record := &domain.ExpertiseRecord{
		Score:          80,
		LastVerifiedAt: t0,
		ValidUntil:     t0.Add(10 * 24 * time.Hour),
	}

	for _, floor := range []uint64{0, 20} {
		prev := DecayedScore(record, floor, t0)
		assert.Equal(t, uint64(80), prev)
		for h := 1; h <= 11*24; h++ {
			score := DecayedScore(record, floor, t0.Add(time.Duration(h)*time.Hour))
			assert.LessOrEqual(t, score, prev, "hour %d", h)
			prev = score
		}
		assert.Equal(t, floor, DecayedScore(record, floor, record.ValidUntil))
	}

	assert.Equal(t, uint64(40), DecayedScore(record, 0, t0.Add(5*24*time.Hour)))
	// the floor never lifts a low score
	assert.Equal(t, uint64(80), DecayedScore(record, 95, record.ValidUntil))
	assert.Equal(t, uint64(80), record.Score)
}

func TestGetExpertiseReportsExpiry(t *testing.T) {
	l, _ := newTestLedger(t, nil)
	attest(t, l, v1, 60, t0)
	attest(t, l, v2, 80, t0)

	view, err := l.GetExpertise(expert, "defi", t0.Add(200*24*time.Hour))
	require.NoError(t, err)
	assert.True(t, view.Expired)
	assert.Equal(t, uint64(0), view.EffectiveScore)
	assert.Equal(t, uint64(70), view.Record.Score)
}

func attestFor(t *testing.T, l *Ledger, verifier common.Address, score uint64, at time.Time, validFor time.Duration) *VerifyResult {
	t.Helper()
	res, err := l.VerifyExpertise(context.Background(), VerifyRequest{
		Verifier:   verifier,
		Account:    expert,
		Domain:     "defi",
		Score:      score,
		ValidUntil: at.Add(validFor),
	}, at)
	require.NoError(t, err)
	return res
}

func TestExpiredAttestationsDoNotCount(t *testing.T) {
	l, _ := newTestLedger(t, nil)

	attestFor(t, l, v1, 90, t0, time.Hour)
	res := attestFor(t, l, v2, 80, t0.Add(2*time.Hour), 60*24*time.Hour)
	assert.False(t, res.Effective)
	assert.Equal(t, 1, res.Attestations)
	assert.Equal(t, uint64(0), l.EffectiveScore(expert, "defi", t0.Add(2*time.Hour)))

	res = attestFor(t, l, v3, 70, t0.Add(3*time.Hour), 60*24*time.Hour)
	require.True(t, res.Effective)
	assert.Equal(t, uint64(75), res.Record.Score)
	assert.True(t, res.Record.ValidUntil.After(res.Record.LastVerifiedAt))
}

func TestShortValidityDoesNotCutRecord(t *testing.T) {
	l, _ := newTestLedger(t, func(c *config.EngineConfig) {
		c.Expertise.Aggregation = domain.AggregationMedian
		c.Expertise.MinVerifiers = 3
	})

	attestFor(t, l, v1, 80, t0, 100*24*time.Hour)
	attestFor(t, l, v2, 80, t0, 100*24*time.Hour)
	res := attestFor(t, l, v3, 80, t0, time.Second)
	require.True(t, res.Effective)
	assert.Equal(t, t0.Add(100*24*time.Hour), res.Record.ValidUntil)

	later := t0.Add(time.Hour)
	assert.Equal(t, uint64(79), l.EffectiveScore(expert, "defi", later))
}

func TestAggregateValidity(t *testing.T) {
	at := func(d time.Duration) domain.Attestation { return domain.Attestation{ValidUntil: t0.Add(d)} }
	set := []domain.Attestation{at(time.Hour), at(3 * time.Hour), at(500 * time.Millisecond)}

	assert.Equal(t, t0.Add(time.Hour), aggregateValidity(domain.AggregationMedian, set, t0))
	// 3600 + 10800 + 1 seconds, truncated average
	assert.Equal(t, t0.Add(4800*time.Second), aggregateValidity(domain.AggregationAverage, set, t0))
	assert.True(t, aggregateValidity(domain.AggregationAverage, []domain.Attestation{at(time.Nanosecond)}, t0).After(t0))
}
