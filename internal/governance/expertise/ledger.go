// Package expertise keeps per-account, per-domain expertise scores. A score
// only takes effect once enough distinct verifiers attest to it within a
// rolling window, and it decays lazily between verification and expiry.
package expertise

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
)

// VerifierRegistry answers whether an account may attest in a domain
type VerifierRegistry interface {
	IsVerifier(domainID string, account common.Address) bool
}

// VerifyRequest is one verifier attestation
type VerifyRequest struct {
	Verifier    common.Address
	Account     common.Address
	Domain      string
	Score       uint64
	ValidUntil  time.Time
	MetadataURI string
}

// VerifyResult reports whether the attestation made a record effective
type VerifyResult struct {
	Effective    bool
	Attestations int
	Record       *domain.ExpertiseRecord
}

// View is a record as seen at a point in time
type View struct {
	Record         *domain.ExpertiseRecord
	EffectiveScore uint64
	Expired        bool
}

// Ledger aggregates verifier attestations into expertise records
type Ledger struct {
	cfg       config.ExpertiseConfig
	verifiers VerifierRegistry
	events    domain.EventSink
	log       *slog.Logger

	mu      sync.RWMutex
	pending map[domain.ExpertiseKey]map[common.Address]domain.Attestation
	records map[domain.ExpertiseKey]*domain.ExpertiseRecord
}

// NewLedger creates an empty expertise ledger
func NewLedger(cfg *config.EngineConfig, verifiers VerifierRegistry, events domain.EventSink, log *slog.Logger) *Ledger {
	return &Ledger{
		cfg:       cfg.Expertise,
		verifiers: verifiers,
		events:    events,
		log:       log.With("component", "expertise"),
		pending:   make(map[domain.ExpertiseKey]map[common.Address]domain.Attestation),
		records:   make(map[domain.ExpertiseKey]*domain.ExpertiseRecord),
	}
}

// IsVerifier reports whether account may attest in domainID
func (l *Ledger) IsVerifier(domainID string, account common.Address) bool {
	return l.verifiers.IsVerifier(domainID, account)
}

// VerifyExpertise records an attestation and, once a quorum of distinct
// verifiers attested within the window with validity left, (re)computes the
// effective record.
func (l *Ledger) VerifyExpertise(ctx context.Context, req VerifyRequest, now time.Time) (*VerifyResult, error) {
	if req.Domain == "" {
		return nil, fmt.Errorf("%w: empty domain", domain.ErrInvalidScore)
	}
	if !l.verifiers.IsVerifier(req.Domain, req.Verifier) {
		return nil, fmt.Errorf("%s in domain %q: %w", req.Verifier.Hex(), req.Domain, domain.ErrUnauthorizedVerifier)
	}
	if req.Score > domain.MaxExpertiseScore {
		return nil, fmt.Errorf("%w: score %d exceeds %d", domain.ErrInvalidScore, req.Score, domain.MaxExpertiseScore)
	}
	if !req.ValidUntil.After(now) {
		return nil, fmt.Errorf("%w: valid until %s is not in the future", domain.ErrInvalidScore, req.ValidUntil.Format(time.RFC3339))
	}

	key := domain.ExpertiseKey{Account: req.Account, Domain: req.Domain}

	l.mu.Lock()
	attestations := l.pending[key]
	if attestations == nil {
		attestations = make(map[common.Address]domain.Attestation)
		l.pending[key] = attestations
	}
	// one attestation per verifier, the latest replaces
	attestations[req.Verifier] = domain.Attestation{
		Verifier:    req.Verifier,
		Score:       req.Score,
		ValidUntil:  req.ValidUntil,
		AttestedAt:  now,
		MetadataURI: req.MetadataURI,
	}
	cutoff := now.Add(-l.cfg.Window.Duration)
	for verifier, a := range attestations {
		if a.AttestedAt.Before(cutoff) || !a.ValidUntil.After(now) {
			delete(attestations, verifier)
		}
	}

	fresh := sortedAttestations(attestations)
	result := &VerifyResult{Attestations: len(fresh)}
	if len(fresh) >= l.cfg.MinVerifiers {
		record := &domain.ExpertiseRecord{
			Account:        req.Account,
			Domain:         req.Domain,
			Score:          Aggregate(l.cfg.Aggregation, lo.Map(fresh, func(a domain.Attestation, _ int) uint64 { return a.Score })),
			ValidUntil:     aggregateValidity(l.cfg.Aggregation, fresh, now),
			LastVerifiedAt: now,
			Attestations:   fresh,
		}
		l.records[key] = record
		result.Effective = true
		result.Record = cloneRecord(record)
	}
	l.mu.Unlock()

	l.log.Debug("expertise attested",
		"account", req.Account.Hex(),
		"domain", req.Domain,
		"verifier", req.Verifier.Hex(),
		"attestations", result.Attestations,
		"effective", result.Effective,
	)

	event := domain.NewEvent(domain.EventTypeExpertiseVerified, now).
		WithAccount(req.Account).
		With("domain", req.Domain).
		With("verifier", req.Verifier.Hex()).
		With("attestations", result.Attestations).
		With("effective", result.Effective)
	if result.Record != nil {
		event = event.With("score", result.Record.Score)
	}
	l.events.Emit(ctx, event)

	return result, nil
}

// GetExpertise returns the record with its decay-adjusted score at t
func (l *Ledger) GetExpertise(account common.Address, domainID string, at time.Time) (*View, error) {
	l.mu.RLock()
	record, ok := l.records[domain.ExpertiseKey{Account: account, Domain: domainID}]
	if ok {
		record = cloneRecord(record)
	}
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("expertise of %s in %q: %w", account.Hex(), domainID, domain.ErrNotFound)
	}
	return &View{
		Record:         record,
		EffectiveScore: DecayedScore(record, l.cfg.FloorScore, at),
		Expired:        !at.Before(record.ValidUntil),
	}, nil
}

// EffectiveScore is the decay-adjusted score at t, 0 without a record
func (l *Ledger) EffectiveScore(account common.Address, domainID string, at time.Time) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.records[domain.ExpertiseKey{Account: account, Domain: domainID}]
	if !ok {
		return 0
	}
	return DecayedScore(record, l.cfg.FloorScore, at)
}

// PendingAttestations returns the attestations collected for a key, oldest first
func (l *Ledger) PendingAttestations(account common.Address, domainID string) []domain.Attestation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sortedAttestations(l.pending[domain.ExpertiseKey{Account: account, Domain: domainID}])
}

// DecayedScore decays the stored score linearly from LastVerifiedAt to the
// floor at ValidUntil. It never reads past expiry and never mutates record.
func DecayedScore(record *domain.ExpertiseRecord, floor uint64, at time.Time) uint64 {
	if floor > record.Score {
		floor = record.Score
	}
	if !at.Before(record.ValidUntil) {
		return floor
	}
	if !at.After(record.LastVerifiedAt) {
		return record.Score
	}
	span := uint64(record.ValidUntil.Sub(record.LastVerifiedAt) / time.Second)
	remaining := uint64(record.ValidUntil.Sub(at) / time.Second)
	if span == 0 {
		return floor
	}
	return floor + (record.Score-floor)*remaining/span
}

// Aggregate combines attestation scores under the given policy. The median of
// an even count is the truncated mean of the two middle scores.
func Aggregate(policy domain.AggregationPolicy, scores []uint64) uint64 {
	if len(scores) == 0 {
		return 0
	}
	switch policy {
	case domain.AggregationMedian:
		sorted := append([]uint64(nil), scores...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid]
		}
		return (sorted[mid-1] + sorted[mid]) / 2
	default:
		return lo.Sum(scores) / uint64(len(scores))
	}
}

const maxValiditySeconds = uint64(math.MaxInt64 / int64(time.Second))

// aggregateValidity combines the remaining validity of each attestation
// under policy. Every input lies after now, so the result does too.
func aggregateValidity(policy domain.AggregationPolicy, attestations []domain.Attestation, now time.Time) time.Time {
	remaining := lo.Map(attestations, func(a domain.Attestation, _ int) uint64 {
		d := a.ValidUntil.Sub(now)
		secs := uint64(d / time.Second)
		if d%time.Second != 0 {
			secs++
		}
		return min(secs, maxValiditySeconds)
	})
	return now.Add(time.Duration(Aggregate(policy, remaining)) * time.Second)
}

func sortedAttestations(m map[common.Address]domain.Attestation) []domain.Attestation {
	out := lo.Values(m)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AttestedAt.Equal(out[j].AttestedAt) {
			return out[i].AttestedAt.Before(out[j].AttestedAt)
		}
		return out[i].Verifier.Cmp(out[j].Verifier) < 0
	})
	return out
}

func cloneRecord(r *domain.ExpertiseRecord) *domain.ExpertiseRecord {
	cp := *r
	cp.Attestations = append([]domain.Attestation(nil), r.Attestations...)
	return &cp
}
