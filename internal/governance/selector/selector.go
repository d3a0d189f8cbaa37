// Package selector picks the voting module for a decision context. Candidates
// are filtered by category and urgency, then ranked by exponentially weighted
// running statistics fed back from every finalized proposal.
package selector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/governance/voting"
)

// Stats are the running statistics of one module within one category, in basis points
type Stats struct {
	Samples          uint64 `json:"samples"`
	SuccessBps       int64  `json:"successBps"`
	ParticipationBps int64  `json:"participationBps"`
	ExecutionBps     int64  `json:"executionBps"`
}

type statsKey struct {
	moduleID uint64
	category string
}

// Candidate is a module that passed the suitability filter, with its score
type Candidate struct {
	Module *domain.ModuleDescriptor
	Score  int64
	Stats  Stats
	Prior  bool
}

// Sample is one finalized proposal's outcome
type Sample struct {
	ModuleID         uint64
	Category         string
	ParticipationBps uint64
	ExecutionTime    time.Duration
	Succeeded        bool
}

// Selector ranks registered modules for a context
type Selector struct {
	cfg      config.SelectorConfig
	registry *voting.Registry
	events   domain.EventSink
	log      *slog.Logger

	mu    sync.RWMutex
	stats map[statsKey]Stats
}

// New creates a selector over the module registry
func New(cfg *config.EngineConfig, registry *voting.Registry, events domain.EventSink, log *slog.Logger) *Selector {
	return &Selector{
		cfg:      cfg.Selector,
		registry: registry,
		events:   events,
		log:      log.With("component", "selector"),
		stats:    make(map[statsKey]Stats),
	}
}

// RegisterModule adds a module to the registry
func (s *Selector) RegisterModule(ctx context.Context, desc *domain.ModuleDescriptor, at time.Time) (*voting.Module, error) {
	module, err := s.registry.Register(desc)
	if err != nil {
		return nil, err
	}
	s.log.Info("module registered", "id", desc.ID, "name", desc.Name, "kind", desc.Kind)
	s.events.Emit(ctx, domain.NewEvent(domain.EventTypeModuleRegistered, at).
		WithModule(desc.ID).
		With("name", desc.Name).
		With("kind", desc.Kind))
	return module, nil
}

// GetModule returns the registered module with the given ID
func (s *Selector) GetModule(id uint64) (*voting.Module, error) {
	return s.registry.Get(id)
}

// Modules returns every registered descriptor ordered by ID
func (s *Selector) Modules() []*domain.ModuleDescriptor {
	return s.registry.Descriptors()
}

// Select returns the best module for the context. It is deterministic for a
// given registry and statistics state; ties go to the lowest module ID.
func (s *Selector) Select(decision *domain.DecisionContext) (*voting.Module, error) {
	candidates, err := s.Scores(decision)
	if err != nil {
		return nil, err
	}
	best := candidates[0]
	s.log.Debug("module selected",
		"category", decision.Category,
		"urgency", decision.UrgencyLevel,
		"module", best.Module.ID,
		"score", best.Score,
		"candidates", len(candidates),
	)
	return s.registry.Get(best.Module.ID)
}

// GetOptimalModule is Select reporting only the module ID
func (s *Selector) GetOptimalModule(decision *domain.DecisionContext) (uint64, error) {
	module, err := s.Select(decision)
	if err != nil {
		return 0, err
	}
	return module.ID(), nil
}

// Scores returns the suitable modules ranked best first
func (s *Selector) Scores(decision *domain.DecisionContext) ([]Candidate, error) {
	suitable := lo.Filter(s.registry.Descriptors(), func(m *domain.ModuleDescriptor, _ int) bool {
		return m.Suits(decision)
	})
	if len(suitable) == 0 {
		return nil, domain.NoSuitableModuleErr{Category: decision.Category, Urgency: decision.UrgencyLevel}
	}

	s.mu.RLock()
	candidates := lo.Map(suitable, func(m *domain.ModuleDescriptor, _ int) Candidate {
		stats, ok := s.stats[statsKey{moduleID: m.ID, category: decision.Category}]
		if !ok {
			return Candidate{Module: m, Score: s.priorScore(), Prior: true}
		}
		return Candidate{Module: m, Score: s.score(stats), Stats: stats}
	})
	s.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Module.ID < candidates[j].Module.ID
	})
	return candidates, nil
}

func (s *Selector) score(st Stats) int64 {
	return s.cfg.SuccessWeightBps*st.SuccessBps +
		s.cfg.ParticipationWeightBps*st.ParticipationBps -
		s.cfg.ExecutionWeightBps*st.ExecutionBps
}

func (s *Selector) priorScore() int64 {
	prior := int64(s.cfg.PriorBps)
	return s.score(Stats{SuccessBps: prior, ParticipationBps: prior, ExecutionBps: prior})
}

// normalizeExecution maps an execution time onto [0,10000] of the configured maximum
func (s *Selector) normalizeExecution(d time.Duration) int64 {
	limit := s.cfg.MaxExecutionTime.Duration
	if limit < time.Second {
		return 0
	}
	if d < 0 {
		d = 0
	}
	if d > limit {
		d = limit
	}
	return int64(d / time.Second * time.Duration(domain.MaxBps) / (limit / time.Second))
}

// UpdatePerformance folds one finalized proposal into the module's running
// statistics for its category. The read-modify-write runs under the stats lock.
func (s *Selector) UpdatePerformance(sample Sample) error {
	key, observed, err := s.observe(sample)
	if err != nil {
		return err
	}

	s.mu.Lock()
	next := s.fold(s.stats, key, observed)
	s.mu.Unlock()

	s.log.Debug("module performance updated",
		"module", sample.ModuleID,
		"category", sample.Category,
		"samples", next.Samples,
		"score", s.score(next),
	)
	return nil
}

// observe validates a sample and converts it to single-sample statistics
func (s *Selector) observe(sample Sample) (statsKey, Stats, error) {
	if _, err := s.registry.Get(sample.ModuleID); err != nil {
		return statsKey{}, Stats{}, err
	}
	if sample.ParticipationBps > domain.MaxBps {
		return statsKey{}, Stats{}, fmt.Errorf("participation %d bps exceeds 10000", sample.ParticipationBps)
	}

	var success int64
	if sample.Succeeded {
		success = int64(domain.MaxBps)
	}
	return statsKey{moduleID: sample.ModuleID, category: sample.Category}, Stats{
		SuccessBps:       success,
		ParticipationBps: int64(sample.ParticipationBps),
		ExecutionBps:     s.normalizeExecution(sample.ExecutionTime),
	}, nil
}

// fold merges observed into stats[key] and returns the result
func (s *Selector) fold(stats map[statsKey]Stats, key statsKey, observed Stats) Stats {
	next := observed
	prev, ok := stats[key]
	if ok {
		alpha := int64(s.cfg.AlphaBps)
		next.SuccessBps = ewma(prev.SuccessBps, observed.SuccessBps, alpha)
		next.ParticipationBps = ewma(prev.ParticipationBps, observed.ParticipationBps, alpha)
		next.ExecutionBps = ewma(prev.ExecutionBps, observed.ExecutionBps, alpha)
	}
	next.Samples = prev.Samples + 1
	stats[key] = next
	return next
}

// Stats returns the running statistics of a module within a category
func (s *Selector) Stats(moduleID uint64, category string) (Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[statsKey{moduleID: moduleID, category: category}]
	return st, ok
}

// Rebuild replaces the running statistics with a replay of history, using
// the first leaf of every proposal so each proposal counts once. Records of
// modules that are no longer registered are skipped. On error the current
// statistics are kept.
func (s *Selector) Rebuild(records []domain.HistoryRecord) error {
	rebuilt := make(map[statsKey]Stats)
	seen := make(map[common.Hash]bool)
	for _, r := range records {
		if seen[r.ProposalID] {
			continue
		}
		seen[r.ProposalID] = true
		if _, err := s.registry.Get(r.ModuleID); err != nil {
			s.log.Warn("skipping history of unknown module", "module", r.ModuleID, "proposal", r.ProposalID.Hex())
			continue
		}
		key, observed, err := s.observe(Sample{
			ModuleID:         r.ModuleID,
			Category:         r.Category,
			ParticipationBps: r.ParticipationBps,
			ExecutionTime:    time.Duration(r.ExecutionTimeSeconds) * time.Second,
			Succeeded:        r.Succeeded,
		})
		if err != nil {
			return fmt.Errorf("failed to replay history record %d: %w", r.Sequence, err)
		}
		s.fold(rebuilt, key, observed)
	}

	s.mu.Lock()
	s.stats = rebuilt
	s.mu.Unlock()
	s.log.Debug("module performance rebuilt", "proposals", len(seen), "series", len(rebuilt))
	return nil
}

func ewma(prev, sample, alphaBps int64) int64 {
	return prev + (sample-prev)*alphaBps/int64(domain.MaxBps)
}
