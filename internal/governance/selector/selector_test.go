package selector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/governance/voting"
)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingSink) Emit(_ context.Context, e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

var t0 = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func descriptor(id uint64, categories []string, minUrgency, maxUrgency uint8) *domain.ModuleDescriptor {
	return &domain.ModuleDescriptor{
		ID:                 id,
		Name:               "module",
		Kind:               domain.ModuleKindToken,
		SuitableCategories: categories,
		MinUrgency:         minUrgency,
		MaxUrgency:         maxUrgency,
		Params:             domain.ModuleParams{QuorumWeight: "100", ThresholdBps: 5000},
	}
}

func newTestSelector(t *testing.T, descs ...*domain.ModuleDescriptor) (*Selector, *recordingSink) {
	t.Helper()
	cfg := config.DefaultEngineConfig()
	sink := &recordingSink{}
	registry := voting.NewRegistry(nil, nil, cfg)
	s := New(cfg, registry, sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, d := range descs {
		_, err := s.RegisterModule(context.Background(), d, t0)
		require.NoError(t, err)
	}
	return s, sink
}

func decision(t *testing.T, category string, urgency uint8) *domain.DecisionContext {
	t.Helper()
	c, err := domain.NewDecisionContext(domain.ContextParams{Category: category, UrgencyLevel: urgency})
	require.NoError(t, err)
	return c
}

func TestSelectSingleCandidateIgnoresHistory(t *testing.T) {
	s, _ := newTestSelector(t,
		descriptor(1, []string{"financial"}, 8, 10),
		descriptor(2, []string{"general"}, 0, 10),
		descriptor(3, []string{"financial"}, 0, 5),
	)

	// make module 1 look as bad as possible
	for i := 0; i < 10; i++ {
		require.NoError(t, s.UpdatePerformance(Sample{
			ModuleID:      1,
			Category:      "financial",
			ExecutionTime: 60 * 24 * time.Hour,
		}))
	}

	id, err := s.GetOptimalModule(decision(t, "financial", 9))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestSelectNoSuitableModule(t *testing.T) {
	s, _ := newTestSelector(t, descriptor(1, []string{"financial"}, 0, 5))

	tests := []struct {
		name     string
		category string
		urgency  uint8
	}{
		{"unknown category", "legal", 1},
		{"urgency above range", "financial", 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Select(decision(t, tt.category, tt.urgency))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrNoSuitableModule))
			var typed domain.NoSuitableModuleErr
			require.True(t, errors.As(err, &typed))
			assert.Equal(t, tt.category, typed.Category)
		})
	}
}

func TestSelectTieBreaksByLowestID(t *testing.T) {
	s, _ := newTestSelector(t,
		descriptor(7, []string{"general"}, 0, 10),
		descriptor(3, []string{"general"}, 0, 10),
		descriptor(5, []string{"general"}, 0, 10),
	)

	for i := 0; i < 5; i++ {
		id, err := s.GetOptimalModule(decision(t, "general", 2))
		require.NoError(t, err)
		assert.Equal(t, uint64(3), id)
	}

	scores, err := s.Scores(decision(t, "general", 2))
	require.NoError(t, err)
	require.Len(t, scores, 3)
	for _, c := range scores {
		assert.True(t, c.Prior)
		assert.Equal(t, int64(30_000_000), c.Score)
	}
	assert.Equal(t, []uint64{3, 5, 7}, []uint64{scores[0].Module.ID, scores[1].Module.ID, scores[2].Module.ID})
}

func TestPerformanceShiftsSelection(t *testing.T) {
	s, _ := newTestSelector(t,
		descriptor(1, []string{"general"}, 0, 10),
		descriptor(2, []string{"general"}, 0, 10),
	)

	require.NoError(t, s.UpdatePerformance(Sample{ModuleID: 2, Category: "general", ParticipationBps: 8000, Succeeded: true}))
	id, err := s.GetOptimalModule(decision(t, "general", 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id)

	// statistics are per category
	s2, _ := newTestSelector(t,
		descriptor(1, []string{"general", "treasury"}, 0, 10),
		descriptor(2, []string{"general", "treasury"}, 0, 10),
	)
	require.NoError(t, s2.UpdatePerformance(Sample{ModuleID: 1, Category: "treasury", ExecutionTime: 30 * 24 * time.Hour}))
	id, err = s2.GetOptimalModule(decision(t, "treasury", 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id)
	id, err = s2.GetOptimalModule(decision(t, "general", 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestUpdatePerformanceEWMA(t *testing.T) {
	s, _ := newTestSelector(t, descriptor(1, []string{"general"}, 0, 10))

	require.NoError(t, s.UpdatePerformance(Sample{ModuleID: 1, Category: "general", ParticipationBps: 8000, Succeeded: true}))
	require.NoError(t, s.UpdatePerformance(Sample{
		ModuleID:         1,
		Category:         "general",
		ParticipationBps: 2000,
		ExecutionTime:    15 * 24 * time.Hour,
	}))

	st, ok := s.Stats(1, "general")
	require.True(t, ok)
	assert.Equal(t, Stats{Samples: 2, SuccessBps: 7000, ParticipationBps: 6200, ExecutionBps: 1500}, st)

	assert.True(t, errors.Is(s.UpdatePerformance(Sample{ModuleID: 9, Category: "general"}), domain.ErrNotFound))
	assert.Error(t, s.UpdatePerformance(Sample{ModuleID: 1, Category: "general", ParticipationBps: 10_001}))
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	s, _ := newTestSelector(t, descriptor(1, []string{"general"}, 0, 10))

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.UpdatePerformance(Sample{ModuleID: 1, Category: "general", ParticipationBps: uint64(i * 100), Succeeded: i%2 == 0})
		}(i)
	}
	wg.Wait()

	st, ok := s.Stats(1, "general")
	require.True(t, ok)
	assert.Equal(t, uint64(n), st.Samples)
}

func TestRebuildReplaysFirstLeafPerProposal(t *testing.T) {
	s, _ := newTestSelector(t, descriptor(1, []string{"general"}, 0, 10))

	pid := common.HexToHash("0x01")
	records := []domain.HistoryRecord{
		{Sequence: 0, ProposalID: pid, ModuleID: 1, Category: "general", ParticipationBps: 8000, Succeeded: true},
		{Sequence: 1, ProposalID: common.HexToHash("0x02"), ModuleID: 42, Category: "general", Succeeded: true},
		{Sequence: 2, ProposalID: pid, ModuleID: 1, Category: "general", ParticipationBps: 8000, Succeeded: true, Executed: true, ExecutionTimeSeconds: 3600},
	}
	require.NoError(t, s.Rebuild(records))

	st, ok := s.Stats(1, "general")
	require.True(t, ok)
	assert.Equal(t, Stats{Samples: 1, SuccessBps: 10_000, ParticipationBps: 8000}, st)
}

func TestRebuildReplacesStatistics(t *testing.T) {
	s, _ := newTestSelector(t, descriptor(1, []string{"general"}, 0, 10))

	records := []domain.HistoryRecord{
		{Sequence: 0, ProposalID: common.HexToHash("0x01"), ModuleID: 1, Category: "general", ParticipationBps: 6000, Succeeded: true},
		{Sequence: 1, ProposalID: common.HexToHash("0x02"), ModuleID: 1, Category: "general", ParticipationBps: 2000},
	}
	require.NoError(t, s.Rebuild(records))
	first, ok := s.Stats(1, "general")
	require.True(t, ok)
	assert.Equal(t, uint64(2), first.Samples)

	require.NoError(t, s.Rebuild(records))
	again, ok := s.Stats(1, "general")
	require.True(t, ok)
	assert.Equal(t, first, again)

	// live samples are dropped in favour of the replayed history
	require.NoError(t, s.UpdatePerformance(Sample{ModuleID: 1, Category: "general", ParticipationBps: 10_000, Succeeded: true}))
	require.NoError(t, s.Rebuild(records[:1]))
	st, ok := s.Stats(1, "general")
	require.True(t, ok)
	assert.Equal(t, Stats{Samples: 1, SuccessBps: 10_000, ParticipationBps: 6000}, st)

	bad := []domain.HistoryRecord{{Sequence: 9, ProposalID: common.HexToHash("0x09"), ModuleID: 1, Category: "general", ParticipationBps: 20_000}}
	assert.Error(t, s.Rebuild(bad))
	kept, _ := s.Stats(1, "general")
	assert.Equal(t, st, kept)
}

func TestRegisterModule(t *testing.T) {
	s, sink := newTestSelector(t, descriptor(1, []string{"general"}, 0, 10))
	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventTypeModuleRegistered, sink.events[0].Type)
	assert.Equal(t, uint64(1), sink.events[0].ModuleID)

	_, err := s.RegisterModule(context.Background(), descriptor(1, []string{"general"}, 0, 10), t0)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	_, err = s.RegisterModule(context.Background(), descriptor(2, nil, 0, 10), t0)
	assert.True(t, errors.Is(err, domain.ErrInvalidModule))
	assert.Len(t, sink.events, 1)

	m, err := s.GetModule(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.ID())
	assert.Len(t, s.Modules(), 1)
}
