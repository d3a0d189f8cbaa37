// Package events implements the governance event stream: an ordered
// in-memory log that forwards each event to logging and metrics sinks.
package events

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// Log assigns sequence numbers in emission order and keeps every event
type Log struct {
	mu     sync.Mutex
	next   uint64
	events []domain.Event
	sinks  []domain.EventSink
}

// NewLog creates an empty log forwarding to sinks
func NewLog(sinks ...domain.EventSink) *Log {
	return &Log{sinks: sinks}
}

// Emit sequences the event, stores it and forwards it. Forwarding happens
// under the log lock so every sink observes the same order.
func (l *Log) Emit(ctx context.Context, event domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	event.Sequence = l.next
	l.next++
	l.events = append(l.events, event)
	for _, sink := range l.sinks {
		sink.Emit(ctx, event)
	}
}

// Events returns a copy of every event in order
func (l *Log) Events() []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Event(nil), l.events...)
}

// Since returns the events with a sequence number of at least seq
func (l *Log) Since(seq uint64) []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := sort.Search(len(l.events), func(i int) bool { return l.events[i].Sequence >= seq })
	return append([]domain.Event(nil), l.events[idx:]...)
}

// SlogSink writes each event as a debug log line
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink creates a sink logging through log
func NewSlogSink(log *slog.Logger) *SlogSink {
	return &SlogSink{log: log.With("component", "events")}
}

// Emit logs the event
func (s *SlogSink) Emit(ctx context.Context, event domain.Event) {
	attrs := []any{"seq", event.Sequence, "type", event.Type}
	if event.ProposalID != nil {
		attrs = append(attrs, "proposal", event.ProposalID.Hex())
	}
	if event.Account != nil {
		attrs = append(attrs, "account", event.Account.Hex())
	}
	if event.ModuleID != 0 {
		attrs = append(attrs, "module", event.ModuleID)
	}
	s.log.DebugContext(ctx, "event", attrs...)
}

// Metrics counts events by type in a prometheus registry
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	votes    *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them in a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govopt",
			Name:      "events_total",
			Help:      "Governance events emitted, by type.",
		}, []string{"type"}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govopt",
			Name:      "votes_total",
			Help:      "Counted votes, by privacy mode.",
		}, []string{"mode"}),
	}
	m.registry.MustRegister(m.events, m.votes)
	return m
}

// Emit increments the counters for the event
func (m *Metrics) Emit(_ context.Context, event domain.Event) {
	m.events.WithLabelValues(string(event.Type)).Inc()
	if event.Type == domain.EventTypeVoteCast {
		mode := "direct"
		if event.Attributes["private"] == "true" {
			mode = "private"
		}
		m.votes.WithLabelValues(mode).Inc()
	}
}

// Registry exposes the registry the counters live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Counts gathers the event counter values by type
func (m *Metrics) Counts() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, f := range families {
		if f.GetName() != "govopt_events_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "type" {
					out[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	return out, nil
}

var (
	_ usecase.EventLog = (*Log)(nil)
	_ domain.EventSink = (*SlogSink)(nil)
	_ domain.EventSink = (*Metrics)(nil)
)
