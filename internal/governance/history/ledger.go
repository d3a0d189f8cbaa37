// Package history is the append-only outcome ledger. Every record becomes a
// Merkle leaf; the root is updated incrementally and any divergence between
// root and leaves halts further writes.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/govopt/internal/domain"
)

// Ledger is the hash-linked history of proposal outcomes
type Ledger struct {
	events domain.EventSink
	log    *slog.Logger

	mu      sync.RWMutex
	records []domain.HistoryRecord
	leaves  tree
	halted  error
}

// NewLedger creates an empty history ledger
func NewLedger(events domain.EventSink, log *slog.Logger) *Ledger {
	return &Ledger{
		events: events,
		log:    log.With("component", "history"),
	}
}

// RecordHistory appends a record and returns the new root. The sequence
// number is assigned here; the caller's value is ignored.
func (l *Ledger) RecordHistory(ctx context.Context, record domain.HistoryRecord) (common.Hash, error) {
	l.mu.Lock()
	if l.halted != nil {
		l.mu.Unlock()
		return common.Hash{}, l.halted
	}

	record.Sequence = uint64(len(l.records))
	leaf, err := LeafHash(record)
	if err != nil {
		l.mu.Unlock()
		return common.Hash{}, err
	}
	l.records = append(l.records, record)
	l.leaves.append(leaf)
	root := l.leaves.root()
	l.mu.Unlock()

	l.log.Debug("history recorded",
		"sequence", record.Sequence,
		"proposal", record.ProposalID.Hex(),
		"module", record.ModuleID,
		"succeeded", record.Succeeded,
		"executed", record.Executed,
		"root", root.Hex(),
	)
	l.events.Emit(ctx, domain.NewEvent(domain.EventTypeHistoryRecorded, record.RecordedAt).
		WithProposal(record.ProposalID).
		WithModule(record.ModuleID).
		With("sequence", record.Sequence).
		With("root", root.Hex()).
		With("succeeded", record.Succeeded).
		With("executed", record.Executed))

	return root, nil
}

// Root returns the current Merkle root
func (l *Ledger) Root() common.Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.leaves.root()
}

// Len returns the number of leaves
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of every leaf in append order
func (l *Ledger) Records() []domain.HistoryRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.HistoryRecord(nil), l.records...)
}

// GetHistory returns every record of a proposal, oldest first
func (l *Ledger) GetHistory(proposalID common.Hash) ([]domain.HistoryRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.HistoryRecord
	for _, r := range l.records {
		if r.ProposalID == proposalID {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("history of %s: %w", proposalID.Hex(), domain.ErrNotFound)
	}
	return out, nil
}

// Latest returns the most recent record of a proposal
func (l *Ledger) Latest(proposalID common.Hash) (domain.HistoryRecord, error) {
	records, err := l.GetHistory(proposalID)
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	return records[len(records)-1], nil
}

// Proof returns the latest record of a proposal with its inclusion proof
func (l *Ledger) Proof(proposalID common.Hash) (domain.HistoryRecord, []common.Hash, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].ProposalID == proposalID {
			return l.records[i], l.leaves.proof(i), nil
		}
	}
	return domain.HistoryRecord{}, nil, fmt.Errorf("history of %s: %w", proposalID.Hex(), domain.ErrNotFound)
}

// VerifyHistoricalData checks that record belongs to proposalID and is
// included under the current root.
func (l *Ledger) VerifyHistoricalData(proposalID common.Hash, record domain.HistoryRecord, proof []common.Hash) bool {
	return l.CheckInclusion(proposalID, record, proof) == nil
}

// CheckInclusion is VerifyHistoricalData with the failure reason
func (l *Ledger) CheckInclusion(proposalID common.Hash, record domain.HistoryRecord, proof []common.Hash) error {
	if record.ProposalID != proposalID {
		return fmt.Errorf("%w: record belongs to %s", domain.ErrMerkleProofInvalid, record.ProposalID.Hex())
	}
	leaf, err := LeafHash(record)
	if err != nil {
		return err
	}
	if ProcessProof(leaf, proof) != l.Root() {
		return domain.ErrMerkleProofInvalid
	}
	return nil
}

// GetModulePerformance aggregates the latest record of every proposal decided
// by moduleID, restricted to category unless it is empty.
func (l *Ledger) GetModulePerformance(moduleID uint64, category string) domain.ModulePerformance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	latest := make(map[common.Hash]domain.HistoryRecord)
	var order []common.Hash
	for _, r := range l.records {
		if r.ModuleID != moduleID || (category != "" && r.Category != category) {
			continue
		}
		if _, seen := latest[r.ProposalID]; !seen {
			order = append(order, r.ProposalID)
		}
		latest[r.ProposalID] = r
	}

	perf := domain.ModulePerformance{ModuleID: moduleID, Category: category}
	if len(order) == 0 {
		return perf
	}

	var participation, execution, succeeded uint64
	for _, id := range order {
		r := latest[id]
		participation += r.ParticipationBps
		execution += r.ExecutionTimeSeconds
		if r.Succeeded {
			succeeded++
		}
	}
	n := uint64(len(order))
	perf.Proposals = n
	perf.AvgParticipationBps = participation / n
	perf.AvgExecutionTimeSeconds = execution / n
	perf.SuccessRateBps = succeeded * domain.MaxBps / n
	return perf
}

// Verify recomputes the root from the leaves. A mismatch is fatal: the ledger
// refuses every later write.
func (l *Ledger) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted != nil {
		return l.halted
	}
	rebuilt, err := buildTree(l.records)
	if err != nil {
		return err
	}
	if rebuilt.root() != l.leaves.root() {
		l.halted = fmt.Errorf("%w: root %s does not match leaves (%s)", domain.ErrLedgerCorrupted, l.leaves.root().Hex(), rebuilt.root().Hex())
		l.log.Error("history ledger halted", "error", l.halted)
		return l.halted
	}
	return nil
}

// Halted returns the fatal error that stopped the ledger, if any
func (l *Ledger) Halted() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.halted
}

// Snapshot returns the persisted form of the ledger
func (l *Ledger) Snapshot() domain.HistorySnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.HistorySnapshot{
		Root:    l.leaves.root(),
		Records: append([]domain.HistoryRecord(nil), l.records...),
	}
}

// Restore loads a snapshot into an empty ledger. A snapshot whose records do
// not reproduce its root halts the ledger.
func (l *Ledger) Restore(snapshot domain.HistorySnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) > 0 {
		return fmt.Errorf("restore into non-empty ledger: %w", domain.ErrAlreadyExists)
	}
	for i, r := range snapshot.Records {
		if r.Sequence != uint64(i) {
			l.halted = fmt.Errorf("%w: record %d has sequence %d", domain.ErrLedgerCorrupted, i, r.Sequence)
			return l.halted
		}
	}
	rebuilt, err := buildTree(snapshot.Records)
	if err != nil {
		return err
	}
	if rebuilt.root() != snapshot.Root {
		l.halted = fmt.Errorf("%w: snapshot root %s, leaves give %s", domain.ErrLedgerCorrupted, snapshot.Root.Hex(), rebuilt.root().Hex())
		return l.halted
	}
	l.records = append([]domain.HistoryRecord(nil), snapshot.Records...)
	l.leaves = rebuilt
	return nil
}

func buildTree(records []domain.HistoryRecord) (tree, error) {
	var t tree
	for _, r := range records {
		leaf, err := LeafHash(r)
		if err != nil {
			return tree{}, err
		}
		t.append(leaf)
	}
	return t, nil
}
