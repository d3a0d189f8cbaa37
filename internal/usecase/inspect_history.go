package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/governance/history"
)

// historyLoader restores the persisted ledger once per process
type historyLoader struct {
	store  HistoryStore
	ledger *history.Ledger

	once sync.Once
	err  error
}

func newHistoryLoader(store HistoryStore, ledger *history.Ledger) *historyLoader {
	return &historyLoader{store: store, ledger: ledger}
}

func (h *historyLoader) load(ctx context.Context) error {
	h.once.Do(func() {
		if h.ledger.Len() > 0 {
			return
		}
		snapshot, err := h.store.Load(ctx)
		if err != nil {
			h.err = err
			return
		}
		h.err = h.ledger.Restore(*snapshot)
	})
	return h.err
}

// ListHistoryParams contains parameters for listing history records
type ListHistoryParams struct {
	ProposalID *common.Hash
	ModuleID   uint64
	Category   string
}

// ListHistoryResult contains the matching history records
type ListHistoryResult struct {
	Records []domain.HistoryRecord
	Root    common.Hash
	Total   int
	Path    string
}

// ListHistory is the use case for listing history ledger records
type ListHistory struct {
	loader *historyLoader
}

// NewListHistory creates a new ListHistory use case
func NewListHistory(store HistoryStore, ledger *history.Ledger) *ListHistory {
	return &ListHistory{loader: newHistoryLoader(store, ledger)}
}

// Run executes the list history use case
func (uc *ListHistory) Run(ctx context.Context, params ListHistoryParams) (*ListHistoryResult, error) {
	if err := uc.loader.load(ctx); err != nil {
		return nil, err
	}
	all := uc.loader.ledger.Records()
	records := lo.Filter(all, func(r domain.HistoryRecord, _ int) bool {
		if params.ProposalID != nil && r.ProposalID != *params.ProposalID {
			return false
		}
		if params.ModuleID != 0 && r.ModuleID != params.ModuleID {
			return false
		}
		return params.Category == "" || r.Category == params.Category
	})
	return &ListHistoryResult{
		Records: records,
		Root:    uc.loader.ledger.Root(),
		Total:   len(all),
		Path:    uc.loader.store.GetPath(),
	}, nil
}

// ModulePerformanceParams selects the aggregation scope
type ModulePerformanceParams struct {
	// ModuleID restricts the report to one module; 0 reports every module seen in history
	ModuleID uint64
	Category string
}

// ShowModulePerformance is the use case for aggregating module performance from history
type ShowModulePerformance struct {
	loader *historyLoader
}

// NewShowModulePerformance creates a new ShowModulePerformance use case
func NewShowModulePerformance(store HistoryStore, ledger *history.Ledger) *ShowModulePerformance {
	return &ShowModulePerformance{loader: newHistoryLoader(store, ledger)}
}

// Run executes the module performance use case
func (uc *ShowModulePerformance) Run(ctx context.Context, params ModulePerformanceParams) ([]domain.ModulePerformance, error) {
	if err := uc.loader.load(ctx); err != nil {
		return nil, err
	}
	ledger := uc.loader.ledger
	if params.ModuleID != 0 {
		return []domain.ModulePerformance{ledger.GetModulePerformance(params.ModuleID, params.Category)}, nil
	}

	ids := lo.Uniq(lo.Map(ledger.Records(), func(r domain.HistoryRecord, _ int) uint64 { return r.ModuleID }))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	perfs := make([]domain.ModulePerformance, 0, len(ids))
	for _, id := range ids {
		perf := ledger.GetModulePerformance(id, params.Category)
		if perf.Proposals > 0 {
			perfs = append(perfs, perf)
		}
	}
	return perfs, nil
}

// ProofCheck is the inclusion check of one proposal's latest record
type ProofCheck struct {
	Record domain.HistoryRecord
	Proof  []common.Hash
	Err    error
}

// VerifyHistoryParams contains parameters for verifying the history ledger
type VerifyHistoryParams struct {
	// ProposalID limits proof checks to one proposal
	ProposalID *common.Hash
}

// VerifyHistoryResult reports the ledger check and the per-proposal proofs
type VerifyHistoryResult struct {
	Root   common.Hash
	Leaves int
	// LedgerErr is set when the leaves do not reproduce the root
	LedgerErr error
	Checks    []ProofCheck
}

// Valid reports whether the ledger and every proof verified
func (r *VerifyHistoryResult) Valid() bool {
	return r.LedgerErr == nil && lo.EveryBy(r.Checks, func(c ProofCheck) bool { return c.Err == nil })
}

// VerifyHistory is the use case for checking the integrity of the history ledger
type VerifyHistory struct {
	loader *historyLoader
}

// NewVerifyHistory creates a new VerifyHistory use case
func NewVerifyHistory(store HistoryStore, ledger *history.Ledger) *VerifyHistory {
	return &VerifyHistory{loader: newHistoryLoader(store, ledger)}
}

// Run executes the verify history use case. A snapshot that fails to restore
// is reported as a ledger error rather than returned.
func (uc *VerifyHistory) Run(ctx context.Context, params VerifyHistoryParams) (*VerifyHistoryResult, error) {
	ledger := uc.loader.ledger
	result := &VerifyHistoryResult{}
	if err := uc.loader.load(ctx); err != nil {
		if ledger.Halted() == nil {
			return nil, err
		}
		result.LedgerErr = err
		return result, nil
	}
	result.LedgerErr = ledger.Verify()
	result.Root = ledger.Root()
	result.Leaves = ledger.Len()

	var ids []common.Hash
	if params.ProposalID != nil {
		ids = []common.Hash{*params.ProposalID}
	} else {
		ids = lo.Uniq(lo.Map(ledger.Records(), func(r domain.HistoryRecord, _ int) common.Hash { return r.ProposalID }))
	}
	for _, id := range ids {
		record, proof, err := ledger.Proof(id)
		if err != nil {
			return nil, fmt.Errorf("failed to build proof: %w", err)
		}
		result.Checks = append(result.Checks, ProofCheck{
			Record: record,
			Proof:  proof,
			Err:    ledger.CheckInclusion(id, record, proof),
		})
	}
	return result, nil
}
