package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// HistoryRecord is one immutable outcome leaf of the history ledger. A proposal
// that is executed after finalization gets a second leaf with Executed set.
type HistoryRecord struct {
	Sequence             uint64      `json:"sequence"`
	ProposalID           common.Hash `json:"proposalId"`
	ContextID            common.Hash `json:"contextId"`
	ModuleID             uint64      `json:"moduleId"`
	Category             string      `json:"category"`
	ParticipationBps     uint64      `json:"participationBps"`
	ExecutionTimeSeconds uint64      `json:"executionTimeSeconds"`
	Succeeded            bool        `json:"succeeded"`
	Executed             bool        `json:"executed"`
	RecordedAt           time.Time   `json:"recordedAt"`
}

// ModulePerformance aggregates history for one module, optionally within one category
type ModulePerformance struct {
	ModuleID                uint64 `json:"moduleId"`
	Category                string `json:"category,omitempty"`
	Proposals               uint64 `json:"proposals"`
	AvgParticipationBps     uint64 `json:"avgParticipationBps"`
	AvgExecutionTimeSeconds uint64 `json:"avgExecutionTimeSeconds"`
	SuccessRateBps          uint64 `json:"successRateBps"`
}

// HistorySnapshot is the persisted form of the history ledger
type HistorySnapshot struct {
	Root    common.Hash     `json:"root"`
	Records []HistoryRecord `json:"records"`
}
