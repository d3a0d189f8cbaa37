package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ProposalState represents the lifecycle state of a proposal
type ProposalState uint8

const (
	ProposalStatePending ProposalState = iota
	ProposalStateActive
	ProposalStateSucceeded
	ProposalStateFailed
	ProposalStateExecuted
	ProposalStateCanceled
)

var proposalStateNames = map[ProposalState]string{
	ProposalStatePending:   "pending",
	ProposalStateActive:    "active",
	ProposalStateSucceeded: "succeeded",
	ProposalStateFailed:    "failed",
	ProposalStateExecuted:  "executed",
	ProposalStateCanceled:  "canceled",
}

func (s ProposalState) String() string {
	if name, ok := proposalStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// IsTerminal reports whether no further transition is possible
func (s ProposalState) IsTerminal() bool {
	return s == ProposalStateExecuted || s == ProposalStateCanceled || s == ProposalStateFailed
}

// MarshalText encodes the state by name
func (s ProposalState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *ProposalState) UnmarshalText(text []byte) error {
	for state, name := range proposalStateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown proposal state %q", string(text))
}

// Action is one call in a proposal's target batch
type Action struct {
	Target  common.Address `json:"target"`
	Value   *uint256.Int   `json:"value,omitempty"`
	Payload []byte         `json:"payload,omitempty"`
}

// ValueOrZero returns the action value, treating nil as zero
func (a Action) ValueOrZero() *uint256.Int {
	if a.Value == nil {
		return new(uint256.Int)
	}
	return a.Value
}

// Tally accumulates counted weight for one proposal
type Tally struct {
	SupportWeight *uint256.Int `json:"supportWeight"`
	AgainstWeight *uint256.Int `json:"againstWeight"`
	// ParticipatingBalance is the raw token balance of counted voters, used for participation rates
	ParticipatingBalance *uint256.Int `json:"participatingBalance"`
	Voters               int          `json:"voters"`
}

// NewTally returns an empty tally
func NewTally() *Tally {
	return &Tally{
		SupportWeight:        new(uint256.Int),
		AgainstWeight:        new(uint256.Int),
		ParticipatingBalance: new(uint256.Int),
	}
}

// TotalWeight is support plus against weight
func (t *Tally) TotalWeight() *uint256.Int {
	return new(uint256.Int).Add(t.SupportWeight, t.AgainstWeight)
}

// Clone returns a deep copy of the tally
func (t *Tally) Clone() *Tally {
	return &Tally{
		SupportWeight:        t.SupportWeight.Clone(),
		AgainstWeight:        t.AgainstWeight.Clone(),
		ParticipatingBalance: t.ParticipatingBalance.Clone(),
		Voters:               t.Voters,
	}
}

// Proposal is a single governance decision under vote
type Proposal struct {
	ID          common.Hash    `json:"id"`
	Creator     common.Address `json:"creator"`
	MetadataURI string         `json:"metadataUri,omitempty"`
	Actions     []Action       `json:"actions,omitempty"`
	State       ProposalState  `json:"state"`
	ContextID   common.Hash    `json:"contextId"`
	ModuleID    uint64         `json:"moduleId"`
	Private     bool           `json:"private,omitempty"`

	CreatedAt      time.Time  `json:"createdAt"`
	VotingDeadline time.Time  `json:"votingDeadline"`
	FinalizedAt    *time.Time `json:"finalizedAt,omitempty"`
	ExecutedAt     *time.Time `json:"executedAt,omitempty"`

	Tally *Tally `json:"tally"`
}

// Clone returns a copy that shares no mutable state with p
func (p *Proposal) Clone() *Proposal {
	cp := *p
	cp.Actions = append([]Action(nil), p.Actions...)
	if p.Tally != nil {
		cp.Tally = p.Tally.Clone()
	}
	if p.FinalizedAt != nil {
		t := *p.FinalizedAt
		cp.FinalizedAt = &t
	}
	if p.ExecutedAt != nil {
		t := *p.ExecutedAt
		cp.ExecutedAt = &t
	}
	return &cp
}

// VoteRecord is a counted vote
type VoteRecord struct {
	ProposalID common.Hash    `json:"proposalId"`
	Voter      common.Address `json:"voter"`
	Support    bool           `json:"support"`
	Weight     *uint256.Int   `json:"weight"`
	Private    bool           `json:"private,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	CastAt     time.Time      `json:"castAt"`
}
