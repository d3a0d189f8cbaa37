package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Phase is the commit-reveal phase of a privacy-gated proposal
type Phase uint8

const (
	PhaseCommitOpen Phase = iota
	PhaseRevealOpen
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseCommitOpen:
		return "commit"
	case PhaseRevealOpen:
		return "reveal"
	default:
		return "closed"
	}
}

// CommitmentPolicy decides what a second commitment by the same voter does
type CommitmentPolicy string

const (
	// CommitmentReject refuses a second commitment with ErrDuplicateCommitment
	CommitmentReject CommitmentPolicy = "reject"
	// CommitmentReplace lets the latest commitment win while the commit phase is open
	CommitmentReplace CommitmentPolicy = "replace"
)

// Commitment is a hidden vote awaiting reveal
type Commitment struct {
	ProposalID  common.Hash    `json:"proposalId"`
	Voter       common.Address `json:"voter"`
	Digest      common.Hash    `json:"digest"`
	CommittedAt time.Time      `json:"committedAt"`
	Revealed    bool           `json:"revealed"`
	RevealedAt  *time.Time     `json:"revealedAt,omitempty"`
}

// PhaseSchedule holds the deadlines of one commit-reveal session
type PhaseSchedule struct {
	OpenedAt       time.Time `json:"openedAt"`
	CommitDeadline time.Time `json:"commitDeadline"`
	RevealDeadline time.Time `json:"revealDeadline"`
}

// PhaseAt evaluates the phase at t; it never suspends
func (s PhaseSchedule) PhaseAt(t time.Time) Phase {
	switch {
	case t.Before(s.CommitDeadline):
		return PhaseCommitOpen
	case t.Before(s.RevealDeadline):
		return PhaseRevealOpen
	default:
		return PhaseClosed
	}
}
