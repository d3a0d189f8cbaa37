package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Sentinel errors for governance operations. Every one of them is returned
// before any state is mutated, so callers may retry or correct their input.
var (
	// ErrNotFound is returned when a requested proposal, module or record doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when registering something that is already registered
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidContext is returned when context parameters are malformed
	ErrInvalidContext = errors.New("invalid context")

	// ErrInvalidModule is returned when a module descriptor is malformed
	ErrInvalidModule = errors.New("invalid module")

	// ErrNoSuitableModule is returned when no registered module matches the category/urgency filter
	ErrNoSuitableModule = errors.New("no suitable module")

	// ErrProposalNotActive is returned when voting or finalizing outside the Active state
	ErrProposalNotActive = errors.New("proposal not active")

	// ErrInvalidState is returned for transitions the lifecycle does not allow
	ErrInvalidState = errors.New("invalid proposal state")

	// ErrDuplicateVote is returned when a voter already has a counted vote
	ErrDuplicateVote = errors.New("duplicate vote")

	// ErrDuplicateCommitment is returned when a voter already holds a live commitment
	ErrDuplicateCommitment = errors.New("duplicate commitment")

	// ErrCommitmentNotFound is returned when revealing without a prior commitment
	ErrCommitmentNotFound = errors.New("commitment not found")

	// ErrCommitmentMismatch is returned when the revealed vote does not hash to the commitment
	ErrCommitmentMismatch = errors.New("commitment mismatch")

	// ErrPhaseClosed is returned when voting, committing or revealing outside its window
	ErrPhaseClosed = errors.New("phase closed")

	// ErrPrivacyRequired is returned when casting a direct vote on a commit-reveal proposal
	ErrPrivacyRequired = errors.New("proposal requires commit-reveal voting")

	// ErrVotingPeriodOpen is returned when finalizing a commit-reveal proposal before reveal ends
	ErrVotingPeriodOpen = errors.New("voting period still open")

	// ErrNotEligible is returned when a voter lacks the expertise a gated proposal demands
	ErrNotEligible = errors.New("voter not eligible")

	// ErrNoVotingPower is returned when a voter's weight under the bound module is zero
	ErrNoVotingPower = errors.New("no voting power")

	// ErrQuorumNotMet is returned when finalizing before enough weight was counted
	ErrQuorumNotMet = errors.New("quorum not met")

	// ErrThresholdNotMet is returned when finalizing early without the approval threshold
	ErrThresholdNotMet = errors.New("approval threshold not met")

	// ErrReentrancyRejected is returned when a nested call tries to mutate a proposal mid-operation
	ErrReentrancyRejected = errors.New("reentrant call rejected")

	// ErrMerkleProofInvalid is returned when a history inclusion proof does not verify
	ErrMerkleProofInvalid = errors.New("merkle proof invalid")

	// ErrLedgerCorrupted is fatal: the history root no longer matches its leaves
	ErrLedgerCorrupted = errors.New("history ledger corrupted")

	// ErrUnauthorizedVerifier is returned when an attestation comes from a non-verifier
	ErrUnauthorizedVerifier = errors.New("unauthorized verifier")

	// ErrInvalidScore is returned for expertise scores outside [0,100] or already expired
	ErrInvalidScore = errors.New("invalid expertise score")

	// ErrUnauthorized is returned when the caller may not perform the operation
	ErrUnauthorized = errors.New("unauthorized")

	// ErrExecutionFailed is returned when the target action batch failed; the proposal stays Succeeded
	ErrExecutionFailed = errors.New("execution failed")
)

type errorKind struct {
	name     string
	sentinel error
}

// errorKinds lists every sentinel in a fixed order
var errorKinds = []errorKind{
	{"NotFound", ErrNotFound},
	{"AlreadyExists", ErrAlreadyExists},
	{"InvalidContext", ErrInvalidContext},
	{"InvalidModule", ErrInvalidModule},
	{"NoSuitableModule", ErrNoSuitableModule},
	{"ProposalNotActive", ErrProposalNotActive},
	{"InvalidState", ErrInvalidState},
	{"DuplicateVote", ErrDuplicateVote},
	{"DuplicateCommitment", ErrDuplicateCommitment},
	{"CommitmentNotFound", ErrCommitmentNotFound},
	{"CommitmentMismatch", ErrCommitmentMismatch},
	{"PhaseClosed", ErrPhaseClosed},
	{"PrivacyRequired", ErrPrivacyRequired},
	{"VotingPeriodOpen", ErrVotingPeriodOpen},
	{"NotEligible", ErrNotEligible},
	{"NoVotingPower", ErrNoVotingPower},
	{"QuorumNotMet", ErrQuorumNotMet},
	{"ThresholdNotMet", ErrThresholdNotMet},
	{"ReentrancyRejected", ErrReentrancyRejected},
	{"MerkleProofInvalid", ErrMerkleProofInvalid},
	{"LedgerCorrupted", ErrLedgerCorrupted},
	{"UnauthorizedVerifier", ErrUnauthorizedVerifier},
	{"InvalidScore", ErrInvalidScore},
	{"Unauthorized", ErrUnauthorized},
	{"ExecutionFailed", ErrExecutionFailed},
}

var errorsByName = lo.SliceToMap(errorKinds, func(k errorKind) (string, error) {
	return k.name, k.sentinel
})

// ErrorByName resolves an error kind such as "CommitmentMismatch" to its sentinel
func ErrorByName(name string) (error, bool) {
	err, ok := errorsByName[strings.TrimPrefix(name, "Err")]
	return err, ok
}

// ErrorName returns the kind name of the first sentinel found walking err's
// wrap tree depth first, outermost and leftmost first, or "" if none
func ErrorName(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if err == k.sentinel {
			return k.name
		}
	}
	switch wrapped := err.(type) {
	case interface{ Unwrap() error }:
		return ErrorName(wrapped.Unwrap())
	case interface{ Unwrap() []error }:
		for _, inner := range wrapped.Unwrap() {
			if name := ErrorName(inner); name != "" {
				return name
			}
		}
	}
	return ""
}

// InvalidContextErr describes which context parameter was rejected
type InvalidContextErr struct {
	Field  string
	Reason string
}

func (e InvalidContextErr) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidContext, e.Field, e.Reason)
}

func (e InvalidContextErr) Unwrap() error {
	return ErrInvalidContext
}

// NoSuitableModuleErr carries the filter that produced an empty candidate set
type NoSuitableModuleErr struct {
	Category string
	Urgency  uint8
}

func (e NoSuitableModuleErr) Error() string {
	return fmt.Sprintf("%s for category %q at urgency %d", ErrNoSuitableModule, e.Category, e.Urgency)
}

func (e NoSuitableModuleErr) Unwrap() error {
	return ErrNoSuitableModule
}
