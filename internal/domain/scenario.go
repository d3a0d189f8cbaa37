package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Scenario is a scripted governance session replayed against the engine
type Scenario struct {
	Name      string                      `yaml:"name"`
	Start     time.Time                   `yaml:"start"`
	Balances  map[string]string           `yaml:"balances"`
	Verifiers map[string][]common.Address `yaml:"verifiers"`
	Modules   []ModuleDescriptor          `yaml:"modules"`
	Steps     []ScenarioStep              `yaml:"steps"`
}

// ScenarioStepKind names the operation a step performs
type ScenarioStepKind string

const (
	StepAdvance         ScenarioStepKind = "advance"
	StepVerifyExpertise ScenarioStepKind = "verify_expertise"
	StepCreate          ScenarioStepKind = "create"
	StepVote            ScenarioStepKind = "vote"
	StepCommit          ScenarioStepKind = "commit"
	StepReveal          ScenarioStepKind = "reveal"
	StepFinalize        ScenarioStepKind = "finalize"
	StepExecute         ScenarioStepKind = "execute"
	StepCancel          ScenarioStepKind = "cancel"
)

// ScenarioStep holds exactly one operation. ExpectError names the sentinel
// error the step must fail with, e.g. "CommitmentMismatch".
type ScenarioStep struct {
	Name            string         `yaml:"name,omitempty"`
	Advance         time.Duration  `yaml:"advance,omitempty"`
	VerifyExpertise *ExpertiseStep `yaml:"verify_expertise,omitempty"`
	Create          *CreateStep    `yaml:"create,omitempty"`
	Vote            *BallotStep    `yaml:"vote,omitempty"`
	Commit          *BallotStep    `yaml:"commit,omitempty"`
	Reveal          *BallotStep    `yaml:"reveal,omitempty"`
	Finalize        *ProposalRef   `yaml:"finalize,omitempty"`
	Execute         *ProposalRef   `yaml:"execute,omitempty"`
	Cancel          *CancelStep    `yaml:"cancel,omitempty"`
	ExpectError     string         `yaml:"expect_error,omitempty"`
}

// ExpertiseStep is a verifier attestation
type ExpertiseStep struct {
	Verifier    common.Address `yaml:"verifier"`
	Account     common.Address `yaml:"account"`
	Domain      string         `yaml:"domain"`
	Score       uint64         `yaml:"score"`
	ValidFor    time.Duration  `yaml:"valid_for"`
	MetadataURI string         `yaml:"metadata,omitempty"`
}

// CreateStep creates a proposal reachable by Alias in later steps
type CreateStep struct {
	Alias       string         `yaml:"alias"`
	Creator     common.Address `yaml:"creator"`
	MetadataURI string         `yaml:"metadata"`
	Context     ContextParams  `yaml:"context"`
	Actions     []ActionSpec   `yaml:"actions,omitempty"`
}

// ActionSpec is an action as written in a scenario file
type ActionSpec struct {
	Target  common.Address `yaml:"target"`
	Value   string         `yaml:"value,omitempty"`
	Payload string         `yaml:"payload,omitempty"`
}

// ProposalRef points at a proposal by alias
type ProposalRef struct {
	Proposal string `yaml:"proposal"`
}

// BallotStep is a direct vote, a commitment or a reveal. Salt is hex and is
// ignored for direct votes.
type BallotStep struct {
	Proposal string         `yaml:"proposal"`
	Voter    common.Address `yaml:"voter"`
	Support  bool           `yaml:"support"`
	Salt     string         `yaml:"salt,omitempty"`
	Reason   string         `yaml:"reason,omitempty"`
}

// CancelStep cancels a proposal on behalf of Caller
type CancelStep struct {
	Proposal string         `yaml:"proposal"`
	Caller   common.Address `yaml:"caller"`
}

// Kind reports the operation of a step, failing unless exactly one is set
func (s *ScenarioStep) Kind() (ScenarioStepKind, error) {
	var kinds []ScenarioStepKind
	if s.Advance != 0 {
		kinds = append(kinds, StepAdvance)
	}
	if s.VerifyExpertise != nil {
		kinds = append(kinds, StepVerifyExpertise)
	}
	if s.Create != nil {
		kinds = append(kinds, StepCreate)
	}
	if s.Vote != nil {
		kinds = append(kinds, StepVote)
	}
	if s.Commit != nil {
		kinds = append(kinds, StepCommit)
	}
	if s.Reveal != nil {
		kinds = append(kinds, StepReveal)
	}
	if s.Finalize != nil {
		kinds = append(kinds, StepFinalize)
	}
	if s.Execute != nil {
		kinds = append(kinds, StepExecute)
	}
	if s.Cancel != nil {
		kinds = append(kinds, StepCancel)
	}
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("step has no operation")
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("step has %d operations %v, want one", len(kinds), kinds)
	}
}

// Validate checks the structure of the scenario without running it
func (s *Scenario) Validate() error {
	if s.Start.IsZero() {
		return fmt.Errorf("scenario %q: start time is required", s.Name)
	}
	aliases := make(map[string]bool)
	for i := range s.Steps {
		step := &s.Steps[i]
		kind, err := step.Kind()
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Advance < 0 {
			return fmt.Errorf("step %d: cannot advance time backwards", i+1)
		}
		if step.ExpectError != "" {
			if _, ok := ErrorByName(step.ExpectError); !ok {
				return fmt.Errorf("step %d: unknown error %q", i+1, step.ExpectError)
			}
		}
		if kind == StepCreate {
			if step.Create.Alias == "" {
				return fmt.Errorf("step %d: create needs an alias", i+1)
			}
			if aliases[step.Create.Alias] && step.ExpectError == "" {
				return fmt.Errorf("step %d: alias %q is already taken", i+1, step.Create.Alias)
			}
			aliases[step.Create.Alias] = true
		}
	}
	return nil
}
