package config

import (
	"fmt"
	"time"

	"github.com/trebuchet-org/govopt/internal/domain"
)

// Duration is a time.Duration that decodes from strings such as "48h"
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText encodes the duration as a Go duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// EngineConfig is the govopt.toml file: tunables of every engine component
type EngineConfig struct {
	Selector  SelectorConfig            `toml:"selector" json:"selector"`
	Expertise ExpertiseConfig           `toml:"expertise" json:"expertise"`
	Privacy   PrivacyConfig             `toml:"privacy" json:"privacy"`
	Voting    VotingConfig              `toml:"voting" json:"voting"`
	Executor  ExecutorConfig            `toml:"executor" json:"executor"`
	Modules   []domain.ModuleDescriptor `toml:"modules" json:"modules"`
}

// SelectorConfig weighs the historical signals used to rank modules
type SelectorConfig struct {
	SuccessWeightBps       int64 `toml:"success_weight_bps" json:"successWeightBps"`
	ParticipationWeightBps int64 `toml:"participation_weight_bps" json:"participationWeightBps"`
	ExecutionWeightBps     int64 `toml:"execution_weight_bps" json:"executionWeightBps"`
	// PriorBps is the neutral value assumed for every signal of an unseen module
	PriorBps uint64 `toml:"prior_bps" json:"priorBps"`
	// AlphaBps is the EWMA weight of a new sample
	AlphaBps uint64 `toml:"alpha_bps" json:"alphaBps"`
	// MaxExecutionTime normalizes execution time to [0,10000]
	MaxExecutionTime Duration `toml:"max_execution_time" json:"maxExecutionTime"`
}

// ExpertiseConfig controls verifier consensus and decay
type ExpertiseConfig struct {
	MinVerifiers int                      `toml:"min_verifiers" json:"minVerifiers"`
	Window       Duration                 `toml:"window" json:"window"`
	Aggregation  domain.AggregationPolicy `toml:"aggregation" json:"aggregation"`
	FloorScore   uint64                   `toml:"floor_score" json:"floorScore"`
}

// PrivacyConfig controls commit-reveal sessions
type PrivacyConfig struct {
	CommitDuration Duration `toml:"commit_duration" json:"commitDuration"`
	RevealDuration Duration `toml:"reveal_duration" json:"revealDuration"`
	// UrgencyReliefPct shortens both phases by this percentage per urgency level
	UrgencyReliefPct uint64 `toml:"urgency_relief_pct" json:"urgencyReliefPct"`
	// MinEligibleScore gates commit and reveal on required expertise; 0 disables
	MinEligibleScore uint64 `toml:"min_eligible_score" json:"minEligibleScore"`
	// CommitmentPolicy is "reject" or "replace"
	CommitmentPolicy domain.CommitmentPolicy `toml:"commitment_policy" json:"commitmentPolicy"`
}

// VotingConfig controls direct voting windows and quorum relief
type VotingConfig struct {
	VotingDuration Duration `toml:"voting_duration" json:"votingDuration"`
	// UrgencyReliefPct lowers quorum and shortens voting by this percentage per urgency level
	UrgencyReliefPct uint64 `toml:"urgency_relief_pct" json:"urgencyReliefPct"`
}

// ExecutorConfig configures the built-in action executor
type ExecutorConfig struct {
	// Treasury funds the value of executed actions
	Treasury string `toml:"treasury" json:"treasury"`
}

// DefaultEngineConfig returns the tunables used when govopt.toml leaves them unset
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Selector: SelectorConfig{
			SuccessWeightBps:       5000,
			ParticipationWeightBps: 3000,
			ExecutionWeightBps:     2000,
			PriorBps:               5000,
			AlphaBps:               3000,
			MaxExecutionTime:       Duration{30 * 24 * time.Hour},
		},
		Expertise: ExpertiseConfig{
			MinVerifiers: 2,
			Window:       Duration{30 * 24 * time.Hour},
			Aggregation:  domain.AggregationAverage,
			FloorScore:   0,
		},
		Privacy: PrivacyConfig{
			CommitDuration:   Duration{48 * time.Hour},
			RevealDuration:   Duration{24 * time.Hour},
			UrgencyReliefPct: 5,
			CommitmentPolicy: domain.CommitmentReject,
		},
		Voting: VotingConfig{
			VotingDuration:   Duration{72 * time.Hour},
			UrgencyReliefPct: 5,
		},
		Executor: ExecutorConfig{
			Treasury: "0x000000000000000000000000000000000000dEaD",
		},
	}
}

// Validate checks cross-field constraints of the engine configuration
func (c *EngineConfig) Validate() error {
	if c.Selector.PriorBps > domain.MaxBps || c.Selector.AlphaBps > domain.MaxBps || c.Selector.AlphaBps == 0 {
		return fmt.Errorf("selector: prior_bps and alpha_bps must be within (0,10000]")
	}
	if c.Selector.MaxExecutionTime.Duration <= 0 {
		return fmt.Errorf("selector: max_execution_time must be positive")
	}
	if c.Expertise.MinVerifiers < 1 {
		return fmt.Errorf("expertise: min_verifiers must be at least 1")
	}
	if c.Expertise.Window.Duration <= 0 {
		return fmt.Errorf("expertise: window must be positive")
	}
	switch c.Expertise.Aggregation {
	case domain.AggregationAverage, domain.AggregationMedian:
	default:
		return fmt.Errorf("expertise: unknown aggregation %q", c.Expertise.Aggregation)
	}
	if c.Expertise.FloorScore > domain.MaxExpertiseScore || c.Privacy.MinEligibleScore > domain.MaxExpertiseScore {
		return fmt.Errorf("expertise: scores must not exceed %d", domain.MaxExpertiseScore)
	}
	if c.Privacy.CommitDuration.Duration <= 0 || c.Privacy.RevealDuration.Duration <= 0 {
		return fmt.Errorf("privacy: phase durations must be positive")
	}
	if c.Privacy.UrgencyReliefPct*uint64(domain.MaxUrgency) >= 100 || c.Voting.UrgencyReliefPct*uint64(domain.MaxUrgency) >= 100 {
		return fmt.Errorf("urgency_relief_pct must be below 10")
	}
	switch c.Privacy.CommitmentPolicy {
	case domain.CommitmentReject, domain.CommitmentReplace:
	default:
		return fmt.Errorf("privacy: unknown commitment_policy %q", c.Privacy.CommitmentPolicy)
	}
	if c.Voting.VotingDuration.Duration <= 0 {
		return fmt.Errorf("voting: voting_duration must be positive")
	}
	for i := range c.Modules {
		if err := c.Modules[i].Validate(); err != nil {
			return fmt.Errorf("modules[%d]: %w", i, err)
		}
	}
	return nil
}

// Relieve shortens d (or lowers a quantity) by reliefPct per urgency level
func Relieve(d time.Duration, urgency uint8, reliefPct uint64) time.Duration {
	factor := 100 - reliefPct*uint64(urgency)
	return d * time.Duration(factor) / 100
}
