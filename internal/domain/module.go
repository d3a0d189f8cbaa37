package domain

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/samber/lo"
)

// ModuleKind identifies one of the fixed voting strategies
type ModuleKind string

const (
	ModuleKindToken       ModuleKind = "token"
	ModuleKindQuadratic   ModuleKind = "quadratic"
	ModuleKindExpertise   ModuleKind = "expertise"
	ModuleKindHybrid      ModuleKind = "hybrid"
	ModuleKindStakeholder ModuleKind = "stakeholder"
)

// ModuleKinds lists every supported strategy
func ModuleKinds() []ModuleKind {
	return []ModuleKind{
		ModuleKindToken,
		ModuleKindQuadratic,
		ModuleKindExpertise,
		ModuleKindHybrid,
		ModuleKindStakeholder,
	}
}

// IsValid reports whether k is a known strategy
func (k ModuleKind) IsValid() bool {
	return lo.Contains(ModuleKinds(), k)
}

// ModuleDescriptor registers a voting strategy with its suitability constraints
type ModuleDescriptor struct {
	ID                  uint64     `json:"id" toml:"id" yaml:"id"`
	Name                string     `json:"name" toml:"name" yaml:"name"`
	Kind                ModuleKind `json:"kind" toml:"kind" yaml:"kind"`
	SuitableCategories  []string   `json:"suitableCategories" toml:"categories" yaml:"categories"`
	MinUrgency          uint8      `json:"minUrgency" toml:"min_urgency" yaml:"min_urgency"`
	MaxUrgency          uint8      `json:"maxUrgency" toml:"max_urgency" yaml:"max_urgency"`
	ExpertiseWeighted   bool       `json:"expertiseWeighted" toml:"expertise_weighted" yaml:"expertise_weighted"`
	StakeholderWeighted bool       `json:"stakeholderWeighted" toml:"stakeholder_weighted" yaml:"stakeholder_weighted"`
	// Private forces commit-reveal voting for every proposal bound to the module
	Private bool `json:"private" toml:"private" yaml:"private"`

	Params ModuleParams `json:"params" toml:"params" yaml:"params"`
}

// ModuleParams are the strategy knobs of a module. Weights are in token
// units (or their square root for quadratic modules), ratios in basis points.
type ModuleParams struct {
	// QuorumWeight is the counted weight required at urgency 0, in decimal
	QuorumWeight string `json:"quorumWeight" toml:"quorum_weight" yaml:"quorum_weight"`
	// ThresholdBps is the support share required to pass, e.g. 5100
	ThresholdBps uint64 `json:"thresholdBps" toml:"threshold_bps" yaml:"threshold_bps"`
	// ExpertiseCapBps caps the expertise multiplier, e.g. 20000 for 2x
	ExpertiseCapBps uint64 `json:"expertiseCapBps,omitempty" toml:"expertise_cap_bps" yaml:"expertise_cap_bps"`
	// BlendBps is the hybrid module's expertise share
	BlendBps uint64 `json:"blendBps,omitempty" toml:"blend_bps" yaml:"blend_bps"`
	// StakeholderBoostBps multiplies a stakeholder's weight, e.g. 15000 for 1.5x
	StakeholderBoostBps uint64 `json:"stakeholderBoostBps,omitempty" toml:"stakeholder_boost_bps" yaml:"stakeholder_boost_bps"`
}

// Quorum parses the quorum weight; an empty value means no quorum
func (p ModuleParams) Quorum() (*uint256.Int, error) {
	if p.QuorumWeight == "" {
		return new(uint256.Int), nil
	}
	q, err := uint256.FromDecimal(p.QuorumWeight)
	if err != nil {
		return nil, fmt.Errorf("%w: quorum_weight %q: %v", ErrInvalidModule, p.QuorumWeight, err)
	}
	return q, nil
}

// Validate checks the descriptor for internal consistency
func (m *ModuleDescriptor) Validate() error {
	if m.ID == 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidModule)
	}
	if !m.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidModule, m.Kind)
	}
	if len(m.SuitableCategories) == 0 {
		return fmt.Errorf("%w: module %d has no suitable categories", ErrInvalidModule, m.ID)
	}
	if m.MinUrgency > m.MaxUrgency || m.MaxUrgency > MaxUrgency {
		return fmt.Errorf("%w: urgency range [%d,%d] is invalid", ErrInvalidModule, m.MinUrgency, m.MaxUrgency)
	}
	if m.Params.ThresholdBps == 0 || m.Params.ThresholdBps > MaxBps {
		return fmt.Errorf("%w: threshold_bps must be in (0,10000]", ErrInvalidModule)
	}
	if m.Params.BlendBps > MaxBps {
		return fmt.Errorf("%w: blend_bps must not exceed 10000", ErrInvalidModule)
	}
	if m.Params.ExpertiseCapBps != 0 && m.Params.ExpertiseCapBps < MaxBps {
		return fmt.Errorf("%w: expertise_cap_bps must be at least 10000", ErrInvalidModule)
	}
	if _, err := m.Params.Quorum(); err != nil {
		return err
	}
	switch m.Kind {
	case ModuleKindExpertise, ModuleKindHybrid:
		if !m.ExpertiseWeighted {
			return fmt.Errorf("%w: %s module must be expertise weighted", ErrInvalidModule, m.Kind)
		}
	case ModuleKindStakeholder:
		if !m.StakeholderWeighted {
			return fmt.Errorf("%w: stakeholder module must be stakeholder weighted", ErrInvalidModule)
		}
	}
	return nil
}

// Suits reports whether the module may serve the given context
func (m *ModuleDescriptor) Suits(c *DecisionContext) bool {
	return lo.Contains(m.SuitableCategories, c.Category) &&
		c.UrgencyLevel >= m.MinUrgency &&
		c.UrgencyLevel <= m.MaxUrgency
}

// Clone returns a copy with its own category slice
func (m *ModuleDescriptor) Clone() *ModuleDescriptor {
	cp := *m
	cp.SuitableCategories = append([]string(nil), m.SuitableCategories...)
	return &cp
}
