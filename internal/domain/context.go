package domain

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// MaxUrgency is the highest urgency level a context may declare
const MaxUrgency uint8 = 10

// MaxBps is 100.00% in basis points
const MaxBps uint64 = 10_000

// ContextParams are the classification inputs a proposer supplies
type ContextParams struct {
	Category          string           `json:"category" yaml:"category"`
	UrgencyLevel      uint8            `json:"urgencyLevel" yaml:"urgency"`
	RequiredExpertise []string         `json:"requiredExpertise,omitempty" yaml:"required_expertise"`
	Stakeholders      []common.Address `json:"stakeholders,omitempty" yaml:"stakeholders"`
	MetadataURI       string           `json:"metadataUri,omitempty" yaml:"metadata"`
	// Private requests commit-reveal voting regardless of the module
	Private bool `json:"private,omitempty" yaml:"private"`
	// BlendBps overrides the hybrid module's expertise share when non-zero
	BlendBps uint64 `json:"blendBps,omitempty" yaml:"blend_bps"`
}

// DecisionContext is the immutable classification bound to one proposal
type DecisionContext struct {
	ID                common.Hash      `json:"id"`
	Category          string           `json:"category"`
	UrgencyLevel      uint8            `json:"urgencyLevel"`
	RequiredExpertise []string         `json:"requiredExpertise,omitempty"`
	Stakeholders      []common.Address `json:"stakeholders,omitempty"`
	MetadataURI       string           `json:"metadataUri,omitempty"`
	Private           bool             `json:"private,omitempty"`
	BlendBps          uint64           `json:"blendBps,omitempty"`
}

// NewDecisionContext validates params and derives the canonical context.
// Domains and stakeholders are de-duplicated and sorted so that equal inputs
// always produce the same context ID.
func NewDecisionContext(params ContextParams) (*DecisionContext, error) {
	if params.Category == "" {
		return nil, InvalidContextErr{Field: "category", Reason: "must not be empty"}
	}
	if params.UrgencyLevel > MaxUrgency {
		return nil, InvalidContextErr{Field: "urgency", Reason: "must be between 0 and 10"}
	}
	if params.BlendBps > MaxBps {
		return nil, InvalidContextErr{Field: "blend_bps", Reason: "must not exceed 10000"}
	}
	for _, d := range params.RequiredExpertise {
		if d == "" {
			return nil, InvalidContextErr{Field: "required_expertise", Reason: "contains an empty domain"}
		}
	}
	for _, s := range params.Stakeholders {
		if s == (common.Address{}) {
			return nil, InvalidContextErr{Field: "stakeholders", Reason: "contains the zero address"}
		}
	}

	domains := lo.Uniq(params.RequiredExpertise)
	sort.Strings(domains)

	stakeholders := lo.Uniq(params.Stakeholders)
	sort.Slice(stakeholders, func(i, j int) bool {
		return stakeholders[i].Cmp(stakeholders[j]) < 0
	})

	ctx := &DecisionContext{
		Category:          params.Category,
		UrgencyLevel:      params.UrgencyLevel,
		RequiredExpertise: domains,
		Stakeholders:      stakeholders,
		MetadataURI:       params.MetadataURI,
		Private:           params.Private,
		BlendBps:          params.BlendBps,
	}
	id, err := contextID(ctx)
	if err != nil {
		return nil, err
	}
	ctx.ID = id
	return ctx, nil
}

// IsStakeholder reports whether account is one of the context's stakeholders
func (c *DecisionContext) IsStakeholder(account common.Address) bool {
	idx := sort.Search(len(c.Stakeholders), func(i int) bool {
		return c.Stakeholders[i].Cmp(account) >= 0
	})
	return idx < len(c.Stakeholders) && c.Stakeholders[idx] == account
}
