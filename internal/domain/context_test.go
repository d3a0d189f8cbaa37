package domain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	holderA = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	holderB = common.HexToAddress("0x00000000000000000000000000000000000000BB")
)

func TestNewDecisionContextRejects(t *testing.T) {
	tests := []struct {
		name   string
		params ContextParams
		field  string
	}{
		{
			name:   "empty category",
			params: ContextParams{UrgencyLevel: 3},
			field:  "category",
		},
		{
			name:   "urgency above ten",
			params: ContextParams{Category: "treasury", UrgencyLevel: 11},
			field:  "urgency",
		},
		{
			name:   "blend above 100%",
			params: ContextParams{Category: "treasury", BlendBps: 10_001},
			field:  "blend_bps",
		},
		{
			name:   "empty expertise domain",
			params: ContextParams{Category: "technical", RequiredExpertise: []string{"security", ""}},
			field:  "required_expertise",
		},
		{
			name:   "zero address stakeholder",
			params: ContextParams{Category: "partnerships", Stakeholders: []common.Address{holderA, {}}},
			field:  "stakeholders",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := NewDecisionContext(tt.params)
			require.Error(t, err)
			assert.Nil(t, ctx)
			assert.True(t, errors.Is(err, ErrInvalidContext))

			var invalid InvalidContextErr
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.field, invalid.Field)
			assert.Equal(t, "InvalidContext", ErrorName(err))
		})
	}
}

func TestNewDecisionContextBounds(t *testing.T) {
	ctx, err := NewDecisionContext(ContextParams{Category: "treasury", UrgencyLevel: MaxUrgency, BlendBps: MaxBps})
	require.NoError(t, err)
	assert.Equal(t, MaxUrgency, ctx.UrgencyLevel)
	assert.NotEqual(t, common.Hash{}, ctx.ID)
}

func TestNewDecisionContextIsCanonical(t *testing.T) {
	a, err := NewDecisionContext(ContextParams{
		Category:          "technical",
		UrgencyLevel:      4,
		RequiredExpertise: []string{"security", "defi", "security"},
		Stakeholders:      []common.Address{holderB, holderA, holderB},
	})
	require.NoError(t, err)
	b, err := NewDecisionContext(ContextParams{
		Category:          "technical",
		UrgencyLevel:      4,
		RequiredExpertise: []string{"defi", "security"},
		Stakeholders:      []common.Address{holderA, holderB},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"defi", "security"}, a.RequiredExpertise)
	assert.Equal(t, []common.Address{holderA, holderB}, a.Stakeholders)
	assert.Equal(t, a.ID, b.ID)
	assert.True(t, a.IsStakeholder(holderB))
	assert.False(t, a.IsStakeholder(common.HexToAddress("0x01")))

	c, err := NewDecisionContext(ContextParams{
		Category:          "technical",
		UrgencyLevel:      5,
		RequiredExpertise: []string{"defi", "security"},
		Stakeholders:      []common.Address{holderA, holderB},
	})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}
