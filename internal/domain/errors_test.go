package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorByName(t *testing.T) {
	err, ok := ErrorByName("CommitmentMismatch")
	assert.True(t, ok)
	assert.Equal(t, ErrCommitmentMismatch, err)

	err, ok = ErrorByName("ErrQuorumNotMet")
	assert.True(t, ok)
	assert.Equal(t, ErrQuorumNotMet, err)

	_, ok = ErrorByName("Nope")
	assert.False(t, ok)
	assert.Len(t, errorsByName, len(errorKinds))
}

func TestErrorNamePrefersOutermostSentinel(t *testing.T) {
	assert.Equal(t, "", ErrorName(nil))
	assert.Equal(t, "", ErrorName(errors.New("boom")))
	assert.Equal(t, "PhaseClosed", ErrorName(fmt.Errorf("reveal: %w", ErrPhaseClosed)))
	assert.Equal(t, "NoSuitableModule", ErrorName(NoSuitableModuleErr{Category: "x"}))

	inner := fmt.Errorf("hook: %w", ErrReentrancyRejected)
	both := fmt.Errorf("%w: %s: %w", ErrExecutionFailed, "0x01", inner)
	for i := 0; i < 50; i++ {
		assert.Equal(t, "ExecutionFailed", ErrorName(both))
	}
	assert.Equal(t, "ReentrancyRejected", ErrorName(fmt.Errorf("%s: %w", "step", inner)))
}
