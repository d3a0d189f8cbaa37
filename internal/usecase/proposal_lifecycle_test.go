package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

func TestProposalLifecycle_HappyPath(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "50", false))
	e.mint(t, alice, 60)
	e.mint(t, bob, 40)

	p := e.create(t, alice, "ipfs://grant")
	assert.Equal(t, domain.ProposalStateActive, p.State)
	assert.Equal(t, uint64(1), p.ModuleID)
	assert.Equal(t, start.Add(72*time.Hour), p.VotingDeadline)

	e.vote(t, p.ID, alice, true)
	e.vote(t, p.ID, bob, false)
	e.clock.Advance(time.Hour)

	// quorum and threshold are met, so finalizing early succeeds
	finalized, err := e.lifecycle.FinalizeProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateSucceeded, finalized.State)
	assert.Equal(t, "60", finalized.Tally.SupportWeight.Dec())
	assert.Equal(t, "40", finalized.Tally.AgainstWeight.Dec())

	record, err := e.history.Latest(p.ID)
	require.NoError(t, err)
	assert.True(t, record.Succeeded)
	assert.False(t, record.Executed)
	assert.Equal(t, uint64(10_000), record.ParticipationBps)
	assert.Equal(t, uint64(3600), record.ExecutionTimeSeconds)
	assert.Equal(t, "general", record.Category)

	stats, ok := e.selector.Stats(1, "general")
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Samples)

	e.executor.On("ExecuteActions", mock.Anything, p.ID, p.Actions).Return(nil).Once()
	e.clock.Advance(time.Hour)
	executed, err := e.lifecycle.ExecuteProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateExecuted, executed.State)
	require.NotNil(t, executed.ExecutedAt)
	e.executor.AssertExpectations(t)

	leaves, err := e.history.GetHistory(p.ID)
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.True(t, leaves[1].Executed)
	assert.True(t, leaves[1].Succeeded)
	assert.Equal(t, uint64(7200), leaves[1].ExecutionTimeSeconds)
	require.NoError(t, e.history.Verify())

	assert.Equal(t, []domain.EventType{
		domain.EventTypeModuleRegistered,
		domain.EventTypeProposalCreated,
		domain.EventTypeStateChanged,
		domain.EventTypeVoteCast,
		domain.EventTypeVoteCast,
		domain.EventTypeHistoryRecorded,
		domain.EventTypeStateChanged,
		domain.EventTypeStateChanged,
		domain.EventTypeHistoryRecorded,
	}, eventTypes(e.events.Events()))

	_, err = e.lifecycle.ExecuteProposal(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestProposalLifecycle_VotingRules(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "1000", false))
	e.mint(t, alice, 60)

	p := e.create(t, alice, "ipfs://rules")
	e.vote(t, p.ID, alice, true)

	_, err := e.lifecycle.CastVote(ctx, usecase.VoteParams{ProposalID: p.ID, Voter: alice, Support: false})
	assert.ErrorIs(t, err, domain.ErrDuplicateVote)

	_, err = e.lifecycle.CastVote(ctx, usecase.VoteParams{ProposalID: p.ID, Voter: carol, Support: true})
	assert.ErrorIs(t, err, domain.ErrNoVotingPower)

	_, err = e.lifecycle.CastVote(ctx, usecase.VoteParams{ProposalID: common.HexToHash("0x99"), Voter: alice, Support: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	votes, err := e.lifecycle.Votes(p.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "60", votes[0].Weight.Dec())

	// quorum of 1000 is out of reach before the deadline
	_, err = e.lifecycle.FinalizeProposal(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrQuorumNotMet)
	state, err := e.lifecycle.GetProposalState(p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateActive, state)

	e.clock.Advance(72 * time.Hour)
	_, err = e.lifecycle.CastVote(ctx, usecase.VoteParams{ProposalID: p.ID, Voter: bob, Support: true})
	assert.ErrorIs(t, err, domain.ErrPhaseClosed)

	failed, err := e.lifecycle.FinalizeProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateFailed, failed.State)

	_, err = e.lifecycle.CastVote(ctx, usecase.VoteParams{ProposalID: p.ID, Voter: alice, Support: true})
	assert.ErrorIs(t, err, domain.ErrProposalNotActive)
	_, err = e.lifecycle.FinalizeProposal(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrProposalNotActive)
}

func TestProposalLifecycle_ExecutionFailureKeepsSucceeded(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "", false))
	e.mint(t, alice, 10)

	p := e.create(t, alice, "ipfs://retry")
	e.vote(t, p.ID, alice, true)
	_, err := e.lifecycle.FinalizeProposal(ctx, p.ID)
	require.NoError(t, err)

	reverted := errors.New("target reverted")
	e.executor.On("ExecuteActions", mock.Anything, p.ID, mock.Anything).Return(reverted).Once()
	_, err = e.lifecycle.ExecuteProposal(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrExecutionFailed)
	assert.ErrorIs(t, err, reverted)

	state, err := e.lifecycle.GetProposalState(p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateSucceeded, state)
	leaves, err := e.history.GetHistory(p.ID)
	require.NoError(t, err)
	assert.Len(t, leaves, 1)

	e.executor.On("ExecuteActions", mock.Anything, p.ID, mock.Anything).Return(nil).Once()
	executed, err := e.lifecycle.ExecuteProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateExecuted, executed.State)
	e.executor.AssertExpectations(t)
}

func TestProposalLifecycle_ReentrancyRejected(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "", false))
	e.mint(t, alice, 10)
	e.mint(t, bob, 10)

	p := e.create(t, alice, "ipfs://reenter")
	e.vote(t, p.ID, alice, true)
	_, err := e.lifecycle.FinalizeProposal(ctx, p.ID)
	require.NoError(t, err)

	var nestedExecute, nestedVote error
	e.executor.On("ExecuteActions", mock.Anything, p.ID, mock.Anything).
		Run(func(args mock.Arguments) {
			_, nestedExecute = e.lifecycle.ExecuteProposal(ctx, p.ID)
			_, nestedVote = e.lifecycle.CastVote(ctx, usecase.VoteParams{ProposalID: p.ID, Voter: bob, Support: true})
		}).
		Return(nil).Once()

	executed, err := e.lifecycle.ExecuteProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateExecuted, executed.State)
	assert.ErrorIs(t, nestedExecute, domain.ErrReentrancyRejected)
	assert.ErrorIs(t, nestedVote, domain.ErrReentrancyRejected)

	// the rejected nested call executed nothing
	leaves, err := e.history.GetHistory(p.ID)
	require.NoError(t, err)
	assert.Len(t, leaves, 2)
	e.executor.AssertNumberOfCalls(t, "ExecuteActions", 1)
}

func TestProposalLifecycle_Cancel(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "", false))
	e.mint(t, alice, 10)

	p := e.create(t, alice, "ipfs://cancel")

	_, err := e.lifecycle.CancelProposal(ctx, p.ID, bob)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	canceled, err := e.lifecycle.CancelProposal(ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateCanceled, canceled.State)

	_, err = e.lifecycle.CancelProposal(ctx, p.ID, alice)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = e.lifecycle.CastVote(ctx, usecase.VoteParams{ProposalID: p.ID, Voter: alice, Support: true})
	assert.ErrorIs(t, err, domain.ErrProposalNotActive)
}

func TestProposalLifecycle_PrivateVoting(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "", true))
	e.mint(t, alice, 30)
	e.mint(t, bob, 20)

	p := e.create(t, alice, "ipfs://secret")
	require.True(t, p.Private)
	assert.Equal(t, start.Add(72*time.Hour), p.VotingDeadline)

	_, err := e.lifecycle.CastVote(ctx, usecase.VoteParams{ProposalID: p.ID, Voter: alice, Support: true})
	assert.ErrorIs(t, err, domain.ErrPrivacyRequired)

	saltA := common.HexToHash("0x01")
	saltB := common.HexToHash("0x02")
	require.NoError(t, e.lifecycle.CommitVote(ctx, usecase.CommitParams{
		ProposalID: p.ID, Voter: alice, Digest: domain.CommitmentHash(p.ID, alice, true, saltA),
	}))
	require.NoError(t, e.lifecycle.CommitVote(ctx, usecase.CommitParams{
		ProposalID: p.ID, Voter: bob, Digest: domain.CommitmentHash(p.ID, bob, false, saltB),
	}))

	_, err = e.lifecycle.RevealVote(ctx, usecase.RevealParams{ProposalID: p.ID, Voter: alice, Support: true, Salt: saltA})
	assert.ErrorIs(t, err, domain.ErrPhaseClosed)

	e.clock.Advance(48 * time.Hour)
	_, err = e.lifecycle.RevealVote(ctx, usecase.RevealParams{ProposalID: p.ID, Voter: alice, Support: false, Salt: saltA})
	assert.ErrorIs(t, err, domain.ErrCommitmentMismatch)

	vote, err := e.lifecycle.RevealVote(ctx, usecase.RevealParams{ProposalID: p.ID, Voter: alice, Support: true, Salt: saltA})
	require.NoError(t, err)
	assert.True(t, vote.Private)
	assert.Equal(t, "30", vote.Weight.Dec())

	_, err = e.lifecycle.RevealVote(ctx, usecase.RevealParams{ProposalID: p.ID, Voter: alice, Support: true, Salt: saltA})
	assert.ErrorIs(t, err, domain.ErrDuplicateVote)

	// a private proposal cannot finalize until reveals close
	_, err = e.lifecycle.FinalizeProposal(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrVotingPeriodOpen)

	e.clock.Advance(24 * time.Hour)
	finalized, err := e.lifecycle.FinalizeProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateSucceeded, finalized.State)
	assert.Equal(t, 1, finalized.Tally.Voters)

	view, err := e.lifecycle.View(p.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Schedule)
	assert.Equal(t, start.Add(48*time.Hour), view.Schedule.CommitDeadline)
}

func TestProposalLifecycle_CommitOnDirectProposal(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "", false))

	p := e.create(t, alice, "ipfs://direct")
	err := e.lifecycle.CommitVote(ctx, usecase.CommitParams{ProposalID: p.ID, Voter: alice, Digest: common.HexToHash("0x01")})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestProposalLifecycle_NoSuitableModule(t *testing.T) {
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "", false))

	_, err := e.lifecycle.CreateProposal(context.Background(), usecase.CreateProposalParams{
		Creator: alice,
		Context: domain.ContextParams{Category: "technical"},
	})
	assert.ErrorIs(t, err, domain.ErrNoSuitableModule)
	assert.Empty(t, e.lifecycle.Proposals())
}

func TestProposalLifecycle_NonceEpochSeparatesIDs(t *testing.T) {
	first := newEngine(t, nil)
	first.register(t, tokenModule(1, "", false))
	second := newEngine(t, nil)
	second.register(t, tokenModule(1, "", false))
	second.lifecycle.SetNonceEpoch(1)

	a := first.create(t, alice, "ipfs://same")
	b := second.create(t, alice, "ipfs://same")
	assert.NotEqual(t, a.ID, b.ID)

	again := newEngine(t, nil)
	again.register(t, tokenModule(1, "", false))
	assert.Equal(t, a.ID, again.create(t, alice, "ipfs://same").ID)
}

func TestProposalLifecycle_EarlyFinalizeBelowThreshold(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "50", false))
	e.mint(t, alice, 40)
	e.mint(t, bob, 60)

	p := e.create(t, alice, "ipfs://contested")
	e.vote(t, p.ID, alice, true)
	e.vote(t, p.ID, bob, false)

	_, err := e.lifecycle.FinalizeProposal(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrThresholdNotMet)
	state, err := e.lifecycle.GetProposalState(p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateActive, state)
	assert.Equal(t, 0, e.history.Len())

	e.clock.Advance(72 * time.Hour)
	failed, err := e.lifecycle.FinalizeProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStateFailed, failed.State)
}

func TestProposalLifecycle_InvalidContext(t *testing.T) {
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "", false))

	_, err := e.lifecycle.CreateProposal(context.Background(), usecase.CreateProposalParams{
		Creator: alice,
		Context: domain.ContextParams{Category: "general", UrgencyLevel: 11},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidContext)
	assert.Empty(t, e.lifecycle.Proposals())
}

func TestProposalLifecycle_FailedPrivacyOpenLeavesNoTally(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.register(t, tokenModule(1, "", false))

	params := domain.ContextParams{Category: "general", Private: true}
	decision, err := domain.NewDecisionContext(params)
	require.NoError(t, err)
	actions := []domain.Action{{Target: bob, Value: uint256.NewInt(1)}}
	id, err := domain.ProposalIDFor(alice, 0, "ipfs://secret", decision.ID, actions)
	require.NoError(t, err)

	// a stale session under the same id makes the gate refuse
	_, err = e.gate.Open(id, decision, e.clock.Now())
	require.NoError(t, err)

	_, err = e.lifecycle.CreateProposal(ctx, usecase.CreateProposalParams{
		Creator:     alice,
		MetadataURI: "ipfs://secret",
		Context:     params,
		Actions:     actions,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	module, err := e.selector.GetModule(1)
	require.NoError(t, err)
	_, err = module.Tally(id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.lifecycle.GetProposal(id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
