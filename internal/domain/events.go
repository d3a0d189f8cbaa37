package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeProposalCreated   EventType = "proposal-created"
	EventTypeStateChanged      EventType = "state-changed"
	EventTypeVoteCast          EventType = "vote-cast"
	EventTypeModuleRegistered  EventType = "module-registered"
	EventTypeExpertiseVerified EventType = "expertise-verified"
	EventTypeHistoryRecorded   EventType = "history-recorded"
	EventTypeCommitmentMade    EventType = "commitment-made"
	EventTypeVoteRevealed      EventType = "vote-revealed"
)

// Event is one entry of the ordered governance log stream. Sequence is
// assigned by the log that orders events; fields that do not apply stay zero.
type Event struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Type       EventType         `json:"type"`
	At         time.Time         `json:"at"`
	ProposalID *common.Hash      `json:"proposalId,omitempty"`
	Account    *common.Address   `json:"account,omitempty"`
	ModuleID   uint64            `json:"moduleId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewEvent creates an event with a fresh ID
func NewEvent(eventType EventType, at time.Time) Event {
	return Event{
		ID:   uuid.New().String(),
		Type: eventType,
		At:   at,
	}
}

// WithProposal sets the proposal the event refers to
func (e Event) WithProposal(id common.Hash) Event {
	e.ProposalID = &id
	return e
}

// WithAccount sets the account the event refers to
func (e Event) WithAccount(account common.Address) Event {
	e.Account = &account
	return e
}

// WithModule sets the module the event refers to
func (e Event) WithModule(id uint64) Event {
	e.ModuleID = id
	return e
}

// With adds a string attribute
func (e Event) With(key string, value any) Event {
	attrs := make(map[string]string, len(e.Attributes)+1)
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	attrs[key] = fmt.Sprint(value)
	e.Attributes = attrs
	return e
}

func (e Event) String() string {
	s := fmt.Sprintf("#%d %s", e.Sequence, e.Type)
	if e.ProposalID != nil {
		s += " proposal=" + e.ProposalID.Hex()[:10] + "..."
	}
	if e.Account != nil {
		s += " account=" + e.Account.Hex()[:10] + "..."
	}
	if e.ModuleID != 0 {
		s += fmt.Sprintf(" module=%d", e.ModuleID)
	}
	return s
}

// EventSink receives governance events in emission order
type EventSink interface {
	Emit(ctx context.Context, event Event)
}
