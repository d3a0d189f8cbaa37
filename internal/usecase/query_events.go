package usecase

import (
	"context"

	"github.com/trebuchet-org/govopt/internal/domain"
)

// QueryEventsResult contains the archived events that matched
type QueryEventsResult struct {
	Events []domain.Event
	Path   string
}

// QueryEvents is the use case for reading the event archive
type QueryEvents struct {
	archive EventArchive
}

// NewQueryEvents creates a new QueryEvents use case
func NewQueryEvents(archive EventArchive) *QueryEvents {
	return &QueryEvents{archive: archive}
}

// Run executes the query events use case
func (uc *QueryEvents) Run(ctx context.Context, filter EventFilter) (*QueryEventsResult, error) {
	events, err := uc.archive.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &QueryEventsResult{Events: events, Path: uc.archive.GetPath()}, nil
}
