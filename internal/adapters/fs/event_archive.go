package fs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// EventArchiveAdapter keeps governance events as JSON lines
type EventArchiveAdapter struct {
	path string
}

// NewEventArchiveAdapter creates a new EventArchiveAdapter
func NewEventArchiveAdapter(cfg *config.RuntimeConfig) *EventArchiveAdapter {
	return &EventArchiveAdapter{
		path: filepath.Join(cfg.DataDir, "events.jsonl"),
	}
}

// Append writes events to the end of the archive
func (a *EventArchiveAdapter) Append(_ context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("failed to create event archive directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
		}
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event archive: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append events: %w", err)
	}
	return nil
}

// Query returns the archived events matching filter, oldest first. With a
// limit only the most recent matches are returned.
func (a *EventArchiveAdapter) Query(_ context.Context, filter usecase.EventFilter) ([]domain.Event, error) {
	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Event{}, nil
		}
		return nil, fmt.Errorf("failed to open event archive: %w", err)
	}
	defer f.Close()

	events := []domain.Event{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		if !gjson.ValidBytes(raw) {
			return nil, fmt.Errorf("event archive line %d is not valid JSON", line)
		}
		if !matches(raw, filter) {
			continue
		}
		var e domain.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("event archive line %d: %w", line, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event archive: %w", err)
	}

	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[len(events)-filter.Limit:]
	}
	return events, nil
}

func matches(raw []byte, filter usecase.EventFilter) bool {
	fields := gjson.GetManyBytes(raw, "type", "proposalId", "account")
	if filter.Type != "" && fields[0].String() != string(filter.Type) {
		return false
	}
	if filter.ProposalID != nil && !strings.EqualFold(fields[1].String(), filter.ProposalID.Hex()) {
		return false
	}
	if filter.Account != nil && !strings.EqualFold(fields[2].String(), filter.Account.Hex()) {
		return false
	}
	return true
}

// GetPath returns the path to the archive
func (a *EventArchiveAdapter) GetPath() string {
	return a.path
}

var _ usecase.EventArchive = (*EventArchiveAdapter)(nil)
