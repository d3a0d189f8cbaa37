package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// HistoryStoreAdapter implements HistoryStore using the file system
type HistoryStoreAdapter struct {
	statePath string
}

// NewHistoryStoreAdapter creates a new HistoryStoreAdapter
func NewHistoryStoreAdapter(cfg *config.RuntimeConfig) *HistoryStoreAdapter {
	return &HistoryStoreAdapter{
		statePath: filepath.Join(cfg.DataDir, "history.json"),
	}
}

// Load reads the history snapshot from disk. Returns an empty snapshot if the file does not exist.
func (s *HistoryStoreAdapter) Load(_ context.Context) (*domain.HistorySnapshot, error) {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.HistorySnapshot{Records: []domain.HistoryRecord{}}, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var snapshot domain.HistorySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}

	if snapshot.Records == nil {
		snapshot.Records = []domain.HistoryRecord{}
	}

	return &snapshot, nil
}

// Save writes the snapshot to disk, creating the directory if needed.
// The file is replaced through a rename so a crash never leaves half a ledger.
func (s *HistoryStoreAdapter) Save(_ context.Context, snapshot domain.HistorySnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	return writeFileAtomic(s.statePath, data, "history")
}

// Delete removes the history file from disk.
func (s *HistoryStoreAdapter) Delete(_ context.Context) error {
	err := os.Remove(s.statePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete history file: %w", err)
	}
	return nil
}

// GetPath returns the path to the history file
func (s *HistoryStoreAdapter) GetPath() string {
	return s.statePath
}

// Ensure HistoryStoreAdapter implements HistoryStore
var _ usecase.HistoryStore = (*HistoryStoreAdapter)(nil)
