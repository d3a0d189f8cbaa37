package fs

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/usecase"
	"gopkg.in/yaml.v3"
)

// ScenarioLoaderAdapter reads scenario YAML files
type ScenarioLoaderAdapter struct{}

// NewScenarioLoaderAdapter creates a new ScenarioLoaderAdapter
func NewScenarioLoaderAdapter() *ScenarioLoaderAdapter {
	return &ScenarioLoaderAdapter{}
}

// LoadScenario parses and validates the scenario at path. Unknown keys are rejected.
func (l *ScenarioLoaderAdapter) LoadScenario(_ context.Context, path string) (*domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document
func ParseScenario(data []byte) (*domain.Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var scenario domain.Scenario
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

var _ usecase.ScenarioLoader = (*ScenarioLoaderAdapter)(nil)
