package usecase

import (
	"context"

	"github.com/trebuchet-org/govopt/internal/domain/config"
)

// ShowConfigResult contains the result of showing configuration
type ShowConfigResult struct {
	Config     *config.LocalConfig
	ConfigPath string
	Exists     bool
	// EngineSource is the engine TOML in effect, empty when running on defaults
	EngineSource string
	Engine       *config.EngineConfig
}

// ShowConfig is a use case for showing configuration
type ShowConfig struct {
	cfg   *config.RuntimeConfig
	store LocalConfigRepository
}

// NewShowConfig creates a new ShowConfig use case
func NewShowConfig(cfg *config.RuntimeConfig, store LocalConfigRepository) *ShowConfig {
	return &ShowConfig{
		cfg:   cfg,
		store: store,
	}
}

// Run executes the show config use case
func (uc *ShowConfig) Run(ctx context.Context) (*ShowConfigResult, error) {
	exists := uc.store.Exists()

	local, err := uc.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	return &ShowConfigResult{
		Config:       local,
		ConfigPath:   uc.store.GetPath(),
		Exists:       exists,
		EngineSource: uc.cfg.ConfigSource,
		Engine:       uc.cfg.Engine,
	}, nil
}
