package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/trebuchet-org/govopt/internal/domain/config"
)

// SetConfigParams contains parameters for setting configuration
type SetConfigParams struct {
	Key   string
	Value string
}

// SetConfigResult contains the result of setting configuration
type SetConfigResult struct {
	UpdatedConfig *config.LocalConfig
	ConfigPath    string
	Key           config.ConfigKey
	Value         string
}

// SetConfig is a use case for setting configuration values
type SetConfig struct {
	store LocalConfigRepository
}

// NewSetConfig creates a new SetConfig use case
func NewSetConfig(store LocalConfigRepository) *SetConfig {
	return &SetConfig{
		store: store,
	}
}

func unknownConfigKey(key string) error {
	validKeys := make([]string, 0, len(config.ValidConfigKeys()))
	for _, k := range config.ValidConfigKeys() {
		validKeys = append(validKeys, string(k))
	}
	return fmt.Errorf("unknown config key: %s\nAvailable keys: %s", key, strings.Join(validKeys, ", "))
}

// Run executes the set config use case
func (uc *SetConfig) Run(ctx context.Context, params SetConfigParams) (*SetConfigResult, error) {
	key := strings.ToLower(params.Key)
	if !config.IsValidConfigKey(key) {
		return nil, unknownConfigKey(params.Key)
	}
	normalizedKey := config.NormalizeConfigKey(key)

	local, err := uc.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	value := params.Value
	switch normalizedKey {
	case config.ConfigKeyEngineFile:
		local.EngineFile = params.Value
	case config.ConfigKeyNoPersist:
		b, err := cast.ToBoolE(params.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", normalizedKey, err)
		}
		local.NoPersist = b
		value = cast.ToString(b)
	}

	if err := uc.store.Save(ctx, local); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	return &SetConfigResult{
		UpdatedConfig: local,
		ConfigPath:    uc.store.GetPath(),
		Key:           normalizedKey,
		Value:         value,
	}, nil
}
