package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// LocalConfigFileName is the per-checkout settings file inside the data dir.
// Viper reads the same file, so its keys must stay in sync with LocalConfig.
const LocalConfigFileName = "config.local.json"

// LocalConfigStoreAdapter keeps the engine_file and no_persist overrides in
// .govopt/config.local.json
type LocalConfigStoreAdapter struct {
	configPath string
}

// NewLocalConfigStoreAdapter creates a store under the runtime data dir
func NewLocalConfigStoreAdapter(cfg *config.RuntimeConfig) *LocalConfigStoreAdapter {
	return &LocalConfigStoreAdapter{
		configPath: filepath.Join(cfg.DataDir, LocalConfigFileName),
	}
}

// Exists reports whether any override is stored
func (s *LocalConfigStoreAdapter) Exists() bool {
	_, err := os.Stat(s.configPath)
	return !os.IsNotExist(err)
}

// Load reads the overrides. Keys other than the known settings are rejected.
func (s *LocalConfigStoreAdapter) Load(_ context.Context) (*config.LocalConfig, error) {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config.DefaultLocalConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	localConfig := config.DefaultLocalConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return localConfig, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(localConfig); err != nil {
		valid := lo.Map(config.ValidConfigKeys(), func(k config.ConfigKey, _ int) string { return k.String() })
		return nil, fmt.Errorf("failed to parse %s (valid keys: %s): %w", s.configPath, strings.Join(valid, ", "), err)
	}
	return localConfig, nil
}

// Save stores the overrides. Once every override is back at its default the
// file is removed.
func (s *LocalConfigStoreAdapter) Save(_ context.Context, localConfig *config.LocalConfig) error {
	if *localConfig == *config.DefaultLocalConfig() {
		if err := os.Remove(s.configPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove config file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(localConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeFileAtomic(s.configPath, append(data, '\n'), "config")
}

// GetPath returns the path to the config file
func (s *LocalConfigStoreAdapter) GetPath() string {
	return s.configPath
}

var _ usecase.LocalConfigRepository = (*LocalConfigStoreAdapter)(nil)
