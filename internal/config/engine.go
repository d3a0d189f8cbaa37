package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/trebuchet-org/govopt/internal/domain/config"
)

// EngineFileName is the engine configuration looked up in the project root
const EngineFileName = "govopt.toml"

// loadEnvFiles loads .env files of the project so the engine file can reference them
func loadEnvFiles(projectRoot string) {
	envFiles := []string{
		filepath.Join(projectRoot, ".env"),
		filepath.Join(projectRoot, ".env.local"),
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Failed to load %s: %v\n", envFile, err)
			}
		}
	}
}

// loadEngineConfig decodes path over the default engine configuration. A
// missing file yields the defaults and an empty source.
func loadEngineConfig(path string) (*config.EngineConfig, string, error) {
	cfg := config.DefaultEngineConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, "", nil
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, "", fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	cfg.Executor.Treasury = os.ExpandEnv(cfg.Executor.Treasury)
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, path, nil
}
