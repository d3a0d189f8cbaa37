package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/govopt/internal/domain/config"
)

// DataDirName is the per-project state directory
const DataDirName = ".govopt"

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		var err error
		projectRoot, err = FindProjectRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}

	cfg := &config.RuntimeConfig{
		ProjectRoot: projectRoot,
		DataDir:     filepath.Join(projectRoot, DataDirName),
		Debug:       v.GetBool("debug"),
		JSON:        v.GetBool("json"),
		Timeout:     v.GetDuration("timeout"),
		NoPersist:   v.GetBool("no_persist") || v.GetBool("noPersist"),
	}

	loadEnvFiles(projectRoot)

	enginePath := v.GetString("engine_file")
	if enginePath == "" {
		// config.local.json spells its keys in camelCase
		enginePath = v.GetString("engineFile")
	}
	if enginePath == "" {
		enginePath = EngineFileName
	}
	if !filepath.IsAbs(enginePath) {
		enginePath = filepath.Join(projectRoot, enginePath)
	}
	engine, source, err := loadEngineConfig(enginePath)
	if err != nil {
		return nil, err
	}
	cfg.Engine = engine
	cfg.ConfigSource = source

	return cfg, nil
}

// FindProjectRoot walks up from the current directory to the first directory
// holding govopt.toml or a .govopt state directory. Without one the current
// directory is the project root.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for dir := cwd; ; {
		for _, marker := range []string{EngineFileName, DataDirName} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	v := viper.New()

	// Set up config file
	v.SetConfigName("config.local")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(projectRoot, DataDirName))

	// Set up environment variables
	v.SetEnvPrefix("GOVOPT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Set defaults
	v.SetDefault("timeout", "1m")
	v.SetDefault("debug", false)
	v.SetDefault("json", false)
	v.SetDefault("project_root", projectRoot)

	// Try to read config file (ignore error if not found)
	_ = v.ReadInConfig()

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil {
			panic(err)
		}
	})

	return v
}
