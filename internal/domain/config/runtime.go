package config

import (
	"time"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string

	// Execution settings
	Debug   bool
	JSON    bool // Output in JSON format
	Timeout time.Duration

	// Persistence toggles for the scenario host
	NoPersist bool

	// Config source tracking
	ConfigSource string // path of govopt.toml, empty when running on defaults

	// Resolved engine parameters
	Engine *EngineConfig
}
