package config

// LocalConfig represents the local govopt configuration
type LocalConfig struct {
	EngineFile string `json:"engineFile,omitempty"`
	NoPersist  bool   `json:"noPersist,omitempty"`
}

// ConfigKey represents a configuration key
type ConfigKey string

const (
	ConfigKeyEngineFile ConfigKey = "engine_file"
	ConfigKeyNoPersist  ConfigKey = "no_persist"
)

// DefaultLocalConfig returns the default local configuration
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{}
}

// ValidConfigKeys returns all valid configuration keys
func ValidConfigKeys() []ConfigKey {
	return []ConfigKey{
		ConfigKeyEngineFile,
		ConfigKeyNoPersist,
	}
}

// IsValidConfigKey checks if a key is valid
func IsValidConfigKey(key string) bool {
	for _, validKey := range ValidConfigKeys() {
		if string(validKey) == NormalizeConfigKey(key).String() {
			return true
		}
	}
	return false
}

// NormalizeConfigKey normalizes a config key (e.g., "engine" -> "engine_file")
func NormalizeConfigKey(key string) ConfigKey {
	switch key {
	case "engine", "engine-file":
		return ConfigKeyEngineFile
	case "no-persist":
		return ConfigKeyNoPersist
	}
	return ConfigKey(key)
}

func (k ConfigKey) String() string {
	return string(k)
}
