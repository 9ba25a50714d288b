package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// NewFileLoader creates a loader that reads an explicit config file instead of
// searching .indexsched/ under rootDir.
func NewFileLoader(rootDir, configFile string) Loader {
	return &loader{
		rootDir:    rootDir,
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (INDEXSCHED_*)
// 2. Config file (.indexsched/config.yml or .indexsched/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, DirName))
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("INDEXSCHED")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., INDEXSCHED_PIPELINE_WORKERS)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Pipeline configuration
	v.BindEnv("pipeline.workers")
	v.BindEnv("pipeline.poll_interval_ms")
	v.BindEnv("pipeline.debounce_ms")

	// Storage configuration
	v.BindEnv("storage.db_path")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || l.configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	// Paths defaults
	v.SetDefault("paths.sources", defaults.Paths.Sources)
	v.SetDefault("paths.headers", defaults.Paths.Headers)
	v.SetDefault("paths.exclude", defaults.Paths.Exclude)
	v.SetDefault("paths.extensions", defaults.Paths.Extensions)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	// Pipeline defaults
	v.SetDefault("pipeline.workers", defaults.Pipeline.Workers)
	v.SetDefault("pipeline.poll_interval_ms", defaults.Pipeline.PollIntervalMs)
	v.SetDefault("pipeline.debounce_ms", defaults.Pipeline.DebounceMs)

	// Storage defaults
	v.SetDefault("storage.db_path", defaults.Storage.DBPath)
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
