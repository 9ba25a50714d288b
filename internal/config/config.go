package config

// Config represents the complete indexsched configuration.
// It can be loaded from .indexsched/config.yml with environment variable overrides.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
}

// PathsConfig defines which files are sources, which are headers, and which are skipped.
type PathsConfig struct {
	Sources    []string `yaml:"sources" mapstructure:"sources"`       // source roots, walked for indexable files
	Headers    []string `yaml:"headers" mapstructure:"headers"`       // header/dependency roots, tracked but not indexed
	Exclude    []string `yaml:"exclude" mapstructure:"exclude"`       // roots that are never sources or headers
	Extensions []string `yaml:"extensions" mapstructure:"extensions"` // source file extensions, e.g. ".cpp"
	Ignore     []string `yaml:"ignore" mapstructure:"ignore"`         // glob patterns skipped by the directory walk
}

// PipelineConfig tunes the indexing pipeline.
type PipelineConfig struct {
	Workers        int `yaml:"workers" mapstructure:"workers"`                   // 0 means runtime.NumCPU()
	PollIntervalMs int `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"` // injector idle poll
	DebounceMs     int `yaml:"debounce_ms" mapstructure:"debounce_ms"`           // watch mode quiet period
}

// StorageConfig defines where the index lives.
type StorageConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"` // Empty means .indexsched/index.db
}

// DirName is the per-project directory holding config, index and lock.
const DirName = ".indexsched"

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Sources: []string{"."},
			Headers: []string{},
			Exclude: []string{},
			Extensions: []string{
				".c",
				".cc",
				".cpp",
				".cxx",
				".h",
				".hpp",
				".go",
				".java",
				".py",
			},
			Ignore: []string{
				".git/**",
				DirName + "/**",
				"node_modules/**",
				"vendor/**",
			},
		},
		Pipeline: PipelineConfig{
			Workers:        0,
			PollIntervalMs: 50,
			DebounceMs:     500,
		},
		Storage: StorageConfig{
			DBPath: "",
		},
	}
}
