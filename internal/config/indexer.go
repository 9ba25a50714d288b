package config

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/mvp-joe/indexsched/internal/registry"
)

// ToRegistryConfig converts a Config to a registry.Config.
// Relative paths are resolved against rootDir.
func (c *Config) ToRegistryConfig(rootDir string) registry.Config {
	return registry.Config{
		SourcePaths:      resolvePaths(rootDir, c.Paths.Sources),
		HeaderPaths:      resolvePaths(rootDir, c.Paths.Headers),
		ExcludePaths:     resolvePaths(rootDir, c.Paths.Exclude),
		SourceExtensions: append([]string(nil), c.Paths.Extensions...),
	}
}

// DBFile returns the index database path for rootDir.
func (c *Config) DBFile(rootDir string) string {
	if c.Storage.DBPath == "" {
		return filepath.Join(rootDir, DirName, "index.db")
	}
	return resolvePath(rootDir, c.Storage.DBPath)
}

// WorkerCount returns the configured worker count, defaulting to the CPU count.
func (c *Config) WorkerCount() int {
	if c.Pipeline.Workers > 0 {
		return c.Pipeline.Workers
	}
	return runtime.NumCPU()
}

// PollInterval returns the injector idle poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Pipeline.PollIntervalMs) * time.Millisecond
}

// Debounce returns the watch mode quiet period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Pipeline.DebounceMs) * time.Millisecond
}

func resolvePaths(rootDir string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		out = append(out, resolvePath(rootDir, p))
	}
	return out
}

func resolvePath(rootDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(rootDir, p)
}
