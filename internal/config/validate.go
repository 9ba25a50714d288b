package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrNoSourcePaths indicates no source roots were configured
	ErrNoSourcePaths = errors.New("no source paths")

	// ErrNoExtensions indicates no source extensions were configured
	ErrNoExtensions = errors.New("no source extensions")

	// ErrInvalidIgnorePattern indicates an ignore glob that does not compile
	ErrInvalidIgnorePattern = errors.New("invalid ignore pattern")

	// ErrInvalidWorkers indicates a negative worker count
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidInterval indicates a non-positive poll interval or debounce
	ErrInvalidInterval = errors.New("invalid interval")
)

// Validate checks that the configuration is valid and complete.
// Overlap between source, header and exclude roots is not checked; callers
// are expected to supply disjoint roots.
func Validate(cfg *Config) error {
	var errs []error

	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}

	if err := validatePipeline(&cfg.Pipeline); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validatePaths(cfg *PathsConfig) error {
	var errs []error

	if len(nonEmpty(cfg.Sources)) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one source path is required", ErrNoSourcePaths))
	}

	if len(nonEmpty(cfg.Extensions)) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one extension is required", ErrNoExtensions))
	}

	for _, pattern := range cfg.Ignore {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidIgnorePattern, pattern, err))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validatePipeline(cfg *PipelineConfig) error {
	var errs []error

	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidWorkers, cfg.Workers))
	}

	if cfg.PollIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("%w: poll_interval_ms must be positive, got %d", ErrInvalidInterval, cfg.PollIntervalMs))
	}

	if cfg.DebounceMs <= 0 {
		errs = append(errs, fmt.Errorf("%w: debounce_ms must be positive, got %d", ErrInvalidInterval, cfg.DebounceMs))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func nonEmpty(items []string) []string {
	var out []string
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}

// joinErrors combines multiple errors into a single error with clear formatting.
// Wrapped sentinels stay reachable through errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return &validationError{
		msg:  fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - ")),
		errs: errs,
	}
}

type validationError struct {
	msg  string
	errs []error
}

func (e *validationError) Error() string   { return e.msg }
func (e *validationError) Unwrap() []error { return e.errs }
