package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Resource budgets guaranteeing termination on arbitrary input. Both are
// deliberately generous: a bounded 10,000-iteration loop fits comfortably,
// an unbounded one does not.
const (
	// DefaultStepLimit bounds executed statements/terminators across the
	// whole call tree of one top-level evaluation request.
	DefaultStepLimit = 1_000_000

	// DefaultMaxCallDepth bounds pushed stack frames per body execution.
	DefaultMaxCallDepth = 1000
)

// Options configures constant evaluation. The zero value is not usable;
// start from Default.
type Options struct {
	// StepLimit is the global step budget of one request.
	StepLimit int `yaml:"step_limit"`

	// MaxCallDepth is the call-stack frame budget.
	MaxCallDepth int `yaml:"max_call_depth"`

	// CachePath names a SQLite file backing the cross-request result cache.
	// Empty keeps the cache in memory only.
	CachePath string `yaml:"cache_path"`

	// Trace enables the human-readable evaluation trace on stderr.
	Trace bool `yaml:"trace"`
}

// Default returns the standard budgets.
func Default() *Options {
	return &Options{
		StepLimit:    DefaultStepLimit,
		MaxCallDepth: DefaultMaxCallDepth,
	}
}

// Load reads options from a YAML file, filling unset budgets with defaults.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading options: %w", err)
	}
	opts := &Options{}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parsing options: %w", err)
	}
	if opts.StepLimit <= 0 {
		opts.StepLimit = DefaultStepLimit
	}
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	return opts, nil
}
