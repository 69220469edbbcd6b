// Package config loads compiler settings from YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/mlnc/pkg/mlnc/completion"
	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
)

// Config holds the knowledge-compilation settings.
type Config struct {
	// Domains maps each domain name to its constant set.
	Domains map[string][]string `yaml:"domains"`

	Completion CompletionConfig `yaml:"completion"`
	CNF        CNFConfig        `yaml:"cnf"`
	Store      StoreConfig      `yaml:"store"`

	// Parallelism bounds the batch compilation workers.
	// Zero selects the number of CPUs.
	Parallelism int `yaml:"parallelism"`
}

// CompletionConfig selects the predicate completion behavior.
type CompletionConfig struct {
	Mode string `yaml:"mode"`
}

// CNFConfig tunes the clause compilation pipeline.
type CNFConfig struct {
	FastDistribute          bool `yaml:"fast_distribute"`
	MaxDistributeIterations int  `yaml:"max_distribute_iterations"`
	KeepUnitClauses         bool `yaml:"keep_unit_clauses"`
}

// StoreConfig selects the evidence store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the database file, sqlite only.
	Path string `yaml:"path"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the settings for contradictions.
func (c *Config) Validate() error {
	for domain, constants := range c.Domains {
		if domain == "" {
			return fmt.Errorf("%w: empty domain name", internalerr.ErrInvalidConfig)
		}
		if len(constants) == 0 {
			return fmt.Errorf("%w: domain %q has no constants", internalerr.ErrInvalidConfig, domain)
		}
	}
	if _, err := c.CompletionMode(); err != nil {
		return err
	}
	if c.CNF.MaxDistributeIterations < 0 {
		return fmt.Errorf("%w: max_distribute_iterations must not be negative", internalerr.ErrInvalidConfig)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative", internalerr.ErrInvalidConfig)
	}
	switch c.Store.Backend {
	case "", "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("%w: sqlite store needs a path", internalerr.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", internalerr.ErrInvalidConfig, c.Store.Backend)
	}
	return nil
}

// CompletionMode resolves the configured predicate completion mode.
func (c *Config) CompletionMode() (completion.Mode, error) {
	return completion.ParseMode(c.Completion.Mode)
}
