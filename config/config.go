// Package config loads the simulator's JSON-compatible configuration
// (miss/volatile penalties, writethrough policy, cache shape for both the
// instruction and data caches) via viper, grounded on SPEC_FULL.md §6's
// CacheCfg schema.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// CacheMode selects between a disabled (null) cache and an N-way
// associative one.
type CacheMode string

const (
	ModeDisabled    CacheMode = "disabled"
	ModeAssociative CacheMode = "associative"
)

// CacheConfig describes one cache instance (instruction or data).
type CacheConfig struct {
	Mode      CacheMode `mapstructure:"mode"`
	SetBits   int       `mapstructure:"set_bits"`
	OffsetBits int      `mapstructure:"offset_bits"`
	Ways      int       `mapstructure:"ways"`
}

// Validate enforces the bounds from SPEC_FULL.md §6:
// offset_bits ∈ [2,32], set_bits ∈ [0,30], offset_bits+set_bits ≤ 32, ways ≥ 1.
func (c CacheConfig) Validate() error {
	if c.Mode == ModeDisabled {
		return nil
	}
	if c.Mode != ModeAssociative {
		return fmt.Errorf("config: unknown cache mode %q", c.Mode)
	}
	if c.OffsetBits < 2 || c.OffsetBits > 32 {
		return fmt.Errorf("config: offset_bits %d out of range [2,32]", c.OffsetBits)
	}
	if c.SetBits < 0 || c.SetBits > 30 {
		return fmt.Errorf("config: set_bits %d out of range [0,30]", c.SetBits)
	}
	if c.OffsetBits+c.SetBits > 32 {
		return fmt.Errorf("config: offset_bits+set_bits %d exceeds 32", c.OffsetBits+c.SetBits)
	}
	if c.Ways < 1 {
		return fmt.Errorf("config: ways must be >= 1, got %d", c.Ways)
	}
	return nil
}

// Config is the full simulator configuration document.
type Config struct {
	MissPenalty      int         `mapstructure:"miss_penalty"`
	VolatilePenalty  int         `mapstructure:"volatile_penalty"`
	Writethrough     bool        `mapstructure:"writethrough"`
	Pipelining       bool        `mapstructure:"pipelining"`
	PageCount        int         `mapstructure:"page_count"`
	Instruction      CacheConfig `mapstructure:"instruction"`
	Data             CacheConfig `mapstructure:"data"`
}

// Validate checks every sub-config and cross-field invariant.
func (c Config) Validate() error {
	if c.PageCount <= 0 {
		return fmt.Errorf("config: page_count must be positive, got %d", c.PageCount)
	}
	if err := c.Instruction.Validate(); err != nil {
		return fmt.Errorf("config: instruction cache: %w", err)
	}
	if err := c.Data.Validate(); err != nil {
		return fmt.Errorf("config: data cache: %w", err)
	}
	return nil
}

// Default returns the simulator's out-of-the-box configuration: a 16-page
// (1 MiB) address space behind 4-way writeback caches.
func Default() Config {
	return Config{
		MissPenalty:     10,
		VolatilePenalty: 2,
		Writethrough:    false,
		Pipelining:      true,
		PageCount:       16,
		Instruction:     CacheConfig{Mode: ModeAssociative, SetBits: 2, OffsetBits: 4, Ways: 4},
		Data:            CacheConfig{Mode: ModeAssociative, SetBits: 2, OffsetBits: 4, Ways: 4},
	}
}

// Load reads a JSON or YAML configuration file at path through viper,
// falling back to Default() values for anything unset, and validates the
// result before returning it.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults(Default()) {
		v.SetDefault(key, value)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults(c Config) map[string]any {
	return map[string]any{
		"miss_penalty":               c.MissPenalty,
		"volatile_penalty":           c.VolatilePenalty,
		"writethrough":               c.Writethrough,
		"pipelining":                 c.Pipelining,
		"page_count":                 c.PageCount,
		"instruction.mode":           c.Instruction.Mode,
		"instruction.set_bits":       c.Instruction.SetBits,
		"instruction.offset_bits":    c.Instruction.OffsetBits,
		"instruction.ways":           c.Instruction.Ways,
		"data.mode":                  c.Data.Mode,
		"data.set_bits":              c.Data.SetBits,
		"data.offset_bits":           c.Data.OffsetBits,
		"data.ways":                  c.Data.Ways,
	}
}
