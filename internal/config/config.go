// Package config loads the tree's tunable parameters from a JSON file:
// a lazily initialized singleton with safe defaults when no file is
// present. Loading does not validate; callers check the result with
// Validate.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// StoreConfig holds every tunable parameter of the embedded store: the
// level layout (passed on as Init's arguments), hook tuning and the
// on-disk directory (passed on as Init's Options), and logging verbosity.
type StoreConfig struct {
	LevelArray struct {
		TotalLevels int    `json:"total_levels"`
		MainLevels  int    `json:"main_levels"`
		Capacities  []int  `json:"capacities"`
		DiskDir     string `json:"disk_dir"`
	} `json:"level_array"`

	BloomFilter struct {
		Enabled           bool    `json:"enabled"`
		FalsePositiveRate float64 `json:"false_positive_rate"`
		ExpectedElements  int     `json:"expected_elements"`
	} `json:"bloom_filter"`

	OrderedIndex struct {
		Enabled bool `json:"enabled"`
		Step    int  `json:"step"`
	} `json:"ordered_index"`

	Logging struct {
		Level string `json:"level"` // "debug", "info", "warn", "error"
	} `json:"logging"`
}

var (
	instance *StoreConfig
	once     sync.Once
)

// Get returns the singleton config instance, loading it from path on
// first use. Subsequent calls ignore path and return the already-loaded
// instance.
func Get(path string) *StoreConfig {
	once.Do(func() {
		instance = load(path)
	})
	return instance
}

func load(path string) *StoreConfig {
	if path == "" {
		return defaultConfig()
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := defaultConfig()
		_ = save(cfg, path)
		return cfg
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: failed to read %q, using defaults: %v\n", path, err)
		return defaultConfig()
	}

	var cfg StoreConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: failed to parse %q, using defaults: %v\n", path, err)
		return defaultConfig()
	}
	return &cfg
}

func defaultConfig() *StoreConfig {
	cfg := &StoreConfig{}
	cfg.LevelArray.TotalLevels = 4
	cfg.LevelArray.MainLevels = 1
	cfg.LevelArray.Capacities = []int{4, 7, 13, 10}
	cfg.LevelArray.DiskDir = "."

	cfg.BloomFilter.Enabled = true
	cfg.BloomFilter.FalsePositiveRate = 0.01
	cfg.BloomFilter.ExpectedElements = 1000

	cfg.OrderedIndex.Enabled = true
	cfg.OrderedIndex.Step = 8

	cfg.Logging.Level = "info"
	return cfg
}

func save(cfg *StoreConfig, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the configuration invariants the core requires before
// a tree can be built from it: 0 <= M <= N, one capacity per level, and
// level 0 in-memory (M >= 1). Capacities are conventionally non-decreasing
// (I5), but that is an assumption on the caller's configuration, not
// something Validate enforces — the canonical worked example itself
// ({4, 7, 13, 10}) is not monotone.
func Validate(cfg *StoreConfig) error {
	n := cfg.LevelArray.TotalLevels
	m := cfg.LevelArray.MainLevels
	if n < 1 {
		return fmt.Errorf("config: total_levels must be at least 1")
	}
	if m < 1 || m > n {
		return fmt.Errorf("config: main_levels must satisfy 1 <= main_levels <= total_levels")
	}
	if len(cfg.LevelArray.Capacities) != n {
		return fmt.Errorf("config: capacities must have exactly total_levels (%d) entries, got %d", n, len(cfg.LevelArray.Capacities))
	}
	if cfg.BloomFilter.Enabled && (cfg.BloomFilter.FalsePositiveRate <= 0 || cfg.BloomFilter.FalsePositiveRate >= 1) {
		return fmt.Errorf("config: bloom_filter.false_positive_rate must be between 0 and 1")
	}
	if cfg.OrderedIndex.Enabled && cfg.OrderedIndex.Step < 1 {
		return fmt.Errorf("config: ordered_index.step must be at least 1")
	}
	return nil
}
