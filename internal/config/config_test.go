package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaultConfig() is invalid: %v", err)
	}
}

func TestLoadWritesDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	cfg := load(path)
	if err := Validate(cfg); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}

	reloaded := load(path)
	if reloaded.LevelArray.TotalLevels != cfg.LevelArray.TotalLevels {
		t.Errorf("file was not persisted: reloaded TotalLevels = %d, want %d",
			reloaded.LevelArray.TotalLevels, cfg.LevelArray.TotalLevels)
	}
}

func TestValidateAcceptsNonMonotoneCapacities(t *testing.T) {
	// I5 (capacities non-decreasing) is an assumption on the caller's
	// configuration, not something Validate enforces; the default
	// level array itself is not monotone (13 > 10).
	cfg := defaultConfig()
	cfg.LevelArray.Capacities = []int{5, 1, 1, 1}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() = %v, want nil for non-monotone capacities", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*StoreConfig)
	}{
		{"zero levels", func(c *StoreConfig) { c.LevelArray.TotalLevels = 0 }},
		{"main exceeds total", func(c *StoreConfig) { c.LevelArray.MainLevels = c.LevelArray.TotalLevels + 1 }},
		{"main below one", func(c *StoreConfig) { c.LevelArray.MainLevels = 0 }},
		{"capacities length mismatch", func(c *StoreConfig) { c.LevelArray.Capacities = []int{1} }},
		{"bad bloom rate", func(c *StoreConfig) {
			c.BloomFilter.Enabled = true
			c.BloomFilter.FalsePositiveRate = 1.5
		}},
		{"bad index step", func(c *StoreConfig) {
			c.OrderedIndex.Enabled = true
			c.OrderedIndex.Step = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mut(cfg)
			if err := Validate(cfg); err == nil {
				t.Errorf("Validate() = nil, want an error for %s", tc.name)
			}
		})
	}
}
