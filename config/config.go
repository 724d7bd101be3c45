// Package config loads CacheConfiguration from YAML. The cache library
// itself never reads a config file unprompted; an embedder calls Load
// (or builds a CacheConfiguration directly) and passes the result in.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CompressionSettings controls the content store's transparent blob
// compression.
type CompressionSettings struct {
	Algorithm string `yaml:"algorithm"`
	Level     int    `yaml:"level"`
	MinSize   int64  `yaml:"min_size"`
}

// ConcurrencySettings holds the read, write, and eviction concurrency
// limits. This package only loads them; it does not apply them.
type ConcurrencySettings struct {
	MaxReads     int64 `yaml:"max_reads"`
	MaxWrites    int64 `yaml:"max_writes"`
	MaxEvictions int64 `yaml:"max_evictions"`
}

// ShardingSettings optionally splits the index across multiple shard
// files; a nil *ShardingSettings on CacheConfiguration means sharding
// is disabled.
type ShardingSettings struct {
	ShardCount int `yaml:"shard_count"`
}

// LogSettings controls where and how the cache's own diagnostic
// logging is written. An empty File logs to stderr; a non-empty File
// is optionally rotated via gopkg.in/natefinch/lumberjack.v2.
type LogSettings struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// CacheConfiguration is the full set of cache options. The cache
// facade does not read it: cache.New takes its own cache.Config, and
// nothing in this module converts one into the other.
type CacheConfiguration struct {
	MaxSize         int64               `yaml:"max_size"`
	MaxAge          time.Duration       `yaml:"max_age"`
	Compression     CompressionSettings `yaml:"compression"`
	IndexPath       string              `yaml:"index_path"`
	EvictionPolicy  string              `yaml:"eviction_policy"`
	Concurrency     ConcurrencySettings `yaml:"concurrency"`
	VerifyIntegrity bool                `yaml:"verify_integrity"`
	Sharding        *ShardingSettings   `yaml:"sharding,omitempty"`
	GCInterval      time.Duration       `yaml:"gc_interval"`
	CacheKeyVersion string              `yaml:"cache_key_version"`
	DefaultTTL      *time.Duration      `yaml:"default_ttl,omitempty"`
	Log             LogSettings         `yaml:"log"`
}

// Default returns the documented defaults: 10 GiB, 7-day max age,
// zstd/level-3/min-1024B compression, LRU eviction, integrity
// verification on, hourly GC, cache key version "v1".
func Default() CacheConfiguration {
	return CacheConfiguration{
		MaxSize: 10 * 1 << 30,
		MaxAge:  7 * 24 * time.Hour,
		Compression: CompressionSettings{
			Algorithm: "zstd",
			Level:     3,
			MinSize:   1024,
		},
		EvictionPolicy:  "lru",
		VerifyIntegrity: true,
		GCInterval:      time.Hour,
		CacheKeyVersion: "v1",
		Log:             LogSettings{Level: "info"},
	}
}

// Load reads path as YAML into a CacheConfiguration, starting from
// Default() so a partial file only overrides the fields it sets.
func Load(path string) (CacheConfiguration, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return CacheConfiguration{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return CacheConfiguration{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}

// SlogLevel parses Log.Level into a slog.Level, defaulting to Info for
// an empty or unrecognized string — matching cmd/sand's own
// invalid-level fallback.
func (c CacheConfiguration) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
