package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"

	"github.com/calyptra/prosegen/pkg/markov"
	"github.com/calyptra/prosegen/pkg/textcache"
)

// ServerConfig holds the configuration for the HTTP API server.
type ServerConfig struct {
	ApiAddr           string `json:"api_addr"`
	LogLevel          string `json:"log_level"`
	DataDir           string `json:"data_dir"`
	CacheDatabasePath string `json:"cache_database_path"`
}

// EngineConfig holds settings for the text engine and its corpus pipeline.
type EngineConfig struct {
	Order         int      `json:"order"`
	CacheKey      string   `json:"cache_key"`
	CacheTTLHours int      `json:"cache_ttl_hours"`
	CacheBackend  string   `json:"cache_backend"` // sqlite, redis or memory
	RedisURL      string   `json:"redis_url"`
	RedisPrefix   string   `json:"redis_prefix"`
	SourceURLs    []string `json:"source_urls"`
	MaxLength     int      `json:"max_length"`
	MaxSentences  int      `json:"max_sentences"`
	MaxBatchCount int      `json:"max_batch_count"`
}

// CacheConfig holds the quota settings for the corpus cache.
type CacheConfig struct {
	SizeLimitBytes      int `json:"size_limit_bytes"`
	EvictionWindowHours int `json:"eviction_window_hours"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig `json:"server_config"`
	Engine *EngineConfig `json:"engine_config"`
	Cache  *CacheConfig  `json:"cache_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:           ":7371",
		LogLevel:          "info",
		DataDir:           "./data",
		CacheDatabasePath: "./data/prosegen_cache.db?_journal_mode=WAL&_busy_timeout=5000",
	}
}

// DefaultEngineConfig creates an engine configuration with default values.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Order:         markov.DefaultOrder,
		CacheKey:      markov.DefaultCacheKey,
		CacheTTLHours: 24,
		CacheBackend:  "sqlite",
		SourceURLs:    []string{},
		MaxLength:     500,
		MaxSentences:  2,
		MaxBatchCount: 50,
	}
}

// DefaultCacheConfig creates a cache configuration with default values.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		SizeLimitBytes:      textcache.DefaultSizeLimit,
		EvictionWindowHours: 24,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Server: DefaultServerConfig(),
		Engine: DefaultEngineConfig(),
		Cache:  DefaultCacheConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the server can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}
