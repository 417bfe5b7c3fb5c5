package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent corpus configuration stored as config.toml
// in the .corpus/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	Client    ClientConfig    `toml:"client"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Retention RetentionConfig `toml:"retention"`
}

// StorageConfig holds vector store settings. Provider selects the driver
// (memory, sqlite, chroma, qdrant); Target is the server URL for remote
// drivers; Path is the database file for the sqlite driver.
type StorageConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Path     string `toml:"path,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// corpus API server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// ChunkingConfig holds document chunking settings, in runes.
type ChunkingConfig struct {
	MaxSize uint `toml:"max_size,omitempty"`
	Overlap uint `toml:"overlap,omitempty"`
}

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	TopK uint `toml:"top_k,omitempty"`
}

// RetentionConfig holds version retention settings. Keep is the number of
// READY versions preserved by pruning, not counting the live version.
type RetentionConfig struct {
	Keep uint `toml:"keep,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(get func(c *Config) uint, set func(c *Config, n uint)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if get(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(get(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid unsigned integer %q: %w", v, err)
			}
			set(c, uint(n))
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.target": {
		get: func(c *Config) string { return c.Storage.Target },
		set: func(c *Config, v string) error { c.Storage.Target = v; return nil },
	},
	"storage.path": {
		get: func(c *Config) string { return c.Storage.Path },
		set: func(c *Config, v string) error { c.Storage.Path = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": uintKey(
		func(c *Config) uint { return c.Embedding.Dimensions },
		func(c *Config, n uint) { c.Embedding.Dimensions = n },
	),
	"chunking.max_size": uintKey(
		func(c *Config) uint { return c.Chunking.MaxSize },
		func(c *Config, n uint) { c.Chunking.MaxSize = n },
	),
	"chunking.overlap": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Chunking.Overlap), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chunking.overlap: %w", err)
			}
			c.Chunking.Overlap = uint(n)
			return nil
		},
	},
	"retrieval.top_k": uintKey(
		func(c *Config) uint { return c.Retrieval.TopK },
		func(c *Config, n uint) { c.Retrieval.TopK = n },
	),
	"retention.keep": uintKey(
		func(c *Config) uint { return c.Retention.Keep },
		func(c *Config, n uint) { c.Retention.Keep = n },
	),
}
