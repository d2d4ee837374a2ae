// Package config loads and validates lawsearch configuration.
//
// Configuration is resolved in three layers, later layers winning:
//  1. Built-in defaults
//  2. YAML config file (lawsearch.yaml)
//  3. Environment variables (LAWSEARCH_* prefix)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	lserr "github.com/yeonlab/lawsearch/internal/errors"
)

// VectorBackendType selects the vector similarity backend implementation.
type VectorBackendType string

const (
	VectorBackendInMemory  VectorBackendType = "in_memory"
	VectorBackendOnDisk    VectorBackendType = "on_disk"
	VectorBackendNetworked VectorBackendType = "networked_service"
)

// CacheBackendType selects the cache backend implementation.
type CacheBackendType string

const (
	CacheBackendInMemory  CacheBackendType = "in_memory"
	CacheBackendNetworked CacheBackendType = "networked"
)

// Config is the complete lawsearch configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Vector VectorConfig `yaml:"vector"`
	Cache  CacheConfig  `yaml:"cache"`
	Search SearchConfig `yaml:"search"`
	Embed  EmbedConfig  `yaml:"embed"`
	Ingest IngestConfig `yaml:"ingest"`
	LawAPI LawAPIConfig `yaml:"law_api"`
	Log    LogConfig    `yaml:"log"`
}

// StoreConfig configures the canonical SQLite store.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means in-memory (tests).
	Path string `yaml:"path"`
}

// VectorConfig configures the vector similarity backend.
type VectorConfig struct {
	// Backend is one of: in_memory, on_disk, networked_service.
	Backend VectorBackendType `yaml:"backend"`
	// Dimensions is the embedding dimension the backend expects.
	Dimensions int `yaml:"dimensions"`
	// Path is the on-disk index location (on_disk backend).
	Path string `yaml:"path"`
	// QdrantHost / QdrantPort / QdrantCollection configure the networked backend.
	QdrantHost       string `yaml:"qdrant_host"`
	QdrantPort       int    `yaml:"qdrant_port"`
	QdrantCollection string `yaml:"qdrant_collection"`
}

// CacheConfig configures the result cache layer.
type CacheConfig struct {
	// Backend is one of: in_memory, networked.
	Backend CacheBackendType `yaml:"backend"`
	// SearchTTL is the TTL class for search-result entries.
	SearchTTL time.Duration `yaml:"search_ttl"`
	// DetailTTL is the TTL class for detail-lookup entries.
	DetailTTL time.Duration `yaml:"detail_ttl"`
	// RedisAddr / RedisDB / RedisPassword configure the networked backend.
	RedisAddr     string `yaml:"redis_addr"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPassword string `yaml:"redis_password"`
	// KeyPrefix namespaces all cache keys.
	KeyPrefix string `yaml:"key_prefix"`
}

// SearchConfig configures query execution and score fusion.
type SearchConfig struct {
	// LexicalWeight and SemanticWeight are the fusion weights (must sum to 1.0).
	LexicalWeight  float64 `yaml:"lexical_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	// QueryDeadline bounds the parallel provider fan-out per query.
	QueryDeadline time.Duration `yaml:"query_deadline"`
	// DefaultTopK and MaxTopK bound requested result counts.
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
	// LexicalIndexPath is the bleve index location. Empty means in-memory.
	LexicalIndexPath string `yaml:"lexical_index_path"`
}

// EmbedConfig configures the embedding provider.
type EmbedConfig struct {
	// Provider is "openai" or "static" (deterministic offline fallback).
	Provider string `yaml:"provider"`
	// Model is the embedding model name (openai provider).
	Model string `yaml:"model"`
	// APIKey is the OpenAI API key.
	APIKey string `yaml:"api_key"`
	// Dimensions is the embedding dimension.
	Dimensions int `yaml:"dimensions"`
	// CacheSize is the query-embedding LRU size.
	CacheSize int `yaml:"cache_size"`
}

// IngestConfig configures the ingestion pipeline and scheduler.
type IngestConfig struct {
	// Schedule is a cron expression for automatic collection runs.
	Schedule string `yaml:"schedule"`
	// Enabled turns the timed trigger loop on.
	Enabled bool `yaml:"enabled"`
	// SeedQueries drive each scheduled collection run.
	SeedQueries []string `yaml:"seed_queries"`
	// TopKPerRun is the total fetch budget per collection run.
	TopKPerRun int `yaml:"top_k_per_run"`
	// Workers is the embedding worker pool size.
	Workers int `yaml:"workers"`
	// LeaseTTL bounds how long a run may hold the collection lease.
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

// LawAPIConfig configures the upstream law.go.kr client.
type LawAPIConfig struct {
	// BaseURL is the upstream endpoint.
	BaseURL string `yaml:"base_url"`
	// APIKey is the law.go.kr OC key.
	APIKey string `yaml:"api_key"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "lawsearch.db"},
		Vector: VectorConfig{
			Backend:          VectorBackendInMemory,
			Dimensions:       1536,
			Path:             "vectors.hnsw",
			QdrantHost:       "localhost",
			QdrantPort:       6334,
			QdrantCollection: "law_articles",
		},
		Cache: CacheConfig{
			Backend:   CacheBackendInMemory,
			SearchTTL: time.Hour,
			DetailTTL: 24 * time.Hour,
			RedisAddr: "localhost:6379",
			KeyPrefix: "law_search",
		},
		Search: SearchConfig{
			LexicalWeight:  0.5,
			SemanticWeight: 0.5,
			QueryDeadline:  2 * time.Second,
			DefaultTopK:    20,
			MaxTopK:        100,
		},
		Embed: EmbedConfig{
			Provider:   "static",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			CacheSize:  1000,
		},
		Ingest: IngestConfig{
			Schedule:    "0 2 * * *",
			Enabled:     false,
			SeedQueries: []string{"개인정보 보호", "저작권", "민법", "형법", "노동", "회사", "세금", "의료", "교육"},
			TopKPerRun:  100,
			Workers:     4,
			LeaseTTL:    30 * time.Minute,
		},
		LawAPI: LawAPIConfig{
			BaseURL: "https://www.law.go.kr",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from the given YAML file (if present), applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, lserr.Wrap(lserr.ErrCodeConfigNotFound, err)
			}
			// Missing file means defaults + env only.
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, lserr.Wrap(lserr.ErrCodeConfigInvalid, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies LAWSEARCH_* environment variables over the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LAWSEARCH_VECTOR_BACKEND_TYPE"); v != "" {
		cfg.Vector.Backend = VectorBackendType(v)
	}
	if v := os.Getenv("LAWSEARCH_CACHE_BACKEND_TYPE"); v != "" {
		cfg.Cache.Backend = CacheBackendType(v)
	}
	if v := os.Getenv("LAWSEARCH_INGEST_SCHEDULE"); v != "" {
		cfg.Ingest.Schedule = v
	}
	if v := os.Getenv("LAWSEARCH_FUSION_WEIGHT_LEXICAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.LexicalWeight = f
		}
	}
	if v := os.Getenv("LAWSEARCH_FUSION_WEIGHT_SEMANTIC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.SemanticWeight = f
		}
	}
	if v := os.Getenv("LAWSEARCH_CACHE_TTL_SEARCH"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.SearchTTL = d
		}
	}
	if v := os.Getenv("LAWSEARCH_CACHE_TTL_DETAIL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DetailTTL = d
		}
	}
	if v := os.Getenv("LAWSEARCH_QUERY_DEADLINE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Search.QueryDeadline = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("LAWSEARCH_LAW_API_KEY"); v != "" {
		cfg.LawAPI.APIKey = v
	}
	if v := os.Getenv("LAWSEARCH_OPENAI_API_KEY"); v != "" {
		cfg.Embed.APIKey = v
	}
	if v := os.Getenv("LAWSEARCH_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("LAWSEARCH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Vector.Backend {
	case VectorBackendInMemory, VectorBackendOnDisk, VectorBackendNetworked:
	default:
		return lserr.New(lserr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown vector backend %q", c.Vector.Backend), nil)
	}

	switch c.Cache.Backend {
	case CacheBackendInMemory, CacheBackendNetworked:
	default:
		return lserr.New(lserr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown cache backend %q", c.Cache.Backend), nil)
	}

	if c.Search.LexicalWeight < 0 || c.Search.SemanticWeight < 0 {
		return lserr.New(lserr.ErrCodeConfigInvalid, "fusion weights must be non-negative", nil)
	}
	sum := c.Search.LexicalWeight + c.Search.SemanticWeight
	if sum < 0.999 || sum > 1.001 {
		return lserr.New(lserr.ErrCodeConfigInvalid,
			fmt.Sprintf("fusion weights must sum to 1.0, got %.3f", sum), nil)
	}

	if c.Vector.Dimensions <= 0 {
		return lserr.New(lserr.ErrCodeConfigInvalid, "vector dimensions must be positive", nil)
	}
	if c.Search.QueryDeadline <= 0 {
		return lserr.New(lserr.ErrCodeConfigInvalid, "query deadline must be positive", nil)
	}
	if c.Ingest.LeaseTTL <= 0 {
		return lserr.New(lserr.ErrCodeConfigInvalid, "ingest lease TTL must be positive", nil)
	}

	return nil
}
