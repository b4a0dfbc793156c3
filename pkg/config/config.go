// Package config holds the typed configuration surface for a HelixDB store:
// map sizing, secondary-index hints, HNSW tuning, and the opaque
// schema/embedding-model pass-throughs consumed by layers above the core.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/helixdb/helix-core/pkg/vector"
)

const maxDBSizeGB = 9998

// Config is the full configuration surface recognized by the storage
// engine. Everything else (DSL compilation, gateway auth, embedding
// provider HTTP clients) lives above this and is out of scope here.
type Config struct {
	DBMaxSizeGB int          `yaml:"db_max_size_gb"`
	Graph       GraphConfig  `yaml:"graph_config"`
	Vector      VectorConfig `yaml:"vector_config"`
	BM25        bool         `yaml:"bm25"`

	// Schema is opaque to the core: consumed by the DSL layer above.
	Schema json.RawMessage `yaml:"schema,omitempty"`
	// EmbeddingModel is an opaque pass-through for the embedding gateway.
	EmbeddingModel string `yaml:"embedding_model,omitempty"`
}

// GraphConfig controls node-store secondary indexing.
type GraphConfig struct {
	// SecondaryIndices lists property names indexed for n_from_index lookup.
	SecondaryIndices []string `yaml:"secondary_indices"`
}

// VectorConfig controls HNSW tuning. Defaults mirror spec.md §6.5: m=16,
// ef_construction=128, ef_search=768.
type VectorConfig struct {
	M              int `yaml:"m"`
	EfConstruction int `yaml:"ef_construction"`
	EfSearch       int `yaml:"ef_search"`
}

// Default returns a Config populated with the defaults named in §6.5: a
// 1GB map, no secondary indices, BM25 disabled, and the default HNSW
// tuning (m=16, ef_construction=128, ef_search=768).
func Default() *Config {
	return &Config{
		DBMaxSizeGB: 1,
		Vector: VectorConfig{
			M:              16,
			EfConstruction: 128,
			EfSearch:       768,
		},
	}
}

// LoadYAML reads and parses a Config from a YAML file, filling in any
// zero-valued fields the file omits with the Default() values.
func LoadYAML(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// DumpYAML serializes cfg as YAML, suitable for writing to a file or log.
func DumpYAML(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Validate checks the configuration for out-of-range values, clamping
// db_max_size_gb to the documented ceiling rather than rejecting it.
func (c *Config) Validate() error {
	if c.DBMaxSizeGB <= 0 {
		return fmt.Errorf("db_max_size_gb must be positive, got %d", c.DBMaxSizeGB)
	}
	if c.DBMaxSizeGB > maxDBSizeGB {
		c.DBMaxSizeGB = maxDBSizeGB
	}

	if c.Vector.M <= 0 {
		return fmt.Errorf("vector_config.m must be positive, got %d", c.Vector.M)
	}
	if c.Vector.EfConstruction <= 0 {
		return fmt.Errorf("vector_config.ef_construction must be positive, got %d", c.Vector.EfConstruction)
	}
	if c.Vector.EfSearch <= 0 {
		return fmt.Errorf("vector_config.ef_search must be positive, got %d", c.Vector.EfSearch)
	}

	for _, name := range c.Graph.SecondaryIndices {
		if name == "" {
			return fmt.Errorf("graph_config.secondary_indices contains an empty property name")
		}
	}

	return nil
}

// HNSWConfig bridges this package's vector tuning knobs into the
// vector.Config the HNSW index itself is built on.
func (c *Config) HNSWConfig() vector.Config {
	return vector.Config{
		M:              c.Vector.M,
		EfConstruction: c.Vector.EfConstruction,
		EfSearch:       c.Vector.EfSearch,
		Metric:         vector.MetricCosine,
	}
}
