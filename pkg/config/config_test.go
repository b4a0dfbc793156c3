package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 16, cfg.Vector.M)
	assert.Equal(t, 128, cfg.Vector.EfConstruction)
	assert.Equal(t, 768, cfg.Vector.EfSearch)
	assert.False(t, cfg.BM25)
}

func TestValidateClampsDBMaxSize(t *testing.T) {
	cfg := Default()
	cfg.DBMaxSizeGB = 50000
	require.NoError(t, cfg.Validate())
	assert.Equal(t, maxDBSizeGB, cfg.DBMaxSizeGB)
}

func TestValidateRejectsNonPositiveSize(t *testing.T) {
	cfg := Default()
	cfg.DBMaxSizeGB = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadHNSWTuning(t *testing.T) {
	cfg := Default()
	cfg.Vector.M = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyIndexName(t *testing.T) {
	cfg := Default()
	cfg.Graph.SecondaryIndices = []string{"gh_id", ""}
	assert.Error(t, cfg.Validate())
}

func TestLoadYAMLFillsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "helix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_max_size_gb: 4
bm25: true
graph_config:
  secondary_indices: ["gh_id"]
`), 0o644))

	cfg, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.DBMaxSizeGB)
	assert.True(t, cfg.BM25)
	assert.Equal(t, []string{"gh_id"}, cfg.Graph.SecondaryIndices)
	assert.Equal(t, 16, cfg.Vector.M, "vector tuning omitted from the file should keep its Default() value")
}

func TestHNSWConfigBridgesTuning(t *testing.T) {
	cfg := Default()
	cfg.Vector.EfSearch = 256
	hc := cfg.HNSWConfig()
	assert.Equal(t, 256, hc.EfSearch)
	assert.Equal(t, 16, hc.M)
}
