package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, 1024, cfg.Embedder.Dimension)
	assert.Equal(t, "localhost", cfg.VectorStore.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Port)
	assert.Equal(t, "tooldex.points.v1", cfg.VectorStore.PointIDNamespace)
	assert.Equal(t, "sqlite", cfg.DocumentStore.Driver)
	assert.Equal(t, "tools", cfg.DocumentStore.Table)
	assert.Equal(t, 60, cfg.Fusion.KValue)
	assert.Equal(t, 50, cfg.Fusion.MaxResults)
	assert.InDelta(t, 0.8, cfg.Dedup.Threshold, 1e-12)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.RequestTimeout)
	assert.Equal(t, 25, cfg.Indexer.BatchSize)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_PORT", "7000")
	t.Setenv("USE_ENHANCED_COLLECTION", "true")
	t.Setenv("POINT_ID_NAMESPACE", "tooldex.points.v2")
	t.Setenv("FUSION_K_VALUE", "90")
	t.Setenv("EMBEDDING_DIMENSION", "768")
	t.Setenv("CATALOG_DRIVER", "postgres")
	t.Setenv("CATALOG_DSN", "postgres://localhost/tooldex")
	t.Setenv("REQUEST_TIMEOUT", "15s")
	t.Setenv("SOURCE_TIMEOUT", "2500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Host)
	assert.Equal(t, 7000, cfg.VectorStore.Port)
	assert.True(t, cfg.VectorStore.Enhanced)
	assert.Equal(t, "tooldex.points.v2", cfg.VectorStore.PointIDNamespace)
	assert.Equal(t, 90, cfg.Fusion.KValue)
	assert.Equal(t, "postgres", cfg.DocumentStore.Driver)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.RequestTimeout)
	// Bare numbers parse as milliseconds.
	assert.Equal(t, 2500*time.Millisecond, cfg.Pipeline.PerSourceTimeout)

	// The vector store tracks the embedder dimension.
	assert.Equal(t, 768, cfg.Embedder.Dimension)
	assert.Equal(t, 768, cfg.VectorStore.Dimension)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("DEDUP_THRESHOLD", "1.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedup")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("CATALOG_DRIVER", "mongodb")
	t.Setenv("CATALOG_DSN", "mongodb://localhost")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document store")
}

func TestFusionConfigValidate(t *testing.T) {
	cfg := FusionConfig{}
	cfg.SetDefaults()
	assert.NoError(t, cfg.Validate())

	cfg.KValue = 1001
	assert.Error(t, cfg.Validate())

	cfg.KValue = 60
	cfg.SourceWeights["semantic"] = -1
	assert.Error(t, cfg.Validate())
}

func TestDedupConfigDefaultsCombinedWeightSum(t *testing.T) {
	cfg := DedupConfig{}
	cfg.SetDefaults()
	assert.True(t, cfg.CombinedWeightSum)
	assert.Equal(t, 1000, cfg.MaxComparisonItems)
	assert.NoError(t, cfg.Validate())
}

func TestServerConfigValidate(t *testing.T) {
	cfg := ServerConfig{Port: 70000}
	assert.Error(t, cfg.Validate())
}
