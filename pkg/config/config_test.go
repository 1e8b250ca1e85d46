package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv("test-version")
	require.NoError(t, err)

	assert.Equal(t, "test-version", cfg.Version)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "parcelgraph_engine", cfg.Database.Database)
	assert.Equal(t, 5, cfg.Graph.MaxDepth)
	assert.Equal(t, 10000, cfg.Graph.MaxEdges)
	assert.Equal(t, 500, cfg.Scoring.MaxBatchSize)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGPORT", "5433")
	t.Setenv("GRAPH_MAX_DEPTH", "3")
	t.Setenv("REDIS_HOST", "cache.internal")

	cfg, err := LoadFromEnv("dev")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 3, cfg.Graph.MaxDepth)
	assert.Equal(t, "cache.internal:6379", cfg.Redis.Addr())
}

func TestConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "parcelgraph",
		Password: "secret",
		Database: "parcelgraph_engine",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=parcelgraph password=secret dbname=parcelgraph_engine sslmode=disable",
		cfg.ConnectionString())
}
