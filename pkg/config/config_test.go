package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "skillcy", cfg.Database.Name)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 720*time.Hour, cfg.JWT.RefreshExpiration)
	assert.False(t, cfg.Catalog.CacheEnabled)
	assert.Equal(t, 2*time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, 4, cfg.Stats.RecomputeConcurrency)
	assert.Equal(t, 2, cfg.Audit.Workers)
	assert.Equal(t, "./exports", cfg.Exports.Dir)
	assert.Equal(t, 24*time.Hour, cfg.Exports.LinkTTL)
	assert.Equal(t, "dev_secret", cfg.Exports.SigningSecret)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("CATALOG_CACHE_ENABLED", "true")
	t.Setenv("CATALOG_CACHE_TTL", "not-a-duration")
	t.Setenv("OTEL_SAMPLER_RATIO", "3")
	t.Setenv("STATS_RECOMPUTE_CONCURRENCY", "-2")
	t.Setenv("JWT_SINGLE_SESSION", "true")
	t.Setenv("EXPORT_SIGNING_SECRET", "exports-only")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Catalog.CacheEnabled)
	assert.Equal(t, 2*time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
	assert.Equal(t, 4, cfg.Stats.RecomputeConcurrency)
	assert.True(t, cfg.JWT.SingleSession)
	assert.Equal(t, "exports-only", cfg.Exports.SigningSecret)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseDuration("", 5*time.Second))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Second))
	assert.Equal(t, time.Second, parseDuration("soon", time.Second))
}
