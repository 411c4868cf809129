package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_NAME", "feedsync")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_NAME", "feedsync")
	t.Setenv("DB_USER", "feedsync")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.HTTPPort)
	assert.Equal(t, 50, cfg.Scraper.MaxItems)
	assert.Equal(t, time.Second, cfg.Scraper.RateLimitMin)
	assert.Equal(t, 2*time.Second, cfg.Scraper.RateLimitRandom)
	assert.Equal(t, "0 */6 * * *", cfg.Schedule.JobsSpec)
	assert.Equal(t, 45, cfg.Schedule.ExpireAfterDays)
	assert.Equal(t, int32(10), cfg.Database.PoolMaxConns)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_HOST", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errMissingRequiredEnv))
	assert.Contains(t, err.Error(), "DB_HOST")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_InvalidNumber(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCRAPER_RATE_LIMIT_MIN_MS", "fast")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInvalidEnv))
}

func TestParseSources(t *testing.T) {
	f, err := ParseSources([]byte(`
[defaults]
rate_limit_min_ms = 500

[sources.Lilly]
base_url = "https://jobs.example.com/lilly"
max_items = 10

[sources.angi]
enabled = false
`))
	require.NoError(t, err)

	require.NotNil(t, f.Defaults.RateLimitMinMs)
	assert.Equal(t, 500, *f.Defaults.RateLimitMinMs)

	o, ok := f.Source("lilly")
	require.True(t, ok)
	assert.Equal(t, "https://jobs.example.com/lilly", o.BaseURL)
	require.NotNil(t, o.MaxItems)
	assert.Equal(t, 10, *o.MaxItems)

	assert.True(t, f.Enabled("lilly"))
	assert.False(t, f.Enabled("angi"))
	assert.True(t, f.Enabled("unknown"))
}

func TestParseSources_RejectsNegative(t *testing.T) {
	_, err := ParseSources([]byte("[sources.x]\nmax_items = -1\n"))
	require.Error(t, err)
}

func TestLoadSources_File(t *testing.T) {
	empty, err := LoadSources("")
	require.NoError(t, err)
	assert.Empty(t, empty.Sources)

	path := filepath.Join(t.TempDir(), "sources.toml")
	require.NoError(t, os.WriteFile(path, []byte("[sources.roche]\nmax_items = 3\n"), 0o600))

	f, err := LoadSources(path)
	require.NoError(t, err)
	_, ok := f.Source("roche")
	assert.True(t, ok)

	_, err = LoadSources(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
