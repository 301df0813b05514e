package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMapboxToken = "pk.test-token"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLineListSource, cfg.LineListSource)
	assert.Equal(t, DefaultCumulativeSource, cfg.CumulativeSource)
	assert.Equal(t, "countries.data", cfg.CountriesPath)
	assert.Equal(t, "dist", cfg.OutputDir)
	assert.False(t, cfg.Overwrite)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, []string{"United States", "Virgin Islands, U.S.", "Puerto Rico"}, cfg.ExcludedCountries)
	assert.Equal(t, 5*time.Minute, cfg.FetchTimeout)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.PublishEnabled())
	assert.Equal(t, "daily-slices", cfg.KafkaSliceTopic)
	assert.False(t, cfg.MapboxEnabled)
	assert.Empty(t, cfg.MapboxToken)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 1000, cfg.MapboxCacheSize)
	assert.Empty(t, cfg.RunDBPath)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("LINELIST_SOURCE", "testdata/latestdata.csv")
	t.Setenv("CUMULATIVE_SOURCE", "testdata/us.csv")
	t.Setenv("COUNTRIES_PATH", "/srv/countries.data")
	t.Setenv("OUTPUT_DIR", "/srv/out")
	t.Setenv("OVERWRITE", "true")
	t.Setenv("WORKERS", "3")
	t.Setenv("EXCLUDED_COUNTRIES", "France; Italy ;")
	t.Setenv("FETCH_TIMEOUT", "30s")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SLICE_TOPIC", "slices")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_TIMEOUT", "10s")
	t.Setenv("MAPBOX_CACHE_SIZE", "500")
	t.Setenv("RUN_DB_PATH", "/srv/runs.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "testdata/latestdata.csv", cfg.LineListSource)
	assert.Equal(t, "testdata/us.csv", cfg.CumulativeSource)
	assert.Equal(t, "/srv/countries.data", cfg.CountriesPath)
	assert.Equal(t, "/srv/out", cfg.OutputDir)
	assert.True(t, cfg.Overwrite)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, []string{"France", "Italy"}, cfg.ExcludedCountries)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.PublishEnabled())
	assert.Equal(t, "slices", cfg.KafkaSliceTopic)
	assert.True(t, cfg.MapboxEnabled)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.Equal(t, 10*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 500, cfg.MapboxCacheSize)
	assert.Equal(t, "/srv/runs.db", cfg.RunDBPath)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OUTPUT_DIR=from-dotenv\n"), 0o644))
	t.Chdir(dir)
	// godotenv never overrides variables that are already set.
	t.Setenv("OUTPUT_DIR", "")
	require.NoError(t, os.Unsetenv("OUTPUT_DIR"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.OutputDir)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"FETCH_TIMEOUT", "soon"},
		{"FETCH_TIMEOUT", "0s"},
		{"MAPBOX_TIMEOUT", "bad"},
		{"WORKERS", "0"},
		{"WORKERS", "many"},
		{"OVERWRITE", "perhaps"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_MapboxEnabledWithoutToken(t *testing.T) {
	t.Setenv("MAPBOX_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoad_MapboxTokenImpliesEnabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MapboxEnabled)
}

func TestLoad_MapboxExplicitlyDisabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"Virgin Islands, U.S.", "Puerto Rico"}, parseList("Virgin Islands, U.S.;Puerto Rico"))
	assert.Nil(t, parseList(" ; ;"))
}
