package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/photoloader/internal/bytesize"
	"github.com/marmos91/photoloader/pkg/loader"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ReadTimeout)

	assert.Equal(t, bytesize.ByteSize(loader.DefaultHolderCacheBytes), cfg.Cache.HolderBudget)
	assert.Equal(t, bytesize.ByteSize(loader.DefaultDecodedCacheBytes), cfg.Cache.DecodedBudget)
	assert.Equal(t, loader.DefaultCapacityDivisor, cfg.Cache.CapacityDivisor)
	assert.Equal(t, loader.DefaultRedZoneFraction, cfg.Cache.RedZoneFraction)
	assert.Equal(t, loader.DefaultPreloadBatchSize, cfg.Preload.BatchSize)
	assert.Equal(t, loader.DefaultPreloadDelay, cfg.Preload.Delay)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
http:
  addr: ":9090"
cache:
  holder_budget: 4MB
  decoded_budget: 1Mi
  capacity_divisor: 8
  red_zone_fraction: 0.9
preload:
  batch_size: 10
  delay: 250ms
photo_dir: /var/photos
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 4*bytesize.MB, cfg.Cache.HolderBudget)
	assert.Equal(t, 1*bytesize.MiB, cfg.Cache.DecodedBudget)
	assert.Equal(t, 8, cfg.Cache.CapacityDivisor)
	assert.Equal(t, 0.9, cfg.Cache.RedZoneFraction)
	assert.Equal(t, 10, cfg.Preload.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Preload.Delay)
	assert.Equal(t, "/var/photos", cfg.PhotoDir)
}

func TestLoadNumericBudget(t *testing.T) {
	path := writeConfig(t, `
cache:
  holder_budget: 2000000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, bytesize.ByteSize(2_000_000), cfg.Cache.HolderBudget)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "not found")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", "logging:\n  level: verbose\n"},
		{"bad log format", "logging:\n  format: xml\n"},
		{"divisor below one", "cache:\n  capacity_divisor: -2\n"},
		{"red zone above one", "cache:\n  red_zone_fraction: 1.5\n"},
		{"negative preload batch", "preload:\n  batch_size: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoaderConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	lc := cfg.LoaderConfig()

	assert.Equal(t, int64(loader.DefaultHolderCacheBytes), lc.HolderCacheBytes)
	assert.Equal(t, int64(loader.DefaultDecodedCacheBytes), lc.DecodedCacheBytes)
	assert.Equal(t, loader.DefaultCapacityDivisor, lc.CapacityDivisor)
	assert.Equal(t, loader.DefaultPreloadBatchSize, lc.PreloadBatchSize)
	assert.Equal(t, loader.DefaultPreloadDelay, lc.PreloadDelay)
	assert.Equal(t, loader.DefaultRedZoneFraction, lc.RedZoneFraction)
}

func TestSaveAndReloadConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.PhotoDir = "/srv/photos"
	cfg.Cache.HolderBudget = 4 * bytesize.MB

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/photos", loaded.PhotoDir)
	assert.Equal(t, 4*bytesize.MB, loaded.Cache.HolderBudget)
}
