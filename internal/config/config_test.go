package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, StorageSQLite, cfg.StorageBackend)
	assert.Equal(t, int64(5*1024*1024), cfg.StorageQuotaBytes)
	assert.Equal(t, 10, cfg.MaxHistoryEntries)
	assert.Equal(t, 400, cfg.MaxThumbnailWidth)
	assert.Equal(t, 70, cfg.ThumbnailQuality)
	assert.Equal(t, 10*time.Second, cfg.CompressionTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.SettingsDebounce)
	assert.Equal(t, EngineBuiltin, cfg.EngineBackend)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("MAX_THUMBNAIL_WIDTH", "640")
	t.Setenv("SETTINGS_DEBOUNCE", "250ms")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 640, cfg.MaxThumbnailWidth)
	assert.Equal(t, 250*time.Millisecond, cfg.SettingsDebounce)
}

func TestLoadFromEnvDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MAX_HISTORY_ENTRIES=4\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MAX_HISTORY_ENTRIES") })

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxHistoryEntries)
}

func TestLoadFromEnvYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "analyzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage_backend: memory
thumbnail_quality: 55
compression_timeout: 3s
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7000")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 55, cfg.ThumbnailQuality)
	assert.Equal(t, 3*time.Second, cfg.CompressionTimeout)
	assert.Equal(t, "7000", cfg.Port)
}

func TestLoadFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port not numeric", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "redis"}},
		{"azure without credentials", map[string]string{"STORAGE_BACKEND": "azure"}},
		{"quality out of range", map[string]string{"THUMBNAIL_QUALITY": "101"}},
		{"zero history", map[string]string{"MAX_HISTORY_ENTRIES": "0"}},
		{"unknown engine", map[string]string{"ENGINE_BACKEND": "onnx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnvMissingConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "does-not-exist.yaml")

	_, err := LoadFromEnv()
	assert.Error(t, err)
}
