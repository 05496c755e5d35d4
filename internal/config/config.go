package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageAzure  = "azure"
)

// Engine backends
const (
	EngineBuiltin = "builtin"
	EngineNative  = "native"
)

type Config struct {
	Host               string        `yaml:"host"`
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	MediaFetchTimeout  time.Duration `yaml:"media_fetch_timeout"`
	AnalysisTimeout    time.Duration `yaml:"analysis_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	StorageBackend    string `yaml:"storage_backend"`
	SQLitePath        string `yaml:"sqlite_path"`
	StorageQuotaBytes int64  `yaml:"storage_quota_bytes"`
	AzureAccount      string `yaml:"azure_account"`
	AzureKey          string `yaml:"azure_key"`
	AzureContainer    string `yaml:"azure_container"`

	MaxHistoryEntries  int           `yaml:"max_history_entries"`
	MaxThumbnailWidth  int           `yaml:"max_thumbnail_width"`
	ThumbnailQuality   int           `yaml:"thumbnail_quality"`
	CompressionTimeout time.Duration `yaml:"compression_timeout"`
	SettingsDebounce   time.Duration `yaml:"settings_debounce"`

	EngineBackend  string `yaml:"engine_backend"`
	ModelDir       string `yaml:"model_dir"`
	HistoryWorkers int    `yaml:"history_workers"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadFromEnv reads .env (if present), then the environment, then the YAML
// file named by CONFIG_FILE, and validates the result.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		MediaFetchTimeout:  parseDurationOrDefault("MEDIA_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		StorageBackend:    getEnvOrDefault("STORAGE_BACKEND", StorageSQLite),
		SQLitePath:        getEnvOrDefault("SQLITE_PATH", "media-analyzer.db"),
		StorageQuotaBytes: parseIntOrDefault("STORAGE_QUOTA_BYTES", 5*1024*1024),
		AzureAccount:      os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureKey:          os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer:    getEnvOrDefault("AZURE_STORAGE_CONTAINER", "media-analyzer"),

		MaxHistoryEntries:  int(parseIntOrDefault("MAX_HISTORY_ENTRIES", 10)),
		MaxThumbnailWidth:  int(parseIntOrDefault("MAX_THUMBNAIL_WIDTH", 400)),
		ThumbnailQuality:   int(parseIntOrDefault("THUMBNAIL_QUALITY", 70)),
		CompressionTimeout: parseDurationOrDefault("COMPRESSION_TIMEOUT", 10*time.Second),
		SettingsDebounce:   parseDurationOrDefault("SETTINGS_DEBOUNCE", 500*time.Millisecond),

		EngineBackend:  getEnvOrDefault("ENGINE_BACKEND", EngineBuiltin),
		ModelDir:       getEnvOrDefault("MODEL_DIR", "models"),
		HistoryWorkers: int(parseIntOrDefault("HISTORY_WORKERS", 1)),
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overlays keys present in a YAML file onto cfg
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.MediaFetchTimeout <= 0 || c.AnalysisTimeout <= 0 || c.CompressionTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s, compression=%s)",
			c.RequestTimeout, c.MediaFetchTimeout, c.AnalysisTimeout, c.CompressionTimeout)
	}
	if c.SettingsDebounce < 0 {
		return fmt.Errorf("SETTINGS_DEBOUNCE must be >= 0 (got %s)", c.SettingsDebounce)
	}
	switch c.StorageBackend {
	case StorageMemory:
	case StorageSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case StorageAzure:
		if c.AzureAccount == "" || c.AzureKey == "" || c.AzureContainer == "" {
			return fmt.Errorf("azure backend requires AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_KEY and AZURE_STORAGE_CONTAINER")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.StorageQuotaBytes <= 0 {
		return fmt.Errorf("STORAGE_QUOTA_BYTES must be > 0 (got %d)", c.StorageQuotaBytes)
	}
	if c.MaxHistoryEntries < 1 {
		return fmt.Errorf("MAX_HISTORY_ENTRIES must be >= 1 (got %d)", c.MaxHistoryEntries)
	}
	if c.MaxThumbnailWidth < 1 {
		return fmt.Errorf("MAX_THUMBNAIL_WIDTH must be >= 1 (got %d)", c.MaxThumbnailWidth)
	}
	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 100 {
		return fmt.Errorf("THUMBNAIL_QUALITY must be within 1..100 (got %d)", c.ThumbnailQuality)
	}
	if c.HistoryWorkers < 1 {
		return fmt.Errorf("HISTORY_WORKERS must be >= 1 (got %d)", c.HistoryWorkers)
	}
	switch c.EngineBackend {
	case EngineBuiltin, EngineNative:
	default:
		return fmt.Errorf("unknown ENGINE_BACKEND %q", c.EngineBackend)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
