// Package config loads application configuration from the environment,
// with an optional YAML override file for deployments that prefer files
// over flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ridgeline/intranet/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Blob          BlobConfig          `yaml:"blob"`
	Auth          AuthConfig          `yaml:"auth"`
	Activity      ActivityConfig      `yaml:"activity"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds the version snapshot cache configuration
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	L1Size        int           `yaml:"l1_size"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`
}

// BlobConfig holds S3 attachment storage configuration
type BlobConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// AuthConfig holds identity configuration
type AuthConfig struct {
	// AdminEmails is the static admin list; AdminListFile, when set, is
	// loaded and watched for changes and takes precedence.
	AdminEmails   []string `yaml:"admin_emails"`
	AdminListFile string   `yaml:"admin_list_file"`
}

// ActivityConfig holds activity log retention configuration
type ActivityConfig struct {
	RetentionDays   int    `yaml:"retention_days"`
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration from environment variables, applies the
// YAML override file named by INTRANET_CONFIG_FILE if set, and validates
// the result.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("INTRANET_HOST", "0.0.0.0"),
			Port:            getEnv("INTRANET_PORT", "8080"),
			ReadTimeout:     getEnvDuration("INTRANET_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("INTRANET_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("INTRANET_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("INTRANET_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("INTRANET_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("INTRANET_POSTGRES_URL", ""),
			MaxOpenConns:    getEnvInt("INTRANET_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns:    getEnvInt("INTRANET_POSTGRES_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("INTRANET_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		},
		Cache: CacheConfig{
			Enabled:       getEnvBool("INTRANET_CACHE_ENABLED", true),
			L1Size:        getEnvInt("INTRANET_CACHE_L1_SIZE", 1024),
			RedisAddr:     getEnv("INTRANET_REDIS_ADDR", ""),
			RedisPassword: getEnv("INTRANET_REDIS_PASSWORD", ""),
			RedisTTL:      getEnvDuration("INTRANET_REDIS_TTL", 30*time.Minute),
		},
		Blob: BlobConfig{
			Enabled:      getEnvBool("INTRANET_S3_ENABLED", false),
			Endpoint:     getEnv("INTRANET_S3_ENDPOINT", ""),
			Region:       getEnv("INTRANET_S3_REGION", "us-east-1"),
			Bucket:       getEnv("INTRANET_S3_BUCKET", ""),
			AccessKey:    getEnv("INTRANET_S3_ACCESS_KEY", ""),
			SecretKey:    getEnv("INTRANET_S3_SECRET_KEY", ""),
			UsePathStyle: getEnvBool("INTRANET_S3_USE_PATH_STYLE", false),
		},
		Auth: AuthConfig{
			AdminEmails:   splitList(getEnv("INTRANET_ADMIN_EMAILS", "")),
			AdminListFile: getEnv("INTRANET_ADMIN_LIST_FILE", ""),
		},
		Activity: ActivityConfig{
			RetentionDays:   getEnvInt("INTRANET_ACTIVITY_RETENTION_DAYS", 0),
			CleanupSchedule: getEnv("INTRANET_ACTIVITY_CLEANUP_SCHEDULE", "0 3 * * *"),
		},
		Observability: ObservabilityConfig{
			LogLevel:           getEnv("INTRANET_LOG_LEVEL", "info"),
			MetricsEnabled:     getEnvBool("INTRANET_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("INTRANET_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("INTRANET_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("INTRANET_OTEL_SERVICE_NAME", "intranet"),
			OTelServiceVersion: getEnv("INTRANET_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("INTRANET_OTEL_INSECURE", true),
		},
	}

	if path := os.Getenv("INTRANET_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyFile overlays values from a YAML file onto the env-derived config.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Blob.Enabled {
		if c.Blob.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when blob storage is enabled")
		}
		if c.Blob.Region == "" {
			return fmt.Errorf("S3 region is required when blob storage is enabled")
		}
	}

	if c.Activity.RetentionDays < 0 {
		return fmt.Errorf("activity retention days must not be negative")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ParseLogLevel converts the configured level string to the logger's type.
func (c *ObservabilityConfig) ParseLogLevel() observability.LogLevel {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
