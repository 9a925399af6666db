package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "codementor.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CODEMENTOR_PORT")
	setString(&cfg.Server.CORSOrigin, "CODEMENTOR_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CODEMENTOR_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CODEMENTOR_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CODEMENTOR_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CODEMENTOR_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CODEMENTOR_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Gemini.BaseURL, "CODEMENTOR_GEMINI_BASE_URL")
	setString(&cfg.Gemini.APIKey, "GOOGLE_GENERATIVE_AI_API_KEY")
	setString(&cfg.Gemini.Model, "CODEMENTOR_GEMINI_MODEL")
	setString(&cfg.Gemini.VisionModel, "CODEMENTOR_GEMINI_VISION_MODEL")
	setFloat64(&cfg.Gemini.Temperature, "CODEMENTOR_GEMINI_TEMPERATURE")
	setString(&cfg.Logging.Level, "CODEMENTOR_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CODEMENTOR_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "CODEMENTOR_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CODEMENTOR_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "CODEMENTOR_RATE_RPS")
	setInt(&cfg.Rate.Burst, "CODEMENTOR_RATE_BURST")
	setDuration(&cfg.Rate.MaxAdmitDelay, "CODEMENTOR_RATE_MAX_ADMIT_DELAY")
	setDuration(&cfg.Rate.CleanupInterval, "CODEMENTOR_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "CODEMENTOR_RATE_MAX_IDLE_TIME")
	setInt64(&cfg.Cache.MaxSizeMB, "CODEMENTOR_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "CODEMENTOR_CACHE_TTL")
	setDuration(&cfg.Chat.SimulatedDelay, "CODEMENTOR_CHAT_SIMULATED_DELAY")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Gemini.BaseURL == "" {
		return errors.New("gemini.base_url is required")
	}
	if cfg.Gemini.Model == "" {
		return errors.New("gemini.model is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
