package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

type Postgres struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type Audit struct {
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
}

type Config struct {
	Backend        string
	DataFile       string
	Timezone       *time.Location
	ContainerSizes []string
	HTTPPort       string
	GRPCPort       string
	LogLevel       string

	Postgres Postgres
	Kafka    Kafka
	Audit    Audit
}

// LoadEnv looks for a .env file in the working directory and up to two of its
// parents, then for .example.env in the same places. It returns the loaded
// path, or "" when none was found; plain environment variables still apply.
func LoadEnv() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dirs := []string{
		wd,
		filepath.Join(wd, ".."),
		filepath.Join(wd, "..", ".."),
	}

	for _, name := range []string{".env", ".example.env"} {
		for _, dir := range dirs {
			envPath := filepath.Join(dir, name)
			if err := godotenv.Load(envPath); err == nil {
				return envPath
			}
		}
	}
	return ""
}

// Load builds the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		Backend:        strings.ToLower(getenvDefault("DASHBOARD_BACKEND", BackendLocal)),
		DataFile:       getenvDefault("DASHBOARD_DATA_FILE", "data/dashboard.json"),
		ContainerSizes: splitList(os.Getenv("CONTAINER_SIZES")),
		HTTPPort:       getenvDefault("HTTP_PORT", "9000"),
		GRPCPort:       getenvDefault("GRPC_PORT", "9001"),
		LogLevel:       getenvDefault("LOG_LEVEL", "debug"),
		Postgres: Postgres{
			Host:     getenvDefault("DB_HOST", "localhost"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Name:     os.Getenv("POSTGRES_DB"),
			SSLMode:  getenvDefault("DB_SSLMODE", "disable"),
		},
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getenvDefault("KAFKA_AUDIT_TOPIC", "audit_logs"),
		},
	}

	switch cfg.Backend {
	case BackendLocal, BackendRemote:
	default:
		return nil, fmt.Errorf("invalid DASHBOARD_BACKEND %q: want %q or %q", cfg.Backend, BackendLocal, BackendRemote)
	}

	loc, err := time.LoadLocation(getenvDefault("DASHBOARD_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_TIMEZONE: %w", err)
	}
	cfg.Timezone = loc

	if cfg.Postgres.Port, err = getenvInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.Audit.Workers, err = getenvInt("AUDIT_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.Audit.BatchSize, err = getenvInt("AUDIT_BATCH_SIZE", 5); err != nil {
		return nil, err
	}
	if cfg.Audit.FlushInterval, err = time.ParseDuration(getenvDefault("AUDIT_FLUSH_INTERVAL", "500ms")); err != nil {
		return nil, fmt.Errorf("invalid AUDIT_FLUSH_INTERVAL: %w", err)
	}
	if cfg.Audit.Workers < 1 || cfg.Audit.BatchSize < 1 {
		return nil, fmt.Errorf("AUDIT_WORKERS and AUDIT_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
