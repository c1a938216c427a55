package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Addr              string
	DatabaseURL       string
	JWTSecret         string
	DataEncryptionKey string
	Environment       string
	RunMigrations     bool
	MigrationsDir     string
	RunSeed           bool
	SeedTenantName    string
	ReconcileWorkers  int
	ReconcileInterval time.Duration
	SlipStorageDir    string
	MetricsEnabled    bool
	MaxBodyBytes      int64
	RateLimitPerMin   int
}

func Load() Config {
	return Config{
		Addr:              getEnv("APP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		DataEncryptionKey: getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:       getEnv("APP_ENV", "development"),
		RunMigrations:     getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:     getEnv("MIGRATIONS_DIR", "migrations"),
		RunSeed:           getEnvBool("RUN_SEED", true),
		SeedTenantName:    getEnv("SEED_TENANT_NAME", "Default Tenant"),
		ReconcileWorkers:  getEnvInt("RECONCILE_WORKERS", 8),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 0),
		SlipStorageDir:    getEnv("SLIP_STORAGE_DIR", "storage/withholding"),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		MaxBodyBytes:      int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}
}

// LoadFile layers a TOML file over the environment. Keys absent from the
// file keep their environment value.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	var file fileConfig
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown key %s", path, undecoded[0])
	}
	file.apply(&cfg, meta)
	return cfg, nil
}

// fileConfig mirrors Config with TOML-friendly types; durations are written
// as strings such as "24h".
type fileConfig struct {
	Addr              string `toml:"addr"`
	DatabaseURL       string `toml:"database_url"`
	JWTSecret         string `toml:"jwt_secret"`
	DataEncryptionKey string `toml:"data_encryption_key"`
	Environment       string `toml:"environment"`
	RunMigrations     bool   `toml:"run_migrations"`
	MigrationsDir     string `toml:"migrations_dir"`
	RunSeed           bool   `toml:"run_seed"`
	SeedTenantName    string `toml:"seed_tenant_name"`
	ReconcileWorkers  int    `toml:"reconcile_workers"`
	ReconcileInterval string `toml:"reconcile_interval"`
	SlipStorageDir    string `toml:"slip_storage_dir"`
	MetricsEnabled    bool   `toml:"metrics_enabled"`
	MaxBodyBytes      int64  `toml:"max_body_bytes"`
	RateLimitPerMin   int    `toml:"rate_limit_per_minute"`
}

func (f fileConfig) apply(cfg *Config, meta toml.MetaData) {
	if meta.IsDefined("addr") {
		cfg.Addr = f.Addr
	}
	if meta.IsDefined("database_url") {
		cfg.DatabaseURL = f.DatabaseURL
	}
	if meta.IsDefined("jwt_secret") {
		cfg.JWTSecret = f.JWTSecret
	}
	if meta.IsDefined("data_encryption_key") {
		cfg.DataEncryptionKey = f.DataEncryptionKey
	}
	if meta.IsDefined("environment") {
		cfg.Environment = f.Environment
	}
	if meta.IsDefined("run_migrations") {
		cfg.RunMigrations = f.RunMigrations
	}
	if meta.IsDefined("migrations_dir") {
		cfg.MigrationsDir = f.MigrationsDir
	}
	if meta.IsDefined("run_seed") {
		cfg.RunSeed = f.RunSeed
	}
	if meta.IsDefined("seed_tenant_name") {
		cfg.SeedTenantName = f.SeedTenantName
	}
	if meta.IsDefined("reconcile_workers") {
		cfg.ReconcileWorkers = f.ReconcileWorkers
	}
	if meta.IsDefined("reconcile_interval") {
		if parsed, err := time.ParseDuration(f.ReconcileInterval); err == nil {
			cfg.ReconcileInterval = parsed
		}
	}
	if meta.IsDefined("slip_storage_dir") {
		cfg.SlipStorageDir = f.SlipStorageDir
	}
	if meta.IsDefined("metrics_enabled") {
		cfg.MetricsEnabled = f.MetricsEnabled
	}
	if meta.IsDefined("max_body_bytes") {
		cfg.MaxBodyBytes = f.MaxBodyBytes
	}
	if meta.IsDefined("rate_limit_per_minute") {
		cfg.RateLimitPerMin = f.RateLimitPerMin
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.ReconcileWorkers <= 0 {
		return fmt.Errorf("RECONCILE_WORKERS must be positive")
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must not be negative")
	}
	return nil
}
