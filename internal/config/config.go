package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Security   SecurityConfig   `mapstructure:"security"`
	Validation ValidationConfig `mapstructure:"validation"`
	Tenants    TenantsConfig    `mapstructure:"tenants"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig selects the storage engine: memory, postgres or sqlite
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Database       string `mapstructure:"database"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConns       int32  `mapstructure:"max_conns"`
	MinConns       int32  `mapstructure:"min_conns"`
	MigrationsPath string `mapstructure:"migrations_path"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// MigrationsURL is the golang-migrate source URL for MigrationsPath
func (c DatabaseConfig) MigrationsURL() string {
	return "file://" + c.MigrationsPath
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	VersionTTL time.Duration `mapstructure:"version_ttl"`
}

// MinJWTSecretLength is the shortest HMAC key accepted for signing tokens.
const MinJWTSecretLength = 32

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// ValidationConfig controls how undeclared fields in record values are
// treated: "warn" keeps them and reports warnings, "reject" fails validation.
type ValidationConfig struct {
	UnknownFields string `mapstructure:"unknown_fields"`
}

type TenantsConfig struct {
	AutoRegister bool `mapstructure:"auto_register"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level"`
	Format       string        `mapstructure:"format"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	// Override with environment variables
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid storage.driver %q", c.Storage.Driver)
	}
	switch c.Validation.UnknownFields {
	case "warn", "reject":
	default:
		return fmt.Errorf("invalid validation.unknown_fields %q", c.Validation.UnknownFields)
	}
	if c.Cache.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("cache.enabled requires redis.enabled")
	}
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.middleware_timeout", "30s")

	// Storage
	v.SetDefault("storage.driver", "memory")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "formvault")
	v.SetDefault("database.database", "formvault")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.auto_migrate", false)

	// SQLite
	v.SetDefault("sqlite.path", "formvault.db")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Cache
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.version_ttl", "1h")

	// Auth
	v.SetDefault("auth.access_token_ttl", "15m")

	// Security
	v.SetDefault("security.rate_limit.enabled", false)
	v.SetDefault("security.rate_limit.requests_per_minute", 600)
	v.SetDefault("security.rate_limit.burst", 60)

	// Validation
	v.SetDefault("validation.unknown_fields", "warn")

	// Tenants
	v.SetDefault("tenants.auto_register", false)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h") // 7 days
	v.SetDefault("logging.rotation_time", "24h")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindEnvVars(v *viper.Viper) {
	// Storage
	v.BindEnv("storage.driver", "FORMVAULT_STORAGE_DRIVER")

	// Database
	v.BindEnv("database.password", "POSTGRES_PASSWORD")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
}
