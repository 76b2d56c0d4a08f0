package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Invitations   InvitationsConfig
	Compatibility CompatibilityConfig
	AuditExports  AuditExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// InvitationsConfig governs invitation TTLs and the expiry sweep.
type InvitationsConfig struct {
	DefaultTTL    time.Duration
	MaxTTL        time.Duration
	SweepInterval time.Duration
}

// CompatibilityConfig tunes the score recalculation pipeline.
type CompatibilityConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	OutboxPollEvery   time.Duration
	OutboxBatchSize   int
	CacheTTL          time.Duration
}

// AuditExportsConfig controls asynchronous transition-history exports.
type AuditExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Invitations = InvitationsConfig{
		DefaultTTL:    parseDuration(v.GetString("INVITATION_DEFAULT_TTL"), 7*24*time.Hour),
		MaxTTL:        parseDuration(v.GetString("INVITATION_MAX_TTL"), 30*24*time.Hour),
		SweepInterval: parseDuration(v.GetString("INVITATION_SWEEP_INTERVAL"), time.Hour),
	}

	cfg.Compatibility = CompatibilityConfig{
		WorkerConcurrency: v.GetInt("COMPAT_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("COMPAT_WORKER_RETRIES"),
		OutboxPollEvery:   parseDuration(v.GetString("COMPAT_OUTBOX_POLL_INTERVAL"), 5*time.Second),
		OutboxBatchSize:   v.GetInt("COMPAT_OUTBOX_BATCH_SIZE"),
		CacheTTL:          parseDuration(v.GetString("COMPAT_CACHE_TTL"), 15*time.Minute),
	}

	cfg.AuditExports = AuditExportsConfig{
		Enabled:           v.GetBool("ENABLE_AUDIT_EXPORTS"),
		StorageDir:        v.GetString("AUDIT_EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("AUDIT_EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("AUDIT_EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("AUDIT_EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("AUDIT_EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("AUDIT_EXPORTS_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "talentboard_pipeline")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("INVITATION_DEFAULT_TTL", "168h")
	v.SetDefault("INVITATION_MAX_TTL", "720h")
	v.SetDefault("INVITATION_SWEEP_INTERVAL", "1h")

	v.SetDefault("COMPAT_WORKER_CONCURRENCY", 4)
	v.SetDefault("COMPAT_WORKER_RETRIES", 3)
	v.SetDefault("COMPAT_OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("COMPAT_OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("COMPAT_CACHE_TTL", "15m")

	v.SetDefault("ENABLE_AUDIT_EXPORTS", false)
	v.SetDefault("AUDIT_EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("AUDIT_EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("AUDIT_EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("AUDIT_EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("AUDIT_EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("AUDIT_EXPORTS_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
