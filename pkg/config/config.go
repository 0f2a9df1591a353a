package config

import (
	"errors"
	"io/fs"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	Backend   BackendConfig
	Checkout  CheckoutConfig
	Catalogue CatalogueConfig
	Viewer    ViewerConfig
	Audit     AuditConfig
	CORS      CORSConfig
	Log       LogConfig
	Console   ConsoleConfig
	Metrics   MetricsConfig
}

type DatabaseConfig struct {
	URL            string
	ConnectTimeout time.Duration
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig controls the console session cookie and its persisted record.
type SessionConfig struct {
	CookieName   string
	Secret       string
	TTL          time.Duration
	SealKey      string
	SecureCookie bool
	MemoryLimit  int
}

// BackendConfig points the console at the lab backend REST API.
type BackendConfig struct {
	BaseURL          string
	Timeout          time.Duration
	ProfileTimeout   time.Duration
	BreakerFailures  int
	BreakerOpenFor   time.Duration
	BreakerHalfOpenN int
}

// CheckoutConfig describes the hosted checkout redirect.
type CheckoutConfig struct {
	RedirectTemplate string
}

// CatalogueConfig governs catalogue read caching.
type CatalogueConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	LocalSize    int
}

// ViewerConfig signs links to the embedded VM viewer.
type ViewerConfig struct {
	LinkSecret string
	LinkTTL    time.Duration
}

// AuditConfig toggles the persisted audit trail.
type AuditConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ConsoleConfig locates the built SPA bundle served behind the route guard.
type ConsoleConfig struct {
	StaticDir string
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:            v.GetString("DATABASE_URL"),
		ConnectTimeout: parseDuration(v.GetString("DB_CONNECT_TIMEOUT"), 5*time.Second),
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSL_MODE"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Session = SessionConfig{
		CookieName:   v.GetString("SESSION_COOKIE_NAME"),
		Secret:       v.GetString("SESSION_SECRET"),
		TTL:          parseDuration(v.GetString("SESSION_TTL"), 24*time.Hour),
		SealKey:      v.GetString("SESSION_SEAL_KEY"),
		SecureCookie: v.GetBool("SESSION_SECURE_COOKIE"),
		MemoryLimit:  v.GetInt("SESSION_MEMORY_LIMIT"),
	}

	cfg.Backend = BackendConfig{
		BaseURL:          strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
		Timeout:          parseDuration(v.GetString("BACKEND_TIMEOUT"), 15*time.Second),
		ProfileTimeout:   parseDuration(v.GetString("BACKEND_PROFILE_TIMEOUT"), 10*time.Second),
		BreakerFailures:  v.GetInt("BACKEND_BREAKER_FAILURES"),
		BreakerOpenFor:   parseDuration(v.GetString("BACKEND_BREAKER_OPEN_FOR"), 30*time.Second),
		BreakerHalfOpenN: v.GetInt("BACKEND_BREAKER_HALF_OPEN_REQUESTS"),
	}

	cfg.Checkout = CheckoutConfig{
		RedirectTemplate: v.GetString("CHECKOUT_REDIRECT_TEMPLATE"),
	}

	cfg.Catalogue = CatalogueConfig{
		CacheEnabled: v.GetBool("CATALOGUE_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("CATALOGUE_CACHE_TTL"), time.Minute),
		LocalSize:    v.GetInt("CATALOGUE_LOCAL_CACHE_SIZE"),
	}

	cfg.Viewer = ViewerConfig{
		LinkSecret: v.GetString("VIEWER_LINK_SECRET"),
		LinkTTL:    parseDuration(v.GetString("VIEWER_LINK_TTL"), 15*time.Minute),
	}

	cfg.Audit = AuditConfig{
		Enabled:    v.GetBool("ENABLE_AUDIT"),
		Workers:    v.GetInt("AUDIT_WORKERS"),
		MaxRetries: v.GetInt("AUDIT_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("AUDIT_RETRY_DELAY"), 2*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Console = ConsoleConfig{StaticDir: v.GetString("CONSOLE_STATIC_DIR")}
	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_CONNECT_TIMEOUT", "5s")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "golabing_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_COOKIE_NAME", "golabing_session")
	v.SetDefault("SESSION_SECRET", "dev_session_secret")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SESSION_SEAL_KEY", "")
	v.SetDefault("SESSION_SECURE_COOKIE", false)
	v.SetDefault("SESSION_MEMORY_LIMIT", 10000)

	v.SetDefault("BACKEND_URL", "http://localhost:3000")
	v.SetDefault("BACKEND_TIMEOUT", "15s")
	v.SetDefault("BACKEND_PROFILE_TIMEOUT", "10s")
	v.SetDefault("BACKEND_BREAKER_FAILURES", 5)
	v.SetDefault("BACKEND_BREAKER_OPEN_FOR", "30s")
	v.SetDefault("BACKEND_BREAKER_HALF_OPEN_REQUESTS", 3)

	v.SetDefault("CHECKOUT_REDIRECT_TEMPLATE", "https://checkout.stripe.com/c/pay/{sessionId}")

	v.SetDefault("CATALOGUE_CACHE_ENABLED", true)
	v.SetDefault("CATALOGUE_CACHE_TTL", "1m")
	v.SetDefault("CATALOGUE_LOCAL_CACHE_SIZE", 16)

	v.SetDefault("VIEWER_LINK_SECRET", "dev_viewer_secret")
	v.SetDefault("VIEWER_LINK_TTL", "15m")

	v.SetDefault("ENABLE_AUDIT", false)
	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
	v.SetDefault("AUDIT_RETRY_DELAY", "2s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CONSOLE_STATIC_DIR", "")
	v.SetDefault("ENABLE_METRICS", true)
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
