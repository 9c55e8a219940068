package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Driver     string
		Host       string
		Port       string
		User       string
		Password   string
		Name       string
		SSLMode    string
		MaxConns   int
		Timeout    time.Duration
		SQLitePath string
	}

	// Session configuration. Sessions are signed JWTs carried in a cookie
	// (browser pages) or an Authorization header (JSON API).
	Session struct {
		Secret       string
		TTL          time.Duration
		CookieName   string
		CookieSecure bool
	}

	// Redis pub/sub transport for the broadcast channel
	Redis struct {
		Enabled  bool
		URL      string
		Password string
		DB       int
		Channel  string
	}

	// Chat behaviour
	Chat struct {
		RecentLimit    int
		MaxRecentLimit int
		PublishTimeout time.Duration
		NameCacheTTL   time.Duration
		NameCacheSize  int
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Observability configuration
	Observability struct {
		Enabled     bool
		ServiceName string
	}

	// Web assets
	Web struct {
		TemplateDir       string
		OpenAPISchemaPath string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment without touching the singleton.
func Load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port)

	// Database config
	cfg.Database.Driver = getEnvString("DB_DRIVER", "postgres")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "realtime_chat")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)
	cfg.Database.SQLitePath = getEnvString("DB_SQLITE_PATH", "chat.db")

	// Session config
	cfg.Session.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
	cfg.Session.TTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.Session.CookieName = getEnvString("SESSION_COOKIE", "chat_session")
	cfg.Session.CookieSecure = getEnvBool("COOKIE_SECURE", false)

	// Redis config
	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", true)
	cfg.Redis.URL = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.Channel = getEnvString("CHAT_CHANNEL", "chat")

	// Chat config
	cfg.Chat.RecentLimit = getEnvInt("CHAT_RECENT_LIMIT", 50)
	cfg.Chat.MaxRecentLimit = getEnvInt("CHAT_MAX_RECENT_LIMIT", 200)
	cfg.Chat.PublishTimeout = getEnvDuration("CHAT_PUBLISH_TIMEOUT", 2*time.Second)
	cfg.Chat.NameCacheTTL = getEnvDuration("CHAT_NAME_CACHE_TTL", 10*time.Minute)
	cfg.Chat.NameCacheSize = getEnvInt("CHAT_NAME_CACHE_SIZE", 10000)

	// Security config
	cfg.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Observability config
	cfg.Observability.Enabled = getEnvBool("OTEL_ENABLED", false)
	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", "realtime-chat")

	// Web config
	cfg.Web.TemplateDir = getEnvString("TEMPLATE_DIR", "web/templates")
	cfg.Web.OpenAPISchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "api/openapi.yaml")

	return cfg
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
