package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// IdentitySecret signs identity-verification hashes and the identity
	// tokens the auth provider presents on behalf of end users.
	IdentitySecret string

	// ProvisioningSecret authenticates the auth provider's user-creation
	// events pushed to /events/identity.
	ProvisioningSecret string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RateLimit RateLimitConfig
}

// RateLimitConfig configures the per-organization message send limiter.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SendRate     float64
	SendBurst    int
	FreeDailyCap int64
}

// Module provides configuration to the fx graph.
var Module = fx.Provide(Load)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:            getenv("APP_SERVICE", "textlane"),
		AppVersion:         getenv("APP_VERSION", "0.1.0"),
		Environment:        getenv("ENVIRONMENT", "development"),
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		IdentitySecret:     strings.TrimSpace(getenv("IDENTITY_VERIFICATION_SECRET", "")),
		ProvisioningSecret: strings.TrimSpace(getenv("PROVISIONING_WEBHOOK_SECRET", "")),
		OTLPEndpoint:       getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:             getenv("DATABASE_TYPE", "postgres"),
		DBHost:             getenv("DATABASE_HOST", "localhost"),
		DBPort:             getenv("DATABASE_PORT", "5432"),
		DBName:             getenv("DATABASE_NAME", "textlane"),
		DBUser:             getenv("DATABASE_USER", "postgres"),
		DBPassword:         getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:          getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:      getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:      getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime:  getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			SendRate:      getenvFloat("RATE_LIMIT_SEND_RATE", 1),
			SendBurst:     getenvInt("RATE_LIMIT_SEND_BURST", 1),
			FreeDailyCap:  int64(getenvInt("RATE_LIMIT_FREE_DAILY_CAP", 100)),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
