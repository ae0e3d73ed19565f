package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Secret store backends.
const (
	SecretBackendFile  = "file"
	SecretBackendRedis = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Secret   SecretConfig
	Geo      GeoConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int

	// ProxyHeader names the header carrying the client IP, e.g.
	// X-Forwarded-For. Empty means the socket address is used.
	ProxyHeader    string
	TrustedProxies []string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	TokenTTL   time.Duration
	BcryptCost int
}

// SecretConfig controls where the signing secret lives and how it rotates.
type SecretConfig struct {
	Backend          string
	Path             string
	RedisKey         string
	RotationEnabled  bool
	RotationInterval time.Duration
	Length           int
}

// GeoConfig controls IP geolocation of login attempts.
type GeoConfig struct {
	Enabled  bool
	IPAPIURL string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rotationInterval, err := getEnvAsDuration("ROTATION_INTERVAL", 3*time.Minute)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := getEnvAsDuration("AUTH_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	geoTimeout, err := getEnvAsDuration("GEO_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	geoCacheTTL, err := getEnvAsDuration("GEO_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "5000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			ProxyHeader:           os.Getenv("APP_PROXY_HEADER"),
			TrustedProxies:        getEnvAsList("APP_TRUSTED_PROXIES"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			TokenTTL:   tokenTTL,
			BcryptCost: getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Secret: SecretConfig{
			Backend:          strings.ToLower(getEnv("SECRET_STORE_BACKEND", SecretBackendFile)),
			Path:             getEnv("SECRET_STORE_PATH", "secret.env"),
			RedisKey:         getEnv("SECRET_STORE_REDIS_KEY", "auth:signing-secret"),
			RotationEnabled:  getEnvAsBool("ROTATION_ENABLED", true),
			RotationInterval: rotationInterval,
			Length:           getEnvAsInt("SECRET_LENGTH", 64),
		},
		Geo: GeoConfig{
			Enabled:  getEnvAsBool("GEO_ENABLED", true),
			IPAPIURL: getEnv("GEO_IPAPI_URL", "http://ip-api.com/json"),
			Timeout:  geoTimeout,
			CacheTTL: geoCacheTTL,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Secret.Backend {
	case SecretBackendFile:
		if c.Secret.Path == "" {
			return fmt.Errorf("SECRET_STORE_PATH is required for the file backend")
		}
	case SecretBackendRedis:
	default:
		return fmt.Errorf("unknown SECRET_STORE_BACKEND %q", c.Secret.Backend)
	}
	if c.Secret.RotationInterval <= 0 {
		return fmt.Errorf("ROTATION_INTERVAL must be positive")
	}
	if c.Secret.Length < 64 {
		return fmt.Errorf("SECRET_LENGTH must be at least 64, got %d", c.Secret.Length)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
