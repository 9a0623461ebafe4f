package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	ReqTimeout  time.Duration
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	JWTSecret     string
	WebhookSecret string

	MonobankBase   string
	MonobankToken  string
	MonobankRPS    int
	GatewayTimeout time.Duration
	RedirectURL    string
	WebhookURL     string

	RetrySchedule    string
	RetryWorkers     int
	RetryBatch       int
	RetryMaxAttempts int
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Real environment variables win.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env")
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		ReqTimeout:  time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/hotel?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", ""), // empty disables the availability cache
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("AVAILABILITY_CACHE_TTL_SECONDS", 60)) * time.Second,

		JWTSecret:     env("JWT_SECRET", ""),
		WebhookSecret: env("WEBHOOK_SECRET", ""),

		MonobankBase:   env("MONOBANK_BASE_URL", "https://api.monobank.ua"),
		MonobankToken:  env("MONOBANK_TOKEN", ""),
		MonobankRPS:    atoi("MONOBANK_RPS", 5),
		GatewayTimeout: time.Duration(atoi("GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second,
		RedirectURL:    env("PAYMENT_REDIRECT_URL", ""),
		WebhookURL:     env("PAYMENT_WEBHOOK_URL", ""),

		RetrySchedule:    env("RETRY_SCHEDULE", "@every 5m"),
		RetryWorkers:     atoi("RETRY_WORKERS", 4),
		RetryBatch:       atoi("RETRY_BATCH", 100),
		RetryMaxAttempts: atoi("RETRY_MAX_ATTEMPTS", 8),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty; authenticated endpoints will reject every request")
	}
	if c.WebhookSecret == "" {
		log.Warn().Msg("WEBHOOK_SECRET is empty; payment callbacks will be rejected")
	}
	if c.MonobankToken == "" {
		log.Warn().Msg("MONOBANK_TOKEN is empty; payment links are disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
