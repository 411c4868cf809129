package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Scraper  ScraperConfig
	Schedule ScheduleConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration

	// SlowQueryThreshold enables statement logging for queries that take
	// at least this long. Zero disables it.
	SlowQueryThreshold time.Duration

	// MigrationsDir overrides the migrations compiled into the binary.
	MigrationsDir string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	TTL      time.Duration
}

type JWTConfig struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
}

// ScraperConfig holds the defaults every adapter starts from.
type ScraperConfig struct {
	MaxItems        int
	RateLimitMin    time.Duration
	RateLimitRandom time.Duration
	AdapterTimeout  time.Duration
	UserAgent       string
	Headless        bool
	SourcesFile     string
}

type ScheduleConfig struct {
	Enabled         bool
	JobsSpec        string
	EventsSpec      string
	ExpireSpec      string
	ExpireAfterDays int
	RunOnStart      bool
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

var errInvalidEnv = errors.New("invalid environment variables")

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

func Load() (Config, error) {
	cfg := Config{}

	var missing []string
	var invalid []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}
	optInt := func(key string, def int) int {
		v := opt(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			invalid = append(invalid, key)
			return def
		}
		return n
	}
	optMillis := func(key string, def int) time.Duration {
		return time.Duration(optInt(key, def)) * time.Millisecond
	}
	optDuration := func(key string, def time.Duration) time.Duration {
		v := opt(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			invalid = append(invalid, key)
			return def
		}
		return d
	}
	optBool := func(key string, def bool) bool {
		v := opt(key)
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return b
	}
	optDefault := func(key, def string) string {
		if v := opt(key); v != "" {
			return v
		}
		return def
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    optDefault("HTTP_PORT", "8080"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:     req("DB_HOST"),
		DBPort:     optDefault("DB_PORT", "5432"),
		DBName:     req("DB_NAME"),
		DBUser:     req("DB_USER"),
		DBPassword: opt("DB_PASSWORD"),
		DBSSLMode:  optDefault("DB_SSL_MODE", "disable"),

		ConnectTimeout:        optDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		PoolMaxConns:          int32(optInt("DB_POOL_MAX_CONNS", 10)),
		PoolMinConns:          int32(optInt("DB_POOL_MIN_CONNS", 1)),
		PoolMaxConnLifetime:   optDuration("DB_POOL_MAX_CONN_LIFETIME", time.Hour),
		PoolMaxConnIdleTime:   optDuration("DB_POOL_MAX_CONN_IDLE_TIME", 30*time.Minute),
		PoolHealthCheckPeriod: optDuration("DB_POOL_HEALTH_CHECK_PERIOD", time.Minute),
		SlowQueryThreshold:    optDuration("DB_SLOW_QUERY_THRESHOLD", 500*time.Millisecond),

		MigrationsDir: opt("DB_MIGRATIONS_DIR"),
	}

	cfg.Redis = RedisConfig{
		Host:     optDefault("REDIS_HOST", "localhost"),
		Port:     optDefault("REDIS_PORT", "6379"),
		Password: opt("REDIS_PASSWORD"),
		TTL:      time.Duration(optInt("REDIS_TTL", 600)) * time.Second,
	}

	cfg.JWT = JWTConfig{
		Secret:    req("JWT_SECRET"),
		Issuer:    optDefault("JWT_ISSUER", "feedsync"),
		AccessTTL: optDuration("JWT_ACCESS_TTL", time.Hour),
	}

	cfg.Scraper = ScraperConfig{
		MaxItems:        optInt("SCRAPER_MAX_ITEMS", 50),
		RateLimitMin:    optMillis("SCRAPER_RATE_LIMIT_MIN_MS", 1000),
		RateLimitRandom: optMillis("SCRAPER_RATE_LIMIT_RANDOM_MS", 2000),
		AdapterTimeout:  optDuration("SCRAPER_ADAPTER_TIMEOUT", 2*time.Minute),
		UserAgent:       optDefault("SCRAPER_USER_AGENT", DefaultUserAgent),
		Headless:        optBool("SCRAPER_HEADLESS", false),
		SourcesFile:     opt("SCRAPER_SOURCES_FILE"),
	}

	cfg.Schedule = ScheduleConfig{
		Enabled:         optBool("SCHEDULE_ENABLED", true),
		JobsSpec:        optDefault("SCRAPE_JOBS_CRON", "0 */6 * * *"),
		EventsSpec:      optDefault("SCRAPE_EVENTS_CRON", "30 5 * * *"),
		ExpireSpec:      optDefault("EXPIRE_JOBS_CRON", "15 3 * * *"),
		ExpireAfterDays: optInt("EXPIRE_JOBS_AFTER_DAYS", 45),
		RunOnStart:      optBool("SCRAPE_ON_START", false),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errInvalidEnv, strings.Join(invalid, ", "))
	}

	return cfg, nil
}
