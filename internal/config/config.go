package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Logger LoggerConfig

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

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Protocol  ProtocolConfig
	Scheduler SchedulerConfig
}

type LoggerConfig struct {
	Level string
}

// ProtocolConfig carries bootstrap defaults for the global protocol record.
type ProtocolConfig struct {
	AuthorityWallet string
	FeeBps          int64
	OracleFeed      string
	FeeMint         string
	StakePool       string
	StakeRateBps    int64
}

type SchedulerConfig struct {
	RunInterval      time.Duration
	BatchSize        int
	PaymentBatchSize int
	JobTimeout       time.Duration
	EnabledJobs      []string
}

// Load reads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "subly"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "subly"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Protocol: ProtocolConfig{
			AuthorityWallet: strings.TrimSpace(getenv("PROTOCOL_AUTHORITY_WALLET", "")),
			FeeBps:          getenvInt64("PROTOCOL_FEE_BPS", 100),
			OracleFeed:      getenv("ORACLE_PRICE_FEED", "native-usd"),
			FeeMint:         getenv("FEE_DENOMINATION_MINT", "usd-stable"),
			StakePool:       getenv("STAKE_POOL_ID", "yield-pool"),
			StakeRateBps:    getenvInt64("STAKE_POOL_RATE_BPS", 10_200),
		},
		Scheduler: SchedulerConfig{
			RunInterval:      getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			BatchSize:        getenvInt("SCHEDULER_BATCH_SIZE", 100),
			PaymentBatchSize: getenvInt("SCHEDULER_PAYMENT_BATCH_SIZE", 200),
			JobTimeout:       getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Second),
			EnabledJobs:      getenvList("SCHEDULER_ENABLED_JOBS"),
		},
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
