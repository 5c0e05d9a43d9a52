package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds shared runtime configuration for the API and indexer services.
type Config struct {
	Env         string
	HTTPPort    string
	MetricsAddr string

	Network       string
	NodeURL       string
	ModuleAddress string
	ModuleName    string

	SignerURL   string
	SignerToken string

	RequestTimeout     time.Duration
	ConfirmTimeout     time.Duration
	ConfirmPollInitial time.Duration
	ConfirmPollMax     time.Duration

	JobIDStrategy string
	JobIDOffset   uint64

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RateLimitCapacity int
	RateLimitRefill   float64

	PostgresDSN string

	ResyncSchedule string

	SnapshotDir         string
	SnapshotKey         string
	SnapshotS3Bucket    string
	SnapshotS3Region    string
	SnapshotS3Endpoint  string
	SnapshotS3PathStyle bool
}

// Default module the marketplace contract is published under on testnet.
const DefaultModuleAddress = "0x67a0b9610a3bf37d01c1afe210205182dff24aec562297bc82d7a15d9503c52e"

// Load reads configuration from environment variables with sane defaults for local development.
func Load() Config {
	return Config{
		Env:                 getEnv("APP_ENV", "dev"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		MetricsAddr:         getEnv("METRICS_ADDR", ":9090"),
		Network:             getEnv("APTOS_NETWORK", "testnet"),
		NodeURL:             getEnv("APTOS_NODE_URL", ""),
		ModuleAddress:       getEnv("MODULE_ADDRESS", DefaultModuleAddress),
		ModuleName:          getEnv("MODULE_NAME", "FreelanceMarketplace"),
		SignerURL:           getEnv("SIGNER_URL", "http://localhost:8090"),
		SignerToken:         getEnv("SIGNER_TOKEN", ""),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		ConfirmTimeout:      getEnvDuration("CONFIRM_TIMEOUT", 0),
		ConfirmPollInitial:  getEnvDuration("CONFIRM_POLL_INITIAL", 250*time.Millisecond),
		ConfirmPollMax:      getEnvDuration("CONFIRM_POLL_MAX", 5*time.Second),
		JobIDStrategy:       getEnv("JOB_ID_STRATEGY", "sequential"),
		JobIDOffset:         getEnvUint("JOB_ID_OFFSET", 1000),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		RateLimitCapacity:   getEnvInt("RATE_LIMIT_CAPACITY", 10),
		RateLimitRefill:     getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 0.1),
		PostgresDSN:         getEnv("POSTGRES_DSN", ""),
		ResyncSchedule:      getEnv("RESYNC_SCHEDULE", "@every 30s"),
		SnapshotDir:         getEnv("SNAPSHOT_DIR", "./output"),
		SnapshotKey:         getEnv("SNAPSHOT_KEY", "jobs/all.json"),
		SnapshotS3Bucket:    getEnv("SNAPSHOT_S3_BUCKET", ""),
		SnapshotS3Region:    getEnv("SNAPSHOT_S3_REGION", "us-east-1"),
		SnapshotS3Endpoint:  getEnv("SNAPSHOT_S3_ENDPOINT", ""),
		SnapshotS3PathStyle: getEnvBool("SNAPSHOT_S3_PATH_STYLE", false),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvUint(key string, def uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseUint(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
