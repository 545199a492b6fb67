package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	Provider   ProviderConfig
	Worker     WorkerConfig
	Poller     PollerConfig
	Reconciler ReconcilerConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SystemToken  string // /internal 路由的共享令牌
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	Addr     string
	User     string
	Password string
	Database string
}

type ProviderConfig struct {
	NetworkName  string
	ContainerMem int64   // MB
	ContainerCPU float64 // CPU 核心数（如 0.5, 1, 2）
	AgentPort    int
	CallTimeout  time.Duration
	StopTimeout  int // 秒
	DefaultImage string
}

type WorkerConfig struct {
	Concurrency int
}

type PollerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

type ReconcilerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

type MetricsConfig struct {
	Addr string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
			SystemToken:  getEnv("SERVER_SYSTEM_TOKEN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Postgres: PostgresConfig{
			Addr:     getEnv("POSTGRES_ADDR", "localhost:5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "devspace"),
		},
		Provider: ProviderConfig{
			NetworkName:  getEnv("PROVIDER_NETWORK_NAME", "devspace-net"),
			ContainerMem: int64(getIntEnv("PROVIDER_CONTAINER_MEM_MB", 512)),
			ContainerCPU: getFloatEnv("PROVIDER_CONTAINER_CPU", 0.5),
			AgentPort:    getIntEnv("PROVIDER_AGENT_PORT", 8443),
			CallTimeout:  getDurationEnv("PROVIDER_CALL_TIMEOUT", 30*time.Second),
			StopTimeout:  getIntEnv("PROVIDER_STOP_TIMEOUT_SECONDS", 10),
			DefaultImage: getEnv("PROVIDER_DEFAULT_IMAGE", "devspace-workspace:latest"),
		},
		Worker: WorkerConfig{
			Concurrency: getIntEnv("WORKER_CONCURRENCY", 5),
		},
		Poller: PollerConfig{
			Interval: getDurationEnv("POLLER_INTERVAL", 2*time.Minute),
			Timeout:  getDurationEnv("POLLER_TIMEOUT", 90*time.Second),
		},
		Reconciler: ReconcilerConfig{
			Interval: getDurationEnv("RECONCILER_INTERVAL", 5*time.Minute),
			Timeout:  getDurationEnv("RECONCILER_TIMEOUT", time.Minute),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
