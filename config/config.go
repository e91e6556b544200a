// Package config provides application configuration management.
package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	minProbeTimeout = 5 * time.Second
	maxProbeTimeout = 10 * time.Second
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerPort string
	APIToken   string

	// Backend job/config service
	BackendBaseURL string
	ProxyTimeout   time.Duration

	// Gerrit probing
	GerritProbeTimeout time.Duration

	// Persistence
	StatePath       string
	DataStoreDriver string
	DataStoreDSN    string
	HistoryLimit    int

	// Retention sweep
	HistoryRetention time.Duration
	SweepInterval    time.Duration

	// Redis / events configuration
	RedisAddr        string
	RedisUsername    string
	RedisPassword    string
	RedisDB          int
	RedisTLSEnabled  bool
	RedisTLSInsecure bool
	EventsChannel    string
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped and existing variables win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			log.Printf("Failed to load env file %s: %v", path, err)
		}
	}
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	statePath := getEnv("STATE_PATH", "/app/state")
	dataStoreDriver := getEnv("DATASTORE_DRIVER", "sqlite")
	dataStoreDSN := getEnv("DATASTORE_DSN", "")
	if dataStoreDriver == "postgres" && dataStoreDSN == "" {
		dataStoreDSN = os.Getenv("POSTGRES_DSN")
	}
	if dataStoreDSN == "" && dataStoreDriver == "sqlite" {
		dataStoreDSN = filepath.Join(statePath, "repo-gateway.db")
	}

	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "3000"),
		APIToken:           os.Getenv("GATEWAY_API_TOKEN"),
		BackendBaseURL:     strings.TrimRight(getEnv("SERVER_BASE_URL", "http://localhost:8001"), "/"),
		ProxyTimeout:       getEnvDuration("PROXY_TIMEOUT", 60*time.Second),
		GerritProbeTimeout: clampDuration(getEnvDuration("GERRIT_PROBE_TIMEOUT", 8*time.Second), minProbeTimeout, maxProbeTimeout),
		StatePath:          statePath,
		DataStoreDriver:    dataStoreDriver,
		DataStoreDSN:       dataStoreDSN,
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", 50),
		HistoryRetention:   getEnvDuration("HISTORY_RETENTION", 30*24*time.Hour),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", time.Hour),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisUsername:      getEnv("REDIS_USERNAME", ""),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisTLSEnabled:    getEnvBool("REDIS_TLS_ENABLED", false),
		RedisTLSInsecure:   getEnvBool("REDIS_TLS_INSECURE_SKIP_VERIFY", false),
		EventsChannel:      getEnv("EVENTS_CHANNEL", "repo-gateway-events"),
	}
}

func clampDuration(value, min, max time.Duration) time.Duration {
	if value < min {
		log.Printf("Duration %s below minimum, using %s", value, min)
		return min
	}
	if value > max {
		log.Printf("Duration %s above maximum, using %s", value, max)
		return max
	}
	return value
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s: %s, using default %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s: %s, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		default:
			log.Printf("Invalid bool for %s: %s, using default %t", key, value, defaultValue)
		}
	}
	return defaultValue
}
