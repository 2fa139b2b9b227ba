// Package config loads runtime settings for the relay from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds the application configuration.
type Config struct {
	Port           string
	AllowedOrigins []string

	StoreDriver   string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	BcryptCost      int
	SendBufferSize  int
	JWTSecret       string
	ShutdownTimeout time.Duration

	JetStreamDir string
}

// Load reads the configuration from the environment, applying defaults.
func Load() Config {
	mongoURI := getEnv("MONGODB_URI", "")

	driver := strings.ToLower(getEnv("STORE_DRIVER", ""))
	if driver == "" {
		driver = DriverSQLite
		if mongoURI != "" {
			driver = DriverMongo
		}
	}

	return Config{
		Port:            getEnv("PORT", "3001"),
		AllowedOrigins:  parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		StoreDriver:     driver,
		SQLitePath:      getEnv("DB_PATH", "chat.db"),
		MongoURI:        mongoURI,
		MongoDatabase:   getEnv("MONGODB_DATABASE", "chat"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		CacheTTL:        getEnvDuration("CACHE_TTL", 5*time.Minute),
		BcryptCost:      getEnvInt("BCRYPT_COST", 10),
		SendBufferSize:  getEnvInt("WS_SEND_BUFFER", 256),
		JWTSecret:       getEnv("IDENTITY_JWT_SECRET", ""),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		JetStreamDir:    getEnv("JETSTREAM_DIR", "/tmp/echowave"),
	}
}

// CORSOrigins returns the allowed origins in the comma-joined form Fiber expects.
func (c Config) CORSOrigins() string {
	return strings.Join(c.AllowedOrigins, ",")
}

func parseOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		origins = append(origins, strings.TrimSuffix(origin, "/"))
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
