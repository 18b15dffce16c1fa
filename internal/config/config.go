// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/matthewbaird/gridedit/internal/logger"
)

// Config holds process-wide settings.
type Config struct {
	Port          int
	DatabaseURL   string
	SchemaFile    string // empty means the embedded demo schema
	SeedDemo      bool
	SessionMaxAge time.Duration
	SessionIdle   time.Duration
	EventBuffer   int
	LogMode       string
	// AdminURL points editor sessions at a remote admin API instead of
	// this process's store.
	AdminURL   string
	AdminToken string
}

// Load reads the environment, falling back to defaults for anything unset
// or unparsable.
func Load(log *logger.Logger) Config {
	return Config{
		Port:          GetEnvAsInt("PORT", 8080, log),
		DatabaseURL:   GetEnv("DATABASE_URL", "file:gridedit.db?_pragma=foreign_keys(1)", log),
		SchemaFile:    GetEnv("SCHEMA_FILE", "", log),
		SeedDemo:      GetEnvAsBool("SEED_DEMO", false, log),
		SessionMaxAge: time.Duration(GetEnvAsInt("SESSION_MAX_AGE_MINUTES", 24*60, log)) * time.Minute,
		SessionIdle:   time.Duration(GetEnvAsInt("SESSION_IDLE_MINUTES", 30, log)) * time.Minute,
		EventBuffer:   GetEnvAsInt("EVENT_BUFFER", 256, log),
		LogMode:       GetEnv("LOG_MODE", "development", log),
		AdminURL:      GetEnv("ADMIN_API_URL", "", log),
		AdminToken:    GetEnv("ADMIN_API_TOKEN", "", nil),
	}
}

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	if log != nil {
		log.Debug("Environment variable found, using environment", "environment", val)
	}
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	if log != nil {
		log = log.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as int, using default",
				"provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return i
}

func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(valStr)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as bool, using default",
				"env_var", key, "provided", valStr, "default", defaultVal)
		}
		return defaultVal
	}
	return b
}
