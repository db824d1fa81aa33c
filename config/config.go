/*
Package config loads server configuration from the environment.

PURPOSE:
  Central place for runtime configuration. Values come from environment
  variables, with a .env file loaded first when present so local
  development needs no exported shell state.

VARIABLES:
  PORT              HTTP server port (default: 8080)
  DB_PATH           SQLite database path (default: maintenance.db)
  LOG_LEVEL         logrus level: debug, info, warn, error (default: info)
  RECALC_CRON_SPEC  Cron expression for the scheduled full
                    recalculation (default: "0 3 * * *")

PRECEDENCE:
  Real environment variables win over .env entries; godotenv never
  overwrites an already-set variable.

SEE ALSO:
  - cmd/server/main.go: The only consumer
*/
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all server runtime settings.
type Config struct {
	Port           int
	DBPath         string
	LogLevel       logrus.Level
	RecalcCronSpec string
}

// Load reads configuration from the environment, consulting .env first.
func Load() (Config, error) {
	// Missing .env is fine; env vars alone are a complete configuration.
	_ = godotenv.Load()

	cfg := Config{
		Port:           8080,
		DBPath:         "maintenance.db",
		LogLevel:       logrus.InfoLevel,
		RecalcCronSpec: "0 3 * * *",
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := logrus.ParseLevel(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
		cfg.LogLevel = level
	}
	if v := os.Getenv("RECALC_CRON_SPEC"); v != "" {
		cfg.RecalcCronSpec = v
	}
	return cfg, nil
}
