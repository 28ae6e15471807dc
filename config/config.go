// Package config loads server settings from the environment, with
// command-line flags taking precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/payoff-engine/fx"
)

// Config holds application configuration
type Config struct {
	Port              int
	DBPath            string
	LogLevel          logrus.Level
	ReportingCurrency string
	FXMaxAgeDays      int
	FXFeedURL         string // empty disables fetching
	RedisAddr         string // empty = rates cached in SQLite
	SnapshotCron      string
	SimulationHorizon int
	AllowedOrigins    []string
}

// Load reads the environment, then applies flags from args (os.Args[1:]
// in production).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("payoff-server", flag.ContinueOnError)

	port := fs.String("port", getEnv("PORT", "8080"), "HTTP server port")
	dbPath := fs.String("db", getEnv("DB_PATH", "payoff.db"), "SQLite database path (\":memory:\" for in-memory)")
	logLevel := fs.String("log-level", getEnv("LOG_LEVEL", "info"), "log level")
	reporting := fs.String("currency", getEnv("REPORTING_CURRENCY", "CAD"), "reporting currency")
	maxAge := fs.String("fx-max-age", getEnv("FX_MAX_AGE_DAYS", "1"), "days a cached fx rate stays fresh")
	feed := fs.String("fx-feed", getEnv("FX_FEED_URL", fx.DefaultECBURL), "ECB reference-rate XML URL")
	redisAddr := fs.String("redis", getEnv("REDIS_ADDR", ""), "Redis address for the fx cache")
	snapshotCron := fs.String("snapshot-cron", getEnv("SNAPSHOT_CRON", "0 0 1 * *"), "cron spec for monthly snapshots")
	horizon := fs.String("horizon", getEnv("SIMULATION_HORIZON", "600"), "simulation horizon in months")
	origins := fs.String("origins", getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080"), "comma-separated CORS origins")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		DBPath:            *dbPath,
		ReportingCurrency: fx.NormalizeCurrency(*reporting),
		FXFeedURL:         strings.TrimSpace(*feed),
		RedisAddr:         strings.TrimSpace(*redisAddr),
		SnapshotCron:      strings.TrimSpace(*snapshotCron),
		AllowedOrigins:    splitList(*origins),
	}

	var err error
	if cfg.Port, err = parseInt("PORT", *port, 1, 65535); err != nil {
		return nil, err
	}
	if cfg.FXMaxAgeDays, err = parseInt("FX_MAX_AGE_DAYS", *maxAge, 0, 3650); err != nil {
		return nil, err
	}
	if cfg.SimulationHorizon, err = parseInt("SIMULATION_HORIZON", *horizon, 1, 1200); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = logrus.ParseLevel(*logLevel); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("DB_PATH is required")
	}
	if len(cfg.ReportingCurrency) != 3 {
		return nil, fmt.Errorf("REPORTING_CURRENCY must be a 3-letter ISO code, got %q", *reporting)
	}
	if cfg.SnapshotCron != "" {
		if _, err := cron.ParseStandard(cfg.SnapshotCron); err != nil {
			return nil, fmt.Errorf("SNAPSHOT_CRON: %w", err)
		}
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func parseInt(key, raw string, min, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d, got %d", key, min, max, n)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
