// Package collab parses collab service flags and launches the engine runtime.
package collab

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	entrypoint "github.com/finalProject2025/TP-sub000/internal/platform/cmd"
	"github.com/finalProject2025/TP-sub000/internal/platform/timeouts"
	server "github.com/finalProject2025/TP-sub000/internal/services/collab/app"
	"go.uber.org/zap"
)

// Config holds collab command configuration.
type Config struct {
	Port             int           `env:"NEIGHBORHELP_COLLAB_PORT" envDefault:"8095"`
	DBPath           string        `env:"NEIGHBORHELP_COLLAB_DB_PATH" envDefault:"data/collab.db"`
	PostalCodeSecret string        `env:"NEIGHBORHELP_POSTAL_CODE_SECRET"`
	SweepInterval    time.Duration `env:"NEIGHBORHELP_COLLAB_SWEEP_INTERVAL" envDefault:"15m"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The collab gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The collab SQLite database path")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Period of the expiry sweep (0 disables it)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.PostalCodeSecret) == "" {
		return Config{}, errors.New("NEIGHBORHELP_POSTAL_CODE_SECRET is required")
	}
	if cfg.SweepInterval < 0 {
		return Config{}, fmt.Errorf("sweep interval must not be negative: %s", cfg.SweepInterval)
	}
	return cfg, nil
}

// Run starts the collab engine runtime.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	options := entrypoint.RunOptions{ShutdownTimeout: timeouts.Shutdown, Logger: logger}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceCollab, options, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Addr:             fmt.Sprintf(":%d", cfg.Port),
			DBPath:           cfg.DBPath,
			PostalCodeSecret: cfg.PostalCodeSecret,
			SweepInterval:    cfg.SweepInterval,
			Logger:           logger,
		})
	})
}
