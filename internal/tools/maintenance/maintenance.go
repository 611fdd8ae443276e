// Package maintenance runs one-shot collab maintenance tasks against the
// SQLite store.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/finalProject2025/TP-sub000/internal/platform/config"
	"github.com/finalProject2025/TP-sub000/internal/platform/timeouts"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/domain"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath     string        `env:"NEIGHBORHELP_COLLAB_DB_PATH"`
	Timeout    time.Duration `env:"NEIGHBORHELP_MAINTENANCE_TIMEOUT"`
	Sweep      bool
	Migrate    bool
	JSONOutput bool
	Verbose    bool
	// Now overrides the sweep clock, RFC3339. Empty means the current time.
	Now string
}

// ParseConfig parses env defaults and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "collab.db")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Maintenance
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to collab sqlite database (default: NEIGHBORHELP_COLLAB_DB_PATH or data/collab.db)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	fs.BoolVar(&cfg.Sweep, "sweep", false, "auto-close active posts past their deadline")
	fs.BoolVar(&cfg.Migrate, "migrate", false, "apply pending schema migrations and exit")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "log lifecycle events to stderr")
	fs.StringVar(&cfg.Now, "now", "", "RFC3339 time the sweep treats as now")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type report struct {
	Mode       string `json:"mode"`
	DBPath     string `json:"db_path"`
	Now        string `json:"now,omitempty"`
	AutoClosed int64  `json:"auto_closed"`
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Sweep == cfg.Migrate {
		return errors.New("exactly one of -sweep or -migrate is required")
	}
	now, err := parseNow(cfg.Now)
	if err != nil {
		return err
	}
	if cfg.Migrate && !now.IsZero() {
		return errors.New("-now only applies to -sweep")
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close collab store: %v\n", closeErr)
		}
	}()

	result := report{Mode: "migrate", DBPath: cfg.DBPath}
	if cfg.Sweep {
		logger := newLogger(errOut, cfg.Verbose)
		defer func() { _ = logger.Sync() }()

		opts := []domain.Option{domain.WithLogger(logger)}
		if !now.IsZero() {
			opts = append(opts, domain.WithClock(func() time.Time { return now }))
		}
		svc := domain.NewService(store, nil, opts...)
		changed, err := svc.SweepExpiredPosts(ctx)
		if err != nil {
			return fmt.Errorf("sweep expired posts: %w", err)
		}
		if now.IsZero() {
			now = time.Now().UTC()
		}
		result = report{Mode: "sweep", DBPath: cfg.DBPath, Now: now.Format(time.RFC3339), AutoClosed: changed}
	}

	if cfg.JSONOutput {
		return outputJSON(out, result)
	}
	printReport(out, result)
	return nil
}

func parseNow(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	now, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse -now: %w", err)
	}
	return now.UTC(), nil
}

func newLogger(errOut io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(errOut), level)
	return zap.New(core).Named("maintenance")
}

func outputJSON(out io.Writer, result report) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}

func printReport(out io.Writer, result report) {
	if result.Mode == "migrate" {
		fmt.Fprintf(out, "Schema is up to date in %s\n", result.DBPath)
		return
	}
	fmt.Fprintf(out, "Auto-closed %d expired posts in %s as of %s\n", result.AutoClosed, result.DBPath, result.Now)
}

func openStore(path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("db path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open collab sqlite store: %w", err)
	}
	return store, nil
}
