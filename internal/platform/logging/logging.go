// Package logging builds the zap loggers used by collab binaries.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/finalProject2025/TP-sub000/internal/platform/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls log level and encoder.
type Config struct {
	Level string `env:"LEVEL"`
	Dev   bool   `env:"DEV"`
}

// ConfigFromEnv reads NEIGHBORHELP_LOG_LEVEL and NEIGHBORHELP_LOG_DEV.
// Development mode defaults to debug, otherwise info.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnvWithPrefix(config.EnvPrefix+"LOG_", &cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.Level) == "" {
		if cfg.Dev {
			cfg.Level = "debug"
		} else {
			cfg.Level = "info"
		}
	}
	return cfg, nil
}

func levelFromString(l string) (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(l)))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parse log level %q: %w", l, err)
	}
	return lvl, nil
}

// New returns a console logger in development or a JSON logger on stdout.
func New(cfg Config) (*zap.Logger, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// FromEnv combines ConfigFromEnv and New.
func FromEnv() (*zap.Logger, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}
