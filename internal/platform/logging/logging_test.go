package logging

import (
	"os"
	"testing"

	"go.uber.org/zap/zapcore"
)

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	unsetEnv(t, "NEIGHBORHELP_LOG_LEVEL")
	unsetEnv(t, "NEIGHBORHELP_LOG_DEV")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("config from env: %v", err)
	}
	if cfg.Dev || cfg.Level != "info" {
		t.Fatalf("cfg = %+v, want production info", cfg)
	}
}

func TestConfigFromEnvDevDefaultsToDebug(t *testing.T) {
	unsetEnv(t, "NEIGHBORHELP_LOG_LEVEL")
	t.Setenv("NEIGHBORHELP_LOG_DEV", "true")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("config from env: %v", err)
	}
	if !cfg.Dev || cfg.Level != "debug" {
		t.Fatalf("cfg = %+v, want dev debug", cfg)
	}
}

func TestConfigFromEnvRejectsBadBool(t *testing.T) {
	t.Setenv("NEIGHBORHELP_LOG_DEV", "sometimes")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" WARN ": zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"":       zapcore.InfoLevel,
	}
	for raw, want := range cases {
		got, err := levelFromString(raw)
		if err != nil {
			t.Fatalf("levelFromString(%q): %v", raw, err)
		}
		if got != want {
			t.Errorf("levelFromString(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := levelFromString("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := New(Config{Level: "verbose"}); err == nil {
		t.Fatal("expected New to reject unknown level")
	}
}

func TestNewHonoursLevel(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Level: "warn"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("error should be enabled at warn level")
	}

	dev, err := New(Config{Level: "debug", Dev: true})
	if err != nil {
		t.Fatalf("new dev logger: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be enabled in dev logger")
	}
}
