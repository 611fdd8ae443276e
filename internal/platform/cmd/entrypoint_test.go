package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	DBPath string `env:"NEIGHBORHELP_CMD_TEST_DB_PATH" envDefault:"data/test.db"`
	Mode   string `env:"NEIGHBORHELP_CMD_TEST_MODE" envDefault:"server"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("NEIGHBORHELP_CMD_TEST_DB_PATH", "env.db")
	t.Setenv("NEIGHBORHELP_CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "db path")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")

	if err := ParseArgs(fs, []string{"-db-path", "flag.db"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfg.DBPath != "flag.db" {
		t.Fatalf("db path = %q, want flag value", cfg.DBPath)
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("mode = %q, want env value", cfg.Mode)
	}
}

func TestParseConfigFromArgsAppliesFlagsLast(t *testing.T) {
	t.Setenv("NEIGHBORHELP_CMD_TEST_DB_PATH", "env.db")

	cfg := testConfig{}
	fs := flag.NewFlagSet("combined", flag.ContinueOnError)
	fs.StringVar(&cfg.DBPath, "db-path", "", "db path")
	if err := ParseConfigFromArgs(&cfg, fs, []string{"-db-path", "override.db"}); err != nil {
		t.Fatalf("parse config and args: %v", err)
	}
	if cfg.DBPath != "override.db" {
		t.Fatalf("db path = %q, want override.db", cfg.DBPath)
	}
	if cfg.Mode != "server" {
		t.Fatalf("mode = %q, want default server", cfg.Mode)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceCollab, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("NEIGHBORHELP_OTEL_ENABLED", "false")
	want := errors.New("boom")

	err := RunWithTelemetry(context.Background(), ServiceMaintenance, func(context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
