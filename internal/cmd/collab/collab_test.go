package collab

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("collab", flag.ContinueOnError)
	t.Setenv("NEIGHBORHELP_POSTAL_CODE_SECRET", "secret")
	t.Setenv("NEIGHBORHELP_COLLAB_PORT", "9095")

	cfg, err := ParseConfig(fs, []string{"-db-path", "/tmp/collab.db", "-sweep-interval", "1m"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9095 {
		t.Fatalf("port = %d, want 9095", cfg.Port)
	}
	if cfg.DBPath != "/tmp/collab.db" {
		t.Fatalf("db path = %q, want /tmp/collab.db", cfg.DBPath)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("sweep interval = %s, want 1m", cfg.SweepInterval)
	}
	if cfg.PostalCodeSecret != "secret" {
		t.Fatalf("secret = %q, want secret", cfg.PostalCodeSecret)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("collab", flag.ContinueOnError)
	t.Setenv("NEIGHBORHELP_POSTAL_CODE_SECRET", "secret")

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8095 || cfg.DBPath != "data/collab.db" || cfg.SweepInterval != 15*time.Minute {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestParseConfig_RequiresPostalCodeSecret(t *testing.T) {
	fs := flag.NewFlagSet("collab", flag.ContinueOnError)
	t.Setenv("NEIGHBORHELP_POSTAL_CODE_SECRET", "")

	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected missing secret error")
	}
}

func TestParseConfig_RejectsNegativeSweepInterval(t *testing.T) {
	fs := flag.NewFlagSet("collab", flag.ContinueOnError)
	t.Setenv("NEIGHBORHELP_POSTAL_CODE_SECRET", "secret")

	if _, err := ParseConfig(fs, []string{"-sweep-interval", "-1s"}); err == nil {
		t.Fatal("expected negative interval error")
	}
}
