package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timnhac.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config must validate: %v", err)
	}
	if cfg.Download.Quality != 192 || cfg.Download.Concurrency != 2 {
		t.Errorf("Unexpected defaults: %+v", cfg.Download)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[download]
output_dir = "nhac"
quality = 256
client = "android"
skip_existing = true
min_duration = 60
max_duration = 600

[scoring]
untrusted_keywords = ["karaoke"]

[history]
enabled = false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Download.OutputDir != "nhac" || cfg.Download.Quality != 256 {
		t.Errorf("Overrides not applied: %+v", cfg.Download)
	}
	if cfg.Download.Limit != 5 {
		t.Errorf("Omitted fields must keep defaults, limit = %d", cfg.Download.Limit)
	}
	if cfg.History.Enabled {
		t.Error("history.enabled override not applied")
	}

	vocab := cfg.Vocabulary()
	if len(vocab.UntrustedKeywords) != 1 || vocab.UntrustedKeywords[0] != "karaoke" {
		t.Errorf("Configured vocabulary not used: %v", vocab.UntrustedKeywords)
	}
	if len(vocab.TrustedArtists) == 0 {
		t.Error("Unset vocabulary lists must keep built-ins")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Missing config file must surface an error")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeConfig(t, "[download\nquality=")
	if _, err := Load(path); err == nil {
		t.Error("Malformed TOML must surface an error")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero limit", func(c *Config) { c.Download.Limit = 0 }, "limit"},
		{"quality too low", func(c *Config) { c.Download.Quality = 16 }, "quality"},
		{"zero concurrency", func(c *Config) { c.Download.Concurrency = 0 }, "concurrency"},
		{"bad client", func(c *Config) { c.Download.Client = "ios" }, "client"},
		{"inverted bounds", func(c *Config) { c.Download.MinDuration = 300; c.Download.MaxDuration = 120 }, "min_duration"},
		{"history without path", func(c *Config) { c.History.Enabled = true; c.History.Path = "" }, "history.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Error %q does not mention %q", err, tt.want)
			}
		})
	}
}
