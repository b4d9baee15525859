// Package config loads the optional TOML configuration file and supplies
// repository defaults for everything it omits.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/nhatdv/timnhac/internal/scoring"
)

// Download contains retrieval defaults shared by the get and batch commands.
type Download struct {
	OutputDir          string `toml:"output_dir"`
	Limit              int    `toml:"limit"`
	Quality            int    `toml:"quality"`
	Concurrency        int    `toml:"concurrency"`
	Client             string `toml:"client"`
	CookiesFromBrowser string `toml:"cookies_from_browser"`
	SkipExisting       bool   `toml:"skip_existing"`
	MinDuration        int    `toml:"min_duration"`
	MaxDuration        int    `toml:"max_duration"`
	UseAudioTier       bool   `toml:"use_audio_tier"`
	RefillOnPartial    bool   `toml:"refill_on_partial"`
	ClientFallback     bool   `toml:"client_fallback"`
}

// Scoring overrides the scorer's keyword sets. Empty lists keep the built-in
// vocabulary.
type Scoring struct {
	TrustedArtists    []string `toml:"trusted_artists"`
	UntrustedKeywords []string `toml:"untrusted_keywords"`
	StrongPenalties   []string `toml:"strong_penalties"`
	PromoTerms        []string `toml:"promo_terms"`
}

// History configures the download-history database.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Config struct {
	Download Download `toml:"download"`
	Scoring  Scoring  `toml:"scoring"`
	History  History  `toml:"history"`
}

const (
	defaultOutputDir   = "downloads"
	defaultLimit       = 5
	defaultQuality     = 192
	defaultConcurrency = 2
	defaultClient      = "web"
	defaultHistoryPath = "timnhac.sqlite3"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Download: Download{
			OutputDir:      defaultOutputDir,
			Limit:          defaultLimit,
			Quality:        defaultQuality,
			Concurrency:    defaultConcurrency,
			Client:         defaultClient,
			ClientFallback: true,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
	}
}

// Load reads the TOML file at path over the defaults and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	d := c.Download
	if d.Limit < 1 {
		return fmt.Errorf("download.limit must be at least 1, got %d", d.Limit)
	}
	if d.Quality < 32 || d.Quality > 320 {
		return fmt.Errorf("download.quality must be between 32 and 320 kbps, got %d", d.Quality)
	}
	if d.Concurrency < 1 {
		return fmt.Errorf("download.concurrency must be at least 1, got %d", d.Concurrency)
	}
	if d.Client != "web" && d.Client != "android" {
		return fmt.Errorf("download.client must be web or android, got %q", d.Client)
	}
	if d.MinDuration < 0 || d.MaxDuration < 0 {
		return fmt.Errorf("duration bounds must not be negative")
	}
	if d.MinDuration > 0 && d.MaxDuration > 0 && d.MinDuration > d.MaxDuration {
		return fmt.Errorf("download.min_duration %d exceeds max_duration %d", d.MinDuration, d.MaxDuration)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}

// Vocabulary returns the scorer vocabulary: configured lists where present,
// built-ins otherwise.
func (c *Config) Vocabulary() scoring.Vocabulary {
	vocab := scoring.DefaultVocabulary()
	if len(c.Scoring.TrustedArtists) > 0 {
		vocab.TrustedArtists = c.Scoring.TrustedArtists
	}
	if len(c.Scoring.UntrustedKeywords) > 0 {
		vocab.UntrustedKeywords = c.Scoring.UntrustedKeywords
	}
	if len(c.Scoring.StrongPenalties) > 0 {
		vocab.StrongPenalties = c.Scoring.StrongPenalties
	}
	if len(c.Scoring.PromoTerms) > 0 {
		vocab.PromoTerms = c.Scoring.PromoTerms
	}
	return vocab
}
