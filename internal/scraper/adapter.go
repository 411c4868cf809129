package scraper

import (
	"context"
	"strings"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/domain/listing"
)

// Adapter extracts raw candidates from one external source. Implementations
// never touch storage or the run ledger.
type Adapter interface {
	Name() string
	Kind() listing.Kind
	Scrape(ctx context.Context) ([]listing.Candidate, error)
}

// Config is the immutable per-source configuration handed to a constructor.
type Config struct {
	BaseURL         string
	MaxItems        int
	RateLimitMin    time.Duration
	RateLimitRandom time.Duration
}

// ConfigFor resolves the configuration for one source: built-in base URL,
// then env defaults, then the sources file [defaults], then [sources.<id>].
func ConfigFor(id, baseURL string, env config.ScraperConfig, file config.SourcesFile) Config {
	cfg := Config{
		BaseURL:         baseURL,
		MaxItems:        env.MaxItems,
		RateLimitMin:    env.RateLimitMin,
		RateLimitRandom: env.RateLimitRandom,
	}
	cfg = cfg.overlay(file.Defaults)
	if o, ok := file.Source(id); ok {
		cfg = cfg.overlay(o)
	}
	return cfg
}

func (c Config) overlay(o config.SourceOverride) Config {
	if u := strings.TrimSpace(o.BaseURL); u != "" {
		c.BaseURL = u
	}
	if o.MaxItems != nil {
		c.MaxItems = *o.MaxItems
	}
	if o.RateLimitMinMs != nil {
		c.RateLimitMin = time.Duration(*o.RateLimitMinMs) * time.Millisecond
	}
	if o.RateLimitRandomMs != nil {
		c.RateLimitRandom = time.Duration(*o.RateLimitRandomMs) * time.Millisecond
	}
	return c
}

// capItems truncates to MaxItems when it is positive.
func (c Config) capItems(in []listing.Candidate) []listing.Candidate {
	if c.MaxItems > 0 && len(in) > c.MaxItems {
		return in[:c.MaxItems]
	}
	return in
}

// SourceInfo describes a registered adapter for the admin API and CLI.
type SourceInfo struct {
	Name     string       `json:"name"`
	Kind     listing.Kind `json:"kind"`
	Display  string       `json:"display_name,omitempty"`
	BaseURL  string       `json:"base_url,omitempty"`
	MaxItems int          `json:"max_items"`
}

// Describer is implemented by adapters that can report their configuration.
type Describer interface {
	Describe() SourceInfo
}
