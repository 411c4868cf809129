package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// SourceOverride fields are pointers so an unset key keeps the inherited
// value instead of zeroing it.
type SourceOverride struct {
	BaseURL           string `toml:"base_url"`
	MaxItems          *int   `toml:"max_items"`
	RateLimitMinMs    *int   `toml:"rate_limit_min_ms"`
	RateLimitRandomMs *int   `toml:"rate_limit_random_ms"`
	Enabled           *bool  `toml:"enabled"`
}

type SourcesFile struct {
	Defaults SourceOverride            `toml:"defaults"`
	Sources  map[string]SourceOverride `toml:"sources"`
}

func LoadSources(path string) (SourcesFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return SourcesFile{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return SourcesFile{}, fmt.Errorf("sources file %s: %w", path, err)
		}
		return SourcesFile{}, err
	}
	return ParseSources(b)
}

func ParseSources(data []byte) (SourcesFile, error) {
	var f SourcesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return SourcesFile{}, fmt.Errorf("parse sources file: %w", err)
	}
	for id, o := range f.Sources {
		if err := o.check(); err != nil {
			return SourcesFile{}, fmt.Errorf("sources.%s: %w", id, err)
		}
	}
	if err := f.Defaults.check(); err != nil {
		return SourcesFile{}, fmt.Errorf("defaults: %w", err)
	}
	return f, nil
}

func (o SourceOverride) check() error {
	for name, v := range map[string]*int{
		"max_items":            o.MaxItems,
		"rate_limit_min_ms":    o.RateLimitMinMs,
		"rate_limit_random_ms": o.RateLimitRandomMs,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// Source looks an id up case-insensitively.
func (f SourcesFile) Source(id string) (SourceOverride, bool) {
	if o, ok := f.Sources[id]; ok {
		return o, true
	}
	for k, o := range f.Sources {
		if strings.EqualFold(k, id) {
			return o, true
		}
	}
	return SourceOverride{}, false
}

func (f SourcesFile) Enabled(id string) bool {
	o, ok := f.Source(id)
	if !ok || o.Enabled == nil {
		return true
	}
	return *o.Enabled
}
