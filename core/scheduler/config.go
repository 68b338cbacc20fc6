package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ctramp/core/timewindow"
)

// DefaultMaxStops bounds the intermediate stops of one half-tour.
const DefaultMaxStops = 3

// Config defines the modeled day and stop limits.
type Config struct {
	FirstHour int `json:"first_hour" yaml:"first_hour"`
	LastHour  int `json:"last_hour" yaml:"last_hour"`
	MaxStops  int `json:"max_stops" yaml:"max_stops"`
}

// DefaultConfig models a full 24 hour day.
func DefaultConfig() Config {
	s := timewindow.DefaultSpan()
	return Config{FirstHour: s.First, LastHour: s.Last, MaxStops: DefaultMaxStops}
}

// SetDefaults fills unset limits.
func (c *Config) SetDefaults() {
	if c.FirstHour == 0 && c.LastHour == 0 {
		d := timewindow.DefaultSpan()
		c.FirstHour, c.LastHour = d.First, d.Last
	}
	if c.MaxStops <= 0 {
		c.MaxStops = DefaultMaxStops
	}
}

// Validate checks the day span.
func (c Config) Validate() error {
	if c.FirstHour < 0 || c.LastHour > 47 {
		return fmt.Errorf("hours must lie in 0..47, got %d..%d", c.FirstHour, c.LastHour)
	}
	return c.Span().Validate()
}

// Span returns the modeled day.
func (c Config) Span() timewindow.Span {
	return timewindow.Span{First: c.FirstHour, Last: c.LastHour}
}

// Alternative is a departure and arrival hour pair.
type Alternative struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Alternatives enumerates every start <= end pair of the day, ordered by
// start then end. Evaluators index this table from 1.
func (c Config) Alternatives() []Alternative {
	var out []Alternative
	for s := c.FirstHour; s <= c.LastHour; s++ {
		for e := s; e <= c.LastHour; e++ {
			out = append(out, Alternative{Start: s, End: e})
		}
	}
	return out
}

// LoadConfig loads Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return DecodeConfig(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// DecodeConfig reads a Config from r in the given format.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", format)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}
