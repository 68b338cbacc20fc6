package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/ctramp/auth"
	"github.com/kilianp07/ctramp/core/factory"
	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/matrix"
	"github.com/kilianp07/ctramp/core/remote"
	"github.com/kilianp07/ctramp/core/scheduler"
)

// Default service names and ports of the two remote services.
const (
	MatrixService    = "matrix-server"
	HouseholdService = "household-server"
	MatrixPort       = 1171
	HouseholdPort    = 1129
)

// MatrixConfig configures the matrix server and how workers reach it.
type MatrixConfig struct {
	Endpoint remote.Endpoint `json:"endpoint"`
	// UseCache keeps loaded matrices in memory. Unset means true.
	UseCache *bool              `json:"use_cache"`
	Entries  []matrix.DataEntry `json:"entries"`
	// Readers holds per-format reader settings, e.g. binary.byte_order.
	Readers map[string]map[string]any `json:"readers"`
}

func (c *MatrixConfig) SetDefaults() {
	c.Endpoint = endpointDefaults(c.Endpoint, MatrixService, MatrixPort)
}

func (c MatrixConfig) CacheEnabled() bool { return c.UseCache == nil || *c.UseCache }

func (c MatrixConfig) Validate() error {
	if err := c.Endpoint.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Entries))
	for _, e := range c.Entries {
		if e.Name == "" || e.File == "" {
			return fmt.Errorf("matrix entry %v needs name and file", e)
		}
		if _, err := matrix.NormalizeFormat(e.Format); err != nil {
			return err
		}
		if seen[e.Name] {
			return fmt.Errorf("matrix entry %q listed twice", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// Lookup returns the entry with the given logical name.
func (c MatrixConfig) Lookup(name string) (matrix.DataEntry, bool) {
	for _, e := range c.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return matrix.DataEntry{}, false
}

// HouseholdConfig configures the household server.
type HouseholdConfig struct {
	Endpoint remote.Endpoint `json:"endpoint"`
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the sqlite database file.
	Path string `json:"path"`
	// Input is a JSON array of households loaded at startup.
	Input     string `json:"input"`
	ChunkSize int    `json:"chunk_size"`
}

func (c *HouseholdConfig) SetDefaults() {
	c.Endpoint = endpointDefaults(c.Endpoint, HouseholdService, HouseholdPort)
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = household.DefaultChunkSize
	}
}

func (c HouseholdConfig) Validate() error {
	if err := c.Endpoint.Validate(); err != nil {
		return err
	}
	switch c.Backend {
	case "memory":
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("sqlite backend requires path")
		}
	default:
		return fmt.Errorf("unknown household backend %q", c.Backend)
	}
	return nil
}

func endpointDefaults(e remote.Endpoint, service string, port int) remote.Endpoint {
	if e.Address == "" {
		e.Address = "localhost"
	}
	if e.Port == 0 {
		e.Port = port
	}
	if e.Service == "" {
		e.Service = service
	}
	return e
}

// RemoteConfig bounds the retry loop of every remote call and holds the
// credentials presented to the servers.
type RemoteConfig struct {
	MaxAttempts int       `json:"max_attempts"`
	BackoffMS   int       `json:"backoff_ms"`
	Auth        auth.Conf `json:"auth"`
}

func (c *RemoteConfig) SetDefaults() {
	d := remote.DefaultPolicy()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = int(d.Backoff / time.Millisecond)
	}
}

func (c RemoteConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if c.BackoffMS < 0 {
		return fmt.Errorf("backoff_ms must not be negative")
	}
	return c.Auth.Validate()
}

func (c RemoteConfig) Policy() remote.Policy {
	return remote.Policy{MaxAttempts: c.MaxAttempts, Backoff: time.Duration(c.BackoffMS) * time.Millisecond}
}

// ModelConfig holds the run-wide model settings.
type ModelConfig struct {
	BaseSeed   int64   `json:"base_seed"`
	OrderSeed  int64   `json:"order_seed"`
	SampleRate float64 `json:"sample_rate"`
	SampleSeed int64   `json:"sample_seed"`
	FirstHour  int     `json:"first_hour"`
	LastHour   int     `json:"last_hour"`
	MaxStops   int     `json:"max_stops"`
	// DebugHouseholdIDs are traced through every stage.
	DebugHouseholdIDs []int `json:"debug_household_ids"`
}

func (c *ModelConfig) SetDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 1
	}
	s := c.Scheduler()
	s.SetDefaults()
	c.FirstHour, c.LastHour, c.MaxStops = s.FirstHour, s.LastHour, s.MaxStops
}

func (c ModelConfig) Validate() error {
	if c.SampleRate <= 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample_rate %v outside (0,1]", c.SampleRate)
	}
	return c.Scheduler().Validate()
}

// Scheduler returns the day span and stop limits.
func (c ModelConfig) Scheduler() scheduler.Config {
	return scheduler.Config{FirstHour: c.FirstHour, LastHour: c.LastHour, MaxStops: c.MaxStops}
}

// WorkerConfig configures a worker process.
type WorkerConfig struct {
	// ID names the worker in metrics and progress topics. Empty means a
	// random id.
	ID string `json:"id"`
	// BatchSize is the number of households fetched per Range call.
	BatchSize int `json:"batch_size"`
	// Stages is the model pipeline, run in order.
	Stages []factory.ModuleConfig `json:"stages"`
}

func (c *WorkerConfig) SetDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if len(c.Stages) == 0 {
		c.Stages = []factory.ModuleConfig{{Type: "reset_windows"}, {Type: "update_time_windows"}}
	}
}
