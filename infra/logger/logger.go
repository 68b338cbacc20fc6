package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	corelogger "github.com/kilianp07/ctramp/core/logger"
)

type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.Nop

// Config selects the process-wide log backend, level and output.
type Config struct {
	// Backend is "zerolog" (default) or "logrus".
	Backend string `json:"backend"`
	// Level is one of debug, info, warn, error.
	Level string `json:"level"`
	// Format is "json" (default) or "console".
	Format string `json:"format"`
	// File, when set, receives the logs instead of stdout and is rotated
	// at MaxSizeMB.
	File      string `json:"file"`
	MaxSizeMB int    `json:"max_size_mb"`
}

func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "zerolog"
	}
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
	if c.File != "" && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 100
	}
}

func (c Config) Validate() error {
	switch c.Backend {
	case "zerolog", "logrus":
	default:
		return fmt.Errorf("unknown log backend %q", c.Backend)
	}
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}

func (c Config) console() bool { return c.Format == "console" }

var (
	mu      sync.RWMutex
	current = Config{Backend: "zerolog", Level: "info", Format: "json"}
	out     io.Writer = os.Stdout
)

// Configure sets the backend, level and output used by New.
func Configure(c Config) error {
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return err
	}
	var w io.Writer = os.Stdout
	if c.File != "" {
		w = &lumberjack.Logger{Filename: c.File, MaxSize: c.MaxSizeMB}
	}
	mu.Lock()
	if lj, ok := out.(*lumberjack.Logger); ok {
		_ = lj.Close()
	}
	current, out = c, w
	mu.Unlock()
	return nil
}

// New returns a Logger tagged with component.
func New(component string) Logger {
	mu.RLock()
	c, w := current, out
	mu.RUnlock()
	if c.Backend == "logrus" {
		return newLogrus(w, component, c)
	}
	return newZerolog(w, component, c)
}
