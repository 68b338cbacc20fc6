package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/ctramp/core/metrics"
	coremon "github.com/kilianp07/ctramp/core/monitoring"
	"github.com/kilianp07/ctramp/infra/logger"
	"github.com/kilianp07/ctramp/infra/mqtt"
	"github.com/kilianp07/ctramp/infra/tracelog"
)

// EnvPrefix marks environment overrides: CT_MATRIX__ENDPOINT__PORT sets
// matrix.endpoint.port.
const EnvPrefix = "CT_"

type Config struct {
	Matrix    MatrixConfig    `json:"matrix"`
	Household HouseholdConfig `json:"household"`
	Remote    RemoteConfig    `json:"remote"`
	Model     ModelConfig     `json:"model"`
	Worker    WorkerConfig    `json:"worker"`
	Log       logger.Config   `json:"log"`
	Trace     tracelog.Config `json:"trace"`
	Metrics   metrics.Config  `json:"metrics"`
	Progress  mqtt.Config     `json:"progress"`
	Sentry    coremon.Config  `json:"sentry"`
}

// Load reads a YAML or JSON file, applies environment overrides, fills
// defaults and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) SetDefaults() {
	c.Matrix.SetDefaults()
	c.Household.SetDefaults()
	c.Remote.SetDefaults()
	c.Model.SetDefaults()
	c.Worker.SetDefaults()
	c.Log.SetDefaults()
	c.Trace.SetDefaults()
	if c.Progress.Enabled() {
		c.Progress.SetDefaults()
	}
}

func (c Config) Validate() error {
	checks := []struct {
		section string
		check   func() error
	}{
		{"matrix", c.Matrix.Validate},
		{"household", c.Household.Validate},
		{"remote", c.Remote.Validate},
		{"model", c.Model.Validate},
		{"log", c.Log.Validate},
		{"sentry", c.Sentry.Validate},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return fmt.Errorf("%s: %w", ch.section, err)
		}
	}
	return nil
}
