package metrics

import "github.com/kilianp07/ctramp/core/factory"

// Config lists the sinks to build. PrometheusAddr, when set, is where the
// /metrics endpoint is served.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks"`
	PrometheusAddr string                 `json:"prometheus_addr"`
}
