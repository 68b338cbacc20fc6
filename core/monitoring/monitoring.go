// Package monitoring is the process-wide error reporting hook. Workers and
// servers report failures through the package functions; the binary decides
// the backend with Init.
package monitoring

import (
	"fmt"
	"time"
)

// Config selects the Sentry project errors are reported to. An empty DSN
// disables reporting.
type Config struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
	ServerName       string  `json:"server_name"`
}

func (c Config) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("traces_sample_rate %v outside [0,1]", c.TracesSampleRate)
	}
	return nil
}

// Monitor reports errors and panics.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init installs m as the process monitor. A nil m is ignored.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

func CaptureException(err error, tags map[string]string) {
	current.CaptureException(err, tags)
}

// Recover must be deferred directly; it reports and re-panics.
func Recover() {
	if r := recover(); r != nil {
		current.CaptureException(fmt.Errorf("panic: %v", r), map[string]string{"panic": "true"})
		current.Flush(2 * time.Second)
		panic(r)
	}
}

func Flush(d time.Duration) {
	current.Flush(d)
}

// HouseholdTags returns the tags attached to errors raised while a
// household was being simulated.
func HouseholdTags(module, worker string, householdID int) map[string]string {
	return map[string]string{
		"module":    module,
		"worker":    worker,
		"household": fmt.Sprint(householdID),
	}
}
