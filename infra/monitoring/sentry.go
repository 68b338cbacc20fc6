// Package monitoring reports errors to Sentry.
package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	coremon "github.com/kilianp07/ctramp/core/monitoring"
)

// NewSentryMonitor initialises the Sentry SDK. It returns a NopMonitor when
// no DSN is configured.
func NewSentryMonitor(cfg coremon.Config) (coremon.Monitor, error) {
	return newSentryMonitor(cfg, nil)
}

func newSentryMonitor(cfg coremon.Config, beforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{hub: sentry.CurrentHub()}, nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

// CaptureException reports err with tags. Canceled contexts are dropped and
// errors tagged with a household are grouped by module.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if _, ok := tags["household"]; ok {
			scope.SetFingerprint([]string{"{{ default }}", tags["module"]})
		}
		s.hub.CaptureException(err)
	})
}

func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
