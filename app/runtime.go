// Package app wires the household store, the matrix cache and the worker
// pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/ctramp/config"
	coremetrics "github.com/kilianp07/ctramp/core/metrics"
	coremon "github.com/kilianp07/ctramp/core/monitoring"
	"github.com/kilianp07/ctramp/infra/logger"
	inframetrics "github.com/kilianp07/ctramp/infra/metrics"
	inframon "github.com/kilianp07/ctramp/infra/monitoring"
	"github.com/kilianp07/ctramp/internal/eventbus"
)

// Runtime holds the components every process shares: logging, error
// reporting, the metrics sink and the event bus feeding it.
type Runtime struct {
	Config *config.Config
	Sink   coremetrics.MetricsSink
	Bus    *eventbus.Bus[any]
	log    logger.Logger

	cancel    context.CancelFunc
	collected <-chan struct{}
}

// NewRuntime configures logging and monitoring and starts the metrics
// collector. The Prometheus endpoint, when configured, lives until Close.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	if err := logger.Configure(cfg.Log); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	log := logger.New("runtime")
	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	cctx, cancel := context.WithCancel(ctx)
	bus := eventbus.New[any](0)
	rt := &Runtime{
		Config:    cfg,
		Sink:      sink,
		Bus:       bus,
		log:       log,
		cancel:    cancel,
		collected: inframetrics.StartEventCollector(cctx, bus, sink),
	}
	if addr := cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := inframetrics.StartPromServer(cctx, addr); err != nil {
				log.Errorf("prom server: %v", err)
			}
		}()
	}
	return rt, nil
}

// Close drains the event bus into the sink and flushes error reports.
func (r *Runtime) Close() {
	r.Bus.Close()
	<-r.collected
	r.cancel()
	if c, ok := r.Sink.(interface{ Close() }); ok {
		c.Close()
	}
	coremon.Flush(2 * time.Second)
	if d := r.Bus.Dropped(); d > 0 {
		r.log.Warnf("%d events dropped on full subscriber buffers", d)
	}
}
