package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/ctramp/core/metrics"
)

// PromSink exposes run progress as Prometheus metrics.
type PromSink struct {
	households *prometheus.CounterVec
	batches    *prometheus.HistogramVec
	loads      *prometheus.CounterVec
	retries    *prometheus.CounterVec
	stages     *prometheus.HistogramVec
}

// NewPromSink registers on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers on reg, reusing collectors that are
// already registered. A nil reg means the default registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		households: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctramp_households_processed_total",
			Help: "Households processed by workers",
		}, []string{"worker"}),
		batches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctramp_batch_duration_seconds",
			Help:    "Time to process one household batch",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"worker"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctramp_matrix_requests_total",
			Help: "Matrix cache requests by outcome",
		}, []string{"matrix", "hit"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctramp_remote_retries_total",
			Help: "Remote calls retried after a transient failure",
		}, []string{"procedure"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctramp_stage_duration_seconds",
			Help:    "Time spent in a model stage per batch",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	var err error
	if s.households, err = register(reg, s.households); err != nil {
		return nil, err
	}
	if s.batches, err = register(reg, s.batches); err != nil {
		return nil, err
	}
	if s.loads, err = register(reg, s.loads); err != nil {
		return nil, err
	}
	if s.retries, err = register(reg, s.retries); err != nil {
		return nil, err
	}
	if s.stages, err = register(reg, s.stages); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordBatch(ev coremetrics.BatchEvent) error {
	s.households.WithLabelValues(ev.Worker).Add(float64(ev.Households))
	s.batches.WithLabelValues(ev.Worker).Observe(ev.Duration.Seconds())
	return nil
}

func (s *PromSink) RecordMatrixLoad(ev coremetrics.MatrixLoadEvent) error {
	s.loads.WithLabelValues(ev.Name, strconv.FormatBool(ev.Hit)).Inc()
	return nil
}

func (s *PromSink) RecordRemoteRetry(ev coremetrics.RemoteRetryEvent) error {
	s.retries.WithLabelValues(ev.Procedure).Inc()
	return nil
}

func (s *PromSink) RecordStage(ev coremetrics.StageEvent) error {
	s.stages.WithLabelValues(ev.Stage).Observe(ev.Duration.Seconds())
	return nil
}
