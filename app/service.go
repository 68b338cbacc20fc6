package app

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/kilianp07/ctramp/auth"
	"github.com/kilianp07/ctramp/config"
	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/random"
	"github.com/kilianp07/ctramp/core/remote"
	"github.com/kilianp07/ctramp/core/scheduler"
	"github.com/kilianp07/ctramp/infra/logger"
	"github.com/kilianp07/ctramp/infra/mqtt"
	"github.com/kilianp07/ctramp/infra/rpc"
	"github.com/kilianp07/ctramp/infra/tracelog"
)

// Service is a worker process: it owns one partition of the household store
// and talks to the two servers through retrying clients.
type Service struct {
	ID         string
	Partition  int
	Partitions int

	worker   *Worker
	hh       household.Service
	mx       *rpc.MatrixClient
	progress mqtt.ProgressPublisher
	trace    *tracelog.Store
	rt       *Runtime
	log      logger.Logger
}

// ClientOptions builds the rpc client options of the remote section,
// attaching OAuth2 tokens when credentials are configured.
func ClientOptions(cfg config.RemoteConfig) rpc.ClientOptions {
	opts := rpc.ClientOptions{Policy: cfg.Policy()}
	if cfg.Auth.Enabled() {
		cred := auth.NewClientCred(cfg.Auth)
		opts.Connect = append(opts.Connect, connect.WithInterceptors(cred.Interceptor()))
	}
	return opts
}

// NewService connects a worker to the servers named in the configuration.
func NewService(rt *Runtime, partition, partitions int) (*Service, error) {
	cfg := rt.Config
	if partitions < 1 || partition < 0 || partition >= partitions {
		return nil, fmt.Errorf("partition %d of %d", partition, partitions)
	}
	id := cfg.Worker.ID
	if id == "" {
		id = fmt.Sprintf("worker-%d-%s", partition, uuid.NewString()[:8])
	}
	log := logger.New("worker")
	opts := ClientOptions(cfg.Remote)
	opts.Metrics, opts.Log = rt.Sink, log
	loc := remote.Locator{Matrix: cfg.Matrix.Endpoint, Household: cfg.Household.Endpoint}
	mx, err := rpc.NewMatrixClient(loc.Matrix, opts)
	if err != nil {
		return nil, err
	}
	hh, err := rpc.NewHouseholdClient(loc.Household, opts)
	if err != nil {
		return nil, err
	}
	stages, err := NewStages(cfg.Worker.Stages)
	if err != nil {
		return nil, err
	}
	trace, err := tracelog.New(cfg.Trace)
	if err != nil {
		return nil, fmt.Errorf("trace log: %w", err)
	}
	var progress mqtt.ProgressPublisher = mqtt.NopPublisher{}
	if cfg.Progress.Enabled() {
		p, err := mqtt.NewPahoPublisher(cfg.Progress, id)
		if err != nil {
			_ = trace.Close()
			return nil, fmt.Errorf("progress publisher: %w", err)
		}
		progress = p
	}
	env := &Env{
		Scheduler: scheduler.New(cfg.Model.Scheduler(), logger.New("scheduler")),
		Matrices:  mx,
		Lookup:    cfg.Matrix.Lookup,
	}
	w := NewWorker(hh, env, WorkerOptions{
		ID:        id,
		Partition: partition,
		BatchSize: cfg.Worker.BatchSize,
		Stages:    stages,
		Bus:       rt.Bus,
		Trace:     trace,
		Log:       log,
	})
	return &Service{
		ID:         id,
		Partition:  partition,
		Partitions: partitions,
		worker:     w,
		hh:         hh,
		mx:         mx,
		progress:   progress,
		trace:      trace,
		rt:         rt,
		log:        log,
	}, nil
}

// partition pings the matrix server and resolves the household range this
// worker owns. ok is false when there are fewer households than workers.
func (s *Service) partition(ctx context.Context) (household.Partition, bool, error) {
	name, err := s.mx.Ping(ctx, s.ID)
	if err != nil {
		return household.Partition{}, false, fmt.Errorf("matrix server: %w", err)
	}
	s.log.Infof("connected to matrix server %s", name)
	n, err := s.hh.Len(ctx)
	if err != nil {
		return household.Partition{}, false, fmt.Errorf("household server: %w", err)
	}
	parts := household.Partitions(n, s.Partitions)
	if s.Partition >= len(parts) {
		return household.Partition{}, false, nil
	}
	return parts[s.Partition], true, nil
}

// Run processes the worker's partition once.
func (s *Service) Run(ctx context.Context) error {
	return s.do(ctx, func(p household.Partition) (Summary, error) { return s.worker.Process(ctx, p) })
}

// Replay reruns the partition from the stage drawing on from.
func (s *Service) Replay(ctx context.Context, from random.Stage) error {
	return s.do(ctx, func(p household.Partition) (Summary, error) { return s.worker.Replay(ctx, p, from) })
}

func (s *Service) do(ctx context.Context, fn func(household.Partition) (Summary, error)) error {
	p, ok, err := s.partition(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Infof("no households for partition %d of %d", s.Partition, s.Partitions)
		return nil
	}
	if pub, isPaho := s.progress.(*mqtt.PahoPublisher); isPaho {
		stop := pub.Forward(ctx, s.rt.Bus)
		defer stop()
	}
	s.status(mqtt.StatusRunning)
	sum, err := fn(p)
	if err != nil {
		s.status(mqtt.StatusFailed)
		return err
	}
	s.status(mqtt.StatusDone)
	s.log.Infof("%d households in %d batches, %s", sum.Households, sum.Batches, sum.Duration)
	return nil
}

func (s *Service) status(st string) {
	if err := s.progress.PublishStatus(st); err != nil {
		s.log.Warnf("publish status %s: %v", st, err)
	}
}

// Close releases the trace file and the broker connection.
func (s *Service) Close() error {
	s.progress.Disconnect()
	return s.trace.Close()
}
