package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/logger"
	coremetrics "github.com/kilianp07/ctramp/core/metrics"
	"github.com/kilianp07/ctramp/core/model"
	coremon "github.com/kilianp07/ctramp/core/monitoring"
	"github.com/kilianp07/ctramp/core/random"
	"github.com/kilianp07/ctramp/infra/tracelog"
	"github.com/kilianp07/ctramp/internal/eventbus"
)

// DefaultBatchSize is the number of households fetched per Range call.
const DefaultBatchSize = 500

// Tracer stores the state of debug households after each stage.
type Tracer interface {
	Append(ctx context.Context, r tracelog.Record) error
}

type nopTracer struct{}

func (nopTracer) Append(context.Context, tracelog.Record) error { return nil }

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	ID string
	// Partition is reported in batch events.
	Partition int
	BatchSize int
	Stages    []Stage
	// Bus receives a StageEvent per stage and batch and a BatchEvent per
	// batch. Nil disables events.
	Bus   *eventbus.Bus[any]
	Trace Tracer
	Log   logger.Logger
}

// Summary describes a finished pass over a partition.
type Summary struct {
	Households int
	Batches    int
	Duration   time.Duration
}

// Worker applies the stage pipeline to one partition of the household store.
// Households are read in batches, processed one at a time and written back
// before the next batch is read.
type Worker struct {
	id     string
	part   int
	hh     household.Service
	env    *Env
	stages []Stage
	batch  int
	bus    *eventbus.Bus[any]
	trace  Tracer
	log    logger.Logger
}

func NewWorker(hh household.Service, env *Env, opts WorkerOptions) *Worker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Trace == nil {
		opts.Trace = nopTracer{}
	}
	log := logger.OrNop(opts.Log)
	if env.Log == nil {
		env.Log = log
	}
	env.Worker = opts.ID
	return &Worker{
		id:     opts.ID,
		part:   opts.Partition,
		hh:     hh,
		env:    env,
		stages: opts.Stages,
		batch:  opts.BatchSize,
		bus:    opts.Bus,
		trace:  opts.Trace,
		log:    log,
	}
}

// Process runs every stage over p.
func (w *Worker) Process(ctx context.Context, p household.Partition) (Summary, error) {
	return w.run(ctx, p, 0, nil)
}

// Replay reruns the pipeline from the first stage drawing on from. Each
// household's stream is rewound to where from started and the marks of
// later stages are cleared, so the replay sees the same numbers.
func (w *Worker) Replay(ctx context.Context, p household.Partition, from random.Stage) (Summary, error) {
	start := -1
	for i, s := range w.stages {
		if s.Ledger() == from {
			start = i
			break
		}
	}
	if start < 0 {
		return Summary{}, fmt.Errorf("no stage draws on %s", from)
	}
	restart := func(h *model.Household) error {
		if err := h.Random.Reset(from); err != nil {
			return err
		}
		h.Random.ClearFrom(from + 1)
		for i := len(w.stages) - 1; i >= start; i-- {
			if r, ok := w.stages[i].(Restarter); ok {
				if err := r.Restart(w.env, h); err != nil {
					return err
				}
			}
		}
		return nil
	}
	w.log.Infof("replaying %d..%d from %s", p.First, p.Last, from)
	return w.run(ctx, p, start, restart)
}

func (w *Worker) run(ctx context.Context, p household.Partition, start int, prepare func(*model.Household) error) (Summary, error) {
	began := time.Now()
	var sum Summary
	for first := p.First; first <= p.Last; first += w.batch {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		last := min(first+w.batch-1, p.Last)
		if err := w.processBatch(ctx, first, last, start, prepare); err != nil {
			return sum, err
		}
		sum.Households += last - first + 1
		sum.Batches++
	}
	sum.Duration = time.Since(began)
	w.log.Infof("partition %d..%d done: %d households in %s", p.First, p.Last, sum.Households, sum.Duration)
	return sum, nil
}

func (w *Worker) processBatch(ctx context.Context, first, last, start int, prepare func(*model.Household) error) error {
	began := time.Now()
	hhs, err := w.hh.Range(ctx, first, last)
	if err != nil {
		return fmt.Errorf("range %d..%d: %w", first, last, err)
	}
	if prepare != nil {
		for _, h := range hhs {
			if err := prepare(h); err != nil {
				return fmt.Errorf("household %d: %w", h.ID, err)
			}
		}
	}
	for _, s := range w.stages[start:] {
		stageStart := time.Now()
		for _, h := range hhs {
			if err := w.apply(ctx, s, h); err != nil {
				coremon.CaptureException(err, coremon.HouseholdTags("worker", w.id, h.ID))
				return fmt.Errorf("stage %s household %d: %w", s.Name(), h.ID, err)
			}
		}
		w.publish(coremetrics.StageEvent{
			Stage:      s.Name(),
			Worker:     w.id,
			Households: len(hhs),
			Duration:   time.Since(stageStart),
			Time:       time.Now(),
		})
	}
	if err := w.hh.SetRange(ctx, hhs, first); err != nil {
		return fmt.Errorf("set range %d..%d: %w", first, last, err)
	}
	w.publish(coremetrics.BatchEvent{
		Worker:     w.id,
		Partition:  w.part,
		First:      first,
		Last:       last,
		Households: len(hhs),
		Duration:   time.Since(began),
		Time:       time.Now(),
	})
	return nil
}

func (w *Worker) apply(ctx context.Context, s Stage, h *model.Household) error {
	h.Random.Mark(s.Ledger())
	if err := s.Apply(ctx, w.env, h); err != nil {
		return err
	}
	if h.Debug {
		if err := w.trace.Append(ctx, tracelog.Snapshot(w.id, s.Name(), h)); err != nil {
			w.log.Warnf("trace household %d: %v", h.ID, err)
		}
	}
	return nil
}

func (w *Worker) publish(ev any) {
	if w.bus != nil {
		w.bus.Publish(ev)
	}
}
