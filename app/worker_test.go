package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/ctramp/core/factory"
	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/matrix"
	coremetrics "github.com/kilianp07/ctramp/core/metrics"
	"github.com/kilianp07/ctramp/core/model"
	coremon "github.com/kilianp07/ctramp/core/monitoring"
	"github.com/kilianp07/ctramp/core/random"
	"github.com/kilianp07/ctramp/core/scheduler"
	"github.com/kilianp07/ctramp/core/timewindow"
	"github.com/kilianp07/ctramp/infra/tracelog"
	"github.com/kilianp07/ctramp/internal/eventbus"
)

// workers returns n two-adult households where person 1 has a work tour
// to zone 2 planned for 8..12.
func workers(t *testing.T, n int) []*model.Household {
	t.Helper()
	sch := scheduler.New(scheduler.DefaultConfig(), nil)
	out := make([]*model.Household, n)
	for i := range out {
		h := model.NewHousehold(500+i, 2, timewindow.DefaultSpan(), 7)
		h.HomeZone = 1
		for _, p := range h.Members() {
			p.Age, p.Type = 40, model.FullTimeWorker
		}
		idx, err := h.AddTour(1, model.Mandatory, "work")
		require.NoError(t, err)
		require.NoError(t, sch.ChooseDestination(h, idx, 2, 0))
		require.NoError(t, sch.ChooseMode(h, idx, 1))
		h.Tours[idx].Start, h.Tours[idx].End = 8, 12
		out[i] = h
	}
	return out
}

func stagesOf(t *testing.T, cfgs ...factory.ModuleConfig) []Stage {
	t.Helper()
	s, err := NewStages(cfgs)
	require.NoError(t, err)
	return s
}

func skims() *matrix.Cache {
	read := matrix.ReaderFunc(func(_ context.Context, e matrix.DataEntry) (*matrix.Matrix, error) {
		return matrix.New(e.MatrixName, nil, nil, mat.NewDense(3, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}))
	})
	return matrix.NewCache(map[string]matrix.Reader{matrix.FormatBinary: read}, matrix.CacheOptions{UseCache: true})
}

func lookup(name string) (matrix.DataEntry, bool) {
	if name != "sov_time" {
		return matrix.DataEntry{}, false
	}
	return matrix.DataEntry{Name: name, File: "sov.bin", Format: "binary"}, true
}

func newEnv() *Env {
	return &Env{Scheduler: scheduler.New(scheduler.DefaultConfig(), nil), Matrices: skims(), Lookup: lookup}
}

type recordTracer struct {
	mu   sync.Mutex
	recs []tracelog.Record
}

func (r *recordTracer) Append(_ context.Context, rec tracelog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func TestProcessCommitsPlannedWindows(t *testing.T) {
	ctx := context.Background()
	store, err := household.NewStore(ctx, household.NewMemoryBackend(workers(t, 3)), household.Options{})
	require.NoError(t, err)
	bus := eventbus.New[any](32)
	sub := bus.Subscribe()
	w := NewWorker(store, newEnv(), WorkerOptions{
		ID:        "w1",
		Partition: 0,
		BatchSize: 2,
		Bus:       bus,
		Stages: stagesOf(t,
			factory.ModuleConfig{Type: "reset_windows"},
			factory.ModuleConfig{Type: "commit_planned", Conf: map[string]any{"category": "mandatory"}},
			factory.ModuleConfig{Type: "check_destinations", Conf: map[string]any{"matrix": "sov_time"}},
			factory.ModuleConfig{Type: "update_time_windows"},
		),
	})
	sum, err := w.Process(ctx, household.Partition{First: 0, Last: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Households)
	assert.Equal(t, 2, sum.Batches)

	hhs, err := store.Range(ctx, 0, 2)
	require.NoError(t, err)
	for _, h := range hhs {
		assert.Equal(t, model.WindowCommitted, h.Tours[0].State)
		assert.Equal(t, 21, h.MaxAdultOverlaps, "household %d", h.ID)
	}

	bus.Close()
	var batches, stageEvents int
	for ev := range sub {
		switch e := ev.(type) {
		case coremetrics.BatchEvent:
			batches++
			assert.Equal(t, "w1", e.Worker)
		case coremetrics.StageEvent:
			stageEvents++
		}
	}
	assert.Equal(t, 2, batches)
	assert.Equal(t, 8, stageEvents)
}

func TestTraceDebugHouseholds(t *testing.T) {
	ctx := context.Background()
	store, err := household.NewStore(ctx, household.NewMemoryBackend(workers(t, 4)), household.Options{Trace: []int{502}})
	require.NoError(t, err)
	tr := &recordTracer{}
	w := NewWorker(store, newEnv(), WorkerOptions{
		ID:    "w2",
		Trace: tr,
		Stages: stagesOf(t,
			factory.ModuleConfig{Type: "commit_planned", Conf: map[string]any{"category": "mandatory"}},
			factory.ModuleConfig{Type: "update_time_windows"},
		),
	})
	_, err = w.Process(ctx, household.Partition{First: 0, Last: 3})
	require.NoError(t, err)
	require.Len(t, tr.recs, 2)
	for _, r := range tr.recs {
		assert.Equal(t, 502, r.HouseholdID)
		assert.Equal(t, "w2", r.Worker)
	}
	assert.Equal(t, "commit_planned_mandatory", tr.recs[0].Stage)
	assert.Equal(t, "update_time_windows", tr.recs[1].Stage)
}

func TestReplayReproducesDraws(t *testing.T) {
	ctx := context.Background()
	store, err := household.NewStore(ctx, household.NewMemoryBackend(workers(t, 5)), household.Options{})
	require.NoError(t, err)
	w := NewWorker(store, newEnv(), WorkerOptions{
		ID: "w3",
		Stages: stagesOf(t,
			factory.ModuleConfig{Type: "reset_windows"},
			factory.ModuleConfig{Type: "uniform_time_of_day", Conf: map[string]any{"category": "mandatory"}},
			factory.ModuleConfig{Type: "update_time_windows"},
		),
	})
	p := household.Partition{First: 0, Last: 4}
	_, err = w.Process(ctx, p)
	require.NoError(t, err)

	type outcome struct{ start, end, draws, overlap int }
	snap := func() []outcome {
		hhs, err := store.Range(ctx, p.First, p.Last)
		require.NoError(t, err)
		out := make([]outcome, len(hhs))
		for i, h := range hhs {
			require.Equal(t, model.WindowCommitted, h.Tours[0].State)
			out[i] = outcome{h.Tours[0].Start, h.Tours[0].End, h.Random.Count(), h.MaxAdultOverlaps}
		}
		return out
	}
	first := snap()
	for _, o := range first {
		assert.Equal(t, 1, o.draws)
	}

	_, err = w.Replay(ctx, p, random.MandatoryTourTimeOfDay)
	require.NoError(t, err)
	assert.Equal(t, first, snap())

	if _, err := w.Replay(ctx, p, random.AutoOwnership); err == nil {
		t.Fatalf("expected error for a stage no component draws on")
	}
}

type recordMonitor struct {
	mu   sync.Mutex
	tags []map[string]string
}

func (r *recordMonitor) CaptureException(_ error, tags map[string]string) {
	r.mu.Lock()
	r.tags = append(r.tags, tags)
	r.mu.Unlock()
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestStageErrorStopsWorker(t *testing.T) {
	ctx := context.Background()
	hhs := workers(t, 2)
	hhs[1].Tours[0].DestZone = 9
	store, err := household.NewStore(ctx, household.NewMemoryBackend(hhs), household.Options{})
	require.NoError(t, err)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	w := NewWorker(store, newEnv(), WorkerOptions{
		ID:     "w4",
		Stages: stagesOf(t, factory.ModuleConfig{Type: "check_destinations", Conf: map[string]any{"matrix": "sov_time"}}),
	})
	_, err = w.Process(ctx, household.Partition{First: 0, Last: 1})
	if !errors.Is(err, matrix.ErrUnknownZone) {
		t.Fatalf("expected ErrUnknownZone got %v", err)
	}
	require.Len(t, mon.tags, 1)
	assert.Equal(t, "501", mon.tags[0]["household"])
}

func TestProcessCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store, err := household.NewStore(ctx, household.NewMemoryBackend(workers(t, 2)), household.Options{})
	require.NoError(t, err)
	cancel()
	w := NewWorker(store, newEnv(), WorkerOptions{ID: "w5"})
	if _, err := w.Process(ctx, household.Partition{First: 0, Last: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}

func TestNewStages(t *testing.T) {
	assert.Subset(t, StageNames(), []string{"reset_windows", "commit_planned", "uniform_time_of_day", "update_time_windows", "check_destinations"})
	if _, err := NewStages([]factory.ModuleConfig{{Type: "destination_choice"}}); !errors.Is(err, factory.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType got %v", err)
	}
	if _, err := NewStages([]factory.ModuleConfig{{Type: "commit_planned", Conf: map[string]any{"category": "errands"}}}); err == nil {
		t.Fatalf("expected category error")
	}
	if _, err := NewStages([]factory.ModuleConfig{{Type: "check_destinations"}}); err == nil {
		t.Fatalf("expected missing matrix error")
	}
	s, err := NewStages([]factory.ModuleConfig{{Type: "uniform_time_of_day", Conf: map[string]any{"category": "joint_non_mandatory"}}})
	require.NoError(t, err)
	assert.Equal(t, random.JointTourTimeOfDay, s[0].Ledger())
}

func TestEnvMatrix(t *testing.T) {
	ctx := context.Background()
	cache := skims()
	env := &Env{Matrices: cache, Lookup: lookup}
	a, err := env.Matrix(ctx, "sov_time")
	require.NoError(t, err)
	b, err := env.Matrix(ctx, "sov_time")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, cache.Reads())
	if _, err := env.Matrix(ctx, "transit"); err == nil {
		t.Fatalf("expected unconfigured matrix error")
	}
}
