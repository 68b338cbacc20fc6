package app

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kilianp07/ctramp/api/households"
	"github.com/kilianp07/ctramp/config"
	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/matrix"
	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/infra/hhstore"
	"github.com/kilianp07/ctramp/infra/logger"
	_ "github.com/kilianp07/ctramp/infra/matrixio"
	"github.com/kilianp07/ctramp/infra/rpc"
)

// NewMatrixCache builds the cache served by the matrix server.
func NewMatrixCache(cfg config.MatrixConfig, rt *Runtime) (*matrix.Cache, error) {
	readers, err := matrix.NewReaders(cfg.Readers)
	if err != nil {
		return nil, err
	}
	return matrix.NewCache(readers, matrix.CacheOptions{
		UseCache: cfg.CacheEnabled(),
		Name:     cfg.Endpoint.Service,
		Metrics:  rt.Sink,
		Log:      logger.New("matrix-cache"),
	}), nil
}

// NewHouseholdStore opens the configured backend, loads the input file into
// an empty backend and applies the sample rate and the trace set.
func NewHouseholdStore(ctx context.Context, cfg *config.Config) (*household.Store, error) {
	log := logger.New("household-store")
	var input []*model.Household
	if cfg.Household.Input != "" {
		hhs, err := LoadHouseholds(cfg.Household.Input, cfg.Model.Scheduler().Span(), cfg.Model.BaseSeed)
		if err != nil {
			return nil, err
		}
		input = hhs
	}
	var backend household.Backend
	switch cfg.Household.Backend {
	case "sqlite":
		db, err := hhstore.Open(cfg.Household.Path)
		if err != nil {
			return nil, err
		}
		if db.Len() == 0 && len(input) > 0 {
			if err := db.Append(ctx, input); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		backend = db
	default:
		backend = household.NewMemoryBackend(input)
	}
	opts := household.Options{
		Seed:       cfg.Model.OrderSeed,
		SampleSeed: cfg.Model.SampleSeed,
		ChunkSize:  cfg.Household.ChunkSize,
		Trace:      cfg.Model.DebugHouseholdIDs,
		Log:        log,
	}
	store, err := household.NewStore(ctx, backend, opts)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	if cfg.Model.SampleRate >= 1 {
		return store, nil
	}
	return sample(ctx, store, cfg.Model.SampleRate, opts)
}

// sample replaces store by an in-memory store of its sampled households.
func sample(ctx context.Context, store *household.Store, rate float64, opts household.Options) (*household.Store, error) {
	defer func() { _ = store.Close() }()
	positions := store.Sample(ctx, rate)
	out := make([]*model.Household, 0, len(positions))
	for _, i := range positions {
		hhs, err := store.Range(ctx, i, i)
		if err != nil {
			return nil, err
		}
		hhs[0].SampleRate = rate
		out = append(out, hhs[0])
	}
	opts.Log.Infof("sampled %d households at rate %v", len(out), rate)
	return household.NewStore(ctx, household.NewMemoryBackend(out), opts)
}

// MatrixHandler mounts cache on a mux.
func MatrixHandler(cache matrix.Service) http.Handler {
	path, h := rpc.NewMatrixHandler(cache, connect.WithInterceptors(rpc.LoggingInterceptor(logger.New("matrix-server"))))
	return rpc.NewMux(map[string]http.Handler{path: h})
}

// HouseholdHandler mounts store on a mux together with its JSON views.
func HouseholdHandler(store household.Service) http.Handler {
	path, h := rpc.NewHouseholdHandler(store, connect.WithInterceptors(rpc.LoggingInterceptor(logger.New("household-server"))))
	return rpc.NewMux(map[string]http.Handler{
		path:                        h,
		households.Prefix:           households.NewHandler(store),
		"/api/summary/destinations": households.NewSummaryHandler(store, 0),
	})
}

// ServeMatrix runs the matrix server until ctx is canceled.
func ServeMatrix(ctx context.Context, rt *Runtime) error {
	cache, err := NewMatrixCache(rt.Config.Matrix, rt)
	if err != nil {
		return err
	}
	ep := rt.Config.Matrix.Endpoint
	return rpc.Serve(ctx, fmt.Sprintf(":%d", ep.Port), MatrixHandler(cache), logger.New(ep.Service))
}

// ServeHouseholds runs the household server until ctx is canceled.
func ServeHouseholds(ctx context.Context, rt *Runtime) error {
	store, err := NewHouseholdStore(ctx, rt.Config)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	ep := rt.Config.Household.Endpoint
	return rpc.Serve(ctx, fmt.Sprintf(":%d", ep.Port), HouseholdHandler(store), logger.New(ep.Service))
}
