package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kilianp07/ctramp/config"
	"github.com/kilianp07/ctramp/core/factory"
	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/matrix"
	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/remote"
)

func serve(t *testing.T, h http.Handler, service string) remote.Endpoint {
	t.Helper()
	srv := httptest.NewServer(h2c.NewHandler(h, &http2.Server{}))
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, _ := strconv.Atoi(port)
	return remote.Endpoint{Address: host, Port: p, Service: service}
}

func TestWorkersOverTheWire(t *testing.T) {
	ctx := context.Background()
	store, err := household.NewStore(ctx, household.NewMemoryBackend(workers(t, 2)), household.Options{Trace: []int{501}})
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Matrix.Endpoint = serve(t, MatrixHandler(skims()), "matrix-server")
	cfg.Matrix.Entries = []matrix.DataEntry{{Name: "sov_time", File: "sov.bin", Format: "binary"}}
	cfg.Household.Endpoint = serve(t, HouseholdHandler(store), "household-server")
	cfg.Remote = config.RemoteConfig{MaxAttempts: 3, BackoffMS: 1}
	cfg.Trace.Path = filepath.Join(t.TempDir(), "trace.jsonl")
	cfg.Worker.BatchSize = 1
	cfg.Worker.Stages = []factory.ModuleConfig{
		{Type: "reset_windows"},
		{Type: "commit_planned", Conf: map[string]any{"category": "mandatory"}},
		{Type: "check_destinations", Conf: map[string]any{"matrix": "sov_time"}},
		{Type: "update_time_windows"},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	rt, err := NewRuntime(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()

	for part := 0; part < 2; part++ {
		svc, err := NewService(rt, part, 2)
		require.NoError(t, err)
		require.NoError(t, svc.Run(ctx))
		if part == 1 {
			recs, err := svc.trace.Query(ctx, 501)
			require.NoError(t, err)
			assert.Len(t, recs, 4)
		}
		require.NoError(t, svc.Close())
	}

	hhs, err := store.Range(ctx, 0, 1)
	require.NoError(t, err)
	for _, h := range hhs {
		// adult 1 is booked 8..12, so hours 9..11 are no longer shared
		assert.Equal(t, 21, h.MaxAdultOverlaps, "household %d", h.ID)
		assert.Equal(t, model.WindowCommitted, h.Tours[0].State)
	}

	ep := cfg.Household.Endpoint
	resp, err := http.Get(fmt.Sprintf("http://%s:%d/api/households/501/tours", ep.Address, ep.Port))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tours []model.Tour
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tours))
	require.Len(t, tours, 1)
	assert.Equal(t, 8, tours[0].Start)

	idle, err := NewService(rt, 2, 3)
	require.NoError(t, err)
	require.NoError(t, idle.Run(ctx))
	require.NoError(t, idle.Close())

	if _, err := NewService(rt, 3, 3); err == nil {
		t.Fatalf("expected partition error")
	}
}
