package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ctramp/config"
	"github.com/kilianp07/ctramp/core/random"
	"github.com/kilianp07/ctramp/core/timewindow"
)

func writeInput(t *testing.T, n int) string {
	t.Helper()
	b, err := json.Marshal(workers(t, n))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "households.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestLoadHouseholdsFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "households.json")
	data := `[{"id":3,"home_zone":2,"persons":[{},{"age":40},{"age":12}]}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	hhs, err := LoadHouseholds(path, timewindow.Span{First: 5, Last: 23}, 100)
	require.NoError(t, err)
	require.Len(t, hhs, 1)
	h := hhs[0]
	assert.Equal(t, random.Seed(100, 3), h.Random.Seed())
	assert.Equal(t, 2, h.Persons[2].Num)
	assert.Equal(t, 19, h.Persons[1].Window.Remaining())

	require.NoError(t, os.WriteFile(path, []byte(`{"id":1}`), 0o644))
	if _, err := LoadHouseholds(path, timewindow.DefaultSpan(), 0); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewHouseholdStoreBackends(t *testing.T) {
	ctx := context.Background()
	input := writeInput(t, 6)
	cfg := &config.Config{}
	cfg.Household.Input = input
	cfg.Household.Backend = "sqlite"
	cfg.Household.Path = filepath.Join(t.TempDir(), "hh.db")
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	store, err := NewHouseholdStore(ctx, cfg)
	require.NoError(t, err)
	n, _ := store.Len(ctx)
	assert.Equal(t, 6, n)
	require.NoError(t, store.Close())

	cfg.Household.Input = ""
	store, err = NewHouseholdStore(ctx, cfg)
	require.NoError(t, err)
	n, _ = store.Len(ctx)
	assert.Equal(t, 6, n, "households persist in the database")
	require.NoError(t, store.Close())

	mem := &config.Config{}
	mem.Household.Input = writeInput(t, 40)
	mem.Model.SampleRate = 0.5
	mem.Model.SampleSeed = 3
	mem.SetDefaults()
	sampled, err := NewHouseholdStore(ctx, mem)
	require.NoError(t, err)
	n, _ = sampled.Len(ctx)
	assert.Less(t, n, 40)
	if n > 0 {
		hhs, err := sampled.Range(ctx, 0, n-1)
		require.NoError(t, err)
		assert.Equal(t, 0.5, hhs[0].SampleRate)
	}
}
