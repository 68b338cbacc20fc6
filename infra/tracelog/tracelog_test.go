package tracelog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/timewindow"
)

func TestAppendAndQueryAcrossRotation(t *testing.T) {
	ctx := context.Background()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "trace", "hh.jsonl")})
	require.NoError(t, err)
	defer s.Close()

	h := model.NewHousehold(42, 2, timewindow.DefaultSpan(), 1)
	require.NoError(t, h.Persons[1].Window.Book(8, 12))
	h.Random.Float64()
	require.NoError(t, s.Append(ctx, Snapshot("w0", "cdap", h)))
	require.NoError(t, s.Rotate())
	other := model.NewHousehold(7, 1, timewindow.DefaultSpan(), 1)
	require.NoError(t, s.Append(ctx, Snapshot("w0", "cdap", other)))
	require.NoError(t, s.Append(ctx, Snapshot("w0", "imtf", h)))

	recs, err := s.Query(ctx, 42)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "cdap", recs[0].Stage)
	assert.Equal(t, "imtf", recs[1].Stage)
	assert.Equal(t, 1, recs[0].Draws)
	assert.Equal(t, "........[===]...........", recs[0].Windows[1])

	all, err := s.Query(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
