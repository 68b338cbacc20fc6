package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/scheduler"
	"github.com/kilianp07/ctramp/core/timewindow"
)

func TestUncommitReleasesSubtours(t *testing.T) {
	sch := scheduler.New(scheduler.DefaultConfig(), nil)
	h := workers(t, 1)[0]
	work := 0
	_, err := sch.CommitWindow(h, work, 8, 12)
	require.NoError(t, err)
	sub, err := h.AddSubtour(work, "eat")
	require.NoError(t, err)
	require.NoError(t, sch.ChooseDestination(h, sub, 2, 0))
	require.NoError(t, sch.ChooseMode(h, sub, 1))
	res, err := sch.CommitWindow(h, sub, 9, 11)
	require.NoError(t, err)
	require.True(t, res.Feasible)

	shop, err := h.AddTour(2, model.IndividualNonMandatory, "shop")
	require.NoError(t, err)
	require.NoError(t, sch.ChooseDestination(h, shop, 2, 0))
	require.NoError(t, sch.ChooseMode(h, shop, 1))
	_, err = sch.CommitWindow(h, shop, 14, 16)
	require.NoError(t, err)

	if err := uncommit(h, model.Mandatory); err != nil {
		t.Fatalf("uncommit: %v", err)
	}
	assert.Equal(t, model.ModeChosen, h.Tours[work].State)
	assert.Equal(t, model.ModeChosen, h.Tours[sub].State, "subtour kept a window its parent no longer has")
	assert.Equal(t, model.WindowCommitted, h.Tours[shop].State)
	assert.True(t, h.Persons[1].Window.Equal(timewindow.New(timewindow.DefaultSpan())))
	assert.False(t, h.Persons[2].Window.CanBook(13, 15))

	res, err = sch.CommitWindow(h, work, 13, 18)
	require.NoError(t, err)
	require.True(t, res.Feasible)
	res, err = sch.CommitWindow(h, sub, 9, 11)
	require.NoError(t, err)
	assert.False(t, res.Feasible)
}
