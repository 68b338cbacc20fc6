package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/timewindow"
)

func households(t *testing.T) []*model.Household {
	t.Helper()
	h := model.NewHousehold(7, 2, timewindow.DefaultSpan(), 1)
	h.HomeZone = 3
	work, err := h.AddTour(1, model.Mandatory, "work")
	require.NoError(t, err)
	h.Tours[work].DestZone, h.Tours[work].Start, h.Tours[work].End = 9, 8, 17
	h.Tours[work].State = model.StopsGenerated
	h.Tours[work].Outbound = []model.Stop{
		{ID: 0, Tour: work, OrigPurpose: "home", DestPurpose: "escort", OrigZone: 3, DestZone: 4, Depart: 8},
		{ID: 1, Tour: work, OrigPurpose: "escort", DestPurpose: "work", OrigZone: 4, DestZone: 9, Depart: 8},
	}
	h.Tours[work].Inbound = []model.Stop{
		{ID: model.DirectStopID, Tour: work, Inbound: true, OrigPurpose: "work", DestPurpose: "home", OrigZone: 9, DestZone: 3, Depart: 17},
	}
	_, err = h.AddJointTour("shop", []int{1, 2}, model.CompositionAdults)
	require.NoError(t, err)
	return []*model.Household{h, model.NewHousehold(8, 1, timewindow.DefaultSpan(), 1)}
}

func readCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteToursCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteToursCSV(&buf, households(t)))
	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, tourHeader, rows[0])
	assert.Equal(t, []string{
		"7", "0", "0", "mandatory", "work", "1", "", "-1", "3", "9", "0", "0", "8", "17", "1", "0", "stops_generated",
	}, rows[1])
	assert.Equal(t, "joint_non_mandatory", rows[2][3])
	assert.Equal(t, "1 2", rows[2][6])
}

func TestWriteTripsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTripsCSV(&buf, households(t)))
	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 4)
	assert.Equal(t, tripHeader, rows[0])
	assert.Equal(t, []string{"7", "0", "0", "false", "home", "escort", "3", "4", "0", "8"}, rows[1])
	assert.Equal(t, []string{"7", "0", "-1", "true", "work", "home", "9", "3", "0", "17"}, rows[3])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, households(t)))
	var out []*model.Household
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	require.Len(t, out, 2)
	assert.Len(t, out[0].Tours, 2)
	assert.Equal(t, 8, out[1].ID)
}
