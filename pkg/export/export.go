// Package export writes simulated households as tour and trip tables.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/kilianp07/ctramp/core/model"
)

var tourHeader = []string{
	"hh_id", "tour_index", "tour_id", "category", "purpose", "person_num", "participants",
	"parent_tour", "orig_zone", "dest_zone", "dest_subzone", "mode", "start", "end",
	"outbound_stops", "inbound_stops", "state",
}

var tripHeader = []string{
	"hh_id", "tour_index", "stop_id", "inbound", "orig_purpose", "dest_purpose",
	"orig_zone", "dest_zone", "mode", "depart",
}

// WriteJSON writes the households to w as one JSON array.
func WriteJSON(w io.Writer, hhs []*model.Household) error {
	enc := json.NewEncoder(w)
	return enc.Encode(hhs)
}

// WriteToursCSV writes one row per tour. Joint tour participants are joined
// with spaces.
func WriteToursCSV(w io.Writer, hhs []*model.Household) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tourHeader); err != nil {
		return err
	}
	for _, h := range hhs {
		for i := range h.Tours {
			if err := cw.Write(tourRow(h.ID, &h.Tours[i])); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTripsCSV writes one row per half-tour leg, outbound legs first.
func WriteTripsCSV(w io.Writer, hhs []*model.Household) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tripHeader); err != nil {
		return err
	}
	for _, h := range hhs {
		for i := range h.Tours {
			t := &h.Tours[i]
			for _, s := range append(append([]model.Stop{}, t.Outbound...), t.Inbound...) {
				rec := []string{
					itoa(h.ID), itoa(t.Index), itoa(s.ID), strconv.FormatBool(s.Inbound),
					s.OrigPurpose, s.DestPurpose, itoa(s.OrigZone), itoa(s.DestZone),
					itoa(s.Mode), itoa(s.Depart),
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func tourRow(hhID int, t *model.Tour) []string {
	parts := make([]string, 0, len(t.Participants))
	for _, p := range t.Participants {
		parts = append(parts, itoa(p))
	}
	return []string{
		itoa(hhID), itoa(t.Index), itoa(t.ID), t.Category.String(), t.Purpose,
		itoa(t.PersonNum), strings.Join(parts, " "), itoa(t.ParentTour),
		itoa(t.OrigZone), itoa(t.DestZone), itoa(t.DestSubzone), itoa(t.Mode),
		itoa(t.Start), itoa(t.End),
		itoa(t.NumOutboundStops()), itoa(t.NumInboundStops()), t.State.String(),
	}
}

func itoa(v int) string { return strconv.Itoa(v) }
