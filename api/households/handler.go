// Package households exposes read-only JSON views of the household store.
package households

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/model"
)

// Prefix is the path the handlers are mounted under.
const Prefix = "/api/households/"

// NewHandler serves GET /api/households/{id} and GET /api/households/{id}/tours.
func NewHandler(svc household.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, Prefix), "/")
		if len(parts) > 2 || (len(parts) == 2 && parts[1] != "tours") {
			http.NotFound(w, r)
			return
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			http.Error(w, "invalid household id", http.StatusBadRequest)
			return
		}
		idx, err := svc.Index(r.Context(), id)
		if errors.Is(err, household.ErrUnknownHousehold) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hhs, err := svc.Range(r.Context(), idx, idx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var body any = hhs[0]
		if len(parts) == 2 {
			tours := hhs[0].Tours
			if tours == nil {
				tours = []model.Tour{}
			}
			body = tours
		}
		writeJSON(w, body)
	})
}

// Summary is the destination table of one tour category and purpose.
type Summary struct {
	Category   string      `json:"category"`
	Purpose    string      `json:"purpose,omitempty"`
	Rows       [][]float64 `json:"rows"`
	ZoneTotals []float64   `json:"zone_totals"`
}

// NewSummaryHandler serves GET /api/summary/destinations with the category,
// purpose, zones and subzones query parameters.
func NewSummaryHandler(svc household.Service, chunk int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		c, err := model.ParseCategory(q.Get("category"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		zones, err1 := strconv.Atoi(q.Get("zones"))
		subzones, err2 := strconv.Atoi(q.Get("subzones"))
		if err1 != nil || err2 != nil || zones <= 0 || subzones <= 0 {
			http.Error(w, "zones and subzones must be positive integers", http.StatusBadRequest)
			return
		}
		hhs, err := household.All(r.Context(), svc, chunk)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		sum := household.DestinationSummary(hhs, c, q.Get("purpose"), zones, subzones)
		out := Summary{Category: c.String(), Purpose: q.Get("purpose"), ZoneTotals: household.ZoneTotals(sum)}
		for i := 0; i < zones; i++ {
			out.Rows = append(out.Rows, append([]float64(nil), sum.RawRowView(i)...))
		}
		writeJSON(w, out)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
