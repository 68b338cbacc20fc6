package trace

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kilianp07/ctramp/infra/tracelog"
)

// Querier reads trace records. A householdID of 0 matches every household.
type Querier interface {
	Query(ctx context.Context, householdID int) ([]tracelog.Record, error)
}

// NewHandler returns an HTTP handler exposing household traces via GET /api/trace.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
// The household_id, stage and worker query parameters filter the records.
func NewHandler(q Querier, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		id := 0
		if s := r.URL.Query().Get("household_id"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "invalid household_id", http.StatusBadRequest)
				return
			}
			id = v
		}
		records, err := q.Query(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		stage, worker := r.URL.Query().Get("stage"), r.URL.Query().Get("worker")
		out := make([]tracelog.Record, 0, len(records))
		for _, rec := range records {
			if (stage != "" && rec.Stage != stage) || (worker != "" && rec.Worker != worker) {
				continue
			}
			out = append(out, rec)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
