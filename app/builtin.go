package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/ctramp/core/factory"
	"github.com/kilianp07/ctramp/core/matrix"
	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/random"
)

func init() {
	_ = RegisterStage("reset_windows", func(map[string]any) (Stage, error) {
		return resetWindows{}, nil
	})
	_ = RegisterStage("update_time_windows", func(map[string]any) (Stage, error) {
		return updateTimeWindows{}, nil
	})
	_ = RegisterStage("commit_planned", func(conf map[string]any) (Stage, error) {
		c, err := decodeCategory(conf)
		if err != nil {
			return nil, err
		}
		return commitPlanned{category: c}, nil
	})
	_ = RegisterStage("uniform_time_of_day", func(conf map[string]any) (Stage, error) {
		c, err := decodeCategory(conf)
		if err != nil {
			return nil, err
		}
		return uniformTimeOfDay{category: c}, nil
	})
	_ = RegisterStage("check_destinations", func(conf map[string]any) (Stage, error) {
		var c struct {
			Matrix string `json:"matrix"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Matrix == "" {
			return nil, fmt.Errorf("check_destinations needs a matrix")
		}
		return checkDestinations{matrix: c.Matrix}, nil
	})
}

func decodeCategory(conf map[string]any) (model.Category, error) {
	var c struct {
		Category string `json:"category"`
	}
	if err := factory.Decode(conf, &c); err != nil {
		return 0, err
	}
	return model.ParseCategory(c.Category)
}

// resetWindows frees every person's day at the start of a run.
type resetWindows struct{}

func (resetWindows) Name() string         { return "reset_windows" }
func (resetWindows) Ledger() random.Stage { return NoLedger }
func (resetWindows) Apply(_ context.Context, _ *Env, h *model.Household) error {
	h.ResetWindows()
	return nil
}

// updateTimeWindows refreshes the household overlap statistics read by the
// joint tour models.
type updateTimeWindows struct{}

func (updateTimeWindows) Name() string         { return "update_time_windows" }
func (updateTimeWindows) Ledger() random.Stage { return NoLedger }
func (updateTimeWindows) Apply(_ context.Context, env *Env, h *model.Household) error {
	s := h.UpdateTimeWindows()
	if h.Debug {
		env.Log.Debugw("time windows updated", map[string]any{
			"household":    h.ID,
			"adult_ovl":    s.MaxAdultOverlaps,
			"child_ovl":    s.MaxChildOverlaps,
			"mixed_ovl":    s.MaxAdultChildOverlaps,
			"adult_window": s.MaxAdultWindow,
			"child_window": s.MaxChildWindow,
		})
	}
	return nil
}

// commitPlanned books the windows of tours whose hours arrived with the
// input, in tour order.
type commitPlanned struct{ category model.Category }

func (s commitPlanned) Name() string         { return "commit_planned_" + s.category.String() }
func (s commitPlanned) Ledger() random.Stage { return timeOfDayStage(s.category) }
func (s commitPlanned) Apply(_ context.Context, env *Env, h *model.Household) error {
	for _, idx := range toursIn(h, s.category, model.ModeChosen) {
		t := &h.Tours[idx]
		res, err := env.Scheduler.CommitWindow(h, idx, t.Start, t.End)
		if err != nil {
			return err
		}
		if !res.Feasible {
			env.Log.Warnf("household %d tour %d: planned window %d..%d blocked by persons %v", h.ID, idx, t.Start, t.End, res.Blocking)
		}
	}
	return nil
}

func (s commitPlanned) Restart(_ *Env, h *model.Household) error {
	return uncommit(h, s.category)
}

// uniformTimeOfDay draws one number per tour and commits the window of an
// available alternative picked uniformly. It stands in for a time-of-day
// choice model.
type uniformTimeOfDay struct{ category model.Category }

func (s uniformTimeOfDay) Name() string         { return "uniform_time_of_day_" + s.category.String() }
func (s uniformTimeOfDay) Ledger() random.Stage { return timeOfDayStage(s.category) }
func (s uniformTimeOfDay) Apply(_ context.Context, env *Env, h *model.Household) error {
	alts := env.Scheduler.Config.Alternatives()
	for _, idx := range toursIn(h, s.category, model.ModeChosen) {
		r := h.Random.Float64()
		avail, err := env.Scheduler.Available(h, idx, alts)
		if err != nil {
			return err
		}
		var open []int
		for k := range alts {
			if avail[k+1] {
				open = append(open, k)
			}
		}
		if len(open) == 0 {
			env.Log.Warnf("household %d tour %d: no available time of day", h.ID, idx)
			continue
		}
		alt := alts[open[int(r*float64(len(open)))]]
		if _, err := env.Scheduler.CommitWindow(h, idx, alt.Start, alt.End); err != nil {
			return err
		}
	}
	return nil
}

func (s uniformTimeOfDay) Restart(_ *Env, h *model.Household) error {
	return uncommit(h, s.category)
}

// checkDestinations fails the household when a tour destination is missing
// from the given skim matrix.
type checkDestinations struct{ matrix string }

func (s checkDestinations) Name() string         { return "check_destinations" }
func (s checkDestinations) Ledger() random.Stage { return NoLedger }
func (s checkDestinations) Apply(ctx context.Context, env *Env, h *model.Household) error {
	m, err := env.Matrix(ctx, s.matrix)
	if err != nil {
		return err
	}
	for i := range h.Tours {
		t := &h.Tours[i]
		if t.State < model.DestinationChosen {
			continue
		}
		orig := t.OrigZone
		if orig == 0 {
			orig = h.HomeZone
		}
		if _, err := m.ValueAt(orig, t.DestZone); err != nil {
			if errors.Is(err, matrix.ErrUnknownZone) {
				return fmt.Errorf("household %d tour %d: %w", h.ID, i, err)
			}
			return err
		}
	}
	return nil
}

func toursIn(h *model.Household, c model.Category, state model.State) []int {
	var out []int
	for i := range h.Tours {
		if h.Tours[i].Category == c && h.Tours[i].State == state {
			out = append(out, i)
		}
	}
	return out
}

// uncommit returns the committed tours of c to ModeChosen and rebuilds every
// person window from the tours that stay committed. Subtours of a returned
// tour go back with it since their parent window is gone.
func uncommit(h *model.Household, c model.Category) error {
	for i := range h.Tours {
		if t := &h.Tours[i]; t.Category == c && t.State >= model.WindowCommitted {
			release(t)
			for _, j := range h.Subtours(i) {
				if h.Tours[j].State >= model.WindowCommitted {
					release(&h.Tours[j])
				}
			}
		}
	}
	h.ResetWindows()
	for i := range h.Tours {
		t := &h.Tours[i]
		if t.State < model.WindowCommitted || t.IsSubtour() {
			continue
		}
		for _, num := range t.Persons() {
			p, err := h.Person(num)
			if err != nil {
				return err
			}
			if err := p.Window.Book(t.Start, t.End); err != nil {
				return fmt.Errorf("household %d tour %d: rebook: %w", h.ID, i, err)
			}
		}
	}
	return nil
}

func release(t *model.Tour) {
	t.Outbound, t.Inbound = nil, nil
	t.State = model.ModeChosen
}
