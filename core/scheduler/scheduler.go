package scheduler

import (
	"errors"
	"fmt"

	"github.com/kilianp07/ctramp/core/logger"
	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/timewindow"
)

var (
	// ErrInvalidTransition is returned when an operation is applied to a tour
	// in the wrong state.
	ErrInvalidTransition = errors.New("invalid tour state transition")
	// ErrStopOutsideWindow is returned when a stop departure falls outside the
	// committed window of its tour.
	ErrStopOutsideWindow = errors.New("stop departure outside tour window")
	// ErrTooManyStops is returned when a half-tour exceeds the stop limit.
	ErrTooManyStops = errors.New("too many stops")
)

// Home is the purpose at both ends of a home-based tour.
const Home = "Home"

// Work is the purpose at both ends of an at-work subtour.
const Work = "Work"

// Result reports the outcome of a window commitment. An infeasible window is
// a normal outcome: Blocking lists the persons whose windows rejected it.
type Result struct {
	Feasible bool
	Blocking []int
}

// Scheduler applies the scheduling sequence to tours held in a household.
type Scheduler struct {
	Config Config
	log    logger.Logger
}

// New returns a Scheduler for the modeled day in cfg.
func New(cfg Config, log logger.Logger) *Scheduler {
	cfg.SetDefaults()
	return &Scheduler{Config: cfg, log: logger.OrNop(log)}
}

func (s *Scheduler) tour(h *model.Household, idx int, want model.State) (*model.Tour, error) {
	t, err := h.Tour(idx)
	if err != nil {
		return nil, err
	}
	if t.State != want {
		return nil, fmt.Errorf("%w: tour %d of household %d is %s, want %s", ErrInvalidTransition, idx, h.ID, t.State, want)
	}
	return t, nil
}

func (s *Scheduler) trace(h *model.Household, msg string, t *model.Tour, extra map[string]any) {
	if !h.Debug {
		return
	}
	fields := map[string]any{
		"household": h.ID,
		"tour":      t.Index,
		"tour_id":   t.ID,
		"category":  t.Category.String(),
		"purpose":   t.Purpose,
		"state":     t.State.String(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	s.log.Debugw(msg, fields)
}

// ChooseDestination records the primary destination of tour idx.
func (s *Scheduler) ChooseDestination(h *model.Household, idx, zone, subzone int) error {
	t, err := s.tour(h, idx, model.Unscheduled)
	if err != nil {
		return err
	}
	t.DestZone, t.DestSubzone = zone, subzone
	t.State = model.DestinationChosen
	s.trace(h, "destination chosen", t, map[string]any{"zone": zone, "subzone": subzone})
	return nil
}

// ChooseMode records the main mode of tour idx.
func (s *Scheduler) ChooseMode(h *model.Household, idx, mode int) error {
	t, err := s.tour(h, idx, model.DestinationChosen)
	if err != nil {
		return err
	}
	t.Mode = mode
	t.State = model.ModeChosen
	s.trace(h, "mode chosen", t, map[string]any{"mode": mode})
	return nil
}

// Feasible reports whether start..end fits every traveller of tour idx
// without booking anything, and which persons block it.
func (s *Scheduler) Feasible(h *model.Household, idx, start, end int) (Result, error) {
	t, err := h.Tour(idx)
	if err != nil {
		return Result{}, err
	}
	return s.feasible(h, t, start, end)
}

func (s *Scheduler) feasible(h *model.Household, t *model.Tour, start, end int) (Result, error) {
	if t.IsSubtour() {
		parent, err := h.Tour(t.ParentTour)
		if err != nil {
			return Result{}, err
		}
		if parent.State < model.WindowCommitted {
			return Result{}, fmt.Errorf("%w: parent tour %d has no committed window", ErrInvalidTransition, parent.Index)
		}
		if start < parent.Start || end > parent.End || end < start {
			return Result{Blocking: []int{t.PersonNum}}, nil
		}
		w, err := s.workWindow(h, parent, t.Index)
		if err != nil {
			return Result{}, err
		}
		if !w.CanBook(start, end) {
			return Result{Blocking: []int{t.PersonNum}}, nil
		}
		return Result{Feasible: true}, nil
	}
	var blocking []int
	for _, num := range t.Persons() {
		p, err := h.Person(num)
		if err != nil {
			return Result{}, err
		}
		if !p.Window.CanBook(start, end) {
			blocking = append(blocking, num)
		}
	}
	return Result{Feasible: len(blocking) == 0, Blocking: blocking}, nil
}

// workWindow is the window inside parent's span already taken by its
// committed subtours, tour exclude aside.
func (s *Scheduler) workWindow(h *model.Household, parent *model.Tour, exclude int) (*timewindow.Window, error) {
	w := timewindow.New(s.Config.Span())
	for _, i := range h.Subtours(parent.Index) {
		sub := &h.Tours[i]
		if i == exclude || sub.State < model.WindowCommitted {
			continue
		}
		if err := w.Book(sub.Start, sub.End); err != nil {
			return nil, fmt.Errorf("subtour %d of tour %d: %w", i, parent.Index, err)
		}
	}
	return w, nil
}

// CommitWindow books start..end for every traveller of tour idx. Either all
// windows are booked or none is. Subtours must fit their parent work tour and
// its already committed subtours; they do not book the person window again.
func (s *Scheduler) CommitWindow(h *model.Household, idx, start, end int) (Result, error) {
	t, err := s.tour(h, idx, model.ModeChosen)
	if err != nil {
		return Result{}, err
	}
	span := s.Config.Span()
	if !span.Contains(start) || !span.Contains(end) {
		return Result{}, fmt.Errorf("%w: %d..%d", timewindow.ErrHourOutOfSpan, start, end)
	}
	res, err := s.feasible(h, t, start, end)
	if err != nil {
		return Result{}, err
	}
	if !res.Feasible {
		s.trace(h, "window infeasible", t, map[string]any{"start": start, "end": end, "blocking": res.Blocking})
		return res, nil
	}
	if !t.IsSubtour() {
		if err := bookAll(h, t.Persons(), start, end); err != nil {
			return Result{}, err
		}
	}
	t.Start, t.End = start, end
	t.State = model.WindowCommitted
	s.trace(h, "window committed", t, map[string]any{"start": start, "end": end})
	return res, nil
}

// bookAll books every person or restores all windows on failure.
func bookAll(h *model.Household, persons []int, start, end int) error {
	saved := make([]*timewindow.Window, len(persons))
	for i, num := range persons {
		saved[i] = h.Persons[num].Window.Clone()
	}
	for i, num := range persons {
		if err := h.Persons[num].Window.Book(start, end); err != nil {
			for j := 0; j <= i; j++ {
				h.Persons[persons[j]].Window.Restore(saved[j])
			}
			return fmt.Errorf("book person %d: %w", num, err)
		}
	}
	return nil
}

// GenerateStops creates the stops of both half-tours from their destination
// purposes. A half-tour without stops gets a single direct leg. Stops depart
// at the tour start (outbound) or end (inbound) until moved.
func (s *Scheduler) GenerateStops(h *model.Household, idx int, outbound, inbound []string) error {
	t, err := s.tour(h, idx, model.WindowCommitted)
	if err != nil {
		return err
	}
	if len(outbound) > s.Config.MaxStops || len(inbound) > s.Config.MaxStops {
		return fmt.Errorf("%w: %d outbound, %d inbound, limit %d", ErrTooManyStops, len(outbound), len(inbound), s.Config.MaxStops)
	}
	anchor := Home
	if t.IsSubtour() {
		anchor = Work
	}
	t.Outbound = halfTour(t, false, anchor, outbound)
	t.Inbound = halfTour(t, true, t.Purpose, inbound)
	t.State = model.StopsGenerated
	s.trace(h, "stops generated", t, map[string]any{"outbound": len(outbound), "inbound": len(inbound)})
	return nil
}

func halfTour(t *model.Tour, inbound bool, from string, purposes []string) []model.Stop {
	depart, zone, subzone := t.Start, t.OrigZone, t.OrigSubzone
	if inbound {
		depart, zone, subzone = t.End, t.DestZone, t.DestSubzone
	}
	if len(purposes) == 0 {
		return []model.Stop{{
			ID:          model.DirectStopID,
			Tour:        t.Index,
			Inbound:     inbound,
			OrigPurpose: from,
			OrigZone:    zone,
			OrigSubzone: subzone,
			Depart:      depart,
		}}
	}
	stops := make([]model.Stop, len(purposes))
	for i, p := range purposes {
		stops[i] = model.Stop{
			ID:          i,
			Tour:        t.Index,
			Inbound:     inbound,
			OrigPurpose: from,
			DestPurpose: p,
			Mode:        t.Mode,
			Depart:      depart,
		}
		if i == 0 {
			stops[i].OrigZone, stops[i].OrigSubzone = zone, subzone
		}
		from = p
	}
	return stops
}

// SetStopDeparture moves the departure hour of stop pos of one half-tour.
func (s *Scheduler) SetStopDeparture(h *model.Household, idx int, inbound bool, pos, hour int) error {
	t, err := s.tour(h, idx, model.StopsGenerated)
	if err != nil {
		return err
	}
	stops := t.Stops(inbound)
	if pos < 0 || pos >= len(stops) {
		return fmt.Errorf("tour %d has no stop %d", idx, pos)
	}
	if hour < t.Start || hour > t.End {
		return fmt.Errorf("%w: hour %d not in %d..%d", ErrStopOutsideWindow, hour, t.Start, t.End)
	}
	stops[pos].Depart = hour
	return nil
}

// Finalize closes the scheduling sequence of tour idx.
func (s *Scheduler) Finalize(h *model.Household, idx int) error {
	t, err := s.tour(h, idx, model.StopsGenerated)
	if err != nil {
		return err
	}
	t.State = model.Finalized
	s.trace(h, "tour finalized", t, nil)
	return nil
}

// Available evaluates every alternative against the travellers of tour idx.
// The result is 1-based: element k describes alts[k-1] and element 0 is unused.
func (s *Scheduler) Available(h *model.Household, idx int, alts []Alternative) ([]bool, error) {
	t, err := h.Tour(idx)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(alts)+1)
	for k, a := range alts {
		r, err := s.feasible(h, t, a.Start, a.End)
		if err != nil {
			return nil, err
		}
		out[k+1] = r.Feasible
	}
	return out, nil
}
