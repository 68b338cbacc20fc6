package model

import (
	"errors"
	"fmt"

	"github.com/kilianp07/ctramp/core/random"
	"github.com/kilianp07/ctramp/core/timewindow"
)

var (
	// ErrUnknownPerson is returned for person numbers outside 1..Size.
	ErrUnknownPerson = errors.New("unknown person")
	// ErrUnknownTour is returned for tour indices outside the tour arena.
	ErrUnknownTour = errors.New("unknown tour")
)

// Household owns its persons and every tour they make. Persons[0] is an
// unused placeholder so that person numbers are 1-based.
type Household struct {
	ID          int     `json:"id"`
	Income      int     `json:"income"`
	Workers     int     `json:"workers"`
	Type        int     `json:"type"`
	HomeZone    int     `json:"home_zone"`
	HomeSubzone int     `json:"home_subzone"`
	SampleRate  float64 `json:"sample_rate,omitempty"`
	Debug       bool    `json:"debug,omitempty"`

	Autos          int    `json:"autos"`
	Pattern        string `json:"pattern,omitempty"`
	JointFrequency int    `json:"joint_frequency,omitempty"`

	MaxAdultOverlaps      int `json:"max_adult_overlaps,omitempty"`
	MaxChildOverlaps      int `json:"max_child_overlaps,omitempty"`
	MaxAdultChildOverlaps int `json:"max_adult_child_overlaps,omitempty"`
	MaxAdultWindow        int `json:"max_adult_window,omitempty"`
	MaxChildWindow        int `json:"max_child_window,omitempty"`

	Persons []Person       `json:"persons"`
	Tours   []Tour         `json:"tours,omitempty"`
	Random  *random.Ledger `json:"random"`
}

// NewHousehold returns a household with size empty persons, each holding a
// free time window over span, and a random stream seeded from baseSeed.
func NewHousehold(id, size int, span timewindow.Span, baseSeed int64) *Household {
	h := &Household{
		ID:      id,
		Persons: make([]Person, size+1),
		Random:  random.NewLedger(random.Seed(baseSeed, id)),
	}
	for i := 1; i <= size; i++ {
		h.Persons[i].Num = i
		h.Persons[i].Window = timewindow.New(span)
	}
	return h
}

// Size returns the number of persons.
func (h *Household) Size() int {
	if len(h.Persons) == 0 {
		return 0
	}
	return len(h.Persons) - 1
}

// Person returns person num.
func (h *Household) Person(num int) (*Person, error) {
	if num < 1 || num >= len(h.Persons) {
		return nil, fmt.Errorf("%w: household %d person %d", ErrUnknownPerson, h.ID, num)
	}
	return &h.Persons[num], nil
}

// Members returns pointers to persons 1..Size.
func (h *Household) Members() []*Person {
	out := make([]*Person, 0, h.Size())
	for i := 1; i < len(h.Persons); i++ {
		out = append(out, &h.Persons[i])
	}
	return out
}

// Tour returns the tour stored at arena index i.
func (h *Household) Tour(i int) (*Tour, error) {
	if i < 0 || i >= len(h.Tours) {
		return nil, fmt.Errorf("%w: household %d tour %d", ErrUnknownTour, h.ID, i)
	}
	return &h.Tours[i], nil
}

// AddTour creates an individual mandatory or non-mandatory tour for person num
// and returns its arena index.
func (h *Household) AddTour(num int, c Category, purpose string) (int, error) {
	if c != Mandatory && c != IndividualNonMandatory {
		return 0, fmt.Errorf("add tour: category %s is not an individual tour", c)
	}
	if _, err := h.Person(num); err != nil {
		return 0, err
	}
	t := Tour{
		ID:          len(h.ToursOf(num, c)),
		Category:    c,
		Purpose:     purpose,
		PersonNum:   num,
		ParentTour:  NoParent,
		OrigZone:    h.HomeZone,
		OrigSubzone: h.HomeSubzone,
	}
	return h.push(t), nil
}

// AddJointTour creates a joint tour for the given participants.
func (h *Household) AddJointTour(purpose string, participants []int, composition int) (int, error) {
	if len(participants) < 2 {
		return 0, fmt.Errorf("joint tour needs at least 2 participants, got %d", len(participants))
	}
	seen := make(map[int]bool, len(participants))
	for _, p := range participants {
		if _, err := h.Person(p); err != nil {
			return 0, err
		}
		if seen[p] {
			return 0, fmt.Errorf("joint tour lists person %d twice", p)
		}
		seen[p] = true
	}
	t := Tour{
		ID:           len(h.JointTours()),
		Category:     JointNonMandatory,
		Purpose:      purpose,
		Participants: append([]int(nil), participants...),
		Composition:  composition,
		ParentTour:   NoParent,
		OrigZone:     h.HomeZone,
		OrigSubzone:  h.HomeSubzone,
	}
	return h.push(t), nil
}

// AddSubtour creates an at-work subtour of the mandatory tour at index parent.
// The subtour starts at the parent's destination.
func (h *Household) AddSubtour(parent int, purpose string) (int, error) {
	pt, err := h.Tour(parent)
	if err != nil {
		return 0, err
	}
	if pt.Category != Mandatory {
		return 0, fmt.Errorf("subtour parent %d is a %s tour", parent, pt.Category)
	}
	work := 0
	for _, i := range h.ToursOf(pt.PersonNum, Mandatory) {
		if i == parent {
			break
		}
		work++
	}
	t := Tour{
		ID:          SubtourID(work, len(h.Subtours(parent))),
		Category:    AtWork,
		Purpose:     purpose,
		PersonNum:   pt.PersonNum,
		ParentTour:  parent,
		OrigZone:    pt.DestZone,
		OrigSubzone: pt.DestSubzone,
	}
	return h.push(t), nil
}

func (h *Household) push(t Tour) int {
	t.Index = len(h.Tours)
	h.Tours = append(h.Tours, t)
	return t.Index
}

// ToursOf returns the arena indices of person num's tours of category c.
func (h *Household) ToursOf(num int, c Category) []int {
	var out []int
	for i := range h.Tours {
		t := &h.Tours[i]
		if t.Category == c && !t.IsJoint() && t.PersonNum == num {
			out = append(out, i)
		}
	}
	return out
}

// JointTours returns the arena indices of joint tours.
func (h *Household) JointTours() []int {
	var out []int
	for i := range h.Tours {
		if h.Tours[i].IsJoint() {
			out = append(out, i)
		}
	}
	return out
}

// Subtours returns the arena indices of the at-work subtours of parent.
func (h *Household) Subtours(parent int) []int {
	var out []int
	for i := range h.Tours {
		if h.Tours[i].IsSubtour() && h.Tours[i].ParentTour == parent {
			out = append(out, i)
		}
	}
	return out
}

// ClearTours removes every tour of category c, and the subtours of removed
// mandatory tours, then compacts the arena. Used when a run restarts at the
// stage that generates c.
func (h *Household) ClearTours(c Category) {
	drop := make([]bool, len(h.Tours))
	for i, t := range h.Tours {
		drop[i] = t.Category == c
		if t.IsSubtour() && t.ParentTour >= 0 && t.ParentTour < len(h.Tours) && h.Tours[t.ParentTour].Category == c {
			drop[i] = true
		}
	}
	remap := make([]int, len(h.Tours))
	kept := make([]Tour, 0, len(h.Tours))
	for i, t := range h.Tours {
		if drop[i] {
			remap[i] = NoParent
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, t)
	}
	for i := range kept {
		kept[i].Index = i
		if kept[i].ParentTour >= 0 {
			kept[i].ParentTour = remap[kept[i].ParentTour]
		}
		for j := range kept[i].Outbound {
			kept[i].Outbound[j].Tour = i
		}
		for j := range kept[i].Inbound {
			kept[i].Inbound[j].Tour = i
		}
	}
	h.Tours = kept
}

// ResetWindows frees every person's time window.
func (h *Household) ResetWindows() {
	for i := 1; i < len(h.Persons); i++ {
		if h.Persons[i].Window != nil {
			h.Persons[i].Window.Reset()
		}
	}
}

// Validate checks the ownership invariants of the tour arena.
func (h *Household) Validate() error {
	for i := 1; i < len(h.Persons); i++ {
		if h.Persons[i].Num != i {
			return fmt.Errorf("household %d: person slot %d has num %d", h.ID, i, h.Persons[i].Num)
		}
		if h.Persons[i].Window == nil {
			return fmt.Errorf("household %d: person %d has no time window", h.ID, i)
		}
	}
	for i := range h.Tours {
		t := &h.Tours[i]
		if t.Index != i {
			return fmt.Errorf("household %d: tour slot %d has index %d", h.ID, i, t.Index)
		}
		seen := make(map[int]bool, len(t.Persons()))
		for _, p := range t.Persons() {
			if _, err := h.Person(p); err != nil {
				return fmt.Errorf("tour %d: %w", i, err)
			}
			if seen[p] {
				return fmt.Errorf("household %d: tour %d lists person %d twice", h.ID, i, p)
			}
			seen[p] = true
		}
		if t.IsSubtour() {
			if t.ParentTour < 0 || t.ParentTour >= len(h.Tours) || h.Tours[t.ParentTour].Category != Mandatory {
				return fmt.Errorf("household %d: subtour %d has invalid parent %d", h.ID, i, t.ParentTour)
			}
		}
	}
	return nil
}
