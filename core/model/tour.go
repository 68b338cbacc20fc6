package model

import "fmt"

// Category groups tours by how they are generated and who owns them.
type Category int

const (
	Mandatory Category = iota + 1
	JointNonMandatory
	IndividualNonMandatory
	AtWork
)

func (c Category) String() string {
	switch c {
	case Mandatory:
		return "mandatory"
	case JointNonMandatory:
		return "joint_non_mandatory"
	case IndividualNonMandatory:
		return "individual_non_mandatory"
	case AtWork:
		return "at_work"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory maps a category name to its value.
func ParseCategory(name string) (Category, error) {
	for _, c := range []Category{Mandatory, JointNonMandatory, IndividualNonMandatory, AtWork} {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown tour category %q", name)
}

// State is the position of a tour in its scheduling sequence.
type State int

const (
	Unscheduled State = iota
	DestinationChosen
	ModeChosen
	WindowCommitted
	StopsGenerated
	Finalized
)

func (s State) String() string {
	switch s {
	case Unscheduled:
		return "unscheduled"
	case DestinationChosen:
		return "destination_chosen"
	case ModeChosen:
		return "mode_chosen"
	case WindowCommitted:
		return "window_committed"
	case StopsGenerated:
		return "stops_generated"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Joint tour party compositions.
const (
	CompositionAdults   = 1
	CompositionChildren = 2
	CompositionMixed    = 3
)

// NoParent marks a tour that is not an at-work subtour.
const NoParent = -1

// Tour is a home- or work-based round trip. Tours live in the household's
// tour arena and reference their owners by index: PersonNum for individual
// tours and subtours, Participants for joint tours and ParentTour for
// at-work subtours.
type Tour struct {
	Index        int      `json:"index"`
	ID           int      `json:"id"`
	Category     Category `json:"category"`
	Purpose      string   `json:"purpose"`
	PurposeIndex int      `json:"purpose_index,omitempty"`

	PersonNum    int   `json:"person_num,omitempty"`
	Participants []int `json:"participants,omitempty"`
	Composition  int   `json:"composition,omitempty"`
	ParentTour   int   `json:"parent_tour"`

	OrigZone    int `json:"orig_zone"`
	OrigSubzone int `json:"orig_subzone"`
	DestZone    int `json:"dest_zone"`
	DestSubzone int `json:"dest_subzone"`
	Mode        int `json:"mode"`
	Start       int `json:"start"`
	End         int `json:"end"`

	SubtourFrequency int `json:"subtour_frequency,omitempty"`
	StopFrequency    int `json:"stop_frequency,omitempty"`

	State    State  `json:"state"`
	Outbound []Stop `json:"outbound,omitempty"`
	Inbound  []Stop `json:"inbound,omitempty"`
}

// IsJoint reports whether the tour is shared by several household members.
func (t *Tour) IsJoint() bool { return t.Category == JointNonMandatory }

// IsSubtour reports whether the tour is an at-work subtour.
func (t *Tour) IsSubtour() bool { return t.Category == AtWork }

// Persons returns the person numbers travelling on the tour.
func (t *Tour) Persons() []int {
	if t.IsJoint() {
		return t.Participants
	}
	return []int{t.PersonNum}
}

// Includes reports whether person num travels on the tour.
func (t *Tour) Includes(num int) bool {
	for _, p := range t.Persons() {
		if p == num {
			return true
		}
	}
	return false
}

// Stops returns the outbound or inbound half-tour.
func (t *Tour) Stops(inbound bool) []Stop {
	if inbound {
		return t.Inbound
	}
	return t.Outbound
}

// NumOutboundStops counts intermediate outbound stops.
func (t *Tour) NumOutboundStops() int { return countStops(t.Outbound) }

// NumInboundStops counts intermediate inbound stops.
func (t *Tour) NumInboundStops() int { return countStops(t.Inbound) }

func countStops(stops []Stop) int {
	n := 0
	for _, s := range stops {
		if !s.IsDirect() {
			n++
		}
	}
	return n
}

// Duration returns the number of hours between departure and arrival.
func (t *Tour) Duration() int { return t.End - t.Start }

// SubtourID encodes the id of the k-th subtour of the w-th work tour of a
// person, both 0-based.
func SubtourID(workTour, k int) int { return 10*(workTour+1) + k }

// SubtourParent decodes the 0-based work tour position from a subtour id.
func SubtourParent(id int) int { return id/10 - 1 }
