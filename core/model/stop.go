package model

// DirectStopID marks the single leg of a half-tour that has no intermediate stops.
const DirectStopID = -1

// Stop is an intermediate stop on one half of a tour. ID is the position of
// the stop in its half-tour.
type Stop struct {
	ID          int    `json:"id"`
	Tour        int    `json:"tour"`
	Inbound     bool   `json:"inbound"`
	OrigPurpose string `json:"orig_purpose"`
	DestPurpose string `json:"dest_purpose"`
	OrigZone    int    `json:"orig_zone,omitempty"`
	OrigSubzone int    `json:"orig_subzone,omitempty"`
	DestZone    int    `json:"dest_zone,omitempty"`
	DestSubzone int    `json:"dest_subzone,omitempty"`
	Mode        int    `json:"mode,omitempty"`
	Depart      int    `json:"depart"`
}

// IsDirect reports whether s stands for a half-tour without stops.
func (s Stop) IsDirect() bool { return s.ID == DirectStopID }
