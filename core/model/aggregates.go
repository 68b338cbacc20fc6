package model

// Joint tour eligibility codes.
const (
	JointEligible           = 1
	JointSinglePerson       = 2
	JointTooFewTravelling   = 3
	JointNoNonPreschoolTrip = 4
)

// Count returns the number of persons satisfying pred.
func (h *Household) Count(pred func(*Person) bool) int {
	n := 0
	for i := 1; i < len(h.Persons); i++ {
		if pred(&h.Persons[i]) {
			n++
		}
	}
	return n
}

// CountType returns the number of persons of type t.
func (h *Household) CountType(t PersonType) int {
	return h.Count(func(p *Person) bool { return p.Type == t })
}

// NumFullTimeWorkers counts persons employed full time.
func (h *Household) NumFullTimeWorkers() int {
	return h.Count(func(p *Person) bool { return p.Employment == EmployedFullTime })
}

// NumPartTimeWorkers counts persons employed part time.
func (h *Household) NumPartTimeWorkers() int {
	return h.Count(func(p *Person) bool { return p.Employment == EmployedPartTime })
}

// NumWorkers counts employed persons of any kind.
func (h *Household) NumWorkers() int { return h.Count((*Person).IsWorker) }

// NumStudents counts persons enrolled in any school.
func (h *Household) NumStudents() int { return h.Count((*Person).IsStudent) }

// NumUniversityStudents counts persons of type UniversityStudent.
func (h *Household) NumUniversityStudents() int { return h.CountType(UniversityStudent) }

// NumNonWorkingAdults counts non-workers and retirees.
func (h *Household) NumNonWorkingAdults() int {
	return h.CountType(NonWorker) + h.CountType(Retired)
}

// NumRetired counts persons of type Retired.
func (h *Household) NumRetired() int { return h.CountType(Retired) }

// NumDrivingStudents counts students of driving age.
func (h *Household) NumDrivingStudents() int { return h.CountType(DrivingStudent) }

// NumNonDrivingStudents counts school children too young to drive.
func (h *Household) NumNonDrivingStudents() int { return h.CountType(NonDrivingStudent) }

// NumPreschool counts preschool children.
func (h *Household) NumPreschool() int { return h.CountType(Preschool) }

// NumAged counts persons aged lo..hi inclusive. A negative hi means no upper bound.
func (h *Household) NumAged(lo, hi int) int {
	return h.Count(func(p *Person) bool { return p.Age >= lo && (hi < 0 || p.Age <= hi) })
}

// NumChildrenUnder16 counts persons aged 0..15.
func (h *Household) NumChildrenUnder16() int { return h.NumAged(0, 15) }

// NumChildrenUnder19 counts persons aged 0..18.
func (h *Household) NumChildrenUnder19() int { return h.NumAged(0, 18) }

// NumDrivers counts persons of driving age.
func (h *Household) NumDrivers() int { return h.NumAged(16, -1) }

// AutoSufficiency returns 0 with no autos, 1 with fewer autos than workers and
// 2 otherwise.
func (h *Household) AutoSufficiency() int {
	switch {
	case h.Autos == 0:
		return 0
	case h.Autos < h.NumWorkers():
		return 1
	default:
		return 2
	}
}

// NumChildrenUnder16AtHomeOrNonMandatory counts children under 16 whose
// day pattern keeps them home or limits them to non-mandatory travel.
func (h *Household) NumChildrenUnder16AtHomeOrNonMandatory() int {
	return h.Count((*Person).IsChildUnder16AtHomeOrNonMandatory)
}

// TravelActiveAdults counts adults whose pattern takes them out of home.
func (h *Household) TravelActiveAdults() int {
	return h.Count(func(p *Person) bool { return p.IsAdult() && !p.StaysHome() })
}

// TravelActiveChildren counts non-adults whose pattern takes them out of home.
func (h *Household) TravelActiveChildren() int {
	return h.Count(func(p *Person) bool { return !p.IsAdult() && !p.StaysHome() })
}

// JointTourEligibility returns one of the Joint* codes.
func (h *Household) JointTourEligibility() int {
	if h.Size() == 1 {
		return JointSinglePerson
	}
	leaves, nonPreschool := 0, 0
	for i := 1; i < len(h.Persons); i++ {
		p := &h.Persons[i]
		if p.StaysHome() {
			continue
		}
		leaves++
		if p.Type != Preschool {
			nonPreschool++
		}
	}
	if leaves < 2 {
		return JointTooFewTravelling
	}
	if nonPreschool < 1 {
		return JointNoNonPreschoolTrip
	}
	return JointEligible
}

// MaxPairwiseOverlap returns the largest window overlap over ordered pairs of
// distinct persons that both satisfy pred.
func (h *Household) MaxPairwiseOverlap(pred func(*Person) bool) int {
	best := 0
	for i := 1; i < len(h.Persons); i++ {
		p := &h.Persons[i]
		if !pred(p) {
			continue
		}
		for j := 1; j < len(h.Persons); j++ {
			q := &h.Persons[j]
			if i == j || !pred(q) {
				continue
			}
			if o := p.Window.Overlap(q.Window); o > best {
				best = o
			}
		}
	}
	return best
}

// WindowSummary holds the household-level time window statistics used by the
// joint tour models.
type WindowSummary struct {
	MaxAdultOverlaps      int `json:"max_adult_overlaps"`
	MaxChildOverlaps      int `json:"max_child_overlaps"`
	MaxAdultChildOverlaps int `json:"max_adult_child_overlaps"`
	MaxAdultWindow        int `json:"max_adult_window"`
	MaxChildWindow        int `json:"max_child_window"`
}

// UpdateTimeWindows recomputes the household and per-person overlap
// statistics. Adults here are persons without a child person type.
func (h *Household) UpdateTimeWindows() WindowSummary {
	var s WindowSummary
	for i := 1; i < len(h.Persons); i++ {
		p := &h.Persons[i]
		pAdult := !p.IsChild()
		avail := p.Window.Remaining()
		if pAdult && avail > s.MaxAdultWindow {
			s.MaxAdultWindow = avail
		} else if !pAdult && avail > s.MaxChildWindow {
			s.MaxChildWindow = avail
		}
		p.MaxAdultOverlaps, p.MaxChildOverlaps = 0, 0
		for j := 1; j < len(h.Persons); j++ {
			if i == j {
				continue
			}
			q := &h.Persons[j]
			qAdult := !q.IsChild()
			o := p.Window.Overlap(q.Window)
			switch {
			case pAdult && qAdult:
				s.MaxAdultOverlaps = max(s.MaxAdultOverlaps, o)
				p.MaxAdultOverlaps = max(p.MaxAdultOverlaps, o)
			case !pAdult && !qAdult:
				s.MaxChildOverlaps = max(s.MaxChildOverlaps, o)
				p.MaxChildOverlaps = max(p.MaxChildOverlaps, o)
			default:
				s.MaxAdultChildOverlaps = max(s.MaxAdultChildOverlaps, o)
			}
		}
	}
	h.MaxAdultOverlaps = s.MaxAdultOverlaps
	h.MaxChildOverlaps = s.MaxChildOverlaps
	h.MaxAdultChildOverlaps = s.MaxAdultChildOverlaps
	h.MaxAdultWindow = s.MaxAdultWindow
	h.MaxChildWindow = s.MaxChildWindow
	return s
}

// ResidualWindow returns the hours person num has left around the tours of
// category c: the available run before the first such tour's departure and
// after the last one's arrival. ok is false when the person has no such tour.
func (h *Household) ResidualWindow(num int, c Category) (before, after int, ok bool) {
	p, err := h.Person(num)
	if err != nil {
		return 0, 0, false
	}
	first, last := -1, -1
	for i := range h.Tours {
		t := &h.Tours[i]
		if t.Category != c || t.State < WindowCommitted || !t.Includes(num) {
			continue
		}
		if first < 0 || t.Start < first {
			first = t.Start
		}
		if t.End > last {
			last = t.End
		}
	}
	if first < 0 {
		return 0, 0, false
	}
	return p.Window.RunBefore(first), p.Window.RunAfter(last), true
}
