package model

import (
	"strings"

	"github.com/kilianp07/ctramp/core/timewindow"
)

// MinAdultAge is the age from which a person counts as an adult.
const MinAdultAge = 19

// PersonType is the eight-way person classification used by the choice models.
type PersonType int

const (
	FullTimeWorker PersonType = iota + 1
	PartTimeWorker
	UniversityStudent
	NonWorker
	Retired
	DrivingStudent
	NonDrivingStudent
	Preschool
)

var personTypeNames = map[PersonType]string{
	FullTimeWorker:    "Full-time worker",
	PartTimeWorker:    "Part-time worker",
	UniversityStudent: "University student",
	NonWorker:         "Non-worker",
	Retired:           "Retired",
	DrivingStudent:    "Student of driving age",
	NonDrivingStudent: "Student of non-driving age",
	Preschool:         "Child too young for school",
}

func (t PersonType) String() string {
	if n, ok := personTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// IsChildType reports whether t is one of the three child person types.
func (t PersonType) IsChildType() bool {
	return t == DrivingStudent || t == NonDrivingStudent || t == Preschool
}

// Employment is the employment category of a person.
type Employment int

const (
	EmployedFullTime Employment = iota + 1
	EmployedPartTime
	NotEmployed
	Under16
)

// Student is the student category of a person.
type Student int

const (
	GradeOrHighSchool Student = iota + 1
	CollegeOrHigher
	NotStudent
)

// Gender of a person.
type Gender int

const (
	Male Gender = iota + 1
	Female
)

// Daily activity pattern codes.
const (
	PatternMandatory    = "M"
	PatternNonMandatory = "N"
	PatternHome         = "H"
)

// Person is one member of a household. Num is the 1-based slot in the
// household's person list.
type Person struct {
	Num         int        `json:"num"`
	ID          int        `json:"id"`
	Age         int        `json:"age"`
	Gender      Gender     `json:"gender"`
	Employment  Employment `json:"employment"`
	Student     Student    `json:"student"`
	Type        PersonType `json:"type"`
	ValueOfTime float64    `json:"value_of_time,omitempty"`

	WorkZone      int `json:"work_zone,omitempty"`
	WorkSubzone   int `json:"work_subzone,omitempty"`
	SchoolZone    int `json:"school_zone,omitempty"`
	SchoolSubzone int `json:"school_subzone,omitempty"`
	FreeParking   int `json:"free_parking,omitempty"`

	Activity           string `json:"activity,omitempty"`
	MandatoryFrequency int    `json:"mandatory_frequency,omitempty"`
	NonMandFrequency   int    `json:"non_mandatory_frequency,omitempty"`
	MaxAdultOverlaps   int    `json:"max_adult_overlaps,omitempty"`
	MaxChildOverlaps   int    `json:"max_child_overlaps,omitempty"`

	Window *timewindow.Window `json:"window"`
}

// IsAdult reports whether the person is at least MinAdultAge years old.
func (p *Person) IsAdult() bool { return p.Age >= MinAdultAge }

// IsChild reports whether the person has a child person type.
func (p *Person) IsChild() bool { return p.Type.IsChildType() }

// IsWorker reports full or part time employment.
func (p *Person) IsWorker() bool {
	return p.Employment == EmployedFullTime || p.Employment == EmployedPartTime
}

// IsStudent reports enrolment at any level.
func (p *Person) IsStudent() bool {
	return p.Student == GradeOrHighSchool || p.Student == CollegeOrHigher
}

// StaysHome reports a home daily activity pattern.
func (p *Person) StaysHome() bool { return strings.EqualFold(p.Activity, PatternHome) }

// TravelActive reports a mandatory or non-mandatory daily activity pattern.
func (p *Person) TravelActive() bool {
	return strings.EqualFold(p.Activity, PatternMandatory) || strings.EqualFold(p.Activity, PatternNonMandatory)
}

// IsChildUnder16AtHomeOrNonMandatory reports a young child whose pattern
// keeps them home or on non-mandatory activities.
func (p *Person) IsChildUnder16AtHomeOrNonMandatory() bool {
	if p.Type != NonDrivingStudent && p.Type != Preschool {
		return false
	}
	return strings.EqualFold(p.Activity, PatternHome) || strings.EqualFold(p.Activity, PatternNonMandatory)
}
