package random

import (
	"fmt"
	"strings"
)

// Stage identifies a model component that consumes household random draws.
// The order of the constants is the order stages run in.
type Stage int

const (
	UsualWorkSchoolLocation Stage = iota
	AutoOwnership
	FreeParking
	DailyActivityPattern
	MandatoryTourFrequency
	MandatoryTourTimeOfDay
	MandatoryTourMode
	JointTourFrequency
	JointTourLocation
	JointTourTimeOfDay
	JointTourMode
	NonMandatoryTourFrequency
	NonMandatoryTourLocation
	NonMandatoryTourTimeOfDay
	NonMandatoryTourMode
	AtWorkSubtourFrequency
	AtWorkSubtourLocation
	AtWorkSubtourTimeOfDay
	AtWorkSubtourMode
	StopFrequency
	StopLocation

	NumStages int = iota
)

var stageNames = [NumStages]string{
	"uwsl", "ao", "fp", "cdap",
	"imtf", "imtod", "immc",
	"jtf", "jtl", "jtod", "jmc",
	"inmtf", "inmtl", "inmtod", "inmmc",
	"awf", "awl", "awtod", "awmc",
	"stf", "stl",
}

// Stages returns every stage in run order.
func Stages() []Stage {
	out := make([]Stage, NumStages)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

// Valid reports whether s names a known stage.
func (s Stage) Valid() bool { return s >= 0 && int(s) < NumStages }

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage resolves a short stage name such as "cdap".
func ParseStage(name string) (Stage, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, v := range stageNames {
		if v == n {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// MarshalText encodes the stage by its short name.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a short stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
