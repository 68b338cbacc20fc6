package random

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Seed derives the stream seed of a household.
func Seed(base int64, householdID int) int64 { return base + int64(householdID) }

// Ledger is the random stream of one household. It counts every draw and
// remembers, per stage, how many draws had been taken when the stage
// started, so any stage can be replayed with the exact same numbers.
type Ledger struct {
	seed  int64
	count int
	marks [NumStages]int
	rng   *rand.Rand
}

// NewLedger returns a ledger whose stream starts at seed.
func NewLedger(seed int64) *Ledger {
	return &Ledger{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the stream seed.
func (l *Ledger) Seed() int64 { return l.seed }

// Count returns the number of draws taken so far.
func (l *Ledger) Count() int { return l.count }

// Float64 draws the next uniform number in [0,1).
func (l *Ledger) Float64() float64 {
	l.count++
	return l.rng.Float64()
}

// Mark records the current draw count as the start offset of stage s.
func (l *Ledger) Mark(s Stage) {
	if s.Valid() {
		l.marks[s] = l.count
	}
}

// MarkOf returns the recorded start offset of stage s.
func (l *Ledger) MarkOf(s Stage) int {
	if !s.Valid() {
		return 0
	}
	return l.marks[s]
}

// Reset rewinds the stream to the start offset of stage s.
func (l *Ledger) Reset(s Stage) error {
	if !s.Valid() {
		return fmt.Errorf("reset: invalid stage %d", int(s))
	}
	l.Rewind(l.marks[s])
	return nil
}

// Rewind reseeds the stream and burns n draws.
func (l *Ledger) Rewind(n int) {
	l.rng = rand.New(rand.NewSource(l.seed))
	l.count = 0
	for i := 0; i < n; i++ {
		l.Float64()
	}
}

// ClearFrom zeroes the marks of s and every later stage. Used when a run is
// restarted at s so stale offsets of downstream stages are not replayed.
func (l *Ledger) ClearFrom(s Stage) {
	for i := max(int(s), 0); i < NumStages; i++ {
		l.marks[i] = 0
	}
}

type wireLedger struct {
	Seed  int64          `json:"seed"`
	Count int            `json:"count"`
	Marks map[string]int `json:"marks,omitempty"`
}

// MarshalJSON encodes the seed, the draw count and the non-zero marks.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	w := wireLedger{Seed: l.seed, Count: l.count}
	for i, m := range l.marks {
		if m != 0 {
			if w.Marks == nil {
				w.Marks = make(map[string]int)
			}
			w.Marks[Stage(i).String()] = m
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores a ledger and advances its stream to the encoded count.
func (l *Ledger) UnmarshalJSON(b []byte) error {
	var w wireLedger
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var marks [NumStages]int
	for name, m := range w.Marks {
		s, err := ParseStage(name)
		if err != nil {
			return err
		}
		marks[s] = m
	}
	l.seed = w.Seed
	l.marks = marks
	l.Rewind(w.Count)
	return nil
}
