package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/random"
	"github.com/kilianp07/ctramp/core/timewindow"
)

// LoadHouseholds reads a JSON array of households in the wire layout, where
// persons[0] is the unused placeholder. Households without a random stream get one seeded from baseSeed and persons without a window
// get a free day over span.
func LoadHouseholds(path string, span timewindow.Span, baseSeed int64) ([]*model.Household, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var hhs []*model.Household
	if err := json.NewDecoder(f).Decode(&hhs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, h := range hhs {
		if h.Random == nil {
			h.Random = random.NewLedger(random.Seed(baseSeed, h.ID))
		}
		for i := 1; i < len(h.Persons); i++ {
			h.Persons[i].Num = i
			if h.Persons[i].Window == nil {
				h.Persons[i].Window = timewindow.New(span)
			}
		}
		if err := h.Validate(); err != nil {
			return nil, err
		}
	}
	return hhs, nil
}
