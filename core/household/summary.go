package household

import (
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/ctramp/core/model"
)

// DestinationSummary counts the tours of category c and the given purpose by
// destination zone (rows, zone z at row z-1) and walk subzone (columns). An
// empty purpose matches every purpose. Tours with a destination outside the
// table are skipped. It returns nil for an empty table.
func DestinationSummary(hhs []*model.Household, c model.Category, purpose string, zones, subzones int) *mat.Dense {
	if zones <= 0 || subzones <= 0 {
		return nil
	}
	out := mat.NewDense(zones, subzones, nil)
	for _, h := range hhs {
		for i := range h.Tours {
			t := &h.Tours[i]
			if t.Category != c || (purpose != "" && t.Purpose != purpose) || t.State < model.DestinationChosen {
				continue
			}
			r, col := t.DestZone-1, t.DestSubzone
			if r < 0 || r >= zones || col < 0 || col >= subzones {
				continue
			}
			out.Set(r, col, out.At(r, col)+1)
		}
	}
	return out
}

// ZoneTotals sums a summary over subzones.
func ZoneTotals(summary *mat.Dense) []float64 {
	if summary == nil {
		return nil
	}
	r, c := summary.Dims()
	ones := mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		ones.SetVec(j, 1)
	}
	var tot mat.VecDense
	tot.MulVec(summary, ones)
	out := make([]float64, r)
	for i := range out {
		out[i] = tot.AtVec(i)
	}
	return out
}
