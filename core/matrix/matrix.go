// Package matrix holds zone-to-zone skim matrices and the cache that loads
// them once per logical name.
package matrix

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrUnknownZone is returned by ValueAt for external numbers not in the matrix.
var ErrUnknownZone = errors.New("zone not in matrix")

// DataEntry describes where a matrix comes from. Name is its identity in the
// cache; File and MatrixName locate it on disk.
type DataEntry struct {
	Name       string `json:"name" yaml:"name"`
	File       string `json:"file" yaml:"file"`
	Format     string `json:"format" yaml:"format"`
	MatrixName string `json:"matrix_name,omitempty" yaml:"matrix_name"`
}

func (e DataEntry) String() string {
	return fmt.Sprintf("%s (%s %s)", e.Name, e.Format, e.File)
}

// Matrix is a dense table addressed by external row and column numbers
// (zone numbers), stored row-major in a gonum Dense.
type Matrix struct {
	Name        string
	Description string
	RowNumbers  []int
	ColNumbers  []int
	Data        *mat.Dense

	rowIdx map[int]int
	colIdx map[int]int
}

// New wraps data. Rows and columns default to 1..n when numbers are nil.
func New(name string, rows, cols []int, data *mat.Dense) (*Matrix, error) {
	if data == nil {
		return nil, fmt.Errorf("matrix %s: no data", name)
	}
	r, c := data.Dims()
	if rows == nil {
		rows = sequence(r)
	}
	if cols == nil {
		cols = sequence(c)
	}
	if len(rows) != r || len(cols) != c {
		return nil, fmt.Errorf("matrix %s: %dx%d data with %d row and %d column numbers", name, r, c, len(rows), len(cols))
	}
	m := &Matrix{Name: name, RowNumbers: rows, ColNumbers: cols, Data: data}
	m.index()
	return m, nil
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func (m *Matrix) index() {
	m.rowIdx = make(map[int]int, len(m.RowNumbers))
	for i, n := range m.RowNumbers {
		m.rowIdx[n] = i
	}
	m.colIdx = make(map[int]int, len(m.ColNumbers))
	for i, n := range m.ColNumbers {
		m.colIdx[n] = i
	}
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (int, int) { return m.Data.Dims() }

// ValueAt returns the cell for external row and column numbers.
func (m *Matrix) ValueAt(row, col int) (float64, error) {
	i, ok := m.rowIdx[row]
	if !ok {
		return 0, fmt.Errorf("%w: %s row %d", ErrUnknownZone, m.Name, row)
	}
	j, ok := m.colIdx[col]
	if !ok {
		return 0, fmt.Errorf("%w: %s column %d", ErrUnknownZone, m.Name, col)
	}
	return m.Data.At(i, j), nil
}

// RowSums returns the total of each row.
func (m *Matrix) RowSums() []float64 {
	r, _ := m.Data.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = mat.Sum(m.Data.RowView(i))
	}
	return out
}

// Sum returns the total of all cells.
func (m *Matrix) Sum() float64 { return mat.Sum(m.Data) }

// WithName returns a shallow copy carrying name. The data is shared.
func (m *Matrix) WithName(name string) *Matrix {
	c := *m
	c.Name = name
	return &c
}

type wireMatrix struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Rows        []int     `json:"rows"`
	Cols        []int     `json:"cols"`
	Values      []float64 `json:"values"`
}

// MarshalJSON writes the cells row-major.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	r, c := m.Data.Dims()
	vals := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		vals = append(vals, mat.Row(nil, i, m.Data)...)
	}
	return json.Marshal(wireMatrix{Name: m.Name, Description: m.Description, Rows: m.RowNumbers, Cols: m.ColNumbers, Values: vals})
}

func (m *Matrix) UnmarshalJSON(b []byte) error {
	var w wireMatrix
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if len(w.Rows) == 0 || len(w.Cols) == 0 || len(w.Values) != len(w.Rows)*len(w.Cols) {
		return fmt.Errorf("matrix %s: %d values for %dx%d", w.Name, len(w.Values), len(w.Rows), len(w.Cols))
	}
	dec, err := New(w.Name, w.Rows, w.Cols, mat.NewDense(len(w.Rows), len(w.Cols), w.Values))
	if err != nil {
		return err
	}
	dec.Description = w.Description
	*m = *dec
	return nil
}
