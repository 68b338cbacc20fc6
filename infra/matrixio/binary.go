// Package matrixio reads skim matrices from disk and registers the readers
// with the matrix cache.
package matrixio

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/ctramp/core/matrix"
)

// BinaryReader reads a header of two int32 (rows, columns) followed by the
// float32 cells row by row. Zones are numbered 1..n.
type BinaryReader struct {
	Order binary.ByteOrder
}

func byteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(name) {
	case "", "big", "big_endian":
		return binary.BigEndian, nil
	case "little", "little_endian":
		return binary.LittleEndian, nil
	}
	return nil, fmt.Errorf("unknown byte order %q", name)
}

func (r BinaryReader) Read(ctx context.Context, e matrix.DataEntry) (*matrix.Matrix, error) {
	f, err := os.Open(e.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return r.decode(ctx, bufio.NewReader(f), e.MatrixName)
}

func (r BinaryReader) decode(ctx context.Context, in io.Reader, name string) (*matrix.Matrix, error) {
	order := r.Order
	if order == nil {
		order = binary.BigEndian
	}
	var dims [2]int32
	if err := binary.Read(in, order, &dims); err != nil {
		return nil, fmt.Errorf("binary header: %w", err)
	}
	rows, cols := int(dims[0]), int(dims[1])
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("binary matrix has %dx%d cells", rows, cols)
	}
	data := mat.NewDense(rows, cols, nil)
	row := make([]float32, cols)
	for i := 0; i < rows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := binary.Read(in, order, row); err != nil {
			return nil, fmt.Errorf("binary row %d: %w", i+1, err)
		}
		for j, v := range row {
			data.Set(i, j, float64(v))
		}
	}
	return matrix.New(name, nil, nil, data)
}

// WriteBinary writes m in the layout BinaryReader reads.
func WriteBinary(w io.Writer, order binary.ByteOrder, m *matrix.Matrix) error {
	rows, cols := m.Dims()
	if err := binary.Write(w, order, [2]int32{int32(rows), int32(cols)}); err != nil {
		return err
	}
	row := make([]float32, cols)
	for i := 0; i < rows; i++ {
		for j := range row {
			row[j] = float32(m.Data.At(i, j))
		}
		if err := binary.Write(w, order, row); err != nil {
			return err
		}
	}
	return nil
}
