package matrixio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/ctramp/core/matrix"
)

// ZMX archive entries. Rows are stored one entry each as big-endian float32.
const (
	zmxVersion     = "_version"
	zmxRows        = "_rows"
	zmxColumns     = "_columns"
	zmxName        = "_name"
	zmxDescription = "_description"
	zmxRowNumbers  = "_external row numbers"
	zmxColNumbers  = "_external column numbers"
	zmxNumbers     = "_external numbers"
	zmxRowPrefix   = "row_"
)

// ZMXReader reads zip archives holding one matrix.
type ZMXReader struct{}

func (ZMXReader) Read(ctx context.Context, e matrix.DataEntry) (*matrix.Matrix, error) {
	zr, err := zip.OpenReader(e.File)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return decodeZMX(ctx, &zr.Reader)
}

func decodeZMX(ctx context.Context, zr *zip.Reader) (*matrix.Matrix, error) {
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}
	text := func(name string) (string, error) {
		f, ok := entries[name]
		if !ok {
			return "", fmt.Errorf("zmx: missing %q", name)
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		return strings.TrimSpace(string(b)), err
	}
	number := func(name string) (int, error) {
		s, err := text(name)
		if err != nil {
			return 0, err
		}
		return strconv.Atoi(s)
	}
	rows, err := number(zmxRows)
	if err != nil {
		return nil, err
	}
	cols, err := number(zmxColumns)
	if err != nil {
		return nil, err
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("zmx: %dx%d cells", rows, cols)
	}
	name, _ := text(zmxName)
	desc, _ := text(zmxDescription)

	rowNums, colNums, err := externalNumbers(text)
	if err != nil {
		return nil, err
	}

	data := mat.NewDense(rows, cols, nil)
	buf := make([]byte, 4*cols)
	for i := 0; i < rows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, ok := entries[zmxRowPrefix+strconv.Itoa(rowNums[i])]
		if !ok {
			return nil, fmt.Errorf("zmx: missing row %d", rowNums[i])
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		_, err = io.ReadFull(rc, buf)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("zmx row %d: %w", rowNums[i], err)
		}
		for j := 0; j < cols; j++ {
			data.Set(i, j, float64(math.Float32frombits(binary.BigEndian.Uint32(buf[4*j:]))))
		}
	}
	m, err := matrix.New(name, rowNums, colNums, data)
	if err != nil {
		return nil, err
	}
	m.Description = desc
	return m, nil
}

// externalNumbers reads the row and column numbers. Older archives hold a
// single list used for both.
func externalNumbers(text func(string) (string, error)) ([]int, []int, error) {
	if s, err := text(zmxNumbers); err == nil {
		n, err := parseNumbers(s)
		return n, n, err
	}
	rs, err := text(zmxRowNumbers)
	if err != nil {
		return nil, nil, err
	}
	cs, err := text(zmxColNumbers)
	if err != nil {
		return nil, nil, err
	}
	r, err := parseNumbers(rs)
	if err != nil {
		return nil, nil, err
	}
	c, err := parseNumbers(cs)
	return r, c, err
}

func parseNumbers(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("zmx external number %q: %w", f, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func joinNumbers(ns []int) string {
	s := make([]string, len(ns))
	for i, n := range ns {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, ",")
}

// WriteZMX writes m as a ZMX archive.
func WriteZMX(w io.Writer, m *matrix.Matrix) error {
	zw := zip.NewWriter(w)
	rows, cols := m.Dims()
	put := func(name string, b []byte) error {
		f, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = f.Write(b)
		return err
	}
	header := [][2]string{
		{zmxVersion, "2"},
		{zmxRows, strconv.Itoa(rows)},
		{zmxColumns, strconv.Itoa(cols)},
		{zmxName, m.Name},
		{zmxDescription, m.Description},
		{zmxRowNumbers, joinNumbers(m.RowNumbers)},
		{zmxColNumbers, joinNumbers(m.ColNumbers)},
	}
	for _, h := range header {
		if err := put(h[0], []byte(h[1])); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	for i := 0; i < rows; i++ {
		buf.Reset()
		for j := 0; j < cols; j++ {
			_ = binary.Write(&buf, binary.BigEndian, float32(m.Data.At(i, j)))
		}
		if err := put(zmxRowPrefix+strconv.Itoa(m.RowNumbers[i]), buf.Bytes()); err != nil {
			return err
		}
	}
	return zw.Close()
}
