package matrix

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/ctramp/core/factory"
)

// Recognised matrix formats. Zip and zmx name the same reader.
const (
	FormatEmme2    = "emme2"
	FormatBinary   = "binary"
	FormatZip      = "zip"
	FormatZMX      = "zmx"
	FormatTPPlus   = "tpplus"
	FormatTransCAD = "transcad"
)

var (
	// ErrUnsupportedFormat is returned for format strings no model uses.
	ErrUnsupportedFormat = errors.New("unsupported matrix type")
	// ErrNoReader is returned for recognised formats without a reader.
	ErrNoReader = errors.New("no matrix reader registered")
)

// NormalizeFormat maps a case-insensitive format string to its canonical
// reader name.
func NormalizeFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case FormatZip, FormatZMX:
		return FormatZMX, nil
	case FormatEmme2, FormatBinary, FormatTPPlus, FormatTransCAD:
		return f, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// Reader loads one matrix from storage.
type Reader interface {
	Read(ctx context.Context, e DataEntry) (*Matrix, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, e DataEntry) (*Matrix, error)

func (f ReaderFunc) Read(ctx context.Context, e DataEntry) (*Matrix, error) { return f(ctx, e) }

var readers = factory.NewRegistry[Reader]()

// RegisterReader adds a reader factory for a canonical format name.
func RegisterReader(format string, f factory.Factory[Reader]) error {
	return readers.Register(format, f)
}

// NewReaders builds one reader per registered format. conf holds optional
// settings keyed by format name.
func NewReaders(conf map[string]map[string]any) (map[string]Reader, error) {
	out := make(map[string]Reader)
	for _, name := range readers.Names() {
		r, err := readers.Create(factory.ModuleConfig{Type: name, Conf: conf[name]})
		if err != nil {
			return nil, fmt.Errorf("matrix reader %s: %w", name, err)
		}
		out[name] = r
	}
	return out, nil
}
