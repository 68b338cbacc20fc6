package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/pkg/export"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Export writes the households of hh to dir: tours.csv and trips.csv for the
// csv format, households.json for the json format. It returns the written
// paths.
func Export(ctx context.Context, hh household.Service, dir, format string, chunk int) ([]string, error) {
	type target struct {
		name  string
		write func(io.Writer, []*model.Household) error
	}
	var targets []target
	switch format {
	case FormatCSV, "":
		targets = []target{{"tours.csv", export.WriteToursCSV}, {"trips.csv", export.WriteTripsCSV}}
	case FormatJSON:
		targets = []target{{"households.json", export.WriteJSON}}
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	hhs, err := household.All(ctx, hh, chunk)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(targets))
	for _, t := range targets {
		path := filepath.Join(dir, t.name)
		if err := writeFile(path, hhs, t.write); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, hhs []*model.Household, write func(io.Writer, []*model.Household) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, hhs); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
