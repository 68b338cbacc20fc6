// Package tracelog keeps a rotating JSONL trace of the households flagged
// for debugging: one record per household per stage.
package tracelog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/ctramp/core/model"
)

// Config sets the trace file and its rotation.
type Config struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = "trace/households.jsonl"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 100
	}
}

// Record is the state of one traced household after a stage.
type Record struct {
	Time        time.Time      `json:"time"`
	Worker      string         `json:"worker"`
	HouseholdID int            `json:"household_id"`
	Stage       string         `json:"stage"`
	Draws       int            `json:"draws"`
	Windows     map[int]string `json:"windows"`
	Tours       int            `json:"tours"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Snapshot captures h for the trace.
func Snapshot(worker, stage string, h *model.Household) Record {
	r := Record{
		Time:        time.Now().UTC(),
		Worker:      worker,
		HouseholdID: h.ID,
		Stage:       stage,
		Windows:     make(map[int]string, h.Size()),
		Tours:       len(h.Tours),
	}
	if h.Random != nil {
		r.Draws = h.Random.Count()
	}
	for _, p := range h.Members() {
		if p.Window != nil {
			r.Windows[p.Num] = p.Window.String()
		}
	}
	return r
}

// Store appends records to a lumberjack-rotated file.
type Store struct {
	mu   sync.Mutex
	out  *lumberjack.Logger
	path string
}

func New(cfg Config) (*Store, error) {
	cfg.SetDefaults()
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		},
		path: cfg.Path,
	}, nil
}

func (s *Store) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.out).Encode(r)
}

// Query returns the records of householdID across the current and rotated
// files in time order. A householdID of 0 matches every household.
func (s *Store) Query(ctx context.Context, householdID int) ([]Record, error) {
	files, err := filepath.Glob(s.path + "*")
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(s.path)
	base := s.path[:len(s.path)-len(ext)]
	rotated, _ := filepath.Glob(base + "-*" + ext)
	files = append(files, rotated...)

	var out []Record
	seen := make(map[string]bool)
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := readFile(f, householdID)
		if err != nil {
			continue
		}
		out = append(out, recs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func readFile(path string, householdID int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if householdID != 0 && r.HouseholdID != householdID {
			continue
		}
		out = append(out, r)
	}
	return out, sc.Err()
}

// Rotate closes the current file and starts a new one.
func (s *Store) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Rotate()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
