package household

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"

	"github.com/kilianp07/ctramp/core/logger"
	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/random"
)

// DefaultChunkSize is the number of households held in memory at once by
// store-wide passes.
const DefaultChunkSize = 5000

var (
	// ErrUnknownHousehold is returned by Index for ids not in the store.
	ErrUnknownHousehold = errors.New("unknown household")
	// ErrOutOfRange is returned for index ranges outside the store.
	ErrOutOfRange = errors.New("household index out of range")
)

// Service is the household store as seen by workers, in process or remote.
type Service interface {
	Len(ctx context.Context) (int, error)
	Index(ctx context.Context, householdID int) (int, error)
	Range(ctx context.Context, first, last int) ([]*model.Household, error)
	SetRange(ctx context.Context, hhs []*model.Household, start int) error
	RandomOrder(ctx context.Context, n int) ([]int, error)
	HomeZoneOrder(ctx context.Context, householdIDs []int) ([]int, error)
	MarkStage(ctx context.Context, stage random.Stage) error
	ResetStage(ctx context.Context, stage random.Stage) error
}

// Backend holds the household array.
type Backend interface {
	Len() int
	// Load returns households first..last inclusive.
	Load(ctx context.Context, first, last int) ([]*model.Household, error)
	// Save writes hhs at positions start.. and may extend the array by
	// writing at position Len.
	Save(ctx context.Context, start int, hhs []*model.Household) error
	Close() error
}

// Options configures a Store.
type Options struct {
	// Seed drives RandomOrder.
	Seed int64
	// SampleSeed drives Sample.
	SampleSeed int64
	ChunkSize  int
	// Trace lists household ids whose model steps are logged in detail.
	Trace []int
	Log   logger.Logger
}

// Store is the partitioned household array shared by all workers. Workers
// read and write disjoint index ranges; the store serializes the operations.
type Store struct {
	backend Backend
	index   *xsync.MapOf[int, int]
	opts    Options
	log     logger.Logger

	mu  sync.RWMutex
	rng *rand.Rand
}

// NewStore indexes the households held by b and applies the trace set.
func NewStore(ctx context.Context, b Backend, opts Options) (*Store, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	s := &Store{
		backend: b,
		index:   xsync.NewMapOf[int, int](),
		opts:    opts,
		log:     logger.OrNop(opts.Log),
		rng:     rand.New(rand.NewSource(opts.Seed)),
	}
	err := s.chunks(ctx, false, func(first int, hhs []*model.Household) error {
		for i, h := range hhs {
			if prev, loaded := s.index.LoadOrStore(h.ID, first+i); loaded {
				return fmt.Errorf("household %d stored at %d and %d", h.ID, prev, first+i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(opts.Trace) > 0 {
		if err := s.SetTrace(ctx, opts.Trace); err != nil {
			return nil, err
		}
	}
	s.log.Infof("household store ready: %d households", b.Len())
	return s, nil
}

// chunks visits the whole array ChunkSize households at a time and writes
// each chunk back when save is set.
func (s *Store) chunks(ctx context.Context, save bool, fn func(first int, hhs []*model.Household) error) error {
	n := s.backend.Len()
	for first := 0; first < n; first += s.opts.ChunkSize {
		last := min(first+s.opts.ChunkSize, n) - 1
		hhs, err := s.backend.Load(ctx, first, last)
		if err != nil {
			return err
		}
		if err := fn(first, hhs); err != nil {
			return err
		}
		if save {
			if err := s.backend.Save(ctx, first, hhs); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the number of households.
func (s *Store) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend.Len(), nil
}

// Index returns the array position of a household id.
func (s *Store) Index(_ context.Context, householdID int) (int, error) {
	i, ok := s.index.Load(householdID)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownHousehold, householdID)
	}
	return i, nil
}

// Range returns households first..last inclusive.
func (s *Store) Range(ctx context.Context, first, last int) ([]*model.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(first, last); err != nil {
		return nil, err
	}
	return s.backend.Load(ctx, first, last)
}

// SetRange writes hhs back starting at position start. Households may move
// within the written range; an id already stored outside it is rejected.
func (s *Store) SetRange(ctx context.Context, hhs []*model.Household, start int) error {
	if len(hhs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last := start + len(hhs) - 1
	if err := s.check(start, last); err != nil {
		return err
	}
	written := make(map[int]bool, len(hhs))
	for _, h := range hhs {
		if written[h.ID] {
			return fmt.Errorf("household %d written twice at %d..%d", h.ID, start, last)
		}
		written[h.ID] = true
		if at, ok := s.index.Load(h.ID); ok && (at < start || at > last) {
			return fmt.Errorf("household %d is stored at %d, outside %d..%d", h.ID, at, start, last)
		}
	}
	old, err := s.backend.Load(ctx, start, last)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, start, hhs); err != nil {
		return err
	}
	for _, h := range old {
		if !written[h.ID] {
			s.index.Delete(h.ID)
		}
	}
	for i, h := range hhs {
		s.index.Store(h.ID, start+i)
	}
	return nil
}

func (s *Store) check(first, last int) error {
	if n := s.backend.Len(); first < 0 || last < first || last >= n {
		return fmt.Errorf("%w: %d..%d of %d", ErrOutOfRange, first, last, n)
	}
	return nil
}

// RandomOrder returns a seeded random permutation of 0..n-1. Consecutive
// calls continue the same seeded sequence.
func (s *Store) RandomOrder(_ context.Context, n int) ([]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("random order of %d households", n)
	}
	s.mu.Lock()
	keys := make([]int, n)
	for i := range keys {
		keys[i] = int(100000000 * s.rng.Float64())
	}
	s.mu.Unlock()
	return indexSort(keys), nil
}

// HomeZoneOrder returns the positions of householdIDs ordered by home zone.
// Households in the same zone keep their input order.
func (s *Store) HomeZoneOrder(ctx context.Context, householdIDs []int) ([]int, error) {
	zones := make([]int, len(householdIDs))
	for i, id := range householdIDs {
		idx, err := s.Index(ctx, id)
		if err != nil {
			return nil, err
		}
		hhs, err := s.Range(ctx, idx, idx)
		if err != nil {
			return nil, err
		}
		zones[i] = hhs[0].HomeZone
	}
	return indexSort(zones), nil
}

// indexSort returns the permutation that stably sorts keys ascending.
func indexSort(keys []int) []int {
	order := lo.Range(len(keys))
	sort.SliceStable(order, func(a, b int) bool { return keys[order[a]] < keys[order[b]] })
	return order
}

// MarkStage records the current draw count of every household as the start
// of stage.
func (s *Store) MarkStage(ctx context.Context, stage random.Stage) error {
	if !stage.Valid() {
		return fmt.Errorf("mark: invalid stage %d", int(stage))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks(ctx, true, func(_ int, hhs []*model.Household) error {
		for _, h := range hhs {
			h.Random.Mark(stage)
		}
		return nil
	})
}

// ResetStage rewinds every household's stream to the start of stage.
func (s *Store) ResetStage(ctx context.Context, stage random.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.chunks(ctx, true, func(_ int, hhs []*model.Household) error {
		for _, h := range hhs {
			if err := h.Random.Reset(stage); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		s.log.Infof("random streams reset to stage %s", stage)
	}
	return err
}

// SetTrace flags exactly the listed households for detailed logging.
func (s *Store) SetTrace(ctx context.Context, ids []int) error {
	set := lo.Associate(ids, func(id int) (int, struct{}) { return id, struct{}{} })
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks(ctx, true, func(_ int, hhs []*model.Household) error {
		for _, h := range hhs {
			_, h.Debug = set[h.ID]
		}
		return nil
	})
}

// Sample returns the positions of a deterministic subset holding about rate
// of the households. A rate of 1 or more selects everything.
func (s *Store) Sample(_ context.Context, rate float64) []int {
	n := s.backend.Len()
	if rate >= 1 {
		return lo.Range(n)
	}
	r := rand.New(rand.NewSource(s.opts.SampleSeed))
	var out []int
	for i := 0; i < n; i++ {
		if r.Float64() < rate {
			out = append(out, i)
		}
	}
	return out
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

// All reads every household of svc, chunk households per call.
func All(ctx context.Context, svc Service, chunk int) ([]*model.Household, error) {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	n, err := svc.Len(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Household, 0, n)
	for first := 0; first < n; first += chunk {
		hhs, err := svc.Range(ctx, first, min(first+chunk, n)-1)
		if err != nil {
			return nil, fmt.Errorf("households from %d: %w", first, err)
		}
		out = append(out, hhs...)
	}
	return out, nil
}

// Partition is an inclusive range of household positions.
type Partition struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Len returns the number of households in p.
func (p Partition) Len() int { return p.Last - p.First + 1 }

// Partitions splits n households into at most parts contiguous ranges whose
// sizes differ by at most one.
func Partitions(n, parts int) []Partition {
	if n <= 0 || parts <= 0 {
		return nil
	}
	parts = min(parts, n)
	out := make([]Partition, 0, parts)
	size, extra := n/parts, n%parts
	first := 0
	for i := 0; i < parts; i++ {
		l := size
		if i < extra {
			l++
		}
		out = append(out, Partition{First: first, Last: first + l - 1})
		first += l
	}
	return out
}
