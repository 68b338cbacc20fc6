package matrix

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/ctramp/core/logger"
	"github.com/kilianp07/ctramp/core/metrics"
)

// Service is the matrix cache as seen by workers, in process or remote.
type Service interface {
	GetMatrix(ctx context.Context, e DataEntry) (*Matrix, error)
	Clear(ctx context.Context) error
	// Ping answers a liveness check and names the responding server.
	Ping(ctx context.Context, caller string) (string, error)
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	// UseCache false makes every request read from storage.
	UseCache bool
	// Name is returned by Ping.
	Name    string
	Metrics metrics.MetricsSink
	Log     logger.Logger
}

// Cache loads matrices on demand and keeps them by logical name. Lookups
// and loads run under one mutex so concurrent requests for the same
// uncached matrix read it once.
type Cache struct {
	readers map[string]Reader
	opts    CacheOptions
	log     logger.Logger

	mu    sync.Mutex
	items map[string]*Matrix
	reads int
}

// NewCache uses readers keyed by canonical format name.
func NewCache(readers map[string]Reader, opts CacheOptions) *Cache {
	if opts.Name == "" {
		opts.Name = "matrix-cache"
	}
	return &Cache{
		readers: readers,
		opts:    opts,
		log:     logger.OrNop(opts.Log),
		items:   make(map[string]*Matrix),
	}
}

// GetMatrix returns the matrix cached under e.Name, loading it first if
// needed. An entry that shares a logical name with an earlier one gets the
// earlier matrix regardless of its file.
func (c *Cache) GetMatrix(ctx context.Context, e DataEntry) (*Matrix, error) {
	format, err := NormalizeFormat(e.Format)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.UseCache {
		if m, ok := c.items[e.Name]; ok {
			c.record(e, format, true, start)
			return m, nil
		}
	}
	r, ok := c.readers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoReader, format)
	}
	m, err := r.Read(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("read matrix %s: %w", e, err)
	}
	c.reads++
	m = m.WithName(e.Name)
	if c.opts.UseCache {
		c.items[e.Name] = m
	}
	c.record(e, format, false, start)
	c.log.Infof("loaded matrix %s", e)
	return m, nil
}

func (c *Cache) record(e DataEntry, format string, hit bool, start time.Time) {
	r, ok := c.opts.Metrics.(metrics.MatrixLoadRecorder)
	if !ok {
		return
	}
	ev := metrics.MatrixLoadEvent{Name: e.Name, Format: format, Hit: hit, Duration: time.Since(start), Time: time.Now()}
	if err := r.RecordMatrixLoad(ev); err != nil {
		c.log.Warnf("record matrix load: %v", err)
	}
}

// Clear evicts every cached matrix.
func (c *Cache) Clear(context.Context) error {
	c.mu.Lock()
	n := len(c.items)
	c.items = make(map[string]*Matrix)
	c.mu.Unlock()
	c.log.Infof("cleared %d matrices", n)
	return nil
}

func (c *Cache) Ping(_ context.Context, caller string) (string, error) {
	c.log.Debugf("ping from %s", caller)
	return c.opts.Name, nil
}

// Reads returns the number of storage reads so far.
func (c *Cache) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Len returns the number of cached matrices.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
