package household

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/ctramp/core/model"
)

// MemoryBackend keeps the whole household array in memory. Load returns the
// stored households themselves, not copies.
type MemoryBackend struct {
	mu  sync.RWMutex
	hhs []*model.Household
}

// NewMemoryBackend wraps hhs.
func NewMemoryBackend(hhs []*model.Household) *MemoryBackend {
	return &MemoryBackend{hhs: hhs}
}

func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hhs)
}

func (m *MemoryBackend) Load(_ context.Context, first, last int) ([]*model.Household, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if first < 0 || last < first || last >= len(m.hhs) {
		return nil, fmt.Errorf("%w: %d..%d of %d", ErrOutOfRange, first, last, len(m.hhs))
	}
	out := make([]*model.Household, last-first+1)
	copy(out, m.hhs[first:last+1])
	return out, nil
}

func (m *MemoryBackend) Save(_ context.Context, start int, hhs []*model.Household) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if start < 0 || start > len(m.hhs) {
		return fmt.Errorf("%w: save at %d of %d", ErrOutOfRange, start, len(m.hhs))
	}
	for i, h := range hhs {
		if start+i < len(m.hhs) {
			m.hhs[start+i] = h
		} else {
			m.hhs = append(m.hhs, h)
		}
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
