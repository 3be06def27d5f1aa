package regionstatus

import (
	"context"
	"sync"
)

// MemoryBackend keeps the status map in process memory. It does not survive
// restarts and is meant for tests and dry runs.
type MemoryBackend struct {
	mu     sync.Mutex
	status Status
	puts   int
}

// NewMemoryBackend returns a backend preloaded with initial.
func NewMemoryBackend(initial Status) *MemoryBackend {
	if initial == nil {
		initial = Status{}
	}
	return &MemoryBackend{status: initial.Clone()}
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context) (Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status.Clone(), nil
}

// Put implements Backend.
func (b *MemoryBackend) Put(_ context.Context, regionID string, entered bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status[regionID] = entered
	b.puts++
	return nil
}

// Puts returns the number of writes received.
func (b *MemoryBackend) Puts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts
}
