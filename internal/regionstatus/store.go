package regionstatus

import (
	"context"
	"fmt"
	"maps"
)

// EntryName is the named entry holding the status map.
const EntryName = "region_status"

// Status maps a region identifier to whether the region is currently entered.
// A missing identifier means not entered.
type Status map[string]bool

// Entered returns the flag for regionID, false when absent.
func (s Status) Entered(regionID string) bool {
	return s[regionID]
}

// Clone returns an independent copy of s.
func (s Status) Clone() Status {
	out := make(Status, len(s))
	maps.Copy(out, s)
	return out
}

// Backend is the durable side of a Store.
type Backend interface {
	// Load returns the full persisted map. An absent map is empty, not an error.
	Load(ctx context.Context) (Status, error)

	// Put durably records one region's flag. It must not return before the
	// write is committed.
	Put(ctx context.Context, regionID string, entered bool) error
}

// Store is a write-through cache over a Backend.
type Store struct {
	backend Backend
	status  Status
}

// Open loads the persisted map from backend.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	status, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading region status: %w", err)
	}
	if status == nil {
		status = Status{}
	}
	return &Store{backend: backend, status: status}, nil
}

// Entered returns the stored flag for regionID, false when absent.
func (s *Store) Entered(regionID string) bool {
	return s.status[regionID]
}

// Set persists the flag and then updates the cache. On error the cache is
// left untouched.
func (s *Store) Set(ctx context.Context, regionID string, entered bool) error {
	if regionID == "" {
		return ErrEmptyRegionID
	}
	if err := s.backend.Put(ctx, regionID, entered); err != nil {
		return fmt.Errorf("persisting region %s: %w", regionID, err)
	}
	s.status[regionID] = entered
	return nil
}

// Snapshot returns a copy of the cached map.
func (s *Store) Snapshot() Status {
	return s.status.Clone()
}

// Len returns the number of regions with a stored flag.
func (s *Store) Len() int {
	return len(s.status)
}
