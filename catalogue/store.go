package catalogue

import "sync/atomic"

// Store holds the current catalogue snapshot.
// Readers and the rotator share it: the snapshot is replaced wholesale
// with an atomic pointer swap, so a read can never observe a torn
// snapshot (a version number paired with another version's items).
//
// Snapshots handed to Replace must not be mutated afterwards.
type Store struct {
	current atomic.Pointer[Catalogue]
}

// NewStore returns an empty store. Callers that serve reads must seed
// the store with Replace before accepting the first read.
func NewStore() *Store {
	return &Store{}
}

// Replace atomically installs a new snapshot, visible to all
// subsequent reads.
func (s *Store) Replace(c *Catalogue) {
	s.current.Store(c)
}

// Read atomically returns the current snapshot, or nil if the store
// has not been seeded yet.
func (s *Store) Read() *Catalogue {
	return s.current.Load()
}
