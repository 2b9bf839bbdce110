package history

import "sync"

// Store is the ordered, addressable transcript. Append adds records;
// Replace overwrites one in place under the same id, which is how the
// owning orchestrator turns an AssistantStream into its finalized
// AssistantMessage or updates an Exec record on End.
type Store struct {
	mu      sync.RWMutex
	ids     *idCounter
	records []Record
	byID    map[ID]int // index into records
}

// NewStore creates an empty transcript store.
func NewStore() *Store {
	return &Store{ids: newIDCounter(), byID: make(map[ID]int)}
}

// NextID allocates the next strictly-increasing HistoryId.
func (s *Store) NextID() ID { return s.ids.Next() }

// Append adds a finalized (or in-progress stream) record to the transcript.
// Records must already carry a valid OrderMeta respecting the total order;
// Append does not resort.
func (s *Store) Append(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[r.HistoryID()] = len(s.records)
	s.records = append(s.records, r)
}

// Replace overwrites the record at the given id in place, e.g. turning an
// AssistantStream into an AssistantMessage on finalization, or updating an
// Exec record's status on End. The record's id must not change.
func (s *Store) Replace(id ID, r Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok || r.HistoryID() != id {
		return false
	}
	s.records[idx] = r
	return true
}

// Get returns the record with the given id, if present.
func (s *Store) Get(id ID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.records[idx], true
}

// Len returns the number of records in the transcript.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns a copy of the full ordered transcript.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// IsOrdered reports whether the stored records' OrderMeta values are
// non-decreasing in append order — a sanity check used by tests backing
// spec.md §8's total-order property.
func (s *Store) IsOrdered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := 1; i < len(s.records); i++ {
		if s.records[i].Order().Less(s.records[i-1].Order()) {
			return false
		}
	}
	return true
}
