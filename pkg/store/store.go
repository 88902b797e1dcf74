package store

import (
	"iter"
	"sort"
	"sync"

	"github.com/loganalyzer/logview/pkg/models"
)

// DefaultMaxRecords bounds the buffer when no limit is configured
const DefaultMaxRecords = 10000

// Store is the ordered log buffer for the currently bound subscription.
//
// Records are kept sorted by source id, timestamp and arrival sequence.
// Snapshots share the backing slice until the next mutation that would
// overwrite it, at which point the store copies.
type Store struct {
	mu        sync.RWMutex
	key       models.SubscriptionKey
	records   []models.LogRecord
	shared    bool
	nextSeq   uint64
	version   uint64
	dropped   uint64
	discarded uint64
	capacity  int
}

// New creates a store holding at most capacity records, 0 means unbounded.
func New(capacity int) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{capacity: capacity}
}

// Bind empties the buffer and accepts only records received under key from now on.
func (s *Store) Bind(key models.SubscriptionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.key = key
	s.clear()
}

// Key returns the bound subscription key
func (s *Store) Key() models.SubscriptionKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Reset empties the buffer, keeping the bound key. Resetting an empty store
// changes nothing.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

func (s *Store) clear() {
	if len(s.records) == 0 {
		return
	}
	// drop the reference instead of zeroing, snapshots may still hold it
	s.records = nil
	s.shared = false
	s.version++
}

// Append inserts one record at its sorted position. It reports whether the
// buffer changed; records from another subscription are discarded.
func (s *Store) Append(record models.LogRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accept(record) {
		return false
	}
	s.insert(record)
	s.version++
	return true
}

// AppendBatch inserts records and returns how many were accepted. The version
// advances once for the whole batch.
func (s *Store) AppendBatch(records []models.LogRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := 0
	for _, record := range records {
		if !s.accept(record) {
			continue
		}
		s.insert(record)
		accepted++
	}
	if accepted > 0 {
		s.version++
	}
	return accepted
}

func (s *Store) accept(record models.LogRecord) bool {
	if s.key.IsZero() || record.Key != s.key {
		s.discarded++
		return false
	}
	return true
}

func (s *Store) insert(record models.LogRecord) {
	s.nextSeq++
	record.Seq = s.nextSeq

	n := len(s.records)
	if n == 0 || !record.Less(s.records[n-1]) {
		// in-order arrival only writes past the end, snapshots never see it
		s.records = append(s.records, record)
	} else {
		pos := sort.Search(n, func(i int) bool {
			return record.Less(s.records[i])
		})
		s.own(n + 1)
		s.records = append(s.records, models.LogRecord{})
		copy(s.records[pos+1:], s.records[pos:])
		s.records[pos] = record
	}

	if s.capacity > 0 && len(s.records) > s.capacity {
		s.evictOldest()
	}
}

// evictOldest removes the record with the lowest arrival sequence.
func (s *Store) evictOldest() {
	oldest := 0
	for i := range s.records {
		if s.records[i].Seq < s.records[oldest].Seq {
			oldest = i
		}
	}
	s.own(len(s.records))
	s.records = append(s.records[:oldest], s.records[oldest+1:]...)
	s.dropped++
}

// own copies the backing slice when a snapshot still references it.
func (s *Store) own(capacity int) {
	if !s.shared {
		return
	}
	owned := make([]models.LogRecord, len(s.records), max(capacity, cap(s.records)))
	copy(owned, s.records)
	s.records = owned
	s.shared = false
}

// Snapshot returns a restartable sequence over the buffer as of this call.
// Appends made after the call are not visible through it.
func (s *Store) Snapshot() iter.Seq[models.LogRecord] {
	records := s.Records()
	return func(yield func(models.LogRecord) bool) {
		for _, record := range records {
			if !yield(record) {
				return
			}
		}
	}
}

// Records returns the buffer in order. The slice is shared and must not be
// modified by the caller.
func (s *Store) Records() []models.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared = true
	return s.records[:len(s.records):len(s.records)]
}

// Len returns the number of buffered records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Version increments every time the buffer contents change
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Dropped returns how many records were evicted to respect the capacity
func (s *Store) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Discarded returns how many records were rejected for belonging to another subscription
func (s *Store) Discarded() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discarded
}

// Capacity returns the configured record limit
func (s *Store) Capacity() int {
	return s.capacity
}
