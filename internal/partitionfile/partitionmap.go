package partitionfile

import (
	"sync"
	"time"
)

// PartitionMap is an ordered mapping from time-partition identifier to the
// currently writable buffer of one kind. It is generic over the buffer
// type so that this package (which must not depend on internal/writebuffer)
// can still host the map shape the coordinator needs — one per kind, per
// spec §2.
//
// Not safe for concurrent use on its own: callers hold the coordinator's
// insertLock for mutation, exactly as the teacher's own ordered containers
// (internal/version's file sets) are mutated only under VersionSet's own
// external synchronization.
type PartitionMap[T any] struct {
	order []int64
	byKey map[int64]T
}

// NewPartitionMap creates an empty PartitionMap.
func NewPartitionMap[T any]() *PartitionMap[T] {
	return &PartitionMap[T]{byKey: make(map[int64]T)}
}

// Get returns the buffer for partition, if any.
func (m *PartitionMap[T]) Get(partition int64) (T, bool) {
	v, ok := m.byKey[partition]
	return v, ok
}

// Put inserts or replaces the buffer for partition, tracking insertion
// order for First().
func (m *PartitionMap[T]) Put(partition int64, v T) {
	if _, exists := m.byKey[partition]; !exists {
		m.order = append(m.order, partition)
	}
	m.byKey[partition] = v
}

// Delete removes partition from the map.
func (m *PartitionMap[T]) Delete(partition int64) {
	if _, exists := m.byKey[partition]; !exists {
		return
	}
	delete(m.byKey, partition)
	for i, p := range m.order {
		if p == partition {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *PartitionMap[T]) Len() int { return len(m.order) }

// First returns the oldest-inserted partition id and its value, used by
// get_or_create_buffer to pick the eviction candidate when the map is at
// capacity (spec §4.2).
func (m *PartitionMap[T]) First() (partition int64, v T, ok bool) {
	if len(m.order) == 0 {
		return 0, v, false
	}
	partition = m.order[0]
	return partition, m.byKey[partition], true
}

// Partitions returns a snapshot of the partition ids in insertion order.
func (m *PartitionMap[T]) Partitions() []int64 {
	return append([]int64(nil), m.order...)
}

// ClosingSet is a concurrent bag holding buffers that have been handed to
// the flush pipeline but not yet fully closed (spec §2/§4.2). Membership is
// by an opaque key the caller chooses (the coordinator uses the partition
// id, since at most one buffer of a given kind can be closing for a
// partition at a time).
type ClosingSet[T any] struct {
	mu      sync.Mutex
	entries map[int64]T
}

// NewClosingSet creates an empty ClosingSet.
func NewClosingSet[T any]() *ClosingSet[T] {
	return &ClosingSet[T]{entries: make(map[int64]T)}
}

// Add inserts v keyed by partition.
func (s *ClosingSet[T]) Add(partition int64, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[partition] = v
}

// Remove deletes partition from the set (the close callback calls this).
func (s *ClosingSet[T]) Remove(partition int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, partition)
}

// Len returns the current number of closing buffers.
func (s *ClosingSet[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// WaitEmpty blocks, polling at pollInterval, until the set is empty. It
// invokes onTick (if non-nil) every time the poll finds the set still
// non-empty, so the coordinator's sync_close_all can log its 60s warn
// (spec §5 "Suspension points") without a native condition-variable timeout.
func (s *ClosingSet[T]) WaitEmpty(pollInterval time.Duration, onTick func(remaining int)) {
	for {
		if s.Len() == 0 {
			return
		}
		if onTick != nil {
			onTick(s.Len())
		}
		time.Sleep(pollInterval)
	}
}
