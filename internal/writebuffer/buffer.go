package writebuffer

import (
	"sync"
)

// Row is one point row applied to a Buffer: one device, one measurement,
// one timestamp, one opaque value. The value-format encoder/decoder is out
// of scope (spec §1) — this package stores whatever bytes it is given.
type Row struct {
	Device      string
	Measurement string
	Timestamp   int64
	Value       []byte
}

// Point is one decoded in-memory point, returned by Query.
type Point struct {
	Measurement string
	Timestamp   int64
	Value       []byte
}

type tombstone struct {
	measurement string
	upperBound  int64
}

// Buffer is the in-memory column store for one partition and one kind
// (sequential or unsequential), tied to a single FileResource under
// construction (spec §3 "Buffer (writable processor)"). It serves incoming
// inserts, exposes ShouldFlush, and can be asynchronously closed — closing
// itself (transitioning the attached FileResource to sealed) is driven by
// the coordinator's flush subsystem, not by this type.
type Buffer struct {
	Partition int64

	mu          sync.Mutex
	columns     map[string]*skipList // device -> skiplist of entries
	tombstones  map[string][]tombstone
	rowCount    int
	memoryUsage int64
	closed      bool

	// flushRowThreshold and flushMemoryThreshold are the default
	// ShouldFlush predicate's knobs; the coordinator's flush policy
	// collaborator can still override the decision entirely (spec §6:
	// "Flush policy: apply(coordinator, buffer, sequential)").
	flushRowThreshold    int
	flushMemoryThreshold int64
}

// Options configures a new Buffer's default flush thresholds.
type Options struct {
	FlushRowThreshold    int
	FlushMemoryThreshold int64
}

// DefaultOptions returns reasonable defaults for the built-in column store.
func DefaultOptions() Options {
	return Options{
		FlushRowThreshold:    500_000,
		FlushMemoryThreshold: 64 << 20, // 64MiB
	}
}

// New creates an empty Buffer for partition.
func New(partition int64, opts Options) *Buffer {
	if opts.FlushRowThreshold <= 0 {
		opts.FlushRowThreshold = DefaultOptions().FlushRowThreshold
	}
	if opts.FlushMemoryThreshold <= 0 {
		opts.FlushMemoryThreshold = DefaultOptions().FlushMemoryThreshold
	}
	return &Buffer{
		Partition:            partition,
		columns:              make(map[string]*skipList),
		tombstones:           make(map[string][]tombstone),
		flushRowThreshold:    opts.FlushRowThreshold,
		flushMemoryThreshold: opts.FlushMemoryThreshold,
	}
}

// Insert adds one row to the buffer.
func (b *Buffer) Insert(r Row) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sl, ok := b.columns[r.Device]
	if !ok {
		sl = newSkipList(entryComparator)
		b.columns[r.Device] = sl
	}
	entry := encodeEntry(r.Measurement, r.Timestamp, r.Value)
	sl.insert(entry)

	b.rowCount++
	b.memoryUsage += int64(len(entry) + len(r.Device) + 64)
}

// ShouldFlush reports whether the buffer has crossed its default
// row-count/memory thresholds. The coordinator's flush policy collaborator
// consults this but may also flush for other reasons (spec §4.1 step 9).
func (b *Buffer) ShouldFlush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rowCount >= b.flushRowThreshold || b.memoryUsage >= b.flushMemoryThreshold
}

// RowCount returns the number of rows inserted so far.
func (b *Buffer) RowCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rowCount
}

// MemoryUsage returns the estimated memory usage in bytes.
func (b *Buffer) MemoryUsage() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.memoryUsage
}

// Devices returns the set of devices with at least one row.
func (b *Buffer) Devices() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.columns))
	for d := range b.columns {
		out = append(out, d)
	}
	return out
}

// ApplyDeletion instructs the buffer to hide, at read time, every point for
// (device, measurement) with timestamp <= upperBound. It does not rewrite
// the skiplist (skiplist entries are never removed once inserted, matching
// the teacher's memtable discipline); Query filters against the recorded
// tombstones instead (spec §4.5 step 6: "instruct its attached Buffer to
// apply the deletion to in-memory columns").
func (b *Buffer) ApplyDeletion(device, measurement string, upperBound int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tombstones[device] = append(b.tombstones[device], tombstone{measurement: measurement, upperBound: upperBound})
}

// Query returns every in-memory point for device not covered by a
// tombstone, across all measurements.
func (b *Buffer) Query(device string) []Point {
	b.mu.Lock()
	defer b.mu.Unlock()

	sl, ok := b.columns[device]
	if !ok {
		return nil
	}
	tombs := b.tombstones[device]

	var out []Point
	it := sl.newIterator()
	for it.seekToFirst(); it.valid(); it.next() {
		measurement, ts, value, ok := decodeEntry(it.key())
		if !ok {
			continue
		}
		if coveredByTombstone(tombs, measurement, ts) {
			continue
		}
		out = append(out, Point{Measurement: measurement, Timestamp: ts, Value: value})
	}
	return out
}

func coveredByTombstone(tombs []tombstone, measurement string, ts int64) bool {
	for _, t := range tombs {
		if t.measurement == measurement && ts <= t.upperBound {
			return true
		}
	}
	return false
}

// MarkClosed transitions the buffer to closed — no further Insert/
// ApplyDeletion calls are expected once the coordinator's close callback
// has fired.
func (b *Buffer) MarkClosed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Closed reports whether MarkClosed has been called.
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
