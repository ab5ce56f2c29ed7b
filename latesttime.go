package sgproc

import "sync"

// latestTimeTracker is the three nested tables of spec §3:
//
//  1. latestTimeForEachDevice[partition][device] — max ingest timestamp
//     seen in RAM (may be pre-flush).
//  2. partitionLatestFlushedTime[partition][device] — max timestamp
//     already committed to a sealed or closing sequential file.
//  3. globalLatestFlushedTime[device] — max across all partitions of (2).
//
// Invariant: for any (partition, device), (2) <= (1); (2) is monotonically
// non-decreasing; (3) equals the maximum of (2) over all partitions.
//
// Mutated only under the processor's insertLock.write (spec §5 "Shared-
// resource discipline"). The type's own mutex, taken by every method, makes
// it safe on its own as well, e.g. when used outside that discipline in
// tests.
type latestTimeTracker struct {
	mu sync.Mutex

	latest        map[int64]map[string]int64
	flushed       map[int64]map[string]int64
	globalFlushed map[string]int64
}

func newLatestTimeTracker() *latestTimeTracker {
	return &latestTimeTracker{
		latest:        make(map[int64]map[string]int64),
		flushed:       make(map[int64]map[string]int64),
		globalFlushed: make(map[string]int64),
	}
}

const negInf = int64(-1) << 62

func (t *latestTimeTracker) ensurePartition(partition int64) {
	if _, ok := t.latest[partition]; !ok {
		t.latest[partition] = make(map[string]int64)
	}
	if _, ok := t.flushed[partition]; !ok {
		t.flushed[partition] = make(map[string]int64)
	}
}

// latestForDevice returns latestTimeForEachDevice[partition][device],
// defaulting to negInf (spec §3: "default -inf").
func (t *latestTimeTracker) latestForDevice(partition int64, device string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.latest[partition]; ok {
		if v, ok := m[device]; ok {
			return v
		}
	}
	return negInf
}

// flushedForDevice returns partitionLatestFlushedTime[partition][device],
// defaulting to negInf.
func (t *latestTimeTracker) flushedForDevice(partition int64, device string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.flushed[partition]; ok {
		if v, ok := m[device]; ok {
			return v
		}
	}
	return negInf
}

// observe records an ingested (device, timestamp) in latestTimeForEachDevice
// (spec §4.1 step 7), creating the partition's tables if absent (step 3).
func (t *latestTimeTracker) observe(partition int64, device string, timestamp int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensurePartition(partition)
	if cur, ok := t.latest[partition][device]; !ok || timestamp > cur {
		t.latest[partition][device] = timestamp
	}
}

// commitFlush copies latestTimeForEachDevice[partition] into
// partitionLatestFlushedTime[partition] for every device present in
// devices, then recomputes globalLatestFlushedTime for each — the
// update_latest_flush_time_callback of spec §6. Returns false iff devices
// is empty (no rows were present in the flushed Buffer).
func (t *latestTimeTracker) commitFlush(partition int64, devices []string) bool {
	if len(devices) == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensurePartition(partition)
	for _, device := range devices {
		v := t.latest[partition][device]
		if cur, ok := t.flushed[partition][device]; !ok || v > cur {
			t.flushed[partition][device] = v
		}
		t.recomputeGlobalLocked(device)
	}
	return true
}

func (t *latestTimeTracker) recomputeGlobalLocked(device string) {
	var maxV int64 = negInf
	for _, m := range t.flushed {
		if v, ok := m[device]; ok && v > maxV {
			maxV = v
		}
	}
	t.globalFlushed[device] = maxV
}

// globalFlushedFor returns globalLatestFlushedTime[device].
func (t *latestTimeTracker) globalFlushedFor(device string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.globalFlushed[device]; ok {
		return v
	}
	return negInf
}

// maxLatestAcrossPartitions returns the maximum of
// latestTimeForEachDevice[*][device] across every partition, and whether
// device has been observed at all — delete's step 1 ("If absent, the
// operation is a no-op").
func (t *latestTimeTracker) maxLatestAcrossPartitions(device string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	max := negInf
	found := false
	for _, m := range t.latest {
		if v, ok := m[device]; ok {
			found = true
			if v > max {
				max = v
			}
		}
	}
	return max, found
}

// commitRecoveredFlush seeds latestTimeForEachDevice and
// partitionLatestFlushedTime directly from a recovered sequential
// FileResource's device end time (spec §4.3: "Seed ... from the recovered
// FileResources"), rather than copying from the in-memory latest table
// (which recovery never populates from scratch).
func (t *latestTimeTracker) commitRecoveredFlush(partition int64, device string, endTime int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensurePartition(partition)
	if cur, ok := t.latest[partition][device]; !ok || endTime > cur {
		t.latest[partition][device] = endTime
	}
	if cur, ok := t.flushed[partition][device]; !ok || endTime > cur {
		t.flushed[partition][device] = endTime
	}
	t.recomputeGlobalLocked(device)
}

// isSequential implements the routing decision of spec §3/§4.1 step 4:
// sequential iff timestamp > partitionLatestFlushedTime[partition][device]
// — strict '>', equal timestamps route unsequential (spec §9 "Routing
// edge case").
func (t *latestTimeTracker) isSequential(partition int64, device string, timestamp int64) bool {
	return timestamp > t.flushedForDevice(partition, device)
}
