package partitionfile

import (
	"path/filepath"
	"sync"
)

// Resource represents one data file: its identity, its per-device time
// ranges, and the lifecycle flags the coordinator mutates as the file moves
// from "being written" to "sealed" to "gone".
//
// The per-resource lock is distinct from the coordinator's own insertLock /
// mergeLock / closeQueryLock (see the root package for those) — it protects
// physical removal or move of this one file against an ongoing reader, per
// the lock ordering in spec §5.
type Resource struct {
	// Path is the absolute path to the data file.
	Path string
	// Partition is the parent partition id, encoded as the immediate parent
	// directory name.
	Partition int64
	// FileName is the parsed <systemMillis>-<version>-<mergeCount> triple.
	FileName Name
	// Ext is the data file extension (without the leading dot).
	Ext string

	mu sync.RWMutex

	// startTime/endTime map device identifier -> inclusive timestamp bound.
	startTime map[string]int64
	endTime   map[string]int64

	// historicalVersions is the set of direct versions whose data
	// contributed to this file (stable under merges).
	historicalVersions map[uint64]struct{}

	closed  bool
	deleted bool
	merging bool

	// modsPath is not assigned or read anywhere; the sidecar modification
	// file path is derived from Path by ModsPath.
	modsPath string
}

// New creates a Resource for a freshly created data file at path, under
// partition, named name, with no device ranges and no historical versions
// recorded yet.
func New(path string, partition int64, name Name, ext string) *Resource {
	return &Resource{
		Path:               path,
		Partition:          partition,
		FileName:           name,
		Ext:                ext,
		startTime:          make(map[string]int64),
		endTime:            make(map[string]int64),
		historicalVersions: make(map[uint64]struct{}),
	}
}

// ModsPath returns "<path>.mods", the sidecar modification file path,
// irrespective of whether it has been created yet.
func (r *Resource) ModsPath() string {
	return r.Path + ModsSuffix
}

// ResourcePath returns "<path>.resource", the sidecar metadata file path.
func (r *Resource) ResourcePath() string {
	return r.Path + ResourceSuffix
}

// Filename returns the base filename, e.g. "100-1-0.tsfile".
func (r *Resource) Filename() string {
	return r.FileName.Format(r.Ext)
}

// Dir returns the partition directory containing this resource.
func (r *Resource) Dir() string {
	return filepath.Dir(r.Path)
}

// Lock/Unlock/RLock/RUnlock expose the per-resource readers/writers lock.
func (r *Resource) Lock()    { r.mu.Lock() }
func (r *Resource) Unlock()  { r.mu.Unlock() }
func (r *Resource) RLock()   { r.mu.RLock() }
func (r *Resource) RUnlock() { r.mu.RUnlock() }

// TryLock attempts to acquire the write lock without blocking.
func (r *Resource) TryLock() bool { return r.mu.TryLock() }

// StartTime returns the recorded start time for device, and whether the
// device is present at all.
func (r *Resource) StartTime(device string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.startTime[device]
	return v, ok
}

// EndTime returns the recorded end time for device, and whether the device
// is present at all.
func (r *Resource) EndTime(device string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.endTime[device]
	return v, ok
}

// Devices returns the set of devices this resource has ranges for.
func (r *Resource) Devices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.startTime))
	for d := range r.startTime {
		out = append(out, d)
	}
	return out
}

// UpdateStartTime records t as the start time for device if it is the first
// observation, or earlier than the current one.
func (r *Resource) UpdateStartTime(device string, t int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.startTime[device]; !ok || t < cur {
		r.startTime[device] = t
	}
}

// UpdateEndTime records t as the end time for device if it is the first
// observation, or later than the current one.
func (r *Resource) UpdateEndTime(device string, t int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.endTime[device]; !ok || t > cur {
		r.endTime[device] = t
	}
}

// SetEndTime forcibly sets the end time for device (used to freeze
// end-times on async close — see spec §4.2).
func (r *Resource) SetEndTime(device string, t int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endTime[device] = t
}

// HasDevice reports whether the resource has a range recorded for device.
func (r *Resource) HasDevice(device string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.startTime[device]
	return ok
}

// AddHistoricalVersion adds v to the set of historical versions.
func (r *Resource) AddHistoricalVersion(v uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historicalVersions[v] = struct{}{}
}

// HistoricalVersions returns a copy of the historical version set.
func (r *Resource) HistoricalVersions() map[uint64]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint64]struct{}, len(r.historicalVersions))
	for v := range r.historicalVersions {
		out[v] = struct{}{}
	}
	return out
}

// IsHistoricalSubsetOf reports whether r's historical version set is a
// subset of other's (used by the load duplicate-by-version check, §8
// round-trip law).
func (r *Resource) IsHistoricalSubsetOf(other *Resource) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()
	for v := range r.historicalVersions {
		if _, ok := other.historicalVersions[v]; !ok {
			return false
		}
	}
	return true
}

// Closed, MarkClosed, Deleted, MarkDeleted, Merging, SetMerging expose the
// three lifecycle flags under the resource's own lock.
func (r *Resource) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Resource) MarkClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *Resource) Deleted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deleted
}

func (r *Resource) MarkDeleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = true
}

func (r *Resource) Merging() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.merging
}

func (r *Resource) SetMerging(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merging = v
}

// StillLives reports whether the resource should survive a TTL sweep with
// the given cutoff: it lives if at least one device's end time is still
// >= cutoff.
func (r *Resource) StillLives(cutoff int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.endTime) == 0 {
		return true
	}
	for _, end := range r.endTime {
		if end >= cutoff {
			return true
		}
	}
	return false
}
