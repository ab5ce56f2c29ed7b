package partitionfile

import "sort"

// Index is the ordered set of all sequential file resources (primary
// ordering: partition id; secondary: filename version tuple) and the
// ordered list of unsequential resources for a storage group.
//
// Index is not safe for concurrent use by itself — callers hold the
// coordinator's insertLock/mergeLock for mutation, matching the teacher's
// internal/version VersionSet discipline (mutated only under the DB's own
// locks, not its own).
type Index struct {
	sequential   []*Resource
	unsequential []*Resource
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{}
}

// less orders two sequential resources by (partition, version, mergeCount).
func less(a, b *Resource) bool {
	if a.Partition != b.Partition {
		return a.Partition < b.Partition
	}
	return a.FileName.Less(b.FileName)
}

// InsertSequential inserts r into the sequential set, keeping it sorted by
// (partition, version, mergeCount).
func (idx *Index) InsertSequential(r *Resource) {
	i := sort.Search(len(idx.sequential), func(i int) bool {
		return !less(idx.sequential[i], r)
	})
	idx.sequential = append(idx.sequential, nil)
	copy(idx.sequential[i+1:], idx.sequential[i:])
	idx.sequential[i] = r
}

// InsertSequentialAt inserts r at position pos+1 of the sequential list
// (used by the load planner, which computes insertion position directly —
// see internal/loadplan).
func (idx *Index) InsertSequentialAt(pos int, r *Resource) {
	i := pos + 1
	if i < 0 {
		i = 0
	}
	if i > len(idx.sequential) {
		i = len(idx.sequential)
	}
	idx.sequential = append(idx.sequential, nil)
	copy(idx.sequential[i+1:], idx.sequential[i:])
	idx.sequential[i] = r
}

// AppendUnsequential appends r to the unsequential list (no ordering
// invariant is required of it per spec §2/§3).
func (idx *Index) AppendUnsequential(r *Resource) {
	idx.unsequential = append(idx.unsequential, r)
}

// Sequential returns the live sequential slice (not a copy — callers must
// not mutate it directly; use Remove* to mutate).
func (idx *Index) Sequential() []*Resource { return idx.sequential }

// Unsequential returns the live unsequential slice.
func (idx *Index) Unsequential() []*Resource { return idx.unsequential }

// Snapshot returns independent copies of both slices, for use by query
// (spec §4.8: "the snapshot lists are independent of subsequent mutations").
func (idx *Index) Snapshot() (seq, unseq []*Resource) {
	seq = append([]*Resource(nil), idx.sequential...)
	unseq = append([]*Resource(nil), idx.unsequential...)
	return seq, unseq
}

// RemoveSequential removes r from the sequential set by identity.
func (idx *Index) RemoveSequential(r *Resource) {
	idx.sequential = removeByIdentity(idx.sequential, r)
}

// RemoveUnsequential removes r from the unsequential list by identity.
func (idx *Index) RemoveUnsequential(r *Resource) {
	idx.unsequential = removeByIdentity(idx.unsequential, r)
}

func removeByIdentity(list []*Resource, target *Resource) []*Resource {
	for i, r := range list {
		if r == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// FindSequentialByName returns the sequential resource whose filename
// exactly matches name, or nil. Used by the load planner's
// POS_ALREADY_EXIST check.
func (idx *Index) FindSequentialByName(filename string) *Resource {
	for _, r := range idx.sequential {
		if r.Filename() == filename {
			return r
		}
	}
	return nil
}
