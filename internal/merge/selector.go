// Package merge implements the MergeCoordinator and its candidate selectors
// (spec §2, §4.4): folding unsequential files into sequential ones while
// interleaving safely with concurrent deletion.
//
// Grounded on the teacher's internal/compaction (compaction.go, picker.go,
// fifo_picker.go, job.go, subcompaction.go): MAX_FILE_NUM and MAX_SERIES_NUM
// are two compaction.CompactionPicker-shaped strategies operating over a
// MergeResource snapshot instead of a version.Version; the merge task itself
// plays the role of compaction.Job, and its output chunk payloads are
// zstd-compressed the same way internal/compression wraps zstd SST blocks.
package merge

import "github.com/aalhour/sgproc/internal/partitionfile"

// Strategy names a candidate-selection strategy (spec §6 "Merge selector
// factory by strategy name").
type Strategy string

const (
	MaxFileNum   Strategy = "MAX_FILE_NUM"
	MaxSeriesNum Strategy = "MAX_SERIES_NUM"
)

// Resource is the MergeResource built from the current FileIndex plus a
// time lower bound (spec §4.4: "Build a MergeResource over the current
// FileIndex plus a timeLowerBound = now − TTL").
type Resource struct {
	Sequential     []*partitionfile.Resource
	Unsequential   []*partitionfile.Resource
	TimeLowerBound int64
}

// Candidate is a selector's chosen subset to merge in one task.
type Candidate struct {
	Sequential   []*partitionfile.Resource
	Unsequential []*partitionfile.Resource
}

// Empty reports whether c selects no unsequential files — the end-action's
// abort condition (spec §4.4: "If the unsequential selection is empty,
// treat as aborted").
func (c Candidate) Empty() bool {
	return len(c.Unsequential) == 0
}

// Selector picks a Candidate within a memory budget, or returns an empty
// Candidate if nothing qualifies (spec §4.4: "if empty, abort").
type Selector interface {
	Select(r Resource, memoryBudget int64) Candidate
}

// NewSelector resolves strategy to a concrete Selector, the merge selector
// factory named in spec §6.
func NewSelector(strategy Strategy) Selector {
	switch strategy {
	case MaxSeriesNum:
		return maxSeriesNumSelector{}
	default:
		return maxFileNumSelector{}
	}
}

// estimatedResourceSize approximates the memory footprint one FileResource
// contributes to a merge task, proportional to its device count: a coarse
// stand-in for the teacher's FileMetaData.FD.FileSize used by
// fifo_picker.go's size accounting.
func estimatedResourceSize(r *partitionfile.Resource) int64 {
	const perDevice = 4096
	return int64(len(r.Devices())) * perDevice
}

// maxFileNumSelector greedily adds unsequential files (oldest first) until
// either the memory budget or a file-count cap is reached, then pulls in
// every sequential file sharing a partition with a selected unsequential
// file — mirroring FIFOCompactionPicker.pickSizeCompaction's "oldest first,
// bounded by budget" shape.
type maxFileNumSelector struct{}

const maxFileNumCap = 64

func (maxFileNumSelector) Select(r Resource, memoryBudget int64) Candidate {
	var cand Candidate
	var used int64
	partitions := make(map[int64]struct{})

	for _, u := range r.Unsequential {
		if len(cand.Unsequential) >= maxFileNumCap {
			break
		}
		sz := estimatedResourceSize(u)
		if used+sz > memoryBudget && len(cand.Unsequential) > 0 {
			break
		}
		cand.Unsequential = append(cand.Unsequential, u)
		partitions[u.Partition] = struct{}{}
		used += sz
	}
	if len(cand.Unsequential) == 0 {
		return Candidate{}
	}
	for _, s := range r.Sequential {
		if _, ok := partitions[s.Partition]; ok {
			cand.Sequential = append(cand.Sequential, s)
		}
	}
	return cand
}

// maxSeriesNumSelector selects the unsequential files touching the fewest
// distinct devices (cheapest per-series fold) until the memory budget is
// exhausted, then pulls in the sequential files sharing a partition.
type maxSeriesNumSelector struct{}

func (maxSeriesNumSelector) Select(r Resource, memoryBudget int64) Candidate {
	ordered := make([]*partitionfile.Resource, len(r.Unsequential))
	copy(ordered, r.Unsequential)
	sortBySeriesCount(ordered)

	var cand Candidate
	var used int64
	partitions := make(map[int64]struct{})
	for _, u := range ordered {
		sz := estimatedResourceSize(u)
		if used+sz > memoryBudget && len(cand.Unsequential) > 0 {
			break
		}
		cand.Unsequential = append(cand.Unsequential, u)
		partitions[u.Partition] = struct{}{}
		used += sz
	}
	if len(cand.Unsequential) == 0 {
		return Candidate{}
	}
	for _, s := range r.Sequential {
		if _, ok := partitions[s.Partition]; ok {
			cand.Sequential = append(cand.Sequential, s)
		}
	}
	return cand
}

func sortBySeriesCount(rs []*partitionfile.Resource) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && len(rs[j-1].Devices()) > len(rs[j].Devices()); j-- {
			rs[j-1], rs[j] = rs[j], rs[j-1]
		}
	}
}
