// Package partitionfile implements the on-disk data model of a storage
// group: file resources, their ordering within a time partition, and the
// closing set of buffers handed to the flush pipeline but not yet sealed.
//
// Grounded on the teacher's internal/dbformat (filename/type primitives) and
// internal/version (ordered file-set bookkeeping: builder.go's level
// ordering, find_file_test.go's ordering contract), generalized from
// (level, fileNum) ordering to (partition, version, mergeCount) ordering.
package partitionfile

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes the two file families a storage group maintains.
type Kind int

const (
	// Sequential holds files whose per-device timestamps are strictly newer
	// than anything already flushed for that device in that partition.
	Sequential Kind = iota
	// Unsequential holds out-of-order arrivals relative to a device's
	// flushed watermark.
	Unsequential
)

func (k Kind) String() string {
	if k == Sequential {
		return "sequential"
	}
	return "unsequential"
}

// Name is the triple of decimal integers encoded in a data file's name:
// "<systemMillis>-<version>-<mergeCount>.<ext>".
type Name struct {
	SystemMillis int64
	Version      uint64
	MergeCount   uint64
}

// Format renders the name with the given extension (without the leading dot).
func (n Name) Format(ext string) string {
	return fmt.Sprintf("%d-%d-%d.%s", n.SystemMillis, n.Version, n.MergeCount, ext)
}

// Less orders names the way the sequential file index orders filenames:
// compare version, then mergeCount. (Partition ordering dominates and is
// applied by the caller before Less is consulted — see FileIndex.)
func (n Name) Less(other Name) bool {
	if n.Version != other.Version {
		return n.Version < other.Version
	}
	return n.MergeCount < other.MergeCount
}

// ParseName parses "<systemMillis>-<version>-<mergeCount>.<ext>" into its
// three decimal components and the extension.
func ParseName(filename string) (n Name, ext string, err error) {
	base, ext, ok := strings.Cut(filename, ".")
	if !ok {
		return Name{}, "", fmt.Errorf("partitionfile: %q has no extension", filename)
	}
	parts := strings.Split(base, "-")
	if len(parts) != 3 {
		return Name{}, "", fmt.Errorf("partitionfile: %q is not <millis>-<version>-<mergeCount>", filename)
	}
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Name{}, "", fmt.Errorf("partitionfile: bad systemMillis in %q: %w", filename, err)
	}
	version, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Name{}, "", fmt.Errorf("partitionfile: bad version in %q: %w", filename, err)
	}
	mergeCount, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Name{}, "", fmt.Errorf("partitionfile: bad mergeCount in %q: %w", filename, err)
	}
	return Name{SystemMillis: millis, Version: version, MergeCount: mergeCount}, ext, nil
}

// ParsePartitionID validates and parses a directory name as a partition id.
// Implementations must skip, not panic on, non-numeric directory names
// (Design Note: partition id parsing from directory name).
func ParsePartitionID(dirName string) (int64, bool) {
	id, err := strconv.ParseInt(dirName, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

const (
	// TempSuffix marks a pending rename left over from an interrupted load.
	TempSuffix = ".tmp"
	// MergeSuffix marks a pending rename left over from an interrupted merge.
	MergeSuffix = ".merge"
	// ModsSuffix is the sidecar modification file suffix appended to a data
	// file's full name: "<datafile>.mods".
	ModsSuffix = ".mods"
	// ResourceSuffix is the sidecar resource metadata file suffix.
	ResourceSuffix = ".resource"
)
