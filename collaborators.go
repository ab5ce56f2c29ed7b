package sgproc

import "context"

// The interfaces below are the consumed collaborator boundary of spec §6:
// components the coordinator depends on but that live outside this
// module's scope (spec §1 OUT OF SCOPE). Ground: options.go's pattern of
// accepting user-supplied interfaces (Comparator, FS, Logger) rather than
// owning concrete implementations.

// DirectoryRotator hands out the next data directory for a freshly created
// Buffer's FileResource (spec §4.2, §6), and enumerates every root it has
// ever handed out so recovery can scan all of them (spec §4.3: "scans
// ... across every sequential data root and every unsequential data
// root").
type DirectoryRotator interface {
	NextSequentialRoot() (string, error)
	NextUnsequentialRoot() (string, error)
	SequentialRoots() []string
	UnsequentialRoots() []string
}

// VersionController is the external version-allocation collaborator named
// in spec §6 ("Version controller: next_version(partition) -> u64").
// internal/versionreg.Registry satisfies this interface directly.
type VersionController interface {
	NextVersion(partition int64) (uint64, error)
}

// MetadataService resolves devices and series schemas and maintains the
// "last value" cache (spec §1 OUT OF SCOPE, §6).
type MetadataService interface {
	DeviceNodeWithAutoCreateAndReadLock(device string) (any, error)
	SeriesSchema(device, measurement string) (any, error)
	StorageGroupNameByPath(path string) (string, error)
	// NotifyPoint updates the "last value" cache with a newly ingested
	// point, keyed by priority (spec §4.1 step 8: "notify the metadata
	// cache of the new point using globalLatestFlushedTime[device] as the
	// priority key").
	NotifyPoint(device, measurement string, timestamp int64, priority int64)
}

// FlushPolicy is invoked when a Buffer's ShouldFlush reports true (spec
// §4.1 step 9, §6).
type FlushPolicy interface {
	Apply(ctx context.Context, p *Processor, bufferPartition int64, sequential bool) error
}

// FilePathsManager registers a query's resource snapshot so a concurrent
// merge does not physically remove a file still being read (spec §4.8,
// §6).
type FilePathsManager interface {
	AddUsedFilesForQuery(queryID string, source QueryDataSource)
}

// TimeFilter narrows a query to a time range (spec §4.8: "delegates to the
// filter's satisfyStartEndTime(start,end)").
type TimeFilter interface {
	SatisfyStartEndTime(start, end int64) bool
}

// WriteAheadLog is the external collaborator append target for delete's
// optional WAL step (spec §1 OUT OF SCOPE, §4.5 step 3).
type WriteAheadLog interface {
	AppendDeletion(partition int64, sequential bool, seriesPath string, upperBound int64) error
}

// ColumnStore is the shape of an external "table list" column buffer (spec
// §1 OUT OF SCOPE: "the memory-resident column buffer (the table list)").
// No Options field accepts one: every Buffer is internal/writebuffer's
// skiplist-backed Buffer.
type ColumnStore interface {
	Insert(device, measurement string, timestamp int64, value []byte)
	Query(device string) []QueryPoint
}
