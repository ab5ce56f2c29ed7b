// Package sgproc implements the per-storage-group write, query, and
// file-lifecycle coordinator of a time-series database. A Processor owns
// the on-disk and in-memory state of one logical storage group: a set of
// time-partitioned data files, their sidecar metadata, their modification
// (tombstone) files, and the in-memory write buffers that feed them.
//
// It accepts point and batch inserts, routes each row to the correct
// partition and file kind (sequential vs. unsequential) based on
// per-device flush watermarks, drives asynchronous flushes and close,
// coordinates background merges between the two file kinds, applies range
// deletions with crash-safe modification logging, enforces a
// data-time-to-live policy, supports loading externally produced data
// files with collision and overlap detection, and answers point-series
// queries by returning a consistent snapshot of resources.
package sgproc
