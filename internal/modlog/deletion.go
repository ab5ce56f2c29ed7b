// Package modlog implements the modification (tombstone) record and its
// durable sidecar log, plus the coordinator's single merging-modification
// file active only between merge start and merge end (spec §3 "Modification
// record", §4.4 "Invariant about deletions during merge").
//
// Grounded on the teacher's internal/rangedel (tombstone.go, fragmenter.go,
// aggregator.go): a Deletion is this domain's range tombstone — (series
// path, version, upperBound) instead of (startKey, endKey, seqNum). It is
// persisted with internal/recordlog's framed append-only writer (the same
// role the teacher's WAL plays for rangedel's durability), each record
// CRC32C-checked by that framing; once a sidecar is sealed, its deletions
// are rewritten as a single xxh3-checksummed, snappy-compressed block — see
// sidecar.go.
package modlog

import (
	"fmt"

	"github.com/aalhour/sgproc/internal/encoding"
)

// Deletion is a tombstone: for SeriesPath, delete all data with timestamp
// <= UpperBound. Version is the partition-local version stamped on this
// deletion (spec Design Note: "a single delete call stamps the shared
// Deletion with a partition-local nextVersion per target file").
type Deletion struct {
	SeriesPath string
	Version    uint64
	UpperBound int64
}

// Encode serializes d as [pathLen varint][path][version varint][upperBound zigzag-varint].
func (d Deletion) Encode() []byte {
	buf := make([]byte, 0, len(d.SeriesPath)+20)
	buf = encoding.AppendLengthPrefixedSlice(buf, []byte(d.SeriesPath))
	buf = encoding.AppendVarint64(buf, d.Version)
	buf = encoding.AppendVarsignedint64(buf, d.UpperBound)
	return buf
}

// DecodeDeletion is the inverse of Encode.
func DecodeDeletion(b []byte) (Deletion, error) {
	s := encoding.NewSlice(b)
	path, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return Deletion{}, fmt.Errorf("modlog: truncated series path")
	}
	version, ok := s.GetVarint64()
	if !ok {
		return Deletion{}, fmt.Errorf("modlog: truncated version")
	}
	upperBound, ok := s.GetVarsignedint64()
	if !ok {
		return Deletion{}, fmt.Errorf("modlog: truncated upperBound")
	}
	return Deletion{SeriesPath: string(path), Version: version, UpperBound: upperBound}, nil
}
