// Package recordlog implements a crash-safe, append-only framed record
// stream used for the two durable side-logs the coordinator keeps outside
// of the data files themselves: the per-file and merging modification logs
// (internal/modlog) and the per-partition version counter log
// (internal/versionreg).
//
// Grounded on the teacher's internal/wal block-fragmenting Writer/Reader:
// this package keeps the same per-record CRC32C framing and the same
// "truncated tail record is recoverable data loss, not a fatal error"
// recovery posture, but drops WAL's block-boundary record fragmentation and
// log-file recycling — the side-logs framed here are orders of magnitude
// smaller than an SST write-ahead log and never need to span a fixed block
// size.
package recordlog

import "github.com/aalhour/sgproc/internal/checksum"

// header is the fixed-size portion of a record: a masked CRC32C of
// (type byte + payload) followed by the payload length.
//
// On-disk layout per record:
//
//	checksum : fixed32 (masked CRC32C of type + payload)
//	length   : fixed32 (payload length)
//	type     : 1 byte
//	payload  : length bytes
const headerSize = 4 + 4 + 1

// recordType distinguishes payload framing; reserved for future record
// kinds (e.g. a rotation marker) without growing the header.
type recordType uint8

const (
	typePayload recordType = 1
)

func checksumOf(t recordType, payload []byte) uint32 {
	buf := make([]byte, 0, 1+len(payload))
	buf = append(buf, byte(t))
	buf = append(buf, payload...)
	return checksum.MaskedValue(buf)
}
