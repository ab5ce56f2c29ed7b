package writebuffer

import (
	"bytes"

	"github.com/aalhour/sgproc/internal/encoding"
)

// entry format: [measurementLen varint][measurement][timestamp fixed64][valueLen varint][value]
// The device is not part of the entry itself — each device gets its own
// skiplist (see Buffer.columns), mirroring the way the teacher's memtable
// dedicates comparator ordering to one key space at a time, generalized
// here to one device's measurements instead of one keyspace's user keys.
func encodeEntry(measurement string, timestamp int64, value []byte) []byte {
	buf := make([]byte, 0, len(measurement)+8+len(value)+10)
	buf = encoding.AppendLengthPrefixedSlice(buf, []byte(measurement))
	buf = encoding.AppendFixed64(buf, uint64(timestamp))
	buf = encoding.AppendLengthPrefixedSlice(buf, value)
	return buf
}

func decodeEntry(entry []byte) (measurement string, timestamp int64, value []byte, ok bool) {
	s := encoding.NewSlice(entry)
	m, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return "", 0, nil, false
	}
	ts, ok := s.GetFixed64()
	if !ok {
		return "", 0, nil, false
	}
	v, ok := s.GetLengthPrefixedSlice()
	if !ok {
		return "", 0, nil, false
	}
	return string(m), int64(ts), v, true
}

// entryComparator orders entries by measurement then timestamp, the order
// a single device's column store is scanned in.
func entryComparator(a, b []byte) int {
	am, at, _, _ := decodeEntry(a)
	bm, bt, _, _ := decodeEntry(b)
	if c := bytes.Compare([]byte(am), []byte(bm)); c != 0 {
		return c
	}
	switch {
	case at < bt:
		return -1
	case at > bt:
		return 1
	default:
		return 0
	}
}

// seekKey builds a probe entry usable with findGreaterOrEqual to seek to
// (measurement, timestamp) without needing a real value.
func seekKey(measurement string, timestamp int64) []byte {
	return encodeEntry(measurement, timestamp, nil)
}
