package recordlog

import (
	"errors"
	"fmt"
	"io"

	"github.com/aalhour/sgproc/internal/encoding"
	"github.com/aalhour/sgproc/internal/vfs"
)

// ErrCorruptRecord is returned when a record's checksum does not match its
// payload. The caller (recovery performer) decides whether that is fatal or
// merely truncates recovery at that point.
var ErrCorruptRecord = errors.New("recordlog: corrupt record")

// ReadAll reads every well-formed record from path in order. A truncated
// trailing record (a partial header, or a payload shorter than its declared
// length — the shape left behind by a crash mid-append) is treated as the
// expected end of the log, not an error, mirroring the teacher's WAL
// recovery posture of tolerating a torn tail record. A checksum mismatch on
// a record that is NOT the last one is reported as ErrCorruptRecord, since
// that indicates on-disk corruption rather than a torn write.
func ReadAll(fs vfs.FS, path string) ([][]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recordlog: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var records [][]byte
	var hdr [headerSize]byte
	for {
		n, err := io.ReadFull(f, hdr[:])
		if err == io.EOF {
			return records, nil
		}
		if err == io.ErrUnexpectedEOF || n < headerSize {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("recordlog: read header: %w", err)
		}

		wantCRC := encoding.DecodeFixed32(hdr[0:4])
		length := encoding.DecodeFixed32(hdr[4:8])
		typ := recordType(hdr[8])

		payload := make([]byte, length)
		if length > 0 {
			n, err := io.ReadFull(f, payload)
			if err == io.EOF || err == io.ErrUnexpectedEOF || uint32(n) < length {
				return records, nil
			}
			if err != nil {
				return records, fmt.Errorf("recordlog: read payload: %w", err)
			}
		}

		gotCRC := checksumOf(typ, payload)
		if gotCRC != wantCRC {
			if _, err := checkIfLast(f); err == nil {
				return records, nil
			}
			return records, fmt.Errorf("%w: checksum mismatch at record %d", ErrCorruptRecord, len(records))
		}

		records = append(records, payload)
	}
}

// checkIfLast peeks whether the stream is exhausted, used only to decide
// whether a checksum failure is a torn tail write (acceptable) or real
// corruption (not). It does not attempt to "recover" the mismatched bytes
// either way — the record is dropped in both cases.
func checkIfLast(f vfs.SequentialFile) (bool, error) {
	var probe [1]byte
	n, err := f.Read(probe[:])
	if n == 0 && err == io.EOF {
		return true, nil
	}
	return false, errors.New("more data follows a corrupt record")
}
