package recordlog

import (
	"fmt"

	"github.com/aalhour/sgproc/internal/encoding"
	"github.com/aalhour/sgproc/internal/vfs"
)

// Writer appends framed records to a single file. It does not buffer
// across Sync calls: each Append is written and left to the OS page cache
// until Sync is called, matching the teacher's WAL::Sync being a distinct,
// caller-driven step from WAL::Write.
type Writer struct {
	f vfs.WritableFile
}

// NewWriter creates a Writer appending to a freshly created or truncated
// file at path.
func NewWriter(fs vfs.FS, path string) (*Writer, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recordlog: create %s: %w", path, err)
	}
	return &Writer{f: f}, nil
}

// Append writes one framed record containing payload.
func (w *Writer) Append(payload []byte) error {
	var hdr [headerSize]byte
	encoding.EncodeFixed32(hdr[0:4], checksumOf(typePayload, payload))
	encoding.EncodeFixed32(hdr[4:8], uint32(len(payload)))
	hdr[8] = byte(typePayload)

	if err := w.f.Append(hdr[:]); err != nil {
		return fmt.Errorf("recordlog: append header: %w", err)
	}
	if len(payload) > 0 {
		if err := w.f.Append(payload); err != nil {
			return fmt.Errorf("recordlog: append payload: %w", err)
		}
	}
	return nil
}

// Sync flushes the file to stable storage.
func (w *Writer) Sync() error {
	return w.f.Sync()
}

// Close closes the underlying file without an implicit Sync — callers that
// need durability must Sync first.
func (w *Writer) Close() error {
	return w.f.Close()
}
