package modlog

import (
	"fmt"

	"github.com/aalhour/sgproc/internal/compression"
	"github.com/aalhour/sgproc/internal/encoding"
	"github.com/aalhour/sgproc/internal/recordlog"
	"github.com/aalhour/sgproc/internal/vfs"
	"github.com/zeebo/xxh3"
)

// sealedMagic marks a sealed (closed, compressed) sidecar file, to
// distinguish it from an active one on ReadAny.
const sealedMagic = "MODS1\n"

// Sidecar is an append-only modification log backing one FileResource
// (or the coordinator's single merging-modification file). While active,
// each Deletion is appended as its own recordlog record; Close seals the
// file into a single xxh3-checksummed, snappy-compressed block, after which
// no further appends are possible.
type Sidecar struct {
	fs   vfs.FS
	path string
	w    *recordlog.Writer
}

// Create opens path for a fresh active sidecar (truncating any existing
// content — callers are responsible for not overwriting a sealed sidecar
// they still need).
func Create(fs vfs.FS, path string) (*Sidecar, error) {
	w, err := recordlog.NewWriter(fs, path)
	if err != nil {
		return nil, fmt.Errorf("modlog: create sidecar %s: %w", path, err)
	}
	return &Sidecar{fs: fs, path: path, w: w}, nil
}

// OpenAppend reopens an existing active sidecar for further appends
// (recovery rebuilding a resource's sidecar state, spec §4.3).
func OpenAppend(fs vfs.FS, path string) (*Sidecar, error) {
	deletions, err := ReadActive(fs, path)
	if err != nil {
		return nil, err
	}
	w, err := recordlog.NewWriter(fs, path)
	if err != nil {
		return nil, fmt.Errorf("modlog: reopen sidecar %s: %w", path, err)
	}
	sc := &Sidecar{fs: fs, path: path, w: w}
	for _, d := range deletions {
		if err := sc.Append(d); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

// Append writes one Deletion to the active sidecar.
func (sc *Sidecar) Append(d Deletion) error {
	return sc.w.Append(d.Encode())
}

// Sync flushes the active sidecar to stable storage.
func (sc *Sidecar) Sync() error {
	return sc.w.Sync()
}

// Close seals the sidecar: reads back every appended Deletion, serializes
// them as one batch, xxh3-checksums the batch, snappy-compresses it, and
// rewrites the file as a single sealed block (spec §4.4 end-action:
// "append to a fresh sidecar modification file for this sequential file,
// then close it").
func (sc *Sidecar) Close() error {
	if err := sc.w.Sync(); err != nil {
		return err
	}
	if err := sc.w.Close(); err != nil {
		return err
	}
	deletions, err := ReadActive(sc.fs, sc.path)
	if err != nil {
		return err
	}
	return seal(sc.fs, sc.path, deletions)
}

// Abort closes the underlying file handle without sealing, for the
// rollback path on a failed multi-file delete (spec §4.5 step 7).
func (sc *Sidecar) Abort() error {
	return sc.w.Close()
}

func seal(fs vfs.FS, path string, deletions []Deletion) error {
	var batch []byte
	batch = encoding.AppendVarint64(batch, uint64(len(deletions)))
	for _, d := range deletions {
		batch = encoding.AppendLengthPrefixedSlice(batch, d.Encode())
	}

	checksum := xxh3.Hash(batch)
	compressed, err := compression.Compress(compression.SnappyCompression, batch)
	if err != nil {
		return fmt.Errorf("modlog: compress sidecar %s: %w", path, err)
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("modlog: seal %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := f.Append([]byte(sealedMagic)); err != nil {
		return err
	}
	var hdr [8]byte
	encoding.EncodeFixed64(hdr[:], checksum)
	if err := f.Append(hdr[:]); err != nil {
		return err
	}
	if err := f.Append(compressed); err != nil {
		return err
	}
	return f.Sync()
}

// ReadActive reads every Deletion from an unsealed (still-appending)
// sidecar via its recordlog framing.
func ReadActive(fs vfs.FS, path string) ([]Deletion, error) {
	if !fs.Exists(path) {
		return nil, nil
	}
	records, err := recordlog.ReadAll(fs, path)
	if err != nil {
		return nil, fmt.Errorf("modlog: read active sidecar %s: %w", path, err)
	}
	out := make([]Deletion, 0, len(records))
	for _, r := range records {
		d, err := DecodeDeletion(r)
		if err != nil {
			return nil, fmt.Errorf("modlog: decode sidecar %s: %w", path, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// ReadSealed reads every Deletion from a sealed (closed, compressed)
// sidecar, verifying its xxh3 checksum.
func ReadSealed(fs vfs.FS, path string) ([]Deletion, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("modlog: open sealed sidecar %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, len(sealedMagic))
	if _, err := f.Read(magic); err != nil {
		return nil, fmt.Errorf("modlog: read magic %s: %w", path, err)
	}
	if string(magic) != sealedMagic {
		return nil, fmt.Errorf("modlog: %s is not a sealed sidecar", path)
	}
	hdr := make([]byte, 8)
	if _, err := f.Read(hdr); err != nil {
		return nil, fmt.Errorf("modlog: read checksum %s: %w", path, err)
	}
	wantChecksum := encoding.DecodeFixed64(hdr)

	var compressed []byte
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			compressed = append(compressed, buf[:n]...)
		}
		if err != nil {
			break
		}
	}

	batch, err := compression.Decompress(compression.SnappyCompression, compressed)
	if err != nil {
		return nil, fmt.Errorf("modlog: decompress sealed sidecar %s: %w", path, err)
	}
	if got := xxh3.Hash(batch); got != wantChecksum {
		return nil, fmt.Errorf("modlog: checksum mismatch in sealed sidecar %s", path)
	}

	s := encoding.NewSlice(batch)
	count, ok := s.GetVarint64()
	if !ok {
		return nil, fmt.Errorf("modlog: truncated sealed sidecar %s", path)
	}
	out := make([]Deletion, 0, count)
	for range count {
		raw, ok := s.GetLengthPrefixedSlice()
		if !ok {
			return nil, fmt.Errorf("modlog: truncated sealed sidecar %s", path)
		}
		d, err := DecodeDeletion(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// SnapshotFile reads the raw bytes of path exactly as they sit on disk, if
// the file exists, for a caller that needs to restore this precise state
// later (spec §4.5 step 7: "roll back only what was written in the same
// call" — a plain fs.Remove would also discard any deletions a sidecar
// already held from an earlier, already-committed Delete call).
func SnapshotFile(fs vfs.FS, path string) (data []byte, existed bool, err error) {
	if !fs.Exists(path) {
		return nil, false, nil
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("modlog: snapshot %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 4096)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if readErr != nil {
			break
		}
	}
	return data, true, nil
}

// RestoreFile rewrites path to exactly data, or removes it entirely if
// existed is false (meaning there was nothing at path before the matching
// SnapshotFile call).
func RestoreFile(fs vfs.FS, path string, data []byte, existed bool) error {
	if !existed {
		if fs.Exists(path) {
			return fs.Remove(path)
		}
		return nil
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("modlog: restore %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if len(data) > 0 {
		if err := f.Append(data); err != nil {
			return fmt.Errorf("modlog: restore %s: %w", path, err)
		}
	}
	return f.Sync()
}

// ReadAny reads a sidecar regardless of whether it has been sealed yet,
// used by recovery (spec §4.3) which may encounter either shape.
func ReadAny(fs vfs.FS, path string) ([]Deletion, error) {
	if !fs.Exists(path) {
		return nil, nil
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("modlog: open sidecar %s: %w", path, err)
	}
	magic := make([]byte, len(sealedMagic))
	n, _ := f.Read(magic)
	_ = f.Close()
	if n == len(sealedMagic) && string(magic) == sealedMagic {
		return ReadSealed(fs, path)
	}
	return ReadActive(fs, path)
}
