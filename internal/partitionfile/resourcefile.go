package partitionfile

import (
	"fmt"

	"github.com/aalhour/sgproc/internal/encoding"
	"github.com/aalhour/sgproc/internal/recordlog"
	"github.com/aalhour/sgproc/internal/vfs"
)

// WriteResourceFile persists r's per-device time ranges and historical
// version set to its ".resource" sidecar (spec §4.2 seal). This is the
// on-disk signal recovery reads to tell a sealed file from one still open
// for writes (spec §4.3), and lets recovery restore device ranges for a
// sealed file without touching the data file body, which stays out of
// scope (spec §1).
func (r *Resource) WriteResourceFile(fs vfs.FS) error {
	r.mu.RLock()
	payload := encodeResourcePayload(r.startTime, r.endTime, r.historicalVersions)
	r.mu.RUnlock()

	path := r.ResourcePath()
	w, err := recordlog.NewWriter(fs, path)
	if err != nil {
		return fmt.Errorf("partitionfile: write resource file %s: %w", path, err)
	}
	if err := w.Append(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("partitionfile: write resource file %s: %w", path, err)
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return fmt.Errorf("partitionfile: sync resource file %s: %w", path, err)
	}
	return w.Close()
}

// LoadResourceFile reads a previously written ".resource" sidecar, if one
// exists, and folds its device ranges and historical versions into r. A
// missing or empty file is not an error: recovery's caller already treats
// "no .resource file" as "never sealed" and skips calling this.
func (r *Resource) LoadResourceFile(fs vfs.FS) error {
	if !fs.Exists(r.ResourcePath()) {
		return nil
	}
	records, err := recordlog.ReadAll(fs, r.ResourcePath())
	if err != nil {
		return fmt.Errorf("partitionfile: read resource file %s: %w", r.ResourcePath(), err)
	}
	if len(records) == 0 {
		return nil
	}
	start, end, versions, err := decodeResourcePayload(records[0])
	if err != nil {
		return fmt.Errorf("partitionfile: decode resource file %s: %w", r.ResourcePath(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for d, t := range start {
		r.startTime[d] = t
	}
	for d, t := range end {
		r.endTime[d] = t
	}
	for v := range versions {
		r.historicalVersions[v] = struct{}{}
	}
	return nil
}

// encodeResourcePayload lays out three length-prefixed maps back to back:
// start times, end times, historical versions. Map iteration order doesn't
// matter here since the whole payload is rewritten as a unit on every seal.
func encodeResourcePayload(start, end map[string]int64, versions map[uint64]struct{}) []byte {
	var buf []byte
	buf = encodeTimeMap(buf, start)
	buf = encodeTimeMap(buf, end)

	buf = encoding.AppendVarint64(buf, uint64(len(versions)))
	for v := range versions {
		buf = encoding.AppendVarint64(buf, v)
	}
	return buf
}

func encodeTimeMap(buf []byte, m map[string]int64) []byte {
	buf = encoding.AppendVarint64(buf, uint64(len(m)))
	for d, t := range m {
		buf = encoding.AppendLengthPrefixedSlice(buf, []byte(d))
		buf = encoding.AppendVarsignedint64(buf, t)
	}
	return buf
}

func decodeResourcePayload(payload []byte) (start, end map[string]int64, versions map[uint64]struct{}, err error) {
	s := encoding.NewSlice(payload)

	start, err = decodeTimeMap(s)
	if err != nil {
		return nil, nil, nil, err
	}
	end, err = decodeTimeMap(s)
	if err != nil {
		return nil, nil, nil, err
	}

	n, ok := s.GetVarint64()
	if !ok {
		return nil, nil, nil, encoding.ErrVarintTermination
	}
	versions = make(map[uint64]struct{}, n)
	for i := uint64(0); i < n; i++ {
		v, ok := s.GetVarint64()
		if !ok {
			return nil, nil, nil, encoding.ErrVarintTermination
		}
		versions[v] = struct{}{}
	}
	return start, end, versions, nil
}

func decodeTimeMap(s *encoding.Slice) (map[string]int64, error) {
	n, ok := s.GetVarint64()
	if !ok {
		return nil, encoding.ErrVarintTermination
	}
	m := make(map[string]int64, n)
	for i := uint64(0); i < n; i++ {
		d, ok := s.GetLengthPrefixedSlice()
		if !ok {
			return nil, encoding.ErrBufferTooSmall
		}
		t, ok := s.GetVarsignedint64()
		if !ok {
			return nil, encoding.ErrVarintTermination
		}
		m[string(d)] = t
	}
	return m, nil
}
