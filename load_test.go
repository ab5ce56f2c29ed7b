package sgproc

import (
	"path/filepath"
	"testing"

	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/vfs"
)

// newStagedResource creates a Resource backed by a real file at dir, the
// shape an external producer leaves behind for LoadGeneral/LoadForSync to
// pick up (spec §4.7).
func newStagedResource(t *testing.T, dir string, partition int64, millis int64, version uint64, devices map[string][2]int64) *partitionfile.Resource {
	t.Helper()
	name := partitionfile.Name{SystemMillis: millis, Version: version, MergeCount: 0}
	path := filepath.Join(dir, name.Format("tsfile"))
	r := partitionfile.New(path, partition, name, "tsfile")
	r.AddHistoricalVersion(version)
	for d, rng := range devices {
		r.UpdateStartTime(d, rng[0])
		r.UpdateEndTime(d, rng[1])
	}
	f, err := vfs.Default().Create(path)
	if err != nil {
		t.Fatalf("stage fixture file: %v", err)
	}
	_ = f.Close()
	return r
}

func TestLoadGeneralOverlapRoutesToUnsequential(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	if _, err := p.Insert("d1", "m1", 10, []byte("a")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := p.Insert("d1", "m1", 20, []byte("b")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	p.SyncCloseAll()

	staging := t.TempDir()
	candidate := newStagedResource(t, staging, 0, 500, 999, map[string][2]int64{"d1": {15, 25}})

	if err := p.LoadGeneral(candidate); err != nil {
		t.Fatalf("LoadGeneral() error = %v", err)
	}

	seq, unseq := p.fileIndex.Snapshot()
	if len(seq) != 1 {
		t.Errorf("overlap load should not touch the sequential list, got %d entries", len(seq))
	}
	if len(unseq) != 1 || unseq[0] != candidate {
		t.Errorf("overlapping candidate should have been routed to unsequential, unseq = %v", unseq)
	}
}

func TestLoadGeneralDuplicateByVersionIsDiscarded(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	if _, err := p.Insert("d1", "m1", 10, []byte("a")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	p.SyncCloseAll()

	seq, _ := p.fileIndex.Snapshot()
	if len(seq) != 1 {
		t.Fatalf("expected exactly one sequential file, got %d", len(seq))
	}
	var existingVersion uint64
	for v := range seq[0].HistoricalVersions() {
		existingVersion = v
	}

	staging := t.TempDir()
	candidate := newStagedResource(t, staging, 0, 999, existingVersion, map[string][2]int64{"d1": {10, 10}})

	if err := p.LoadGeneral(candidate); err != nil {
		t.Fatalf("LoadGeneral() error = %v", err)
	}

	seqAfter, unseqAfter := p.fileIndex.Snapshot()
	if len(seqAfter) != 1 || len(unseqAfter) != 0 {
		t.Errorf("duplicate-by-version load should have been discarded, got %d seq, %d unseq", len(seqAfter), len(unseqAfter))
	}
}

func TestLoadForSyncAlwaysSequential(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	staging := t.TempDir()
	candidate := newStagedResource(t, staging, 0, 100, 1, map[string][2]int64{"d1": {10, 20}})

	if err := p.LoadForSync(candidate); err != nil {
		t.Fatalf("LoadForSync() error = %v", err)
	}

	seq, unseq := p.fileIndex.Snapshot()
	if len(seq) != 1 || len(unseq) != 0 {
		t.Errorf("LoadForSync() should place the file sequentially, got %d seq, %d unseq", len(seq), len(unseq))
	}
}
