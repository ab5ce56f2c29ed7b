package ttlsweep

import (
	"path/filepath"
	"testing"

	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/vfs"
)

type fakeIndex struct {
	seq, unseq []*partitionfile.Resource
}

func (f *fakeIndex) RemoveSequential(r *partitionfile.Resource) {
	f.seq = removeByIdentity(f.seq, r)
}

func (f *fakeIndex) RemoveUnsequential(r *partitionfile.Resource) {
	f.unseq = removeByIdentity(f.unseq, r)
}

func removeByIdentity(list []*partitionfile.Resource, target *partitionfile.Resource) []*partitionfile.Resource {
	for i, r := range list {
		if r == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func newResource(t *testing.T, dir string, millis int64, endTime int64, closed bool) *partitionfile.Resource {
	t.Helper()
	name := partitionfile.Name{SystemMillis: millis, Version: 1, MergeCount: 0}
	path := filepath.Join(dir, name.Format("tsfile"))
	r := partitionfile.New(path, 0, name, "tsfile")
	r.UpdateStartTime("d1", millis)
	r.UpdateEndTime("d1", endTime)
	if closed {
		r.MarkClosed()
	}
	fs := vfs.Default()
	f, err := fs.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	_ = f.Close()
	return r
}

func TestCheckEvictsExpiredSealedResource(t *testing.T) {
	dir := t.TempDir()
	fs := vfs.Default()
	sweeper := New(fs)

	expired := newResource(t, dir, 0, 10, true)
	fresh := newResource(t, dir, 1, 10_000, true)
	idx := &fakeIndex{seq: []*partitionfile.Resource{expired, fresh}}

	evicted := sweeper.Check(idx.seq, idx.unseq, 1000, 5000, func(r *partitionfile.Resource) bool {
		if r.Merging() {
			return false
		}
		r.MarkDeleted()
		return true
	}, idx)

	if evicted != 1 {
		t.Fatalf("Check() evicted = %d, want 1", evicted)
	}
	if fs.Exists(expired.Path) {
		t.Error("expired resource's file should have been removed")
	}
	if !fs.Exists(fresh.Path) {
		t.Error("fresh resource's file should remain")
	}
	if len(idx.seq) != 1 || idx.seq[0] != fresh {
		t.Errorf("index after Check() = %v, want only fresh", idx.seq)
	}
}

func TestCheckSkipsMergingAndUnsealed(t *testing.T) {
	dir := t.TempDir()
	fs := vfs.Default()
	sweeper := New(fs)

	merging := newResource(t, dir, 0, 10, true)
	merging.SetMerging(true)
	unsealed := newResource(t, dir, 0, 10, false)
	idx := &fakeIndex{seq: []*partitionfile.Resource{merging, unsealed}}

	evicted := sweeper.Check(idx.seq, idx.unseq, 1000, 5000, func(r *partitionfile.Resource) bool {
		r.MarkDeleted()
		return true
	}, idx)

	if evicted != 0 {
		t.Fatalf("Check() evicted = %d, want 0 (both skipped)", evicted)
	}
	if len(idx.seq) != 2 {
		t.Error("neither merging nor unsealed resource should be removed")
	}
}

func TestCheckUnlimitedTTLIsNoOp(t *testing.T) {
	dir := t.TempDir()
	sweeper := New(vfs.Default())
	r := newResource(t, dir, 0, 10, true)
	idx := &fakeIndex{seq: []*partitionfile.Resource{r}}

	evicted := sweeper.Check(idx.seq, idx.unseq, 0, 5000, func(*partitionfile.Resource) bool {
		t.Fatal("markWriterLocked should not be called when TTL is unlimited")
		return false
	}, idx)
	if evicted != 0 {
		t.Fatalf("Check() with unlimited TTL evicted = %d, want 0", evicted)
	}
}
