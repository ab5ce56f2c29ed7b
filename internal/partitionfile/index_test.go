package partitionfile

import (
	"fmt"
	"testing"
)

func seqResource(t *testing.T, partition int64, millis int64, version uint64) *Resource {
	t.Helper()
	name := Name{SystemMillis: millis, Version: version}
	path := fmt.Sprintf("/data/%d/%s", partition, name.Format("tsfile"))
	return New(path, partition, name, "tsfile")
}

func TestIndexInsertSequentialKeepsOrder(t *testing.T) {
	idx := NewIndex()
	a := seqResource(t, 0, 100, 1)
	b := seqResource(t, 0, 300, 2)
	c := seqResource(t, 0, 250, 5)

	idx.InsertSequential(a)
	idx.InsertSequential(b)
	idx.InsertSequential(c)

	got := idx.Sequential()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != a || got[1] != b || got[2] != c {
		t.Errorf("order = %v, want [a(v1) b(v2) c(v5)] by version", got)
	}
}

func TestIndexPartitionDominatesVersion(t *testing.T) {
	idx := NewIndex()
	p1 := seqResource(t, 1, 100, 1)
	p0 := seqResource(t, 0, 999, 50)

	idx.InsertSequential(p1)
	idx.InsertSequential(p0)

	got := idx.Sequential()
	if got[0] != p0 {
		t.Error("partition 0 (lower id, higher version) must still sort before partition 1")
	}
}

func TestIndexRemoveSequential(t *testing.T) {
	idx := NewIndex()
	a := seqResource(t, 0, 100, 1)
	b := seqResource(t, 0, 200, 2)
	idx.InsertSequential(a)
	idx.InsertSequential(b)

	idx.RemoveSequential(a)

	got := idx.Sequential()
	if len(got) != 1 || got[0] != b {
		t.Errorf("after remove, sequential = %v, want [b]", got)
	}
}

func TestIndexFindSequentialByName(t *testing.T) {
	idx := NewIndex()
	a := seqResource(t, 0, 100, 1)
	idx.InsertSequential(a)

	if idx.FindSequentialByName(a.Filename()) != a {
		t.Error("FindSequentialByName should find the inserted resource")
	}
	if idx.FindSequentialByName("999-999-0.tsfile") != nil {
		t.Error("FindSequentialByName should return nil for unknown filename")
	}
}

func TestIndexSnapshotIsIndependent(t *testing.T) {
	idx := NewIndex()
	a := seqResource(t, 0, 100, 1)
	idx.InsertSequential(a)

	seq, _ := idx.Snapshot()
	idx.InsertSequential(seqResource(t, 0, 200, 2))

	if len(seq) != 1 {
		t.Errorf("snapshot should not observe later mutation, got len %d", len(seq))
	}
}
