package versionreg

import (
	"path/filepath"
	"testing"

	"github.com/aalhour/sgproc/internal/vfs"
)

func TestNextVersionIsMonotonicPerPartition(t *testing.T) {
	r := New(vfs.Default(), t.TempDir(), "sg1")

	var got []uint64
	for range 5 {
		v, err := r.NextVersion(1)
		if err != nil {
			t.Fatalf("NextVersion() error = %v", err)
		}
		got = append(got, v)
	}
	for i, v := range got {
		if v != uint64(i+1) {
			t.Errorf("versions = %v, want sequential starting at 1", got)
			break
		}
	}
}

func TestNextVersionPartitionsAreIndependent(t *testing.T) {
	r := New(vfs.Default(), t.TempDir(), "sg1")

	v1, _ := r.NextVersion(1)
	v2, _ := r.NextVersion(2)
	v1b, _ := r.NextVersion(1)

	if v1 != 1 || v2 != 1 || v1b != 2 {
		t.Errorf("got v1=%d v2=%d v1b=%d, want 1,1,2", v1, v2, v1b)
	}
}

func TestNextVersionRecoversFromDurableLog(t *testing.T) {
	dir := t.TempDir()
	fs := vfs.Default()

	r1 := New(fs, dir, "sg1")
	for range 3 {
		if _, err := r1.NextVersion(1); err != nil {
			t.Fatalf("NextVersion() error = %v", err)
		}
	}

	r2 := New(fs, dir, "sg1")
	v, err := r2.NextVersion(1)
	if err != nil {
		t.Fatalf("NextVersion() after recovery error = %v", err)
	}
	if v != 4 {
		t.Errorf("NextVersion() after recovery = %d, want 4", v)
	}
}

func TestNextVersionRotatesAndArchives(t *testing.T) {
	dir := t.TempDir()
	fs := vfs.Default()

	r := New(fs, dir, "sg1")
	r.rotation = 4
	var last uint64
	for range 10 {
		v, err := r.NextVersion(7)
		if err != nil {
			t.Fatalf("NextVersion() error = %v", err)
		}
		last = v
	}
	if last != 10 {
		t.Fatalf("last version = %d, want 10", last)
	}
	if !fs.Exists(filepath.Join(dir, "sg1", "7-versions.seg.lz4")) {
		t.Fatal("rotation should have produced an archived segment")
	}

	r2 := New(fs, dir, "sg1")
	v, err := r2.NextVersion(7)
	if err != nil {
		t.Fatalf("NextVersion() error = %v", err)
	}
	if v != 11 {
		t.Errorf("NextVersion() after rotation recovery = %d, want 11", v)
	}
}

func TestCatalogDirectVersionsAndMax(t *testing.T) {
	c := NewCatalog()
	c.AddDirect(1, 3)
	c.AddDirect(1, 1)
	c.AddDirect(1, 2)
	c.AddDirect(2, 9)

	if got := c.MaxVersion(1); got != 3 {
		t.Errorf("MaxVersion(1) = %d, want 3", got)
	}
	if got := c.MaxVersion(2); got != 9 {
		t.Errorf("MaxVersion(2) = %d, want 9", got)
	}
	if got := c.MaxVersion(99); got != 0 {
		t.Errorf("MaxVersion(99) = %d, want 0", got)
	}

	want := []uint64{1, 2, 3}
	got := c.DirectVersions(1)
	if len(got) != len(want) {
		t.Fatalf("DirectVersions(1) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DirectVersions(1)[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if !c.IsDirect(1, 2) {
		t.Error("IsDirect(1, 2) should be true")
	}
	if c.IsDirect(1, 99) {
		t.Error("IsDirect(1, 99) should be false")
	}
}
