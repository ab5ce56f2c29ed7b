package sgproc

import (
	"path/filepath"
	"testing"
)

// testRotator is a single-root DirectoryRotator backed by a temp directory,
// enough to exercise NewProcessor/recover without a real multi-disk setup.
type testRotator struct {
	seqRoot   string
	unseqRoot string
}

func newTestRotator(t *testing.T) *testRotator {
	t.Helper()
	base := t.TempDir()
	return &testRotator{
		seqRoot:   filepath.Join(base, "seq"),
		unseqRoot: filepath.Join(base, "unseq"),
	}
}

func (r *testRotator) NextSequentialRoot() (string, error)   { return r.seqRoot, nil }
func (r *testRotator) NextUnsequentialRoot() (string, error) { return r.unseqRoot, nil }
func (r *testRotator) SequentialRoots() []string             { return []string{r.seqRoot} }
func (r *testRotator) UnsequentialRoots() []string           { return []string{r.unseqRoot} }

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ConcurrentWritingPartitions = 8
	p, err := NewProcessor(Options{
		SysRoot: t.TempDir(),
		SGName:  "sg1",
		Config:  cfg,
		Dirs:    newTestRotator(t),
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewProcessorStartsEmpty(t *testing.T) {
	p := newTestProcessor(t)
	seq, unseq := p.fileIndex.Snapshot()
	if len(seq) != 0 || len(unseq) != 0 {
		t.Errorf("fresh processor should have an empty FileIndex, got %d seq, %d unseq", len(seq), len(unseq))
	}
	if p.ReadOnly() {
		t.Error("fresh processor should not be read-only")
	}
}

func TestInsertOutOfTTLIsRejected(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.DataTTL = 1000

	status, err := p.Insert("d1", "m1", 1, []byte("v"))
	if status != StatusOutOfTTL {
		t.Errorf("status = %v, want StatusOutOfTTL", status)
	}
	if err == nil {
		t.Error("expected a non-nil error for an out-of-TTL insert")
	}
}

func TestInsertAfterCloseIsClosed(t *testing.T) {
	p := newTestProcessor(t)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := p.Insert("d1", "m1", 1, []byte("v")); err != ErrClosed {
		t.Errorf("Insert() after Close() error = %v, want ErrClosed", err)
	}
}
