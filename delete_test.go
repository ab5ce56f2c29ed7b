package sgproc

import "testing"

func TestDeleteOnUnseenDeviceIsNoOp(t *testing.T) {
	p := newTestProcessor(t)
	if err := p.Delete("never-seen", "m1", 1000); err != nil {
		t.Fatalf("Delete() on an unseen device error = %v, want nil", err)
	}
}

func TestDeleteAppliesToUnsealedBuffer(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	if _, err := p.Insert("d1", "m1", 10, []byte("a")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := p.Insert("d1", "m1", 20, []byte("b")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := p.Delete("d1", "m1", 15); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	entry, ok := p.seqBuffers.Get(0)
	if !ok {
		t.Fatal("expected a still-open sequential buffer for partition 0")
	}
	points := entry.buf.Query("d1")
	if len(points) != 1 || points[0].Timestamp != 20 {
		t.Errorf("Query(d1) after Delete(upperBound=15) = %v, want one point at t=20", points)
	}

	if !p.fs.Exists(entry.resource.ModsPath()) {
		t.Error("Delete() should have written a sidecar modification file")
	}
}

func TestDeleteOnClosedProcessorReturnsErrClosed(t *testing.T) {
	p := newTestProcessor(t)
	if _, err := p.Insert("d1", "m1", 10, []byte("a")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Delete("d1", "m1", 15); err != ErrClosed {
		t.Errorf("Delete() after Close() error = %v, want ErrClosed", err)
	}
}
