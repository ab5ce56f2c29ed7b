package sgproc

import "testing"

// TestRoutingEdgeCaseEqualTimestampIsUnsequential exercises spec §9's
// "Routing edge case": a row arriving at exactly the device's flushed
// watermark routes to unsequential, not sequential (strict '>').
func TestRoutingEdgeCaseEqualTimestampIsUnsequential(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	if _, err := p.Insert("d1", "m1", 100, []byte("a")); err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}
	p.SyncCloseAll()

	status, err := p.Insert("d1", "m1", 100, []byte("b"))
	if err != nil {
		t.Fatalf("second Insert() error = %v", err)
	}
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}

	seq, unseq := p.fileIndex.Snapshot()
	if len(seq) != 1 {
		t.Fatalf("expected exactly 1 sequential file after first close, got %d", len(seq))
	}
	if len(unseq) != 1 {
		t.Errorf("equal-timestamp row should have routed to unsequential, got %d unsequential files", len(unseq))
	}
}

func TestInsertAfterFlushWatermarkStaysSequential(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	if _, err := p.Insert("d1", "m1", 100, []byte("a")); err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}
	p.SyncCloseAll()

	if _, err := p.Insert("d1", "m1", 101, []byte("b")); err != nil {
		t.Fatalf("second Insert() error = %v", err)
	}

	seq, unseq := p.fileIndex.Snapshot()
	if len(seq) != 2 {
		t.Errorf("a strictly newer timestamp should have opened a second sequential file, got %d", len(seq))
	}
	if len(unseq) != 0 {
		t.Errorf("expected no unsequential files, got %d", len(unseq))
	}
}

func TestInsertTabletGroupsConsecutiveRuns(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	tablet := Tablet{
		Device:       "d1",
		Measurements: []string{"m1"},
		Timestamps:   []int64{10, 20, 30},
		Values:       [][][]byte{{[]byte("a"), []byte("b"), []byte("c")}},
	}
	statuses, err := p.InsertTablet(tablet)
	if err != nil {
		t.Fatalf("InsertTablet() error = %v", err)
	}
	for i, s := range statuses {
		if s != StatusOK {
			t.Errorf("statuses[%d] = %v, want StatusOK", i, s)
		}
	}

	seq, _ := p.fileIndex.Snapshot()
	if len(seq) != 1 {
		t.Fatalf("expected a single sequential file for one consecutive run, got %d", len(seq))
	}
	start, ok := seq[0].StartTime("d1")
	if !ok || start != 10 {
		t.Errorf("StartTime(d1) = (%d, %v), want (10, true)", start, ok)
	}
	end, ok := seq[0].EndTime("d1")
	if !ok || end != 30 {
		t.Errorf("EndTime(d1) = (%d, %v), want (30, true)", end, ok)
	}
}

func TestInsertTabletOutOfTTLPrefixIsRejected(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.DataTTL = 1000
	p.cfg.PartitionInterval = 1_000_000_000_000

	tablet := Tablet{
		Device:       "d1",
		Measurements: []string{"m1"},
		Timestamps:   []int64{1, 2, 3},
		Values:       [][][]byte{{[]byte("a"), []byte("b"), []byte("c")}},
	}
	statuses, err := p.InsertTablet(tablet)
	if err != nil {
		t.Fatalf("InsertTablet() error = %v", err)
	}
	for i, s := range statuses {
		if s != StatusOutOfTTL {
			t.Errorf("statuses[%d] = %v, want StatusOutOfTTL", i, s)
		}
	}
}
