package sgproc

import (
	"context"
	"testing"
)

type fakeTimeFilter struct {
	start, end int64
}

func (f fakeTimeFilter) SatisfyStartEndTime(start, end int64) bool {
	return start <= f.end && end >= f.start
}

func TestQueryReturnsUnsealedBufferPoints(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	if _, err := p.Insert("d1", "m1", 10, []byte("a")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := p.Insert("d1", "m1", 20, []byte("b")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	src, err := p.Query(context.Background(), "d1", "m1", nil, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(src.Sequential) != 1 {
		t.Fatalf("expected exactly one matching sequential resource, got %d", len(src.Sequential))
	}
	if src.Sequential[0].Sealed {
		t.Error("an unsealed file's QueryResource should report Sealed=false")
	}
	if len(src.Sequential[0].Points) != 2 {
		t.Errorf("expected 2 in-memory points, got %d", len(src.Sequential[0].Points))
	}
}

func TestQueryExcludesDeviceNotPresent(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	if _, err := p.Insert("d1", "m1", 10, []byte("a")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	src, err := p.Query(context.Background(), "d2", "m1", nil, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(src.Sequential) != 0 {
		t.Errorf("query for an absent device should match nothing, got %d", len(src.Sequential))
	}
}

func TestQueryAppliesTimeFilter(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	if _, err := p.Insert("d1", "m1", 10, []byte("a")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	p.SyncCloseAll()
	if _, err := p.Insert("d1", "m1", 5, []byte("b")); err != nil {
		t.Fatalf("unsequential Insert() error = %v", err)
	}
	p.SyncCloseAll()

	src, err := p.Query(context.Background(), "d1", "m1", nil, fakeTimeFilter{start: 0, end: 6})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(src.Sequential) != 0 {
		t.Errorf("narrow time filter should have excluded the sequential file, got %d", len(src.Sequential))
	}
	if len(src.Unsequential) != 1 {
		t.Errorf("narrow time filter should still include the matching unsequential file, got %d", len(src.Unsequential))
	}
}

func TestQueryExcludesResourceAgedPastTTL(t *testing.T) {
	p := newTestProcessor(t)
	p.cfg.PartitionInterval = 1_000_000_000_000

	if _, err := p.Insert("d1", "m1", 10, []byte("a")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	p.SyncCloseAll()

	// Enable a TTL only after the file is sealed, so its end time (10) is
	// now far older than now-TTL; spec §4.8's TTL rejection step should
	// exclude it even though no sweep has run yet.
	p.cfg.DataTTL = 1

	src, err := p.Query(context.Background(), "d1", "m1", nil, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(src.Sequential) != 0 {
		t.Errorf("a TTL-expired resource should be excluded from Query, got %d", len(src.Sequential))
	}
}
