package loadplan

import (
	"testing"

	"github.com/aalhour/sgproc/internal/partitionfile"
)

func resourceWithRange(millis int64, version uint64, device string, start, end int64) *partitionfile.Resource {
	name := partitionfile.Name{SystemMillis: millis, Version: version, MergeCount: 0}
	r := partitionfile.New("/data/0/"+name.Format("tsfile"), 0, name, "tsfile")
	r.UpdateStartTime(device, start)
	r.UpdateEndTime(device, end)
	return r
}

func TestFindInsertionPositionDetectsOverlap(t *testing.T) {
	existing := []*partitionfile.Resource{resourceWithRange(100, 1, "d1", 10, 30)}
	candidate := resourceWithRange(200, 9, "d1", 20, 40)

	pos := FindInsertionPosition(existing, candidate)
	if pos.Outcome != PosOverlap {
		t.Fatalf("FindInsertionPosition() = %+v, want PosOverlap", pos)
	}
}

func TestFindInsertionPositionAlreadyExists(t *testing.T) {
	existing := []*partitionfile.Resource{resourceWithRange(100, 1, "d1", 10, 30)}
	candidate := resourceWithRange(100, 1, "d1", 10, 30)

	pos := FindInsertionPosition(existing, candidate)
	if pos.Outcome != PosAlreadyExist {
		t.Fatalf("FindInsertionPosition() = %+v, want PosAlreadyExist", pos)
	}
}

func TestRewriteFilenameKeepsNameWhenBetweenNeighbors(t *testing.T) {
	a := resourceWithRange(100, 1, "d1", 0, 50)
	c := resourceWithRange(300, 2, "d1", 500, 550)
	existing := []*partitionfile.Resource{a, c}
	candidate := resourceWithRange(250, 5, "d2", 0, 10)

	got := RewriteFilename(existing, 0, candidate, 999, 42)
	want := partitionfile.Name{SystemMillis: 250, Version: 5, MergeCount: 0}
	if got != want {
		t.Errorf("RewriteFilename() = %+v, want %+v", got, want)
	}
}

func TestRewriteFilenameSplitsWhenOutOfRange(t *testing.T) {
	a := resourceWithRange(100, 1, "d1", 0, 50)
	c := resourceWithRange(300, 2, "d1", 500, 550)
	existing := []*partitionfile.Resource{a, c}
	candidate := resourceWithRange(400, 5, "d2", 0, 10)

	got := RewriteFilename(existing, 0, candidate, 999, 42)
	want := partitionfile.Name{SystemMillis: 200, Version: 2, MergeCount: 0}
	if got != want {
		t.Errorf("RewriteFilename() = %+v, want %+v", got, want)
	}
}

func TestPlanSequentialDiscardsHistoricalSubset(t *testing.T) {
	existing := resourceWithRange(100, 1, "d1", 0, 50)
	existing.AddHistoricalVersion(1)
	existing.AddHistoricalVersion(2)
	existing.AddHistoricalVersion(3)

	candidate := resourceWithRange(200, 9, "d1", 60, 70)
	candidate.AddHistoricalVersion(1)
	candidate.AddHistoricalVersion(2)

	p := New(nil)
	d := p.PlanSequential([]*partitionfile.Resource{existing}, candidate, true)
	if d.Superseded != existing {
		t.Fatalf("PlanSequential() with reduction enabled should supersede, got %+v", d)
	}

	d2 := p.PlanSequential([]*partitionfile.Resource{existing}, candidate, false)
	if d2.Superseded != nil {
		t.Fatalf("PlanSequential() with reduction disabled should not supersede, got %+v", d2)
	}
}
