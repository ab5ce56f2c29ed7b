// Package loadplan implements the LoadPlanner (spec §2, §4.7): deciding
// where an externally produced file belongs — an existing sequential slot,
// the unsequential bucket, or a discarded duplicate — and renaming it if
// needed to preserve FileIndex ordering.
//
// Grounded almost 1:1 on db/external_sst_ingestion.go: findInsertionPosition
// is the teacher's overlap/level-placement scan; PosOverlap/PosAlreadyExist
// mirror ErrIngestFilesOverlap detection; filename rewriting (§4.7.2)
// mirrors the teacher's globalSeqNo assignment on ingest.
package loadplan

import "github.com/aalhour/sgproc/internal/partitionfile"

// Outcome classifies the result of FindInsertionPosition.
type Outcome int

const (
	// PosFound means candidate should be inserted into the sequential list
	// at Position.Index+1.
	PosFound Outcome = iota
	// PosAlreadyExist means a sequential file with the same filename
	// already exists; the load is a no-op.
	PosAlreadyExist
	// PosOverlap means candidate's device ranges overlap an existing
	// sequential file's; candidate belongs in the unsequential bucket.
	PosOverlap
)

// Position is the result of FindInsertionPosition.
type Position struct {
	Outcome Outcome
	// Index is the sequential-list index candidate should follow (insert
	// at Index+1). Only meaningful when Outcome == PosFound. -1 means
	// "insert first".
	Index int
}

// FindInsertionPosition walks existing (the sequential list) to place
// candidate, per spec §4.7 step 2.
func FindInsertionPosition(existing []*partitionfile.Resource, candidate *partitionfile.Resource) Position {
	candidateName := candidate.Filename()
	for _, local := range existing {
		if local.Filename() == candidateName {
			return Position{Outcome: PosAlreadyExist}
		}
	}

	for i, local := range existing {
		if candidate.Partition > local.Partition {
			continue
		}
		if i == len(existing)-1 && len(local.Devices()) == 0 {
			continue
		}
		switch CompareDeviceRanges(candidate, local) {
		case 0:
			return Position{Outcome: PosOverlap}
		case -1:
			return Position{Outcome: PosFound, Index: i - 1}
		default: // +1: candidate is newer than local, keep walking
		}
	}
	return Position{Outcome: PosFound, Index: len(existing) - 1}
}

// CompareDeviceRanges implements spec §4.7.1. For each device present in
// both a and b, a's interval relative to b's is "pre" if a.start > b.end,
// "subsequent" if b.start > a.end, otherwise "overlap". Returns 0 if any
// device overlaps or if both pre and subsequent relations occur across
// devices; 1 if only "pre" occurs (a is newer); -1 if only "subsequent"
// occurs (a is older). A pair sharing no common device is treated as "a is
// newer" (1), consistent with the scan's default of skipping forward when
// there is no conflicting information.
func CompareDeviceRanges(a, b *partitionfile.Resource) int {
	var sawPre, sawSubsequent bool
	for _, d := range a.Devices() {
		bStart, ok := b.StartTime(d)
		if !ok {
			continue
		}
		bEnd, _ := b.EndTime(d)
		aStart, _ := a.StartTime(d)
		aEnd, _ := a.EndTime(d)

		switch {
		case aStart > bEnd:
			sawPre = true
		case bStart > aEnd:
			sawSubsequent = true
		default:
			return 0
		}
	}
	if sawPre && sawSubsequent {
		return 0
	}
	if sawSubsequent {
		return -1
	}
	return 1
}
