// Package ttlsweep implements the TTLSweeper (spec §2, §4.6): a periodic
// scan of the file index that evicts resources whose data has aged past
// the configured retention window.
//
// Grounded on the teacher's internal/compaction/fifo_picker.go, whose
// stated purpose ("FIFO compaction ... simply deletes the oldest SST files
// when ... files exceed a TTL") is exactly this component's file-level
// eviction; the non-blocking try-lock-and-skip pattern is grounded on
// db/background.go's BackgroundWork scheduling loop.
package ttlsweep

import (
	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/testutil"
	"github.com/aalhour/sgproc/internal/vfs"
)

// Remover is the subset of coordinator state the sweeper mutates: dropping
// a FileResource from its FileIndex once deleted. *partitionfile.Index
// satisfies this interface directly.
type Remover interface {
	RemoveSequential(r *partitionfile.Resource)
	RemoveUnsequential(r *partitionfile.Resource)
}

// Sweeper evicts sealed, non-merging FileResources whose data is entirely
// past the TTL cutoff (spec §4.6).
type Sweeper struct {
	fs vfs.FS
}

// New returns a Sweeper using fs for physical file removal.
func New(fs vfs.FS) *Sweeper {
	return &Sweeper{fs: fs}
}

// Check runs one TTL sweep pass over the given snapshot (spec §4.6
// "Snapshot both file sets"), given ttl (<=0 meaning unlimited, step 1) and
// now. markWriterLocked is invoked, under the caller's writer lock, for
// each resource chosen for eviction to re-check `merging` and mark
// `deleted=true` (step 5); it returns false if the resource must be
// skipped after re-check (e.g. it became merging in the interim). remover
// drops the resource from its FileIndex once the physical file is gone.
//
// Check itself does not hold the writer lock — only markWriterLocked does,
// matching spec §4.6's "synchronized on the coordinator instance, not
// holding the writer lock" for the outer scan.
func (s *Sweeper) Check(seq, unseq []*partitionfile.Resource, ttl int64, now int64, markWriterLocked func(*partitionfile.Resource) bool, remover Remover) int {
	_ = testutil.SP(testutil.SPTTLSweepStart)
	if ttl <= 0 {
		return 0
	}
	cutoff := now - ttl

	evicted := 0
	evicted += s.sweepOne(seq, cutoff, markWriterLocked, remover.RemoveSequential)
	evicted += s.sweepOne(unseq, cutoff, markWriterLocked, remover.RemoveUnsequential)
	_ = testutil.SP(testutil.SPTTLSweepComplete)
	return evicted
}

func (s *Sweeper) sweepOne(resources []*partitionfile.Resource, cutoff int64, markWriterLocked func(*partitionfile.Resource) bool, remove func(*partitionfile.Resource)) int {
	evicted := 0
	for _, r := range resources {
		if r.Merging() || !r.Closed() {
			_ = testutil.SP(testutil.SPTTLSweepSkip)
			continue
		}
		if !r.Deleted() && r.StillLives(cutoff) {
			continue
		}

		if !markWriterLocked(r) {
			continue
		}

		if !r.TryLock() {
			continue
		}
		_ = testutil.SP(testutil.SPTTLSweepEvict)
		if s.fs.Exists(r.Path) {
			_ = s.fs.Remove(r.Path)
		}
		if s.fs.Exists(r.ModsPath()) {
			_ = s.fs.Remove(r.ModsPath())
		}
		if s.fs.Exists(r.ResourcePath()) {
			_ = s.fs.Remove(r.ResourcePath())
		}
		r.Unlock()
		remove(r)
		evicted++
	}
	return evicted
}
