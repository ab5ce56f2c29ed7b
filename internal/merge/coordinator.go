package merge

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/aalhour/sgproc/internal/compression"
	"github.com/aalhour/sgproc/internal/modlog"
	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/testutil"
	"github.com/aalhour/sgproc/internal/vfs"
)

// ErrAlreadyMerging is returned by Kickoff when a merge is already in
// flight (spec §4.4: "refuse if a merge is already in progress").
var ErrAlreadyMerging = errors.New("merge: already in progress")

// ErrNoCandidates is returned by Kickoff when the selector finds nothing
// worth merging (spec §4.4: "if empty, abort").
var ErrNoCandidates = errors.New("merge: no candidates selected")

const mergingModsName = "merge.mods"

const tryLockBackoff = time.Millisecond

// TryLocker is the non-blocking half of spec §5's single coordinator-level
// mergeLock: the processor owns the actual sync.RWMutex (shared with
// query's read-side and delete/load/move's write-side) and passes its
// write half in here so the end-action's try-lock retry loop and the
// rest of the coordinator contend on the very same lock rather than a
// package-private one.
type TryLocker interface {
	TryLock() bool
	Unlock()
}

// Coordinator owns the in-flight merge task, the shared
// merging-modification file, and the end-action's crash-safe handoff of
// deletions into each surviving sequential file's own sidecar (spec §2
// "MergeCoordinator", §4.4).
type Coordinator struct {
	fs      vfs.FS
	sysRoot string
	sgName  string

	mu       sync.Mutex
	active   bool
	selected map[*partitionfile.Resource]struct{}
	mods     *modlog.Sidecar
}

// NewCoordinator returns a Coordinator whose merging-modification file
// lives at <sysRoot>/<sgName>/merge.mods.
func NewCoordinator(fs vfs.FS, sysRoot, sgName string) *Coordinator {
	return &Coordinator{fs: fs, sysRoot: sysRoot, sgName: sgName}
}

func (c *Coordinator) mergingModsPath() string {
	return filepath.Join(c.sysRoot, c.sgName, mergingModsName)
}

// MergingModsPath exposes the merge-log path for recovery (spec §4.3:
// "If a merge.mods file exists in the system directory... start the
// merge-recovery task").
func (c *Coordinator) MergingModsPath() string {
	return c.mergingModsPath()
}

// IsActive reports whether a merge is currently in flight.
func (c *Coordinator) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Kickoff selects a Candidate using strategy within memoryBudget, marks the
// chosen resources merging=true, and opens the merging-modification file
// (spec §4.4 kick-off).
func (c *Coordinator) Kickoff(r Resource, strategy Strategy, memoryBudget int64) (Candidate, error) {
	_ = testutil.SP(testutil.SPMergeKickoffStart)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return Candidate{}, ErrAlreadyMerging
	}
	if len(r.Sequential) == 0 || len(r.Unsequential) == 0 {
		return Candidate{}, ErrNoCandidates
	}

	cand := NewSelector(strategy).Select(r, memoryBudget)
	if cand.Empty() {
		return Candidate{}, ErrNoCandidates
	}
	_ = testutil.SP(testutil.SPMergeSelected)

	mods, err := modlog.Create(c.fs, c.mergingModsPath())
	if err != nil {
		return Candidate{}, fmt.Errorf("merge: open merging-modification file: %w", err)
	}

	c.selected = make(map[*partitionfile.Resource]struct{}, len(cand.Sequential)+len(cand.Unsequential))
	for _, s := range cand.Sequential {
		s.SetMerging(true)
		c.selected[s] = struct{}{}
	}
	for _, u := range cand.Unsequential {
		u.SetMerging(true)
		c.selected[u] = struct{}{}
	}
	c.mods = mods
	c.active = true
	_ = testutil.SP(testutil.SPMergeSubmitted)
	return cand, nil
}

// AppendDeletion mirrors a Deletion into the merging-modification file,
// satisfying the invariant of spec §4.4: "A deletion arriving while
// isMerging=true writes its tombstone both to every affected FileResource's
// sidecar and to the merging-modification file." A no-op if no merge is
// active.
func (c *Coordinator) AppendDeletion(d modlog.Deletion) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.mods == nil {
		return nil
	}
	if err := c.mods.Append(d); err != nil {
		return err
	}
	_ = testutil.SP(testutil.SPMergeModsAppend)
	return c.mods.Sync()
}

// CompressOutput zstd-compresses a merge task's output chunk payload, the
// role klauspost/compress/zstd plays for the teacher's SST block writer.
func CompressOutput(payload []byte) ([]byte, error) {
	return compression.Compress(compression.ZstdCompression, payload)
}

// DeleteUnsequential physically removes each chosen unsequential resource
// under its own write/query lock (spec §4.4: "remove the chosen
// unsequential files from the FileIndex and physically delete them, each
// under its own write/query lock"). remove is called with the resource's
// lock held and is expected to drop it from the FileIndex; the physical
// unlink happens here.
func (c *Coordinator) DeleteUnsequential(unseq []*partitionfile.Resource, remove func(*partitionfile.Resource) error) []error {
	var errs []error
	for _, u := range unseq {
		u.Lock()
		if c.fs.Exists(u.Path) {
			if err := c.fs.Remove(u.Path); err != nil {
				errs = append(errs, fmt.Errorf("merge: delete unsequential %s: %w", u.Path, err))
			}
		}
		if remove != nil {
			if err := remove(u); err != nil {
				errs = append(errs, err)
			}
		}
		u.Unlock()
	}
	return errs
}

// EndAction performs the merge end-action (spec §4.4). An empty unseq is
// treated as an aborted merge: every selected resource's merging flag is
// cleared and the merging-modification file is discarded. Otherwise each
// file in seq gets a fresh sidecar rebuilt from the merging-modification
// file (endActionOneFile); removing the unsequential files is left to
// DeleteUnsequential.
func (c *Coordinator) EndAction(mergeLock TryLocker, seq, unseq []*partitionfile.Resource) error {
	_ = testutil.SP(testutil.SPMergeEndActionStart)
	c.mu.Lock()
	if len(unseq) == 0 {
		for r := range c.selected {
			r.SetMerging(false)
		}
		c.selected = nil
		c.active = false
		mods := c.mods
		c.mods = nil
		c.mu.Unlock()
		if mods != nil {
			_ = mods.Abort()
		}
		return nil
	}
	c.mu.Unlock()

	for i, s := range seq {
		last := i == len(seq)-1
		if err := c.endActionOneFile(mergeLock, s, last); err != nil {
			return fmt.Errorf("merge: end action on %s: %w", s.Filename(), err)
		}
	}
	_ = testutil.SP(testutil.SPMergeEndActionDone)
	return nil
}

// endActionOneFile rebuilds one sequential file's sidecar from the
// merging-modification file under the lock ordering required to avoid
// inverting with delete's insertLock→mergeLock→per-file order: it tries
// the coordinator merge lock and the per-file lock together, releasing
// both and retrying if only one is obtained (spec §5, §9 "Lock graph").
func (c *Coordinator) endActionOneFile(mergeLock TryLocker, s *partitionfile.Resource, last bool) error {
	for {
		if !mergeLock.TryLock() {
			_ = testutil.SP(testutil.SPMergeEndActionRetry)
			time.Sleep(tryLockBackoff)
			continue
		}
		if !s.TryLock() {
			mergeLock.Unlock()
			_ = testutil.SP(testutil.SPMergeEndActionRetry)
			time.Sleep(tryLockBackoff)
			continue
		}
		break
	}
	defer mergeLock.Unlock()
	defer s.Unlock()

	deletions, err := c.readMergingModsLocked()
	if err != nil {
		return err
	}

	_ = c.fs.Remove(s.ModsPath())
	fresh, err := modlog.Create(c.fs, s.ModsPath())
	if err != nil {
		return fmt.Errorf("create fresh sidecar: %w", err)
	}
	for _, d := range deletions {
		if err := fresh.Append(d); err != nil {
			_ = fresh.Abort()
			return fmt.Errorf("copy deletion into fresh sidecar: %w", err)
		}
	}
	if err := fresh.Close(); err != nil {
		return fmt.Errorf("seal fresh sidecar: %w", err)
	}

	_ = testutil.SP(testutil.SPMergeEndActionFile)
	if !last {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mods != nil {
		_ = c.mods.Abort()
		c.mods = nil
	}
	if err := c.fs.Remove(c.mergingModsPath()); err != nil && c.fs.Exists(c.mergingModsPath()) {
		return fmt.Errorf("remove merging-modification file: %w", err)
	}
	for r := range c.selected {
		r.SetMerging(false)
	}
	c.selected = nil
	c.active = false
	return nil
}

func (c *Coordinator) readMergingModsLocked() ([]modlog.Deletion, error) {
	c.mu.Lock()
	path := c.mergingModsPath()
	c.mu.Unlock()
	return modlog.ReadAny(c.fs, path)
}
