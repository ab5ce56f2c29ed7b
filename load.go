package sgproc

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aalhour/sgproc/internal/loadplan"
	"github.com/aalhour/sgproc/internal/logging"
	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/testutil"
)

// LoadForSync places candidate into the sequential list, never the
// unsequential one (spec §4.7: "load_for_sync(resource) always treats the
// file as sequential"). A candidate whose position already exists, or that
// an existing file supersedes (with LoadReductionEnabled), is discarded; one
// that overlaps existing files is appended at the end of the list.
func (p *Processor) LoadForSync(candidate *partitionfile.Resource) error {
	p.insertLock.Lock()
	defer p.insertLock.Unlock()
	p.mergeLock.Lock()
	defer p.mergeLock.Unlock()
	return p.load(candidate, true)
}

// LoadGeneral places candidate into the sequential list, the unsequential
// list, or discards it, deciding which per spec §4.7.
func (p *Processor) LoadGeneral(candidate *partitionfile.Resource) error {
	p.insertLock.Lock()
	defer p.insertLock.Unlock()
	p.mergeLock.Lock()
	defer p.mergeLock.Unlock()
	return p.load(candidate, false)
}

func (p *Processor) load(candidate *partitionfile.Resource, forceSequential bool) error {
	_ = testutil.SP(testutil.SPLoadGeneralStart)
	seqSnapshot, _ := p.fileIndex.Snapshot()

	decision := p.loader.PlanSequential(seqSnapshot, candidate, p.cfg.LoadReductionEnabled)
	if decision.Superseded != nil {
		return nil // round-trip law: subset-by-version load is discarded
	}

	switch decision.Position.Outcome {
	case loadplan.PosAlreadyExist:
		return nil
	case loadplan.PosOverlap:
		_ = testutil.SP(testutil.SPLoadOverlap)
		if forceSequential {
			err := p.placeSequential(seqSnapshot, candidate, len(seqSnapshot)-1)
			_ = testutil.SP(testutil.SPLoadComplete)
			return err
		}
		err := p.placeUnsequential(candidate)
		_ = testutil.SP(testutil.SPLoadComplete)
		return err
	default:
		_ = testutil.SP(testutil.SPLoadPositionFound)
		err := p.placeSequential(seqSnapshot, candidate, decision.Position.Index)
		_ = testutil.SP(testutil.SPLoadComplete)
		return err
	}
}

// placeSequential computes the rewritten filename (spec §4.7.2), performs
// the physical move, and registers candidate into the FileIndex at
// insertIndex+1.
func (p *Processor) placeSequential(seqSnapshot []*partitionfile.Resource, candidate *partitionfile.Resource, insertIndex int) error {
	root, err := p.nextRoot(true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDiskSpaceInsufficient, err)
	}
	destDir := filepath.Join(root, p.sgName, strconv.FormatInt(candidate.Partition, 10))
	if err := p.fs.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("%w: create partition directory: %v", ErrLoadFile, err)
	}
	version, err := p.versions.NextVersion(candidate.Partition)
	if err != nil {
		return fmt.Errorf("%w: allocate version: %v", ErrLoadFile, err)
	}

	now := time.Now().UnixMilli()
	if _, err := p.loader.Place(seqSnapshot, insertIndex, candidate, destDir, now, version); err != nil {
		return fmt.Errorf("%w: %v", ErrLoadFile, err)
	}
	_ = testutil.SP(testutil.SPLoadRename)

	p.fileIndex.InsertSequentialAt(insertIndex, candidate)
	p.adoptLoadedResource(candidate)
	return nil
}

// placeUnsequential performs the physical move into the unsequential
// bucket, preserving candidate's original filename (spec §4.7 step 4).
func (p *Processor) placeUnsequential(candidate *partitionfile.Resource) error {
	root, err := p.nextRoot(false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDiskSpaceInsufficient, err)
	}
	destDir := filepath.Join(root, p.sgName, strconv.FormatInt(candidate.Partition, 10))
	if err := p.fs.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("%w: create partition directory: %v", ErrLoadFile, err)
	}

	if _, err := p.loader.PlaceUnsequential(candidate, destDir); err != nil {
		return fmt.Errorf("%w: %v", ErrLoadFile, err)
	}
	_ = testutil.SP(testutil.SPLoadRename)

	p.fileIndex.AppendUnsequential(candidate)
	p.adoptLoadedResource(candidate)
	return nil
}

// adoptLoadedResource implements spec §4.7 step 6: fold the newly loaded
// resource's historical versions and device end times into the catalog and
// latest-time tracker. A loaded file is always treated as sealed — loading
// an in-progress Buffer is out of scope.
func (p *Processor) adoptLoadedResource(r *partitionfile.Resource) {
	for v := range r.HistoricalVersions() {
		p.catalog.AddDirect(r.Partition, v)
	}
	for _, d := range r.Devices() {
		if end, ok := r.EndTime(d); ok {
			p.times.observe(r.Partition, d, end)
			p.times.commitRecoveredFlush(r.Partition, d, end)
		}
	}
	r.MarkClosed()
	if err := r.WriteResourceFile(p.fs); err != nil {
		p.logger.Errorf(logging.NSLoad+"write resource sidecar for %s: %v", r.Filename(), err)
	}
}
