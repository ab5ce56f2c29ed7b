package sgproc

import (
	"fmt"

	"github.com/aalhour/sgproc/internal/logging"
	"github.com/aalhour/sgproc/internal/modlog"
	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/testutil"
)

// sidecarBackup captures a resource's ".mods" sidecar bytes as they sat on
// disk immediately before this call touched them, so a later failure in the
// same Delete call can restore exactly that state (spec §7/§4.5 step 7: roll
// back only what was written in this call, not history from an earlier,
// already-committed Delete).
type sidecarBackup struct {
	r       *partitionfile.Resource
	data    []byte
	existed bool
}

// Delete implements spec §4.5: apply a range tombstone
// (device, measurement, upperBound] to every affected FileResource's
// sidecar, under both the writer lock and the merge writer lock.
func (p *Processor) Delete(device, measurement string, upperBound int64) error {
	p.insertLock.Lock()
	defer p.insertLock.Unlock()
	p.mergeLock.Lock()
	defer p.mergeLock.Unlock()
	_ = testutil.SP(testutil.SPDeleteStart)

	if p.closed.Load() {
		return ErrClosed
	}

	if _, seen := p.times.maxLatestAcrossPartitions(device); !seen {
		return nil // step 1: no data ever seen for device, no-op
	}

	partition := floorDiv(upperBound, p.cfg.PartitionInterval)
	seriesPath := p.seriesPath(device, measurement)

	if p.cfg.EnableWAL && p.wal != nil {
		if err := p.appendWAL(partition, seriesPath, upperBound); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteProcess, err)
		}
		_ = testutil.SP(testutil.SPDeleteWALAppend)
	}

	version, err := p.versions.NextVersion(partition)
	if err != nil {
		return fmt.Errorf("%w: allocate version: %v", ErrMetadata, err)
	}
	d := modlog.Deletion{SeriesPath: seriesPath, Version: version, UpperBound: upperBound}

	if p.merger.IsActive() {
		if err := p.merger.AppendDeletion(d); err != nil {
			return fmt.Errorf("%w: merging-modification append: %v", ErrMerge, err)
		}
		_ = testutil.SP(testutil.SPDeleteMirrored)
	}

	seq, unseq := p.fileIndex.Snapshot()
	var written []sidecarBackup

	for _, group := range [][]*partitionfile.Resource{seq, unseq} {
		for _, r := range group {
			start, ok := r.StartTime(device)
			if !ok || start > upperBound {
				continue
			}
			data, existed, err := modlog.SnapshotFile(p.fs, r.ModsPath())
			if err != nil {
				_ = testutil.SP(testutil.SPDeleteRollback)
				p.rollbackSidecars(written)
				return fmt.Errorf("%w: snapshot sidecar: %v", ErrWriteProcess, err)
			}
			if err := p.appendSidecarDeletion(r, device, measurement, seriesPath, upperBound); err != nil {
				_ = testutil.SP(testutil.SPDeleteRollback)
				p.rollbackSidecars(written)
				return fmt.Errorf("%w: %v", ErrWriteProcess, err)
			}
			written = append(written, sidecarBackup{r: r, data: data, existed: existed})
		}
	}
	_ = testutil.SP(testutil.SPDeleteComplete)
	return nil
}

func (p *Processor) appendWAL(partition int64, seriesPath string, upperBound int64) error {
	for _, sequential := range []bool{true, false} {
		for _, part := range p.partitionMap(sequential).Partitions() {
			if part > partition {
				continue
			}
			if err := p.wal.AppendDeletion(part, sequential, seriesPath, upperBound); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendSidecarDeletion stamps r's own partition-local version (spec §9
// Design Note: "a single delete call stamps the shared Deletion with a
// partition-local nextVersion per target file"), appends it to r's sidecar,
// seals the sidecar, and — if r is still unsealed — applies the deletion to
// its attached Buffer's in-memory columns.
func (p *Processor) appendSidecarDeletion(r *partitionfile.Resource, device, measurement, seriesPath string, upperBound int64) error {
	version, err := p.versions.NextVersion(r.Partition)
	if err != nil {
		return err
	}
	d := modlog.Deletion{SeriesPath: seriesPath, Version: version, UpperBound: upperBound}

	sidecar, err := modlog.OpenAppend(p.fs, r.ModsPath())
	if err != nil {
		sidecar, err = modlog.Create(p.fs, r.ModsPath())
	}
	if err != nil {
		return err
	}
	if err := sidecar.Append(d); err != nil {
		_ = sidecar.Abort()
		return err
	}
	if err := sidecar.Close(); err != nil {
		return err
	}
	_ = testutil.SP(testutil.SPDeleteSidecar)

	if !r.Closed() {
		if entry, ok := p.resourceBuffers[r]; ok {
			entry.buf.ApplyDeletion(device, measurement, upperBound)
		}
	}
	return nil
}

// rollbackSidecars implements spec §4.5 step 7: "On any error during 4-6,
// abort every sidecar modification file that was written and propagate the
// error" — restoring each sidecar to its pre-call snapshot rather than
// removing it outright, so deletion history from an earlier, already
// committed Delete call on the same resource survives this call's rollback.
func (p *Processor) rollbackSidecars(written []sidecarBackup) {
	for _, b := range written {
		if err := modlog.RestoreFile(p.fs, b.r.ModsPath(), b.data, b.existed); err != nil {
			p.logger.Errorf(logging.NSDelete+"rollback sidecar for %s: %v", b.r.Filename(), err)
		}
	}
}
