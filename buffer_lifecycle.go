package sgproc

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aalhour/sgproc/internal/logging"
	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/testutil"
	"github.com/aalhour/sgproc/internal/writebuffer"
)

// getOrCreateBuffer implements spec §4.2: return the existing Buffer for
// (partition, kind) if present; else, if the map is at capacity, schedule
// the oldest Buffer of the same kind for async close, then construct a
// fresh one. Callers must hold insertLock for writing.
func (p *Processor) getOrCreateBuffer(partition int64, sequential bool) (*bufferEntry, error) {
	pm := p.partitionMap(sequential)
	if e, ok := pm.Get(partition); ok {
		return e, nil
	}

	if pm.Len() >= p.cfg.ConcurrentWritingPartitions {
		if oldestPartition, oldest, ok := pm.First(); ok {
			_ = testutil.SP(testutil.SPIngestBufferEvicted)
			p.asyncClose(sequential, oldestPartition, oldest)
		}
	}

	entry, err := p.newBuffer(partition, sequential)
	if err != nil {
		return nil, err
	}
	pm.Put(partition, entry)
	_ = testutil.SP(testutil.SPIngestBufferCreated)
	return entry, nil
}

// newBuffer allocates a fresh FileResource named "<now>-<nextVersion>-0.<ext>"
// in the next directory handed out by the directory rotator, registers it
// into the FileIndex, and wraps it with a fresh Buffer (spec §4.2).
func (p *Processor) newBuffer(partition int64, sequential bool) (*bufferEntry, error) {
	root, err := p.nextRoot(sequential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiskSpaceInsufficient, err)
	}
	version, err := p.versions.NextVersion(partition)
	if err != nil {
		return nil, fmt.Errorf("%w: allocate version: %v", ErrWriteProcess, err)
	}

	partDir := filepath.Join(root, p.sgName, strconv.FormatInt(partition, 10))
	if err := p.fs.MkdirAll(partDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create partition directory: %v", ErrWriteProcess, err)
	}

	name := partitionfile.Name{SystemMillis: time.Now().UnixMilli(), Version: version, MergeCount: 0}
	path := filepath.Join(partDir, name.Format(p.ext))
	resource := partitionfile.New(path, partition, name, p.ext)
	resource.AddHistoricalVersion(version)
	p.catalog.AddDirect(partition, version)

	if sequential {
		p.fileIndex.InsertSequential(resource)
	} else {
		p.fileIndex.AppendUnsequential(resource)
	}

	entry := &bufferEntry{buf: writebuffer.New(partition, writebuffer.DefaultOptions()), resource: resource}
	p.resourceBuffers[resource] = entry
	return entry, nil
}

// asyncClose implements spec §4.2 async_close: freeze sequential end times,
// move the Buffer into its ClosingSet, and hand it off for background
// flush+close. Callers must hold insertLock for writing.
func (p *Processor) asyncClose(sequential bool, partition int64, entry *bufferEntry) {
	_ = testutil.SP(testutil.SPCloseAsyncStart)
	p.partitionMap(sequential).Delete(partition)

	if sequential {
		for _, d := range entry.resource.Devices() {
			entry.resource.SetEndTime(d, p.times.latestForDevice(partition, d))
		}
	}

	p.closingSet(sequential).Add(partition, entry)

	if !p.partitionHeldByOtherKind(partition, sequential) {
		p.versions.Forget(partition)
	}

	go p.closeCallback(sequential, partition, entry)
}

func (p *Processor) partitionHeldByOtherKind(partition int64, sequential bool) bool {
	_, held := p.partitionMap(!sequential).Get(partition)
	return held
}

// closeCallback is the flush subsystem's completion hook (spec §4.2,
// §6): seal the Buffer/FileResource under closeQueryLock, invoke the
// appropriate capability-record callback, then drop the entry from its
// ClosingSet (notifying sync_close_all's poll, see partitionmap.go's
// ClosingSet.WaitEmpty).
func (p *Processor) closeCallback(sequential bool, partition int64, entry *bufferEntry) {
	_ = testutil.SP(testutil.SPCloseCallback)
	p.closeQueryLock.Lock()
	p.closeUnsealedCallback(entry)
	if sequential {
		p.updateLatestFlushTimeCallback(partition, entry)
	} else {
		p.unsequenceFlushCallback(entry)
	}
	delete(p.resourceBuffers, entry.resource)
	p.closeQueryLock.Unlock()

	p.closingSet(sequential).Remove(partition)
	_ = testutil.SP(testutil.SPCloseCallbackDone)
}

// SyncCloseAll implements spec §4.2 sync_close_all: schedule every
// currently writable Buffer for async close, then wait (with periodic
// progress logging) until both ClosingSets have drained.
func (p *Processor) SyncCloseAll() {
	p.insertLock.Lock()
	for _, partition := range p.seqBuffers.Partitions() {
		if entry, ok := p.seqBuffers.Get(partition); ok {
			p.asyncClose(true, partition, entry)
		}
	}
	for _, partition := range p.unseqBuffers.Partitions() {
		if entry, ok := p.unseqBuffers.Get(partition); ok {
			p.asyncClose(false, partition, entry)
		}
	}
	p.insertLock.Unlock()

	_ = testutil.SP(testutil.SPCloseSyncAllWait)
	p.seqClosing.WaitEmpty(p.cfg.ClosingSetPollInterval, func(remaining int) {
		p.logger.Warnf(logging.NSClose+"still waiting on %d sequential buffer(s) to close", remaining)
	})
	p.unseqClosing.WaitEmpty(p.cfg.ClosingSetPollInterval, func(remaining int) {
		p.logger.Warnf(logging.NSClose+"still waiting on %d unsequential buffer(s) to close", remaining)
	})
	_ = testutil.SP(testutil.SPCloseSyncAllDone)
}
