package sgproc

import (
	"github.com/aalhour/sgproc/internal/logging"
	"github.com/aalhour/sgproc/internal/testutil"
)

// The three methods below are the capability record of spec §9 Design Note
// 1: function references the coordinator hands to its Buffers that call
// back into itself, grouped here rather than left as inline closures so the
// cycle is visible at a single call site (closeCallback in
// buffer_lifecycle.go) instead of scattered across the flush path.

// closeUnsealedCallback seals entry's Buffer and FileResource (spec §6:
// "close_unsealed_callback(buffer) — close under close/query write lock"),
// and writes the FileResource's ".resource" sidecar so a later restart's
// recovery pass (recovery.go's recoverOneFile) can tell this file apart
// from one still open for writes (spec §4.3). Callers must hold
// closeQueryLock for writing.
func (p *Processor) closeUnsealedCallback(entry *bufferEntry) {
	entry.buf.MarkClosed()
	entry.resource.MarkClosed()
	if err := entry.resource.WriteResourceFile(p.fs); err != nil {
		p.logger.Errorf(logging.NSClose+"write resource sidecar for %s: %v", entry.resource.Filename(), err)
	}
}

// updateLatestFlushTimeCallback implements spec §6:
// "update_latest_flush_time_callback(buffer) -> bool — copy
// latestTimeForEachDevice[partition] into
// partitionLatestFlushedTime[partition]; update globalLatestFlushedTime;
// return false iff no devices were present." Only sequential closes call
// this — unsequential arrivals never advance the flushed watermark.
func (p *Processor) updateLatestFlushTimeCallback(partition int64, entry *bufferEntry) bool {
	ok := p.times.commitFlush(partition, entry.resource.Devices())
	_ = testutil.SP(testutil.SPCloseUpdateFlushed)
	return ok
}

// unsequenceFlushCallback is the no-op flush callback for unsequential
// buffers (spec §6: "unsequence_flush_callback(buffer) -> true").
func (p *Processor) unsequenceFlushCallback(entry *bufferEntry) bool {
	_ = entry
	return true
}
