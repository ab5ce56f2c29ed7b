package sgproc

import (
	"context"
	"fmt"
	"time"

	"github.com/aalhour/sgproc/internal/testutil"
	"github.com/aalhour/sgproc/internal/writebuffer"
)

// Insert accepts one point (spec §4.1 "Single-row insert"), under the
// coordinator's writer lock for its entire duration.
func (p *Processor) Insert(device, measurement string, timestamp int64, value []byte) (RowStatus, error) {
	p.insertLock.Lock()
	defer p.insertLock.Unlock()
	_ = testutil.SP(testutil.SPIngestInsertStart)

	if p.closed.Load() {
		return StatusInternalError, ErrClosed
	}

	now := time.Now().UnixMilli()
	if p.cfg.DataTTL > 0 && now-timestamp > p.cfg.DataTTL {
		return StatusOutOfTTL, fmt.Errorf("%w: timestamp %d is %dms old", ErrOutOfTTL, timestamp, now-timestamp)
	}

	partition := floorDiv(timestamp, p.cfg.PartitionInterval)
	sequential := p.times.isSequential(partition, device, timestamp)

	entry, err := p.getOrCreateBuffer(partition, sequential)
	if err != nil {
		p.readOnly.Store(true)
		return StatusInternalError, err
	}

	entry.buf.Insert(writebuffer.Row{Device: device, Measurement: measurement, Timestamp: timestamp, Value: value})
	entry.resource.UpdateStartTime(device, timestamp)
	entry.resource.UpdateEndTime(device, timestamp)
	p.times.observe(partition, device, timestamp)

	if p.meta != nil {
		p.meta.NotifyPoint(device, measurement, timestamp, p.times.globalFlushedFor(device))
	}

	if entry.buf.ShouldFlush() {
		p.enqueueFlush(partition, sequential)
	}

	_ = testutil.SP(testutil.SPIngestInsertComplete)
	return StatusOK, nil
}

// enqueueFlush invokes the configured flush policy, or falls back to an
// immediate async_close of the Buffer if none is configured (spec §4.1
// step 9, §6). Callers must hold insertLock for writing.
func (p *Processor) enqueueFlush(partition int64, sequential bool) {
	if p.flushPolicy != nil {
		if err := p.flushPolicy.Apply(context.Background(), p, partition, sequential); err != nil {
			p.logger.Errorf("flush policy: %v", err)
		}
		return
	}
	if entry, ok := p.partitionMap(sequential).Get(partition); ok {
		p.asyncClose(sequential, partition, entry)
	}
}

// InsertTablet accepts a sorted batch for one device (spec §4.1 "Batch
// insert"): TTL-violating prefix rows are marked failed and skipped; the
// remainder is grouped into consecutive (partition, kind) runs, each
// applied to its target Buffer as one unit.
func (p *Processor) InsertTablet(t Tablet) ([]RowStatus, error) {
	p.insertLock.Lock()
	defer p.insertLock.Unlock()

	if p.closed.Load() {
		return nil, ErrClosed
	}

	n := len(t.Timestamps)
	statuses := make([]RowStatus, n)
	now := time.Now().UnixMilli()

	i := 0
	for i < n && p.cfg.DataTTL > 0 && now-t.Timestamps[i] > p.cfg.DataTTL {
		statuses[i] = StatusOutOfTTL
		i++
	}

	for i < n {
		partition := floorDiv(t.Timestamps[i], p.cfg.PartitionInterval)
		sequential := p.times.isSequential(partition, t.Device, t.Timestamps[i])

		j := i + 1
		for j < n {
			pj := floorDiv(t.Timestamps[j], p.cfg.PartitionInterval)
			seqj := p.times.isSequential(pj, t.Device, t.Timestamps[j])
			if pj != partition || seqj != sequential {
				break
			}
			j++
		}

		if err := p.applyTabletRun(t, i, j, partition, sequential); err != nil {
			p.readOnly.Store(true)
			for k := i; k < j; k++ {
				statuses[k] = StatusInternalError
			}
			return statuses, err
		}
		for k := i; k < j; k++ {
			statuses[k] = StatusOK
		}
		i = j
	}

	return statuses, nil
}

// applyTabletRun hands rows [i,j) of t to the Buffer for (partition, kind),
// updating the shared tracking state exactly as Insert does per row.
func (p *Processor) applyTabletRun(t Tablet, i, j int, partition int64, sequential bool) error {
	entry, err := p.getOrCreateBuffer(partition, sequential)
	if err != nil {
		return err
	}

	for k := i; k < j; k++ {
		ts := t.Timestamps[k]
		for m, measurement := range t.Measurements {
			if k >= len(t.Values[m]) {
				continue
			}
			entry.buf.Insert(writebuffer.Row{Device: t.Device, Measurement: measurement, Timestamp: ts, Value: t.Values[m][k]})
		}
		entry.resource.UpdateStartTime(t.Device, ts)
		entry.resource.UpdateEndTime(t.Device, ts)
		p.times.observe(partition, t.Device, ts)
	}

	if p.meta != nil {
		last := t.Timestamps[j-1]
		p.meta.NotifyPoint(t.Device, "", last, p.times.globalFlushedFor(t.Device))
	}

	if entry.buf.ShouldFlush() {
		p.enqueueFlush(partition, sequential)
		_ = testutil.SP(testutil.SPIngestTabletRunFlushed)
	}
	return nil
}
