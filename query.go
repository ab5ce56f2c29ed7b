package sgproc

import (
	"context"
	"time"

	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/testutil"
)

type queryIDKey struct{}

// WithQueryID attaches an opaque query identifier to ctx, threaded through
// to FilePathsManager.AddUsedFilesForQuery so a concurrent merge can avoid
// physically removing a file a live query still references (spec §4.8,
// §6).
func WithQueryID(ctx context.Context, queryID string) context.Context {
	return context.WithValue(ctx, queryIDKey{}, queryID)
}

func queryIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(queryIDKey{}).(string); ok {
		return v
	}
	return ""
}

// Query implements spec §4.8: under the reader sides of insertLock and
// mergeLock, take an independent snapshot of every resource satisfying
// (device, timeFilter), attaching each unsealed resource's in-memory
// contribution from its live Buffer.
func (p *Processor) Query(ctx context.Context, device, measurement string, filePaths FilePathsManager, timeFilter TimeFilter) (QueryDataSource, error) {
	p.insertLock.RLock()
	defer p.insertLock.RUnlock()
	p.mergeLock.RLock()
	defer p.mergeLock.RUnlock()
	_ = testutil.SP(testutil.SPQueryStart)

	if p.closed.Load() {
		return QueryDataSource{}, ErrClosed
	}

	seq, unseq := p.fileIndex.Snapshot()
	src := QueryDataSource{SeriesPath: p.seriesPath(device, measurement)}
	now := time.Now().UnixMilli()

	p.closeQueryLock.RLock()
	for _, r := range seq {
		if !p.isSatisfied(r, device, timeFilter, now) {
			continue
		}
		src.Sequential = append(src.Sequential, p.snapshotResource(r, device))
		_ = testutil.SP(testutil.SPQueryResource)
	}
	for _, r := range unseq {
		if !p.isSatisfied(r, device, timeFilter, now) {
			continue
		}
		src.Unsequential = append(src.Unsequential, p.snapshotResource(r, device))
		_ = testutil.SP(testutil.SPQueryResource)
	}
	p.closeQueryLock.RUnlock()

	if filePaths != nil {
		if queryID := queryIDFrom(ctx); queryID != "" {
			filePaths.AddUsedFilesForQuery(queryID, src)
		}
	}
	_ = testutil.SP(testutil.SPQueryComplete)
	return src, nil
}

// isSatisfied implements spec §4.8's per-resource predicate: the resource
// must have a range for device, must not have been deleted, must not have
// aged out of the configured TTL, and must satisfy the caller's time filter
// (or admit every resource when no filter was given).
func (p *Processor) isSatisfied(r *partitionfile.Resource, device string, timeFilter TimeFilter, now int64) bool {
	if r.Deleted() || !r.HasDevice(device) {
		return false
	}
	end, _ := r.EndTime(device)
	if p.cfg.DataTTL > 0 && end < now-p.cfg.DataTTL {
		return false
	}
	if timeFilter == nil {
		return true
	}
	start, _ := r.StartTime(device)
	return timeFilter.SatisfyStartEndTime(start, end)
}

// snapshotResource builds the QueryResource for r: sealed files are
// returned bare (their on-disk chunks are read by the out-of-scope query
// engine, spec §1); an unsealed file's attached Buffer is consulted for
// its in-memory points.
func (p *Processor) snapshotResource(r *partitionfile.Resource, device string) *QueryResource {
	out := &QueryResource{Path: r.Path, Sealed: r.Closed()}
	if out.Sealed {
		return out
	}
	entry, ok := p.resourceBuffers[r]
	if !ok {
		return out
	}
	for _, pt := range entry.buf.Query(device) {
		out.Points = append(out.Points, QueryPoint{Timestamp: pt.Timestamp, Value: pt.Value})
	}
	return out
}
