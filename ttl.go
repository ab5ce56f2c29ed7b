package sgproc

import (
	"time"

	"github.com/aalhour/sgproc/internal/partitionfile"
)

// fileIndexRemover adapts Processor's insertLock discipline to
// ttlsweep.Remover and the merge package's per-resource removal callback:
// internal/partitionfile.Index is not safe for concurrent mutation on its
// own (see partitionmap.go), so every removal takes insertLock here.
type fileIndexRemover struct{ p *Processor }

func (f fileIndexRemover) RemoveSequential(r *partitionfile.Resource) {
	f.p.insertLock.Lock()
	f.p.fileIndex.RemoveSequential(r)
	f.p.insertLock.Unlock()
}

func (f fileIndexRemover) RemoveUnsequential(r *partitionfile.Resource) {
	f.p.insertLock.Lock()
	f.p.fileIndex.RemoveUnsequential(r)
	f.p.insertLock.Unlock()
}

// CheckFilesTTL implements spec §4.6 check_files_ttl: synchronized on the
// class-level monitor lock, not holding the writer lock, for the scan
// itself; only the per-resource re-check and deletion mark take the writer
// lock.
func (p *Processor) CheckFilesTTL() int {
	p.ttlMu.Lock()
	defer p.ttlMu.Unlock()

	if p.cfg.DataTTL <= 0 {
		return 0
	}

	p.insertLock.RLock()
	seq, unseq := p.fileIndex.Snapshot()
	p.insertLock.RUnlock()

	now := time.Now().UnixMilli()
	return p.sweeper.Check(seq, unseq, p.cfg.DataTTL, now, func(r *partitionfile.Resource) bool {
		p.insertLock.Lock()
		defer p.insertLock.Unlock()
		if r.Merging() {
			return false
		}
		r.MarkDeleted()
		return true
	}, fileIndexRemover{p: p})
}
