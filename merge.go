package sgproc

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aalhour/sgproc/internal/logging"
	"github.com/aalhour/sgproc/internal/merge"
	"github.com/aalhour/sgproc/internal/partitionfile"
)

// KickoffMerge implements spec §4.4 merge kick-off under the writer lock:
// refuse if a merge is already running or either file set is empty, build
// a MergeResource over the current FileIndex, and ask the configured
// selector for a candidate within budget.
func (p *Processor) KickoffMerge() (merge.Candidate, error) {
	p.insertLock.Lock()
	defer p.insertLock.Unlock()

	seq, unseq := p.fileIndex.Snapshot()
	resource := merge.Resource{
		Sequential:     seq,
		Unsequential:   unseq,
		TimeLowerBound: time.Now().UnixMilli() - p.cfg.DataTTL,
	}

	budget := p.cfg.MergeMemoryBudget
	if p.cfg.ForceFullMerge {
		budget = math.MaxInt64
	}

	cand, err := p.merger.Kickoff(resource, p.cfg.MergeFileStrategy, budget)
	if err != nil {
		return merge.Candidate{}, fmt.Errorf("%w: %v", ErrMerge, err)
	}
	return cand, nil
}

// EndMerge implements the merge subsystem's completion hook (spec §4.4 "End
// action"): rebuild each surviving sequential file's sidecar from the
// merging-modification file, then physically remove the chosen
// unsequential files from the FileIndex.
func (p *Processor) EndMerge(cand merge.Candidate) error {
	if err := p.merger.EndAction(&p.mergeLock, cand.Sequential, cand.Unsequential); err != nil {
		p.logger.Errorf(logging.NSMerge+"end action: %v", err)
		return fmt.Errorf("%w: %v", ErrMerge, err)
	}
	if cand.Empty() {
		return nil
	}

	remover := fileIndexRemover{p: p}
	errs := p.merger.DeleteUnsequential(cand.Unsequential, func(r *partitionfile.Resource) error {
		remover.RemoveUnsequential(r)
		return nil
	})
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrMerge, errors.Join(errs...))
	}
	return nil
}
