package loadplan

import (
	"errors"
	"fmt"

	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/vfs"
)

// ErrMove is returned when the physical file-system move of a loaded data
// file or its sidecar fails (spec §4.7: "if either the data file or its
// sidecar .resource move fails, a load-failure is raised").
var ErrMove = errors.New("loadplan: move failed")

// Planner decides where an externally produced file belongs and performs
// the physical move once a placement is decided.
type Planner struct {
	fs vfs.FS
}

// New returns a Planner using fs for the physical move.
func New(fs vfs.FS) *Planner {
	return &Planner{fs: fs}
}

// Decision is the outcome of planning one candidate load.
type Decision struct {
	Position Position
	// Superseded is set when ReductionEnabled found an existing sequential
	// file whose historical versions are a superset of candidate's; the
	// load should be discarded (spec §8 round-trip law).
	Superseded *partitionfile.Resource
}

// PlanSequential runs the §4.7 findInsertionPosition scan, plus the
// duplicate-by-version reduction check (spec §8 scenario 6) when
// reductionEnabled is set.
func (p *Planner) PlanSequential(existing []*partitionfile.Resource, candidate *partitionfile.Resource, reductionEnabled bool) Decision {
	if reductionEnabled {
		for _, local := range existing {
			if candidate.IsHistoricalSubsetOf(local) {
				return Decision{Superseded: local}
			}
		}
	}
	return Decision{Position: FindInsertionPosition(existing, candidate)}
}

// Place computes the final Name for a PosFound decision and physically
// moves the data file and its .resource sidecar from their staging paths
// into destDir. It updates candidate's Path and FileName in place (ready for
// InsertSequentialAt) and returns the new data file path.
func (p *Planner) Place(existing []*partitionfile.Resource, insertIndex int, candidate *partitionfile.Resource, destDir string, now int64, nextVersion uint64) (string, error) {
	name := RewriteFilename(existing, insertIndex, candidate, now, nextVersion)
	destPath := destDir + "/" + name.Format(candidate.Ext)

	if err := p.moveFile(candidate.Path, destPath); err != nil {
		return "", err
	}
	srcResource := candidate.Path + partitionfile.ResourceSuffix
	destResource := destPath + partitionfile.ResourceSuffix
	if p.fs.Exists(srcResource) {
		if err := p.moveFile(srcResource, destResource); err != nil {
			return "", err
		}
	}

	candidate.Path = destPath
	candidate.FileName = name
	return destPath, nil
}

// PlaceUnsequential moves candidate into destDir unchanged (POS_OVERLAP
// placement keeps the original name, spec §4.7 step 4).
func (p *Planner) PlaceUnsequential(candidate *partitionfile.Resource, destDir string) (string, error) {
	destPath := destDir + "/" + candidate.Filename()
	if err := p.moveFile(candidate.Path, destPath); err != nil {
		return "", err
	}
	srcResource := candidate.Path + partitionfile.ResourceSuffix
	destResource := destPath + partitionfile.ResourceSuffix
	if p.fs.Exists(srcResource) {
		if err := p.moveFile(srcResource, destResource); err != nil {
			return "", err
		}
	}
	candidate.Path = destPath
	return destPath, nil
}

func (p *Planner) moveFile(src, dest string) error {
	if err := p.fs.Rename(src, dest); err != nil {
		return fmt.Errorf("%w: %s -> %s: %v", ErrMove, src, dest, err)
	}
	return nil
}
