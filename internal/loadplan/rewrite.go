package loadplan

import "github.com/aalhour/sgproc/internal/partitionfile"

// RewriteFilename implements spec §4.7.2: decide candidate's final
// filename tuple given the sequential list it is about to be inserted
// into (pre-insertion) and the insertion index (Position.Index from
// FindInsertionPosition). now is the current system time in millis;
// nextVersion is the freshly allocated version to stamp a brand-new name
// with, consumed only if a new name is generated.
func RewriteFilename(existing []*partitionfile.Resource, insertIndex int, candidate *partitionfile.Resource, now int64, nextVersion uint64) partitionfile.Name {
	currentTime := candidate.FileName.SystemMillis

	var preTime int64
	if insertIndex == -1 {
		preTime = 0
	} else {
		preTime = existing[insertIndex].FileName.SystemMillis
	}

	if insertIndex == len(existing)-1 {
		if preTime < currentTime {
			return candidate.FileName
		}
		return partitionfile.Name{SystemMillis: now, Version: nextVersion, MergeCount: 0}
	}

	subsequent := existing[insertIndex+1]
	subsequentTime := subsequent.FileName.SystemMillis
	if preTime < currentTime && currentTime < subsequentTime {
		return candidate.FileName
	}
	return partitionfile.Name{
		SystemMillis: preTime + (subsequentTime-preTime)/2,
		Version:      subsequent.FileName.Version,
		MergeCount:   0,
	}
}
