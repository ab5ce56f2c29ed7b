package sgproc

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/aalhour/sgproc/internal/logging"
	"github.com/aalhour/sgproc/internal/modlog"
	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/testutil"
	"github.com/aalhour/sgproc/internal/writebuffer"
)

// recover implements spec §4.3: replay every data root the directory
// rotator has ever handed out, rebuild the FileIndex, the VersionRegistry's
// in-memory cache (lazily, via Registry.recover on first NextVersion call),
// the PartitionVersionCatalog, and the LatestTimeTracker, then keep or
// remove a leftover merge.mods per ContinueMergeAfterReboot. The
// interrupted merge itself is not re-run.
func (p *Processor) recover() error {
	_ = testutil.SP(testutil.SPRecoverStart)
	for _, root := range p.dirs.SequentialRoots() {
		if err := p.recoverRoot(root, true); err != nil {
			return err
		}
	}
	for _, root := range p.dirs.UnsequentialRoots() {
		if err := p.recoverRoot(root, false); err != nil {
			return err
		}
	}

	if p.fs.Exists(p.merger.MergingModsPath()) {
		_ = testutil.SP(testutil.SPRecoverMergeFound)
		if p.cfg.ContinueMergeAfterReboot {
			_ = testutil.SP(testutil.SPMergeRecoveryResumed)
			p.logger.Infof(logging.NSRecovery + "merge.mods present, keeping it (ContinueMergeAfterReboot enabled)")
		} else {
			_ = testutil.SP(testutil.SPMergeRecoveryDropped)
			p.logger.Warnf(logging.NSRecovery + "merge.mods present, discarding (ContinueMergeAfterReboot disabled)")
			_ = p.fs.Remove(p.merger.MergingModsPath())
		}
	}
	_ = testutil.SP(testutil.SPRecoverComplete)
	return nil
}

// recoverRoot scans <root>/<sgName>/ for partition directories and recovers
// each one independently (spec §4.3 step 1: "scans ... across every
// sequential data root and every unsequential data root").
func (p *Processor) recoverRoot(root string, sequential bool) error {
	sgDir := filepath.Join(root, p.sgName)
	if !p.fs.Exists(sgDir) {
		return nil
	}
	entries, err := p.fs.ListDir(sgDir)
	if err != nil {
		return err
	}
	for _, name := range entries {
		partition, ok := partitionfile.ParsePartitionID(name)
		if !ok {
			continue // spec §9 Design Note: skip, don't panic on non-numeric names
		}
		if err := p.recoverPartitionDir(filepath.Join(sgDir, name), partition, sequential); err != nil {
			return err
		}
	}
	return nil
}

// recoverPartitionDir replays pending renames, collects every data file,
// orders them, and recovers each one in turn.
func (p *Processor) recoverPartitionDir(dir string, partition int64, sequential bool) error {
	if err := p.replayPendingRenames(dir); err != nil {
		return err
	}

	entries, err := p.fs.ListDir(dir)
	if err != nil {
		return err
	}

	type found struct {
		name partitionfile.Name
		ext  string
		path string
	}
	var files []found
	for _, filename := range entries {
		if strings.HasSuffix(filename, partitionfile.ModsSuffix) ||
			strings.HasSuffix(filename, partitionfile.ResourceSuffix) ||
			strings.HasSuffix(filename, partitionfile.TempSuffix) ||
			strings.HasSuffix(filename, partitionfile.MergeSuffix) {
			continue
		}
		if filename != p.trimExt(filename)+"."+p.ext {
			continue // a data root may be shared; only <ext> files belong to this storage group's index
		}
		n, ext, err := partitionfile.ParseName(filename)
		if err != nil {
			p.logger.Warnf(logging.NSRecovery+"skipping unparsable file %s: %v", filename, err)
			continue
		}
		files = append(files, found{name: n, ext: ext, path: filepath.Join(dir, filename)})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].name.Less(files[j].name) })

	for i, f := range files {
		last := i == len(files)-1
		if err := p.recoverOneFile(f.path, partition, f.name, f.ext, sequential, last); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) trimExt(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext)
}

// replayPendingRenames finishes an interrupted load or merge rename left
// behind by a crash mid-way through spec §4.7.2/§4.4: a ".tmp" or ".merge"
// file present alongside its target means the rename's source write
// succeeded but the final os-level rename did not complete.
func (p *Processor) replayPendingRenames(dir string) error {
	entries, err := p.fs.ListDir(dir)
	if err != nil {
		return err
	}
	for _, filename := range entries {
		var target string
		switch {
		case strings.HasSuffix(filename, partitionfile.TempSuffix):
			target = strings.TrimSuffix(filename, partitionfile.TempSuffix)
		case strings.HasSuffix(filename, partitionfile.MergeSuffix):
			target = strings.TrimSuffix(filename, partitionfile.MergeSuffix)
		default:
			continue
		}
		src := filepath.Join(dir, filename)
		dst := filepath.Join(dir, target)
		if p.fs.Exists(dst) {
			// target already landed; the pending marker is a stale leftover.
			_ = p.fs.Remove(src)
			continue
		}
		if err := p.fs.Rename(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// recoverOneFile rebuilds one FileResource after checking that its sidecar
// modification file is readable (an unreadable one skips the file; spec §4.3
// step 2), registers it into the FileIndex,
// seeds the catalog and latest-time tracker, and, for the most recent file
// in this (partition, kind), decides whether it is still writable.
//
// The ".resource" sidecar (written on seal by closeUnsealedCallback) is the
// signal used to decide that: its absence on the last file of a (partition,
// kind) run means "this file was never sealed" — the interpretation
// recorded in the grounding ledger. When present, its content also
// restores the device start/end ranges that the data file's own chunk
// index would otherwise hold (that index stays out of scope, spec §1).
func (p *Processor) recoverOneFile(path string, partition int64, name partitionfile.Name, ext string, sequential, last bool) error {
	_ = testutil.SP(testutil.SPRecoverFileStart)
	resource := partitionfile.New(path, partition, name, ext)
	resource.AddHistoricalVersion(name.Version)
	p.catalog.AddDirect(partition, name.Version)

	// Validate the sidecar is at least readable.
	if _, err := modlog.ReadAny(p.fs, resource.ModsPath()); err != nil {
		_ = testutil.SP(testutil.SPRecoverFileFailed)
		p.logger.Errorf(logging.NSRecovery+"skipping %s: sidecar read failed: %v", path, err)
		return nil
	}

	sealed := p.fs.Exists(resource.ResourcePath())
	if sealed {
		if err := resource.LoadResourceFile(p.fs); err != nil {
			p.logger.Errorf(logging.NSRecovery+"reading resource sidecar for %s: %v", path, err)
		} else if sequential {
			for _, d := range resource.Devices() {
				if end, ok := resource.EndTime(d); ok {
					p.times.commitRecoveredFlush(partition, d, end)
				}
			}
		}
	}

	if sequential {
		p.fileIndex.InsertSequential(resource)
	} else {
		p.fileIndex.AppendUnsequential(resource)
	}

	if !last || sealed {
		resource.MarkClosed()
		return nil
	}

	entry := &bufferEntry{buf: writebuffer.New(partition, writebuffer.DefaultOptions()), resource: resource}
	p.resourceBuffers[resource] = entry
	p.partitionMap(sequential).Put(partition, entry)
	return nil
}
