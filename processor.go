package sgproc

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/aalhour/sgproc/internal/loadplan"
	"github.com/aalhour/sgproc/internal/logging"
	"github.com/aalhour/sgproc/internal/merge"
	"github.com/aalhour/sgproc/internal/partitionfile"
	"github.com/aalhour/sgproc/internal/ttlsweep"
	"github.com/aalhour/sgproc/internal/versionreg"
	"github.com/aalhour/sgproc/internal/vfs"
	"github.com/aalhour/sgproc/internal/writebuffer"
)

// Processor is the per-storage-group coordinator (spec §2). It owns every
// component listed there and enforces the lock ordering of spec §5:
// insertLock -> mergeLock -> closeQueryLock -> per-FileResource lock.
type Processor struct {
	sysRoot string
	sgName  string
	ext     string
	cfg     Config
	logger  Logger
	fs      vfs.FS

	dirs        DirectoryRotator
	meta        MetadataService
	flushPolicy FlushPolicy
	wal         WriteAheadLog

	// insertLock guards every field below (spec §5: "writers are
	// ingestion, close, delete, load, move, sweep; readers are query").
	insertLock sync.RWMutex
	// mergeLock is the single coordinator-level lock shared by query
	// (read), delete/load/move (write), and the merge end-action's
	// try-lock retry loop (write) — spec §5.
	mergeLock sync.RWMutex
	// closeQueryLock serializes the unsealed->sealed transition against
	// query's capture of the unsealed Buffer handle (spec §5).
	closeQueryLock sync.RWMutex
	// ttlMu is "the class-level monitor lock" guarding the TTL sweeper
	// (spec §5), so concurrent CheckFilesTTL calls don't race each other.
	ttlMu sync.Mutex

	seqBuffers   *partitionfile.PartitionMap[*bufferEntry]
	unseqBuffers *partitionfile.PartitionMap[*bufferEntry]
	seqClosing   *partitionfile.ClosingSet[*bufferEntry]
	unseqClosing *partitionfile.ClosingSet[*bufferEntry]

	// resourceBuffers maps a still-unsealed FileResource to the bufferEntry
	// writing it, so query can find the in-memory contribution of an
	// unsealed resource (spec §4.8) without walking both PartitionMaps.
	resourceBuffers map[*partitionfile.Resource]*bufferEntry

	fileIndex *partitionfile.Index
	times     *latestTimeTracker
	versions  *versionreg.Registry
	catalog   *versionreg.Catalog
	merger    *merge.Coordinator
	sweeper   *ttlsweep.Sweeper
	loader    *loadplan.Planner

	readOnly atomic.Bool
	closed   atomic.Bool
}

// bufferEntry pairs a writable Buffer with the FileResource it is filling,
// the "Buffer ... tied to a single FileResource under construction" of spec
// §3. partitionfile.PartitionMap is generic but internal/partitionfile must
// not depend on internal/writebuffer (see partitionmap.go), so this root
// package supplies the concrete element type.
type bufferEntry struct {
	buf      *writebuffer.Buffer
	resource *partitionfile.Resource
}

// Options configures a new Processor.
type Options struct {
	// SysRoot is the system directory holding merge.mods and the
	// per-partition version logs (spec §6).
	SysRoot string
	// SGName is the storage group identifier.
	SGName string
	// Ext is the data file extension (without the leading dot). Defaults
	// to "tsfile".
	Ext string
	// Config holds the tunable knobs of spec §6. Defaults to
	// DefaultConfig() if nil.
	Config *Config
	// FS is the filesystem to use. Defaults to vfs.Default().
	FS vfs.FS

	// Dirs, Meta, FlushPolicy, WAL are the external collaborators of spec
	// §6. Dirs is required; the others may be nil (FlushPolicy falls back
	// to closing a full buffer at once; WAL and Meta are simply skipped).
	Dirs        DirectoryRotator
	Meta        MetadataService
	FlushPolicy FlushPolicy
	WAL         WriteAheadLog
}

// NewProcessor constructs a Processor rooted at opts.SysRoot/opts.SGName and
// runs recovery (spec §4.3) before returning, per spec §2: "A coordinator
// is constructed with a system directory and a storage-group identifier,
// then recovers state and becomes ready for ingestion."
func NewProcessor(opts Options) (*Processor, error) {
	if opts.SGName == "" {
		return nil, fmt.Errorf("sgproc: storage group name is required")
	}
	if opts.Dirs == nil {
		return nil, fmt.Errorf("sgproc: a DirectoryRotator is required")
	}
	if opts.Ext == "" {
		opts.Ext = "tsfile"
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	fs := opts.FS
	if fs == nil {
		fs = vfs.Default()
	}
	logger := logging.OrDefault(cfg.Logger)

	sysSGDir := filepath.Join(opts.SysRoot, opts.SGName)
	if err := fs.MkdirAll(sysSGDir, 0o755); err != nil {
		return nil, fmt.Errorf("sgproc: create system directory %s: %w", sysSGDir, err)
	}

	p := &Processor{
		sysRoot:     opts.SysRoot,
		sgName:      opts.SGName,
		ext:         opts.Ext,
		cfg:         *cfg,
		logger:      logger,
		fs:          fs,
		dirs:        opts.Dirs,
		meta:        opts.Meta,
		flushPolicy: opts.FlushPolicy,
		wal:         opts.WAL,

		seqBuffers:   partitionfile.NewPartitionMap[*bufferEntry](),
		unseqBuffers: partitionfile.NewPartitionMap[*bufferEntry](),
		seqClosing:   partitionfile.NewClosingSet[*bufferEntry](),
		unseqClosing: partitionfile.NewClosingSet[*bufferEntry](),

		resourceBuffers: make(map[*partitionfile.Resource]*bufferEntry),

		fileIndex: partitionfile.NewIndex(),
		times:     newLatestTimeTracker(),
		catalog:   versionreg.NewCatalog(),
	}
	p.versions = versionreg.New(fs, opts.SysRoot, opts.SGName)
	p.merger = merge.NewCoordinator(fs, opts.SysRoot, opts.SGName)
	p.sweeper = ttlsweep.New(fs)
	p.loader = loadplan.New(fs)

	logger.Infof(logging.NSRecovery + "recovering storage group " + opts.SGName)
	if err := p.recover(); err != nil {
		return nil, fmt.Errorf("sgproc: recovery: %w", err)
	}
	return p, nil
}

// Close drains every writable Buffer (spec §4.2 sync_close_all) and marks
// the Processor closed; subsequent operations return ErrClosed.
func (p *Processor) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.SyncCloseAll()
	return nil
}

// ReadOnly reports whether the Processor has been flipped read-only by a
// disk-space failure (spec §7).
func (p *Processor) ReadOnly() bool {
	return p.readOnly.Load()
}

func (p *Processor) partitionMap(sequential bool) *partitionfile.PartitionMap[*bufferEntry] {
	if sequential {
		return p.seqBuffers
	}
	return p.unseqBuffers
}

func (p *Processor) closingSet(sequential bool) *partitionfile.ClosingSet[*bufferEntry] {
	if sequential {
		return p.seqClosing
	}
	return p.unseqClosing
}

func (p *Processor) nextRoot(sequential bool) (string, error) {
	if sequential {
		return p.dirs.NextSequentialRoot()
	}
	return p.dirs.NextUnsequentialRoot()
}

// seriesPath renders the (storage group, device, measurement) triple into
// the path string stamped on a Deletion (spec §3, §4.5).
func (p *Processor) seriesPath(device, measurement string) string {
	return fmt.Sprintf("root.%s.%s.%s", p.sgName, device, measurement)
}

// floorDiv computes the time-partition identifier of spec §4.1 step 2
// (p = floor(timestamp / partitionInterval)), rounding toward negative
// infinity rather than truncating toward zero.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
