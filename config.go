package sgproc

import (
	"time"

	"github.com/aalhour/sgproc/internal/logging"
	"github.com/aalhour/sgproc/internal/merge"
)

// Logger is an alias for the logging.Logger interface, letting callers
// pass their own logger implementation (ground: options.go's identical
// Logger alias).
type Logger = logging.Logger

// MergeStrategy names a merge candidate-selection strategy.
type MergeStrategy = merge.Strategy

// Merge strategy constants (spec §6 "Merge selector factory by strategy
// name").
const (
	MergeStrategyMaxFileNum   = merge.MaxFileNum
	MergeStrategyMaxSeriesNum = merge.MaxSeriesNum
)

// Config is the configuration surface of spec §6: "concurrentWritingPartitions
// (cap on writable Buffers per kind), mergeMemoryBudget, mergeFileStrategy,
// forceFullMerge, continueMergeAfterReboot, enableWal, dataTTL,
// partitionInterval." Ground: options.go's Options/DefaultOptions()
// struct-of-knobs pattern.
type Config struct {
	// ConcurrentWritingPartitions caps the number of writable Buffers held
	// per kind (sequential, unsequential) at once; the oldest is scheduled
	// for async close when an insert would exceed it (spec §3 invariant).
	ConcurrentWritingPartitions int

	// MergeMemoryBudget bounds the estimated in-flight size of one merge
	// task's candidate selection.
	MergeMemoryBudget int64

	// MergeFileStrategy selects MAX_FILE_NUM or MAX_SERIES_NUM candidate
	// selection (spec §4.4, §6).
	MergeFileStrategy MergeStrategy

	// ForceFullMerge, when true, runs the configured strategy's selection
	// with an unbounded memory budget instead of MergeMemoryBudget. The
	// strategy still chooses the candidate files (MAX_FILE_NUM, for
	// instance, still caps how many unsequential files it takes), so the
	// candidate is not necessarily the entire file set.
	ForceFullMerge bool

	// ContinueMergeAfterReboot controls recovery behavior when a
	// merge.mods file is found at startup (spec §4.3): when true the file
	// is left in place, when false it is removed. In neither case does
	// recovery re-run or complete the interrupted merge.
	ContinueMergeAfterReboot bool

	// EnableWAL gates the write-ahead-log append step of delete (spec
	// §4.5 step 3); the write-ahead log itself is an external collaborator
	// (spec §1 OUT OF SCOPE, §6).
	EnableWAL bool

	// DataTTL is the retention window in milliseconds; <= 0 means
	// unlimited (spec §4.6 step 1).
	DataTTL int64

	// PartitionInterval is the time-partition width in milliseconds
	// (spec §4.1 step 2: p = floor(timestamp / PartitionInterval)).
	PartitionInterval int64

	// LoadReductionEnabled gates the duplicate-by-version check on load:
	// when true, a loaded file whose historical version set is a subset of
	// an existing sequential file's is discarded rather than inserted
	// (spec §8 scenario 6).
	LoadReductionEnabled bool

	// Logger receives the coordinator's structured log output. Nil uses
	// logging.OrDefault's fallback.
	Logger Logger

	// ClosingSetPollInterval is how often sync_close_all polls both
	// ClosingSets while waiting for them to drain, and the interval at
	// which it emits a progress log (spec §5: "60 s polling warn").
	ClosingSetPollInterval time.Duration
}

// DefaultConfig returns Config defaults, grounded on DefaultOptions()'s
// shape: every knob explicit, no hidden zero-value behavior.
func DefaultConfig() *Config {
	return &Config{
		ConcurrentWritingPartitions: 30,
		MergeMemoryBudget:           256 << 20, // 256MB
		MergeFileStrategy:           MergeStrategyMaxFileNum,
		ForceFullMerge:              false,
		ContinueMergeAfterReboot:    true,
		EnableWAL:                  true,
		DataTTL:                    0, // unlimited
		PartitionInterval:          604800000,
		LoadReductionEnabled:       true,
		Logger:                     nil,
		ClosingSetPollInterval:     60 * time.Second,
	}
}
