package sgproc

import "errors"

// Sentinel errors for every error kind named in spec §7. Ground: the
// teacher's package-level sentinel-error style (ErrNotFound, ErrKeyExpired,
// ...) in external_sst_ingestion.go and friends, wrapped at the call site
// with fmt.Errorf("%w: %s", ErrKind, detail).
var (
	// ErrOutOfTTL is returned when an ingested row's timestamp is older
	// than the configured retention window (spec §4.1 step 1).
	ErrOutOfTTL = errors.New("sgproc: row timestamp is out of TTL")

	// ErrDiskSpaceInsufficient is returned by Buffer creation and load when
	// the directory rotator collaborator reports insufficient disk space.
	// It flips the processor's read-only flag (spec §7).
	ErrDiskSpaceInsufficient = errors.New("sgproc: disk space insufficient")

	// ErrLoadFile covers failures in the external file load path (spec §4.7).
	ErrLoadFile = errors.New("sgproc: load file failed")

	// ErrMerge covers selector or merge-infrastructure failures (spec §4.4).
	ErrMerge = errors.New("sgproc: merge failed")

	// ErrTsFileProcessor covers close failures on a writable Buffer (spec §4.2).
	ErrTsFileProcessor = errors.New("sgproc: file processor close failed")

	// ErrWriteProcess covers Buffer write failures (spec §4.1).
	ErrWriteProcess = errors.New("sgproc: write process failed")

	// ErrMetadata covers series/schema resolution failures from the
	// metadata service collaborator (spec §6).
	ErrMetadata = errors.New("sgproc: metadata resolution failed")

	// ErrClosed is returned by any operation attempted on a Processor after
	// Close.
	ErrClosed = errors.New("sgproc: processor closed")

	// ErrReadOnly is returned by ingestion/load once the processor has been
	// flipped read-only by ErrDiskSpaceInsufficient (spec §7).
	ErrReadOnly = errors.New("sgproc: processor is read-only")
)
