package sgproc

// RowStatus is the per-row result code for a batch insert (spec §4.1
// "Batch insert", §7). Ground: the teacher's CompactionFilterDecision
// enum-with-iota style.
type RowStatus int

const (
	// StatusOK means the row was accepted.
	StatusOK RowStatus = iota
	// StatusOutOfTTL means the row's timestamp was older than the
	// retention window and was rejected without mutating any Buffer.
	StatusOutOfTTL
	// StatusInternalError means a target Buffer could not be created
	// (e.g. disk full); the processor is flipped read-only when this
	// occurs.
	StatusInternalError
)

// String renders the status for logging.
func (s RowStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusOutOfTTL:
		return "OutOfTTL"
	case StatusInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Row is a single point to insert: (device, measurement, timestamp, value).
type Row struct {
	Device      string
	Measurement string
	Timestamp   int64
	Value       []byte
}

// Tablet is a batch insert for one device: a sorted array of timestamps
// and a column-major value block (spec §4.1 "Batch insert").
type Tablet struct {
	Device       string
	Measurements []string
	Timestamps   []int64
	// Values[i] holds the column for Measurements[i], one entry per
	// timestamp, i.e. Values[i][j] is the value of Measurements[i] at
	// Timestamps[j].
	Values [][][]byte
}

// QueryDataSource is the result of Query (spec §4.8): a consistent
// snapshot of the sequential and unsequential resources satisfying the
// query predicate for one series.
type QueryDataSource struct {
	SeriesPath string
	Sequential []*QueryResource
	Unsequential []*QueryResource
}

// QueryResource wraps one FileResource as seen by a query: either sealed
// (queried as-is) or unsealed (hybrid: in-memory chunks from its attached
// Buffer plus on-disk chunk metadata), per spec §4.8.
type QueryResource struct {
	Path   string
	Sealed bool
	// Points is populated only for an unsealed resource's in-memory
	// contribution (spec §4.8: "query the attached Buffer for (in-memory
	// chunks, on-disk chunk metadata)").
	Points []QueryPoint
}

// QueryPoint is one in-memory data point surfaced by an unsealed Buffer.
type QueryPoint struct {
	Timestamp int64
	Value     []byte
}
