package observer

import (
	"github.com/dkvlabs/regiondb/lib/engine/famstore"
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/region"
)

// LifecycleContext carries an open/close/log-replay event's region identity.
type LifecycleContext struct {
	*ObserverContext
	Info           region.Info
	AbortRequested bool // set on PreClose/PostClose; unused by open/log-replay
}

// FlushContext carries a flush event's region/family identity.
type FlushContext struct {
	*ObserverContext
	RegionID string
	Family   string
}

// CompactionContext carries a compaction event's region/family identity and
// whether it's major.
type CompactionContext struct {
	*ObserverContext
	RegionID string
	Family   string
	Major    bool
}

// CompactSelectionContext carries the candidate files a compaction
// considered and, on Post, the files it actually selected.
type CompactSelectionContext struct {
	*ObserverContext
	RegionID   string
	Family     string
	Candidates []famstore.File
	Selected   []famstore.File
}

// SplitContext carries a split transaction's parent/daughter identities.
// BeforePONR fires with Daughters populated but not yet committed;
// AfterPONR fires once the catalog has accepted the flip; Rollback fires
// if the transaction aborted before the PONR.
type SplitContext struct {
	*ObserverContext
	Parent    region.Info
	Daughters []region.Info
	SplitKey  []byte
}

// MergeContext mirrors SplitContext for a merge transaction.
type MergeContext struct {
	*ObserverContext
	Parents []region.Info
	Merged  region.Info
}

// GetContext carries a get call's row/result.
type GetContext struct {
	*ObserverContext
	Row    []byte
	Result []keycodec.Cell
	Found  bool
}

// ExistsContext carries an exists call's row/result.
type ExistsContext struct {
	*ObserverContext
	Row    []byte
	Exists bool
}

// MutateContext carries a single-row put/delete's row and cells — the
// context Region's mutateLocked already builds and passes through
// RegionHooksAdapter (spec.md §4.11 "put/delete").
type MutateContext struct {
	*ObserverContext
	Row   []byte
	Cells []keycodec.Cell
}

// BatchMutateContext carries a Batch call's ops and, on Post, their
// results. PostIndispensably fires unconditionally — even when the batch
// as a whole failed — mirroring postBatchMutateIndispensably's contract
// that it always runs.
type BatchMutateContext struct {
	*ObserverContext
	Ops     []region.BatchOp
	Results []region.BatchResult
}

// CheckAndMutateContext carries a checkAndMutate call's comparison and, on
// Post, whether it passed.
type CheckAndMutateContext struct {
	*ObserverContext
	Row, Family, Qualifier []byte
	Cmp                    region.Comparator
	Expected               []byte
	Mutation               []keycodec.Cell
	Passed                 bool
}

// AppendContext carries an append call's per-qualifier values to append.
type AppendContext struct {
	*ObserverContext
	Row, Family []byte
	Values      map[string][]byte
	Result      map[string][]byte
}

// IncrementContext carries an increment call's per-qualifier deltas.
type IncrementContext struct {
	*ObserverContext
	Row, Family []byte
	Amounts     map[string]int64
	Result      map[string]int64
}

// ScannerOpenContext carries the options a scanner was opened with.
type ScannerOpenContext struct {
	*ObserverContext
	Opts region.ScanOptions
}

// ScannerNextContext carries a Next(n) call's requested count and result.
type ScannerNextContext struct {
	*ObserverContext
	N       int
	Rows    [][]keycodec.Cell
	HasMore bool
}

// ScannerCloseContext carries a scanner close event; it has no payload
// beyond the embedded ObserverContext but exists for symmetry with the
// open/next hooks and so a future scanner handle can be threaded through
// without changing the Observer interface.
type ScannerCloseContext struct {
	*ObserverContext
}

// ScannerFilterRowContext carries a per-row filter decision a scanner
// consults before yielding row (spec.md §4.11 "scanner ... filter-row").
type ScannerFilterRowContext struct {
	*ObserverContext
	Row      []byte
	Filtered bool // true excludes the row; observers may set this on Pre
}

// BulkLoadContext carries a bulk-load event's target region/family/file.
type BulkLoadContext struct {
	*ObserverContext
	RegionID string
	Family   string
	FileID   string
}

// WALRestoreContext carries a WAL-replay event's target region.
type WALRestoreContext struct {
	*ObserverContext
	RegionID string
}
