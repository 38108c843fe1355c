package observer

// Observer is the full hook taxonomy spec.md §4.11 names, one method per
// named pre/post pair. A concrete observer embeds BaseObserver and
// overrides only the hooks it cares about, mirroring
// RegionCoprocessorHost's callers, each of which invokes every registered
// coprocessor whether or not it implements that particular hook.
type Observer interface {
	PreOpen(ctx *LifecycleContext)
	PostOpen(ctx *LifecycleContext)
	PreClose(ctx *LifecycleContext)
	PostClose(ctx *LifecycleContext)
	PreLogReplay(ctx *LifecycleContext)
	PostLogReplay(ctx *LifecycleContext)

	PreFlush(ctx *FlushContext)
	PostFlush(ctx *FlushContext)
	PreFlushScannerOpen(ctx *FlushContext)

	PreCompact(ctx *CompactionContext)
	PostCompact(ctx *CompactionContext)
	PreCompactSelection(ctx *CompactSelectionContext)
	PostCompactSelection(ctx *CompactSelectionContext)
	PreCompactScannerOpen(ctx *CompactionContext)

	PreSplitBeforePONR(ctx *SplitContext)
	PostSplitAfterPONR(ctx *SplitContext)
	PreSplitRollback(ctx *SplitContext)
	PreMergeBeforePONR(ctx *MergeContext)
	PostMergeAfterPONR(ctx *MergeContext)
	PreMergeRollback(ctx *MergeContext)

	PreGet(ctx *GetContext)
	PostGet(ctx *GetContext)
	PreExists(ctx *ExistsContext)
	PostExists(ctx *ExistsContext)

	PreMutate(ctx *MutateContext)
	PostMutate(ctx *MutateContext)
	PreBatchMutate(ctx *BatchMutateContext)
	PostBatchMutate(ctx *BatchMutateContext)
	PostBatchMutateIndispensably(ctx *BatchMutateContext)

	PreCheckAndMutate(ctx *CheckAndMutateContext)
	PostCheckAndMutate(ctx *CheckAndMutateContext)

	PreAppend(ctx *AppendContext)
	PostAppend(ctx *AppendContext)
	PreIncrement(ctx *IncrementContext)
	PostIncrement(ctx *IncrementContext)

	PreScannerOpen(ctx *ScannerOpenContext)
	PostScannerOpen(ctx *ScannerOpenContext)
	PreScannerNext(ctx *ScannerNextContext)
	PostScannerNext(ctx *ScannerNextContext)
	PreScannerClose(ctx *ScannerCloseContext)
	PostScannerClose(ctx *ScannerCloseContext)
	PreScannerFilterRow(ctx *ScannerFilterRowContext)

	PreBulkLoad(ctx *BulkLoadContext)
	PostBulkLoad(ctx *BulkLoadContext)

	PreWALRestore(ctx *WALRestoreContext)
	PostWALRestore(ctx *WALRestoreContext)
}

// BaseObserver implements Observer with a no-op body for every hook.
// Concrete observers embed it and override only the hooks they need.
type BaseObserver struct{}

func (BaseObserver) PreOpen(*LifecycleContext)      {}
func (BaseObserver) PostOpen(*LifecycleContext)     {}
func (BaseObserver) PreClose(*LifecycleContext)     {}
func (BaseObserver) PostClose(*LifecycleContext)    {}
func (BaseObserver) PreLogReplay(*LifecycleContext)  {}
func (BaseObserver) PostLogReplay(*LifecycleContext) {}

func (BaseObserver) PreFlush(*FlushContext)           {}
func (BaseObserver) PostFlush(*FlushContext)          {}
func (BaseObserver) PreFlushScannerOpen(*FlushContext) {}

func (BaseObserver) PreCompact(*CompactionContext)             {}
func (BaseObserver) PostCompact(*CompactionContext)            {}
func (BaseObserver) PreCompactSelection(*CompactSelectionContext)  {}
func (BaseObserver) PostCompactSelection(*CompactSelectionContext) {}
func (BaseObserver) PreCompactScannerOpen(*CompactionContext)      {}

func (BaseObserver) PreSplitBeforePONR(*SplitContext)  {}
func (BaseObserver) PostSplitAfterPONR(*SplitContext)  {}
func (BaseObserver) PreSplitRollback(*SplitContext)    {}
func (BaseObserver) PreMergeBeforePONR(*MergeContext)  {}
func (BaseObserver) PostMergeAfterPONR(*MergeContext)  {}
func (BaseObserver) PreMergeRollback(*MergeContext)    {}

func (BaseObserver) PreGet(*GetContext)        {}
func (BaseObserver) PostGet(*GetContext)       {}
func (BaseObserver) PreExists(*ExistsContext)  {}
func (BaseObserver) PostExists(*ExistsContext) {}

func (BaseObserver) PreMutate(*MutateContext)                        {}
func (BaseObserver) PostMutate(*MutateContext)                       {}
func (BaseObserver) PreBatchMutate(*BatchMutateContext)               {}
func (BaseObserver) PostBatchMutate(*BatchMutateContext)              {}
func (BaseObserver) PostBatchMutateIndispensably(*BatchMutateContext) {}

func (BaseObserver) PreCheckAndMutate(*CheckAndMutateContext)  {}
func (BaseObserver) PostCheckAndMutate(*CheckAndMutateContext) {}

func (BaseObserver) PreAppend(*AppendContext)        {}
func (BaseObserver) PostAppend(*AppendContext)       {}
func (BaseObserver) PreIncrement(*IncrementContext)  {}
func (BaseObserver) PostIncrement(*IncrementContext) {}

func (BaseObserver) PreScannerOpen(*ScannerOpenContext)         {}
func (BaseObserver) PostScannerOpen(*ScannerOpenContext)        {}
func (BaseObserver) PreScannerNext(*ScannerNextContext)         {}
func (BaseObserver) PostScannerNext(*ScannerNextContext)        {}
func (BaseObserver) PreScannerClose(*ScannerCloseContext)       {}
func (BaseObserver) PostScannerClose(*ScannerCloseContext)      {}
func (BaseObserver) PreScannerFilterRow(*ScannerFilterRowContext) {}

func (BaseObserver) PreBulkLoad(*BulkLoadContext)  {}
func (BaseObserver) PostBulkLoad(*BulkLoadContext) {}

func (BaseObserver) PreWALRestore(*WALRestoreContext)  {}
func (BaseObserver) PostWALRestore(*WALRestoreContext) {}

var _ Observer = BaseObserver{}
