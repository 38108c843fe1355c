package observer

import (
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("engine/observer")

// Chain holds an ordered set of Observers and dispatches every taxonomy
// hook to each in turn, honoring Bypass/Complete signals and the
// abort-on-error contract (spec.md §4.11 "A coprocessor that throws is
// handled either by aborting the server ... or by logging and continuing,
// per configuration" — engineconfig.Config.CoprocessorAbortOnError).
type Chain struct {
	observers    []Observer
	abortOnError bool
}

// New builds a Chain from an ordered observer list. Order matters: earlier
// observers run first and can set Complete to prevent later ones running.
func New(abortOnError bool, observers ...Observer) *Chain {
	return &Chain{observers: observers, abortOnError: abortOnError}
}

// Register appends o to the chain, run after every observer already present.
func (c *Chain) Register(o Observer) {
	c.observers = append(c.observers, o)
}

// dispatch invokes call once per registered observer, stopping early if a
// prior observer set oc.Complete. A panicking observer is recovered: with
// abortOnError, the panic is re-raised (crashing the process, mirroring
// RegionCoprocessorHost.handleCoprocessorThrowable's abort path); otherwise
// it's logged and the remaining observers still run.
func (c *Chain) dispatch(oc *ObserverContext, call func(Observer)) {
	for _, o := range c.observers {
		c.safeCall(o, call)
		if oc.Complete {
			return
		}
	}
}

func (c *Chain) safeCall(o Observer, call func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			if c.abortOnError {
				panic(r)
			}
			log.Errorf("observer panic recovered (abort-on-error disabled): %v", r)
		}
	}()
	call(o)
}

func (c *Chain) PreOpen(ctx *LifecycleContext)  { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreOpen(ctx) }) }
func (c *Chain) PostOpen(ctx *LifecycleContext) { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostOpen(ctx) }) }
func (c *Chain) PreClose(ctx *LifecycleContext)  { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreClose(ctx) }) }
func (c *Chain) PostClose(ctx *LifecycleContext) { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostClose(ctx) }) }
func (c *Chain) PreLogReplay(ctx *LifecycleContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreLogReplay(ctx) })
}
func (c *Chain) PostLogReplay(ctx *LifecycleContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostLogReplay(ctx) })
}

func (c *Chain) PreFlush(ctx *FlushContext)  { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreFlush(ctx) }) }
func (c *Chain) PostFlush(ctx *FlushContext) { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostFlush(ctx) }) }
func (c *Chain) PreFlushScannerOpen(ctx *FlushContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreFlushScannerOpen(ctx) })
}

func (c *Chain) PreCompact(ctx *CompactionContext)  { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreCompact(ctx) }) }
func (c *Chain) PostCompact(ctx *CompactionContext) { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostCompact(ctx) }) }
func (c *Chain) PreCompactSelection(ctx *CompactSelectionContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreCompactSelection(ctx) })
}
func (c *Chain) PostCompactSelection(ctx *CompactSelectionContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostCompactSelection(ctx) })
}
func (c *Chain) PreCompactScannerOpen(ctx *CompactionContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreCompactScannerOpen(ctx) })
}

func (c *Chain) PreSplitBeforePONR(ctx *SplitContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreSplitBeforePONR(ctx) })
}
func (c *Chain) PostSplitAfterPONR(ctx *SplitContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostSplitAfterPONR(ctx) })
}
func (c *Chain) PreSplitRollback(ctx *SplitContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreSplitRollback(ctx) })
}
func (c *Chain) PreMergeBeforePONR(ctx *MergeContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreMergeBeforePONR(ctx) })
}
func (c *Chain) PostMergeAfterPONR(ctx *MergeContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostMergeAfterPONR(ctx) })
}
func (c *Chain) PreMergeRollback(ctx *MergeContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreMergeRollback(ctx) })
}

func (c *Chain) PreGet(ctx *GetContext)   { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreGet(ctx) }) }
func (c *Chain) PostGet(ctx *GetContext)  { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostGet(ctx) }) }
func (c *Chain) PreExists(ctx *ExistsContext)  { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreExists(ctx) }) }
func (c *Chain) PostExists(ctx *ExistsContext) { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostExists(ctx) }) }

func (c *Chain) PreMutate(ctx *MutateContext)  { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreMutate(ctx) }) }
func (c *Chain) PostMutate(ctx *MutateContext) { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostMutate(ctx) }) }
func (c *Chain) PreBatchMutate(ctx *BatchMutateContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreBatchMutate(ctx) })
}
func (c *Chain) PostBatchMutate(ctx *BatchMutateContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostBatchMutate(ctx) })
}

// PostBatchMutateIndispensably always runs to completion regardless of
// oc.Complete from a prior hook — spec.md §4.11 names it as running "always
// ... even on failure", so unlike every other dispatch it never
// short-circuits.
func (c *Chain) PostBatchMutateIndispensably(ctx *BatchMutateContext) {
	for _, o := range c.observers {
		c.safeCall(o, func(o Observer) { o.PostBatchMutateIndispensably(ctx) })
	}
}

func (c *Chain) PreCheckAndMutate(ctx *CheckAndMutateContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreCheckAndMutate(ctx) })
}
func (c *Chain) PostCheckAndMutate(ctx *CheckAndMutateContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostCheckAndMutate(ctx) })
}

func (c *Chain) PreAppend(ctx *AppendContext)  { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreAppend(ctx) }) }
func (c *Chain) PostAppend(ctx *AppendContext) { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostAppend(ctx) }) }
func (c *Chain) PreIncrement(ctx *IncrementContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreIncrement(ctx) })
}
func (c *Chain) PostIncrement(ctx *IncrementContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostIncrement(ctx) })
}

func (c *Chain) PreScannerOpen(ctx *ScannerOpenContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreScannerOpen(ctx) })
}
func (c *Chain) PostScannerOpen(ctx *ScannerOpenContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostScannerOpen(ctx) })
}
func (c *Chain) PreScannerNext(ctx *ScannerNextContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreScannerNext(ctx) })
}
func (c *Chain) PostScannerNext(ctx *ScannerNextContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostScannerNext(ctx) })
}
func (c *Chain) PreScannerClose(ctx *ScannerCloseContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreScannerClose(ctx) })
}
func (c *Chain) PostScannerClose(ctx *ScannerCloseContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostScannerClose(ctx) })
}
func (c *Chain) PreScannerFilterRow(ctx *ScannerFilterRowContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreScannerFilterRow(ctx) })
}

func (c *Chain) PreBulkLoad(ctx *BulkLoadContext)  { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreBulkLoad(ctx) }) }
func (c *Chain) PostBulkLoad(ctx *BulkLoadContext) { c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostBulkLoad(ctx) }) }

func (c *Chain) PreWALRestore(ctx *WALRestoreContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PreWALRestore(ctx) })
}
func (c *Chain) PostWALRestore(ctx *WALRestoreContext) {
	c.dispatch(ctx.ObserverContext, func(o Observer) { o.PostWALRestore(ctx) })
}
