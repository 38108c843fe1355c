// Package observer implements ObserverHooks (spec.md §4.11: C11): the fixed
// coprocessor-style hook taxonomy invoked at defined points in a Region's
// lifecycle, each hook receiving an ObserverContext that lets it bypass
// default processing or short-circuit remaining observers.
//
// Grounded directly on original_source's RegionCoprocessorHost.java: its
// pre*/post* method pairs (preOpen/postOpen, preFlush/postFlush,
// postCompactSelection, preSplit/preSplitAfterPONR/preRollBackSplit,
// postBatchMutate/postBatchMutateIndispensably, postWALRestore, ...) name
// exactly the taxonomy spec.md §4.11 lists, and its
// handleCoprocessorThrowable[NoRethrow] pair is the abort-vs-log-and-continue
// contract this package's Chain implements via panic/recover instead of
// Java's checked-exception handling.
package observer

// ObserverContext is passed to every hook. Bypass lets an observer veto the
// default processing path for the call it wraps; Complete signals "stop
// invoking any further observers for this call" (spec.md §4.11 "bypass or
// short-circuit remaining observers"). Observers must not retain a context
// after the call returns — Chain reuses one instance across every observer
// in a single dispatch.
type ObserverContext struct {
	Bypass   bool
	Complete bool
}
