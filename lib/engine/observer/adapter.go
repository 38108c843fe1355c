package observer

import "github.com/dkvlabs/regiondb/lib/engine/region"

// RegionHooksAdapter implements region.Hooks by delegating Region's two
// mutation-time hook calls to a Chain's fuller PreMutate/PostMutate
// dispatch. These two are the only taxonomy entries Region invokes; no code
// in this module dispatches any other hook in Observer (flush, compact,
// split/merge, get/scan, batch, bulk-load, WAL-restore), just as
// scheduler.Scheduler.WaitIfBlocked is exposed without being called by
// Region.
type RegionHooksAdapter struct {
	Chain *Chain
}

func (a *RegionHooksAdapter) PreMutate(ctx *region.HookContext) {
	oc := &ObserverContext{}
	a.Chain.PreMutate(&MutateContext{ObserverContext: oc, Row: ctx.Row, Cells: ctx.Cells})
	ctx.Bypass = oc.Bypass
	ctx.Complete = oc.Complete
}

func (a *RegionHooksAdapter) PostMutate(ctx *region.HookContext) {
	oc := &ObserverContext{}
	a.Chain.PostMutate(&MutateContext{ObserverContext: oc, Row: ctx.Row, Cells: ctx.Cells})
	ctx.Bypass = oc.Bypass
	ctx.Complete = oc.Complete
}

var _ region.Hooks = (*RegionHooksAdapter)(nil)
