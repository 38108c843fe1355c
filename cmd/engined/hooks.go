package engined

import (
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/observer"
	"github.com/dkvlabs/regiondb/lib/engine/region"
	"github.com/dkvlabs/regiondb/lib/engine/replication"
	"github.com/dkvlabs/regiondb/lib/engine/wal"
)

// engineHooks composes the coprocessor chain's region.Hooks adapter with
// the replication tap: Region invokes one Hooks implementation, so
// node-wide wiring of both concerns happens here rather than asking
// Region to know about more than its single Hooks interface.
type engineHooks struct {
	coprocessors *observer.RegionHooksAdapter
	tap          *replication.Tap
}

func (h *engineHooks) PreMutate(ctx *region.HookContext) {
	h.coprocessors.PreMutate(ctx)
}

// PostMutate runs the coprocessor chain, then — if a replication tap is
// configured and no coprocessor vetoed the mutation — offers the
// committed edit to it. A shipping failure is logged by the tap itself
// (it retires the bad sink) rather than propagated here: replication is
// best-effort relative to the write path, not a dependency of it.
func (h *engineHooks) PostMutate(ctx *region.HookContext) {
	h.coprocessors.PostMutate(ctx)
	if h.tap == nil || ctx.Bypass {
		return
	}
	edit := wal.Edit{
		Sequence: ctx.Sequence,
		RegionID: ctx.RegionID,
		Cells:    append([]keycodec.Cell(nil), ctx.Cells...),
	}
	if err := h.tap.Append(edit); err != nil {
		replicationLog.Warningf("replication append for region %s failed: %v", ctx.RegionID, err)
	}
}
