package region

import (
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/wal"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// Put writes cells to row's Stores atomically (spec.md §4.8 "put(row,
// cells, durability): single-row, atomic across all cells in the call;
// acquires a row latch, writes to WAL if durability != SKIP_WAL, inserts
// into respective Stores' MemBuffers, releases latch, returns").
func (r *Region) Put(row []byte, cells []keycodec.Cell, durability wal.Durability) error {
	unlock := r.latches.Lock(row)
	defer unlock()
	return r.mutateLocked(row, cells, durability)
}

// Delete writes tombstone cells atomically via the same path as Put; the
// caller supplies cells already typed DeleteCell/DeleteColumn/
// DeleteFamily/DeleteFamilyVersion.
func (r *Region) Delete(row []byte, cells []keycodec.Cell, durability wal.Durability) error {
	unlock := r.latches.Lock(row)
	defer unlock()
	return r.mutateLocked(row, cells, durability)
}

// mutateLocked applies cells under a row latch already held by the
// caller. It validates the region is OPEN and row is in range, tags cells
// with an MVCC number for families configured to include it, appends to
// the WAL, then routes each family's share to its Store.
func (r *Region) mutateLocked(row []byte, cells []keycodec.Cell, durability wal.Durability) error {
	const op = "Region.mutate"
	if err := r.requireOpen(op); err != nil {
		return err
	}
	if !r.contains(row) {
		return engineerrors.New(engineerrors.KindInvalidRange, op, nil)
	}
	for _, c := range cells {
		if _, err := r.storeFor(c.Family); err != nil {
			return err
		}
	}

	ctx := &HookContext{Row: row, Cells: cells}
	r.hooks.PreMutate(ctx)
	if ctx.Bypass {
		return nil
	}

	num := r.mvcc.Begin()
	defer r.mvcc.Complete(num)

	tagged := r.tagMVCC(cells, num)

	seq, err := r.wal.Append(r.id, tagged, durability)
	if err != nil {
		return err
	}

	byFamily := groupByFamily(tagged)
	for family, group := range byFamily {
		s, _ := r.storeFor([]byte(family)) // already validated above
		if err := s.Put(group, seq, durability == wal.SkipWAL); err != nil {
			return err
		}
	}

	ctx.RegionID = r.id
	ctx.Sequence = seq
	r.hooks.PostMutate(ctx)
	return nil
}

// tagMVCC attaches an MVCC tag carrying num to every cell whose family is
// configured to include it, leaving the rest untouched.
func (r *Region) tagMVCC(cells []keycodec.Cell, num uint64) []keycodec.Cell {
	out := make([]keycodec.Cell, len(cells))
	for i, c := range cells {
		if s, ok := r.stores[string(c.Family)]; ok && s.FamilyConfig().IncludesMVCC {
			c = c.WithMVCC(num)
		}
		out[i] = c
	}
	return out
}

// Flush queues every owned Store for a flush with the Scheduler (spec.md
// §4.8 "flush(): queue work with Scheduler"). Region never flushes
// synchronously itself.
func (r *Region) Flush(sched FlushCompactQueue) {
	for _, s := range r.stores {
		sched.EnqueueFlush(r.id, s)
	}
}

// Compact queues every owned Store for a compaction (spec.md §4.8
// "compact(major bool): queue work with Scheduler").
func (r *Region) Compact(sched FlushCompactQueue, major bool) {
	for _, s := range r.stores {
		sched.EnqueueCompaction(r.id, s, major)
	}
}
