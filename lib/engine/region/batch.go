package region

import (
	"sort"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/wal"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// BatchOp is one per-row mutation within a Batch call.
type BatchOp struct {
	Row   []byte
	Cells []keycodec.Cell
}

// BatchResult reports one BatchOp's outcome; Err is nil on success.
type BatchResult struct {
	Err error
}

// Batch applies every op atomically per row, batched into one WAL append
// since every op addresses this same Region (spec.md §4.8 "batch(mutations):
// per-row atomic; batched into one WAL append where all mutations share
// the same region; partial failures surface per-entry"). An op that fails
// validation (out-of-range row, unknown family) is excluded from the
// shared append and reported in its own BatchResult without aborting
// siblings.
func (r *Region) Batch(ops []BatchOp, durability wal.Durability) []BatchResult {
	const op = "Region.batch"
	results := make([]BatchResult, len(ops))

	if err := r.requireOpen(op); err != nil {
		for i := range results {
			results[i].Err = err
		}
		return results
	}

	for i, o := range ops {
		if !r.contains(o.Row) {
			results[i].Err = engineerrors.New(engineerrors.KindInvalidRange, op, nil)
			continue
		}
		for _, c := range o.Cells {
			if _, err := r.storeFor(c.Family); err != nil {
				results[i].Err = err
				break
			}
		}
	}

	// Lock every distinct row touched by a still-valid op, in sorted
	// order, so concurrent Batch calls can never deadlock on lock order.
	rowSet := make(map[string]bool)
	for i, o := range ops {
		if results[i].Err == nil {
			rowSet[string(o.Row)] = true
		}
	}
	rows := make([]string, 0, len(rowSet))
	for row := range rowSet {
		rows = append(rows, row)
	}
	sort.Strings(rows)

	unlocks := make([]func(), 0, len(rows))
	defer func() {
		for _, u := range unlocks {
			u()
		}
	}()
	for _, row := range rows {
		unlocks = append(unlocks, r.latches.Lock([]byte(row)))
	}

	var allCells []keycodec.Cell
	for i, o := range ops {
		if results[i].Err == nil {
			allCells = append(allCells, o.Cells...)
		}
	}
	if len(allCells) == 0 {
		return results
	}

	num := r.mvcc.Begin()
	defer r.mvcc.Complete(num)
	tagged := r.tagMVCC(allCells, num)

	seq, err := r.wal.Append(r.id, tagged, durability)
	if err != nil {
		for i := range results {
			if results[i].Err == nil {
				results[i].Err = err
			}
		}
		return results
	}

	idx := 0
	for i, o := range ops {
		if results[i].Err != nil {
			continue
		}
		n := len(o.Cells)
		opCells := tagged[idx : idx+n]
		idx += n

		byFamily := groupByFamily(opCells)
		for family, group := range byFamily {
			s, _ := r.storeFor([]byte(family)) // already validated above
			if err := s.Put(group, seq, durability == wal.SkipWAL); err != nil {
				results[i].Err = err
			}
		}
	}
	return results
}
