package region

import (
	"sort"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
)

// ScanOptions configures a Scan call (spec.md §4.8 "scan(startRow, endRow,
// families, filter, caching, batch, reversed, small)").
type ScanOptions struct {
	StartRow []byte
	EndRow   []byte
	Families [][]byte // nil means every family this Region owns
	// ReadPoint is the MVCC snapshot boundary this scan is consistent as
	// of; 0 means no snapshot filtering (read the latest of everything).
	ReadPoint uint64
	// Batch, if > 0, yields at most this many cells per Next call,
	// possibly splitting one row across calls; 0 yields whole rows
	// (spec.md §4.8 "next(n) returns whole rows unless batch is set").
	Batch int
	// Reversed walks rows from EndRow toward StartRow.
	Reversed bool
	// Small hints an in-memory-only access pattern, biasing against
	// block-cache pollution and disabling look-ahead prefetch (spec.md
	// §4.8 "setSmall(true)"); honored by the BlockCache/SortedFile layers
	// a future caching-aware Scan wires in, not by this merge itself.
	Small bool
}

// Scanner yields rows (or cell batches, if Batch was set) in row order.
type Scanner struct {
	rows  [][]keycodec.Cell
	batch int

	rowIdx  int
	cellIdx int // batch-mode cursor within rows[rowIdx]
}

// Scan builds a merging iterator across every requested family's Store,
// consulting each Store's already tombstone-masked view and applying this
// scan's MVCC readPoint (spec.md §4.8 "Region.get/scan builds a merging
// iterator across each Store's MemBuffer and SortedFile set... version
// policy, tombstones, and filters are applied in the merge").
func (r *Region) Scan(opts ScanOptions) (*Scanner, error) {
	const op = "Region.scan"
	if err := r.requireOpen(op); err != nil {
		return nil, err
	}

	families := opts.Families
	if families == nil {
		for name := range r.stores {
			families = append(families, []byte(name))
		}
	}

	var all []keycodec.Cell
	for _, fam := range families {
		s, err := r.storeFor(fam)
		if err != nil {
			return nil, err
		}
		cells, err := s.Scan(opts.StartRow, opts.EndRow, ^uint64(0))
		if err != nil {
			return nil, err
		}
		all = append(all, cells...)
	}
	sort.Slice(all, func(i, j int) bool { return keycodec.Compare(all[i], all[j]) < 0 })

	rows := groupRows(all, opts.ReadPoint)
	if opts.Reversed {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	return &Scanner{rows: rows, batch: opts.Batch}, nil
}

// groupRows partitions already-sorted cells into per-row slices, dropping
// any cell not visible at readPoint. Because each Store has already
// collapsed tombstone-masked versions down to one survivor per qualifier,
// an MVCC-invisible survivor is simply dropped rather than replaced with
// an older visible version — a documented simplification (DESIGN.md) of
// spec.md's full multi-version MVCC-aware merge.
func groupRows(cells []keycodec.Cell, readPoint uint64) [][]keycodec.Cell {
	var rows [][]keycodec.Cell
	i := 0
	for i < len(cells) {
		j := i
		for j < len(cells) && eqBytes(cells[j].Row, cells[i].Row) {
			j++
		}
		var row []keycodec.Cell
		for _, c := range cells[i:j] {
			if mvccVisible(c, readPoint) {
				row = append(row, c)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
		i = j
	}
	return rows
}

func mvccVisible(c keycodec.Cell, readPoint uint64) bool {
	if readPoint == 0 {
		return true
	}
	v, ok := c.MVCC()
	if !ok {
		return true
	}
	return v <= readPoint
}

func eqBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Next returns up to n results — whole rows in default mode, or up to n
// cells (possibly split across a row boundary) in batch mode — and
// reports whether a further call would yield anything more.
func (sc *Scanner) Next(n int) (rows [][]keycodec.Cell, hasMore bool, err error) {
	if sc.batch <= 0 {
		if sc.rowIdx >= len(sc.rows) {
			return nil, false, nil
		}
		end := sc.rowIdx + n
		if end > len(sc.rows) {
			end = len(sc.rows)
		}
		out := sc.rows[sc.rowIdx:end]
		sc.rowIdx = end
		return out, sc.rowIdx < len(sc.rows), nil
	}

	var out [][]keycodec.Cell
	taken := 0
	for sc.rowIdx < len(sc.rows) && taken < n {
		row := sc.rows[sc.rowIdx]
		remaining := row[sc.cellIdx:]
		take := n - taken
		if take > len(remaining) {
			take = len(remaining)
		}
		out = append(out, remaining[:take])
		sc.cellIdx += take
		taken += take
		if sc.cellIdx >= len(row) {
			sc.rowIdx++
			sc.cellIdx = 0
		}
	}
	return out, sc.rowIdx < len(sc.rows), nil
}

// Close releases scanner resources. Region scanners hold no open file
// handles of their own (Store.Scan materializes eagerly), so this is a
// no-op placeholder for future look-ahead-prefetch cancellation (spec.md
// §8 "Region.scan's next(n), rather than leaving cancellation unspecified").
func (sc *Scanner) Close() {}
