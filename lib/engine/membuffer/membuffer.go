// Package membuffer implements the per-family in-memory sorted cell
// collection MemBuffer (spec.md §4.6: C6).
//
// Grounded on spec.md §3/§4.6's own description of the structure (no
// teacher or example-repo file owns this shape directly — lib/db's maple
// engine is an unordered hash-sharded KV store, not an ordered structure).
// google/btree's copy-on-write Clone() is used for snapshotForFlush: since
// Clone() is O(1) and lazily copies nodes only as the original or the
// clone is subsequently mutated, swapping in a fresh empty tree after
// cloning gives flush its immutable view without ever blocking a writer —
// exactly the guarantee spec.md §4.6 asks for.
package membuffer

import (
	"sync"

	"github.com/google/btree"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
)

// cellOverheadBytes approximates the per-cell bookkeeping overhead (tree
// node pointers, Go allocator header) on top of a cell's encoded byte
// length, mirroring HBase's KeyValue.heapSize() estimate.
const cellOverheadBytes = 56

const btreeDegree = 32

type cellItem struct {
	cell    keycodec.Cell
	encLen  int
	skipWAL bool
}

func (a cellItem) Less(than btree.Item) bool {
	b := than.(cellItem)
	return keycodec.Compare(a.cell, b.cell) < 0
}

func (c cellItem) chargedSize() int64 {
	return int64(c.encLen) + cellOverheadBytes
}

// MemBuffer is an ordered, size-accounted collection of Cells for one
// column family (spec.md §3 "MemBuffer"). A single writer inserts while
// concurrent readers Get/Scan; snapshotForFlush is the only operation that
// swaps the underlying tree.
type MemBuffer struct {
	mu   sync.Mutex
	tree *btree.BTree

	sizeBytes      int64
	noWALSizeBytes int64 // spec.md §4.6 mutationsWithoutWALSize
	cellCount      int
}

// New creates an empty MemBuffer.
func New() *MemBuffer {
	return &MemBuffer{tree: btree.New(btreeDegree)}
}

// Insert adds or replaces c. skipWAL marks a cell that was written with
// SKIP_WAL durability, tracked separately in noWALSizeBytes so operators
// can quantify non-durable data resident in memory (spec.md §4.6).
func (m *MemBuffer) Insert(c keycodec.Cell, skipWAL bool) error {
	enc, err := keycodec.Encode(c)
	if err != nil {
		return err
	}
	item := cellItem{cell: c, encLen: len(enc), skipWAL: skipWAL}

	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.tree.ReplaceOrInsert(item)
	if old != nil {
		oldItem := old.(cellItem)
		m.sizeBytes -= oldItem.chargedSize()
		if oldItem.skipWAL {
			m.noWALSizeBytes -= oldItem.chargedSize()
		}
		m.cellCount--
	}
	m.sizeBytes += item.chargedSize()
	if skipWAL {
		m.noWALSizeBytes += item.chargedSize()
	}
	m.cellCount++
	return nil
}

// SizeBytes returns the total heap bytes currently accounted for.
func (m *MemBuffer) SizeBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sizeBytes
}

// MutationsWithoutWALSize returns the bytes resident in memory that were
// never made durable via the WAL (spec.md §4.6).
func (m *MemBuffer) MutationsWithoutWALSize() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.noWALSizeBytes
}

// CellCount returns the number of cells currently buffered.
func (m *MemBuffer) CellCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cellCount
}

// Get returns the visible cell for (row, family, qualifier) at readVersion
// (the highest timestamp <= readVersion), or found=false.
func (m *MemBuffer) Get(row, family, qualifier []byte, readVersion uint64) (keycodec.Cell, bool) {
	// Type 0 sorts before every stored type at an equal timestamp, so a
	// cell written exactly at readVersion is not skipped.
	seek := cellItem{cell: keycodec.Cell{Row: row, Family: family, Qualifier: qualifier, Timestamp: readVersion}}

	m.mu.Lock()
	defer m.mu.Unlock()

	var found keycodec.Cell
	ok := false
	m.tree.AscendGreaterOrEqual(seek, func(it btree.Item) bool {
		c := it.(cellItem).cell
		if !eqBytes(c.Row, row) || !eqBytes(c.Family, family) || !eqBytes(c.Qualifier, qualifier) {
			return false
		}
		if c.Timestamp <= readVersion {
			found, ok = c, true
			return false
		}
		return true
	})
	return found, ok
}

// Snapshot is an immutable, point-in-time view of a MemBuffer's contents
// produced by SnapshotForFlush, safe to iterate concurrently with further
// writes to the live MemBuffer (google/btree's copy-on-write Clone).
type Snapshot struct {
	tree *btree.BTree
}

// All returns every cell in the snapshot in §3 order.
func (s *Snapshot) All() []keycodec.Cell {
	if s.tree == nil {
		return nil
	}
	cells := make([]keycodec.Cell, 0, s.tree.Len())
	s.tree.Ascend(func(it btree.Item) bool {
		cells = append(cells, it.(cellItem).cell)
		return true
	})
	return cells
}

// Len returns the number of cells in the snapshot.
func (s *Snapshot) Len() int {
	if s.tree == nil {
		return 0
	}
	return s.tree.Len()
}

// SnapshotForFlush atomically returns an immutable view of the current
// contents and installs a fresh empty MemBuffer generation, so concurrent
// writers never block on flush (spec.md §4.6).
func (m *MemBuffer) SnapshotForFlush() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{tree: m.tree.Clone()}
	m.tree = btree.New(btreeDegree)
	m.sizeBytes = 0
	m.noWALSizeBytes = 0
	m.cellCount = 0
	return snap
}

// Scan returns every cell in [startKey, endKey) (both nil meaning
// unbounded) visible at readVersion, in §3 order. MemBuffer scans
// materialize eagerly since the underlying tree may be mutated by
// concurrent inserts during a lazy walk; callers merge this with
// SortedFile iterators (lazy) in the Region/Store read path.
func (m *MemBuffer) Scan(startKey, endKey *keycodec.Cell, readVersion uint64) []keycodec.Cell {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []keycodec.Cell
	visit := func(it btree.Item) bool {
		c := it.(cellItem).cell
		if endKey != nil && keycodec.Compare(c, *endKey) >= 0 {
			return false
		}
		if c.Timestamp <= readVersion {
			out = append(out, c)
		}
		return true
	}
	if startKey != nil {
		m.tree.AscendGreaterOrEqual(cellItem{cell: *startKey}, visit)
	} else {
		m.tree.Ascend(visit)
	}
	return out
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
