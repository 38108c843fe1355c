package membuffer

import (
	"testing"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
)

func mkCell(row string, ts uint64, skipWAL bool) keycodec.Cell {
	return keycodec.Cell{
		Row: []byte(row), Family: []byte("cf"), Qualifier: []byte("q"),
		Timestamp: ts, Type: keycodec.TypePut, Value: []byte("v"),
	}
}

func TestInsertAndGetLatestVisibleVersion(t *testing.T) {
	m := New()
	if err := m.Insert(mkCell("a", 1, false), false); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(mkCell("a", 2, false), false); err != nil {
		t.Fatal(err)
	}

	c, ok := m.Get([]byte("a"), []byte("cf"), []byte("q"), 10)
	if !ok || c.Timestamp != 2 {
		t.Fatalf("expected latest version (ts=2), got %+v ok=%v", c, ok)
	}

	c, ok = m.Get([]byte("a"), []byte("cf"), []byte("q"), 1)
	if !ok || c.Timestamp != 1 {
		t.Fatalf("expected version visible at readVersion=1 (ts=1), got %+v ok=%v", c, ok)
	}
}

func TestGetMissingReturnsFalse(t *testing.T) {
	m := New()
	if _, ok := m.Get([]byte("z"), []byte("cf"), []byte("q"), 10); ok {
		t.Fatalf("expected no match in empty buffer")
	}
}

func TestSizeAccountingTracksReplace(t *testing.T) {
	m := New()
	if err := m.Insert(mkCell("a", 1, false), false); err != nil {
		t.Fatal(err)
	}
	firstSize := m.SizeBytes()
	if firstSize <= 0 {
		t.Fatalf("expected positive size after insert, got %d", firstSize)
	}
	if m.CellCount() != 1 {
		t.Fatalf("expected 1 cell, got %d", m.CellCount())
	}

	// Re-inserting the identical (row,family,qualifier,timestamp,type) key
	// replaces rather than appends, per the ordered-set semantics.
	if err := m.Insert(mkCell("a", 1, false), false); err != nil {
		t.Fatal(err)
	}
	if m.CellCount() != 1 {
		t.Fatalf("expected replace not append, got %d cells", m.CellCount())
	}
	if m.SizeBytes() != firstSize {
		t.Fatalf("expected size unchanged after replacing identical cell, got %d want %d", m.SizeBytes(), firstSize)
	}
}

func TestMutationsWithoutWALSizeTracksOnlySkipWALCells(t *testing.T) {
	m := New()
	if err := m.Insert(mkCell("a", 1, false), false); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(mkCell("b", 1, true), true); err != nil {
		t.Fatal(err)
	}

	if m.MutationsWithoutWALSize() <= 0 {
		t.Fatalf("expected nonzero mutationsWithoutWALSize after a SkipWAL insert")
	}
	if m.MutationsWithoutWALSize() >= m.SizeBytes() {
		t.Fatalf("expected mutationsWithoutWALSize (%d) to be a strict subset of total size (%d)", m.MutationsWithoutWALSize(), m.SizeBytes())
	}
}

func TestScanReturnsAscendingRangeFiltered(t *testing.T) {
	m := New()
	for _, row := range []string{"a", "b", "c", "d"} {
		if err := m.Insert(mkCell(row, 1, false), false); err != nil {
			t.Fatal(err)
		}
	}

	start := keycodec.Cell{Row: []byte("b")}
	end := keycodec.Cell{Row: []byte("d")}
	cells := m.Scan(&start, &end, 10)
	if len(cells) != 2 || string(cells[0].Row) != "b" || string(cells[1].Row) != "c" {
		t.Fatalf("unexpected scan result: %+v", cells)
	}
}

func TestSnapshotForFlushIsolatesFromFurtherWrites(t *testing.T) {
	m := New()
	if err := m.Insert(mkCell("a", 1, false), false); err != nil {
		t.Fatal(err)
	}

	snap := m.SnapshotForFlush()
	if snap.Len() != 1 {
		t.Fatalf("expected snapshot to carry the one inserted cell, got %d", snap.Len())
	}

	// The live buffer must be empty and independent post-snapshot.
	if m.CellCount() != 0 || m.SizeBytes() != 0 {
		t.Fatalf("expected empty successor generation, got count=%d size=%d", m.CellCount(), m.SizeBytes())
	}
	if err := m.Insert(mkCell("b", 1, false), false); err != nil {
		t.Fatal(err)
	}

	all := snap.All()
	if len(all) != 1 || string(all[0].Row) != "a" {
		t.Fatalf("expected snapshot unaffected by writes to the new generation, got %+v", all)
	}
}

func TestSnapshotOfEmptyBufferIsEmpty(t *testing.T) {
	m := New()
	snap := m.SnapshotForFlush()
	if snap.Len() != 0 || len(snap.All()) != 0 {
		t.Fatalf("expected empty snapshot, got len=%d all=%v", snap.Len(), snap.All())
	}
}
