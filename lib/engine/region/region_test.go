package region

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/dkvlabs/regiondb/lib/engine/famstore"
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/wal"
	"github.com/dkvlabs/regiondb/lib/engineconfig"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// fakeFS is an in-memory famstore.FileSystem for tests.
type fakeFS struct {
	mu    sync.Mutex
	n     int
	files map[string]map[string]*bytesFile
}

type bytesFile struct{ buf bytes.Buffer }

func (b *bytesFile) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bytesFile) Close() error                { return nil }

func newFakeFS() *fakeFS { return &fakeFS{files: map[string]map[string]*bytesFile{}} }

func (f *fakeFS) CreateFile(family string) (io.WriteCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	id := fmt.Sprintf("file-%d", f.n)
	bf := &bytesFile{}
	if f.files[family] == nil {
		f.files[family] = map[string]*bytesFile{}
	}
	f.files[family][id] = bf
	return bf, id, nil
}

func (f *fakeFS) PublishFile(family, fileID string) error { return nil }

func (f *fakeFS) OpenFile(family, fileID string) (io.ReaderAt, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bf := f.files[family][fileID]
	data := append([]byte(nil), bf.buf.Bytes()...)
	return bytes.NewReader(data), int64(len(data)), nil
}

func (f *fakeFS) ArchiveFile(family, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files[family], fileID)
	return nil
}

// fakeWAL assigns increasing sequence numbers without touching disk.
type fakeWAL struct {
	mu  sync.Mutex
	seq uint64
}

func (w *fakeWAL) Append(regionID string, cells []keycodec.Cell, durability wal.Durability) (uint64, error) {
	if durability == wal.SkipWAL {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	return w.seq, nil
}

func newTestRegion(t *testing.T, includesMVCC bool) *Region {
	t.Helper()
	fc := engineconfig.FamilyConfig{MaxVersions: 10, IncludesMVCC: includesMVCC}
	stores := map[string]*famstore.Store{
		"cf": famstore.New(famstore.Options{Family: "cf", FamilyConfig: fc, FS: newFakeFS()}),
	}
	r := New(Options{
		Info:   NewInfo("ns", "t", nil, nil, 1),
		Stores: stores,
		WAL:    &fakeWAL{},
	})
	r.MarkOpen()
	return r
}

func cell(row, family, qualifier, value string) keycodec.Cell {
	return keycodec.Cell{
		Row: []byte(row), Family: []byte(family), Qualifier: []byte(qualifier),
		Timestamp: 1, Type: keycodec.TypePut, Value: []byte(value),
	}
}

func TestPutThenGetRoundTrips(t *testing.T) {
	r := newTestRegion(t, false)
	if err := r.Put([]byte("row1"), []keycodec.Cell{cell("row1", "cf", "q", "v1")}, wal.SyncWAL); err != nil {
		t.Fatal(err)
	}
	c, ok, err := r.Get([]byte("row1"), GetOptions{Family: []byte("cf"), Qualifier: []byte("q")})
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(c.Value) != "v1" {
		t.Fatalf("expected v1, got %+v ok=%v", c, ok)
	}
}

func TestPutToUnknownFamilyFails(t *testing.T) {
	r := newTestRegion(t, false)
	err := r.Put([]byte("row1"), []keycodec.Cell{cell("row1", "missing", "q", "v1")}, wal.SyncWAL)
	if !engineerrors.Is(err, engineerrors.KindNoSuchFamily) {
		t.Fatalf("expected NoSuchFamily, got %v", err)
	}
}

func TestPutToClosedRegionFails(t *testing.T) {
	r := newTestRegion(t, false)
	r.BeginClose()
	err := r.Put([]byte("row1"), []keycodec.Cell{cell("row1", "cf", "q", "v1")}, wal.SyncWAL)
	if !engineerrors.Is(err, engineerrors.KindRegionNotOnline) {
		t.Fatalf("expected RegionNotOnline, got %v", err)
	}
}

func TestCheckAndMutateAppliesOnlyWhenComparatorPasses(t *testing.T) {
	r := newTestRegion(t, false)
	if err := r.Put([]byte("row1"), []keycodec.Cell{cell("row1", "cf", "q", "v1")}, wal.SyncWAL); err != nil {
		t.Fatal(err)
	}

	ok, err := r.CheckAndMutate([]byte("row1"), []byte("cf"), []byte("q"), CompareEqual, []byte("wrong"),
		[]keycodec.Cell{cell("row1", "cf", "q", "v2")}, wal.SyncWAL)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected mismatch to fail")
	}

	ok, err = r.CheckAndMutate([]byte("row1"), []byte("cf"), []byte("q"), CompareEqual, []byte("v1"),
		[]keycodec.Cell{cell("row1", "cf", "q", "v2")}, wal.SyncWAL)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected match to pass")
	}

	c, found, err := r.Get([]byte("row1"), GetOptions{Family: []byte("cf"), Qualifier: []byte("q")})
	if err != nil || !found || string(c.Value) != "v2" {
		t.Fatalf("expected v2 after passing CAS, got %+v found=%v err=%v", c, found, err)
	}

	stats := r.Stats()
	if stats.Passed != 1 || stats.Failed != 1 {
		t.Fatalf("expected 1 passed/1 failed, got %+v", stats)
	}
}

func TestIncrementAccumulates(t *testing.T) {
	r := newTestRegion(t, false)
	if _, err := r.Increment([]byte("row1"), []byte("cf"), map[string]int64{"n": 5}, wal.SyncWAL); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Increment([]byte("row1"), []byte("cf"), map[string]int64{"n": 3}, wal.SyncWAL); err != nil {
		t.Fatal(err)
	}
	c, ok, err := r.Get([]byte("row1"), GetOptions{Family: []byte("cf"), Qualifier: []byte("n")})
	if err != nil || !ok {
		t.Fatalf("expected counter visible, err=%v ok=%v", err, ok)
	}
	v, err := decodeInt64(c.Value)
	if err != nil {
		t.Fatal(err)
	}
	if v != 8 {
		t.Fatalf("expected 8, got %d", v)
	}
}

func TestAppendConcatenates(t *testing.T) {
	r := newTestRegion(t, false)
	if _, err := r.Append([]byte("row1"), []byte("cf"), map[string][]byte{"s": []byte("ab")}, wal.SyncWAL); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Append([]byte("row1"), []byte("cf"), map[string][]byte{"s": []byte("cd")}, wal.SyncWAL); err != nil {
		t.Fatal(err)
	}
	c, ok, err := r.Get([]byte("row1"), GetOptions{Family: []byte("cf"), Qualifier: []byte("s")})
	if err != nil || !ok || string(c.Value) != "abcd" {
		t.Fatalf("expected abcd, got %+v ok=%v err=%v", c, ok, err)
	}
}

func TestBatchAppliesPerRowAndSurfacesPartialFailure(t *testing.T) {
	r := newTestRegion(t, false)
	results := r.Batch([]BatchOp{
		{Row: []byte("row1"), Cells: []keycodec.Cell{cell("row1", "cf", "q", "v1")}},
		{Row: []byte("row2"), Cells: []keycodec.Cell{cell("row2", "missing", "q", "v1")}},
		{Row: []byte("row3"), Cells: []keycodec.Cell{cell("row3", "cf", "q", "v3")}},
	}, wal.SyncWAL)

	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("expected row1/row3 to succeed, got %+v", results)
	}
	if !engineerrors.Is(results[1].Err, engineerrors.KindNoSuchFamily) {
		t.Fatalf("expected row2 to fail with NoSuchFamily, got %v", results[1].Err)
	}

	if _, ok, _ := r.Get([]byte("row1"), GetOptions{Family: []byte("cf"), Qualifier: []byte("q")}); !ok {
		t.Fatal("expected row1's mutation to have landed")
	}
	if _, ok, _ := r.Get([]byte("row3"), GetOptions{Family: []byte("cf"), Qualifier: []byte("q")}); !ok {
		t.Fatal("expected row3's mutation to have landed")
	}
}

func TestScanReturnsRowsInOrder(t *testing.T) {
	r := newTestRegion(t, false)
	for _, row := range []string{"b", "a", "c"} {
		if err := r.Put([]byte(row), []keycodec.Cell{cell(row, "cf", "q", "v")}, wal.SyncWAL); err != nil {
			t.Fatal(err)
		}
	}

	sc, err := r.Scan(ScanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	rows, hasMore, err := sc.Next(10)
	if err != nil {
		t.Fatal(err)
	}
	if hasMore {
		t.Fatal("expected no more rows")
	}
	if len(rows) != 3 || string(rows[0][0].Row) != "a" || string(rows[1][0].Row) != "b" || string(rows[2][0].Row) != "c" {
		t.Fatalf("expected rows a,b,c in order, got %+v", rows)
	}
}

func TestScanMVCCHidesInFlightWrite(t *testing.T) {
	r := newTestRegion(t, true)
	if err := r.Put([]byte("row1"), []keycodec.Cell{cell("row1", "cf", "q", "v1")}, wal.SyncWAL); err != nil {
		t.Fatal(err)
	}
	readPoint := r.mvcc.ReadPoint()

	r.mvcc.Begin() // an in-flight write that never completes in this test

	sc, err := r.Scan(ScanOptions{ReadPoint: readPoint})
	if err != nil {
		t.Fatal(err)
	}
	rows, _, err := sc.Next(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected the already-committed row still visible, got %+v", rows)
	}
}

func TestSplitProducesTwoDaughtersAndMarksParentSplit(t *testing.T) {
	r := newTestRegion(t, false)
	if err := r.Put([]byte("a"), []keycodec.Cell{cell("a", "cf", "q", "v")}, wal.SyncWAL); err != nil {
		t.Fatal(err)
	}
	if err := r.Put([]byte("z"), []keycodec.Cell{cell("z", "cf", "q", "v")}, wal.SyncWAL); err != nil {
		t.Fatal(err)
	}

	txn := SplitTransaction{FS: &fakeSplitFS{}, Catalog: &fakeCatalog{}}
	lower, upper, err := txn.Split(r, []byte("m"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(lower.EndKey, []byte("m")) || !bytes.Equal(upper.StartKey, []byte("m")) {
		t.Fatalf("expected daughters split at m, got %+v / %+v", lower, upper)
	}
	if r.State() != StateSplit {
		t.Fatalf("expected parent state SPLIT, got %v", r.State())
	}
}

type fakeSplitFS struct{}

func (*fakeSplitFS) CreateRegionDir(Info) error                          { return nil }
func (*fakeSplitFS) CreateReferenceFiles(Info, Info, []byte, bool) error { return nil }
func (*fakeSplitFS) WriteRegionInfo(Info) error                           { return nil }

type fakeCatalog struct{}

func (*fakeCatalog) MarkSplit(Info, []Info) error  { return nil }
func (*fakeCatalog) MarkMerged([]Info, Info) error { return nil }
