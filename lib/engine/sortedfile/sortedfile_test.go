package sortedfile

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/dkvlabs/regiondb/lib/engine/blockcodec"
	"github.com/dkvlabs/regiondb/lib/engine/blockcodec/compress"
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engineconfig"
)

// fakeCache is a minimal in-memory BlockCache used only by tests; the real
// implementation lives in lib/engine/blockcache.
type fakeCache struct {
	blocks map[string][]byte
	counts map[Category]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{blocks: map[string][]byte{}, counts: map[Category]int{}}
}

func cacheKey(fileID string, offset uint64) string { return fmt.Sprintf("%s:%d", fileID, offset) }

func (c *fakeCache) Get(fileID string, offset uint64) ([]byte, bool) {
	b, ok := c.blocks[cacheKey(fileID, offset)]
	return b, ok
}

func (c *fakeCache) Put(fileID string, offset uint64, category Category, data []byte) {
	c.blocks[cacheKey(fileID, offset)] = data
	c.counts[category]++
}

func (c *fakeCache) InvalidateFile(fileID string) {
	prefix := fileID + ":"
	for k := range c.blocks {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.blocks, k)
		}
	}
}

func buildCell(row, qual string, ts uint64, val string) keycodec.Cell {
	return keycodec.Cell{
		Row:       []byte(row),
		Family:    []byte("cf"),
		Qualifier: []byte(qual),
		Timestamp: ts,
		Type:      keycodec.TypePut,
		Value:     []byte(val),
	}
}

// readerAtBytes adapts a byte slice to io.ReaderAt.
type readerAtBytes []byte

func (b readerAtBytes) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, fmt.Errorf("EOF")
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, fmt.Errorf("short read")
	}
	return n, nil
}

func writeSampleFile(t *testing.T, opts WriterOptions, cells []keycodec.Cell) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	for _, c := range cells {
		if err := w.Append(c); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := w.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	return buf.Bytes()
}

func sortedSampleCells(n int) []keycodec.Cell {
	var cells []keycodec.Cell
	for i := 0; i < n; i++ {
		row := fmt.Sprintf("row-%04d", i)
		cells = append(cells, buildCell(row, "q1", 100, fmt.Sprintf("val-%d", i)))
		cells = append(cells, buildCell(row, "q1", 50, "old"))
	}
	return cells
}

func TestWriterReaderGetAndScan(t *testing.T) {
	opts := WriterOptions{
		Encoding:          blockcodec.EncodingFastDiff,
		Compression:       compress.Snappy,
		ChecksumType:      blockcodec.ChecksumCRC32,
		TargetBlockSize:   256, // force many small blocks so index has multiple entries
		IndexMaxChunkSize: 128,
		Bloom:             engineconfig.BloomRow,
		ExpectedEntries:   64,
	}
	cells := sortedSampleCells(40)
	data := writeSampleFile(t, opts, cells)

	cache := newFakeCache()
	h, err := Open(readerAtBytes(data), int64(len(data)), "file-1", OpenOptions{Cache: cache, CacheDataBlocks: false})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	if h.CellCount() != uint64(len(cells)) {
		t.Fatalf("cell count mismatch: got %d want %d", h.CellCount(), len(cells))
	}

	// Important-block caching: INDEX must be populated even though we
	// never request data-block caching.
	if cache.counts[CategoryIndex] == 0 {
		t.Fatal("expected at least one INDEX cache entry after open")
	}
	if cache.counts[CategoryBloom] == 0 {
		t.Fatal("expected a BLOOM cache entry after open")
	}
	if cache.counts[CategoryData] != 0 {
		t.Fatalf("expected no DATA cache entries with CacheDataBlocks=false, got %d", cache.counts[CategoryData])
	}

	for i := 0; i < 40; i += 7 {
		row := fmt.Sprintf("row-%04d", i)
		c, ok, err := h.Get([]byte(row), []byte("cf"), []byte("q1"), 200)
		if err != nil {
			t.Fatalf("get row %s: %v", row, err)
		}
		if !ok {
			t.Fatalf("expected to find row %s", row)
		}
		if string(c.Value) != fmt.Sprintf("val-%d", i) {
			t.Fatalf("row %s: got value %q want val-%d", row, c.Value, i)
		}
	}

	// readVersion below the newest write should surface the older version.
	c, ok, err := h.Get([]byte("row-0003"), []byte("cf"), []byte("q1"), 60)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(c.Value) != "old" {
		t.Fatalf("expected old version at readVersion=60, got %+v ok=%v", c, ok)
	}

	if _, ok, err := h.Get([]byte("row-9999"), []byte("cf"), []byte("q1"), 200); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("expected no match for nonexistent row")
	}

	it, err := h.Scan(nil, nil, 200)
	if err != nil {
		t.Fatal(err)
	}
	var scanned int
	var last keycodec.Cell
	haveLast := false
	for {
		c, ok, err := it.Next()
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if !ok {
			break
		}
		if haveLast && keycodec.Compare(last, c) > 0 {
			t.Fatalf("scan returned out-of-order cells: %+v then %+v", last, c)
		}
		last = c
		haveLast = true
		scanned++
	}
	// SortedFile.scan applies only the readVersion cutoff, not the
	// multi-version merge policy (that's Region/Store's job) — both
	// versions of every row are <= readVersion=200.
	if scanned != 80 {
		t.Fatalf("scan at readVersion=200 returned %d cells, want 80 (both versions per row)", scanned)
	}
}

func TestBloomRejectsAbsentRow(t *testing.T) {
	opts := WriterOptions{
		Encoding:        blockcodec.EncodingNone,
		Compression:     compress.None,
		ChecksumType:    blockcodec.ChecksumCRC32,
		Bloom:           engineconfig.BloomRow,
		ExpectedEntries: 64,
	}
	cells := []keycodec.Cell{buildCell("alpha", "q", 1, "v")}
	data := writeSampleFile(t, opts, cells)
	h, err := Open(readerAtBytes(data), int64(len(data)), "file-2", OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := h.Get([]byte("zzz-definitely-absent"), []byte("cf"), []byte("q"), 10); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("expected bloom filter to reject an absent row")
	}
}

func TestAppendOutOfOrderRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WriterOptions{})
	if err := w.Append(buildCell("b", "q", 1, "v")); err != nil {
		t.Fatal(err)
	}
	if err := w.Append(buildCell("a", "q", 1, "v")); err == nil {
		t.Fatal("expected out-of-order append to fail")
	}
}

func TestFinishEmptyFileFails(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WriterOptions{})
	if _, err := w.Finish(); err == nil {
		t.Fatal("expected Finish on an empty writer to fail")
	}
}
