package famstore

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engineconfig"
)

// fakeFS is an in-memory FileSystem for tests.
type fakeFS struct {
	mu    sync.Mutex
	n     int
	files map[string]map[string]*bytesFile
}

type bytesFile struct {
	buf bytes.Buffer
}

func (b *bytesFile) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bytesFile) Close() error                { return nil }

func newFakeFS() *fakeFS {
	return &fakeFS{files: map[string]map[string]*bytesFile{}}
}

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

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(Options{
		Family:       "cf",
		FamilyConfig: engineconfig.FamilyConfig{MaxVersions: 10},
		FS:           newFakeFS(),
	})
}

func put(row string, ts uint64, typ keycodec.Type, qualifier, value string) keycodec.Cell {
	return keycodec.Cell{
		Row: []byte(row), Family: []byte("cf"), Qualifier: []byte(qualifier),
		Timestamp: ts, Type: typ, Value: []byte(value),
	}
}

func TestPutThenGetReturnsLatestFromMemBuffer(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put([]keycodec.Cell{put("row1", 1, keycodec.TypePut, "q", "v1")}, 1, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]keycodec.Cell{put("row1", 2, keycodec.TypePut, "q", "v2")}, 2, false); err != nil {
		t.Fatal(err)
	}

	c, ok, err := s.Get([]byte("row1"), []byte("cf"), []byte("q"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(c.Value) != "v2" {
		t.Fatalf("expected latest value v2, got %+v ok=%v", c, ok)
	}
}

func TestFlushMovesDataToSortedFileAndGetStillWorks(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put([]keycodec.Cell{put("row1", 1, keycodec.TypePut, "q", "v1")}, 5, false); err != nil {
		t.Fatal(err)
	}

	f, err := s.Flush()
	if err != nil {
		t.Fatal(err)
	}
	if f == nil {
		t.Fatal("expected a flushed file")
	}
	if f.MaxSequence != 5 {
		t.Fatalf("expected maxSequence 5, got %d", f.MaxSequence)
	}
	if s.MemBufferSizeBytes() != 0 {
		t.Fatalf("expected empty MemBuffer after flush, got %d bytes", s.MemBufferSizeBytes())
	}
	if s.FileCount() != 1 {
		t.Fatalf("expected 1 file after flush, got %d", s.FileCount())
	}

	c, ok, err := s.Get([]byte("row1"), []byte("cf"), []byte("q"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(c.Value) != "v1" {
		t.Fatalf("expected to read the flushed cell, got %+v ok=%v", c, ok)
	}
}

func TestFlushOfEmptyMemBufferReturnsNil(t *testing.T) {
	s := newTestStore(t)
	f, err := s.Flush()
	if err != nil {
		t.Fatal(err)
	}
	if f != nil {
		t.Fatalf("expected no file from flushing an empty MemBuffer, got %+v", f)
	}
}

func TestDeleteCellMasksExactVersionOnly(t *testing.T) {
	s := newTestStore(t)
	cells := []keycodec.Cell{
		put("row1", 1, keycodec.TypePut, "q", "v1"),
		put("row1", 2, keycodec.TypePut, "q", "v2"),
		put("row1", 2, keycodec.TypeDeleteCell, "q", ""),
	}
	if err := s.Put(cells, 1, false); err != nil {
		t.Fatal(err)
	}

	c, ok, err := s.Get([]byte("row1"), []byte("cf"), []byte("q"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(c.Value) != "v1" {
		t.Fatalf("expected ts=2 masked by exact DeleteCell, falling back to v1, got %+v ok=%v", c, ok)
	}
}

func TestDeleteColumnMasksAllOlderVersions(t *testing.T) {
	s := newTestStore(t)
	cells := []keycodec.Cell{
		put("row1", 1, keycodec.TypePut, "q", "v1"),
		put("row1", 2, keycodec.TypePut, "q", "v2"),
		put("row1", 3, keycodec.TypeDeleteColumn, "q", ""),
		put("row1", 4, keycodec.TypePut, "q", "v4"),
	}
	if err := s.Put(cells, 1, false); err != nil {
		t.Fatal(err)
	}

	c, ok, err := s.Get([]byte("row1"), []byte("cf"), []byte("q"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(c.Value) != "v4" {
		t.Fatalf("expected v4 (newer than the DeleteColumn) to survive, got %+v ok=%v", c, ok)
	}

	if _, ok, err := s.Get([]byte("row1"), []byte("cf"), []byte("q"), 3); err != nil || ok {
		t.Fatalf("expected everything <= the DeleteColumn's timestamp masked, got ok=%v err=%v", ok, err)
	}
}

func TestDeleteFamilyMasksEveryColumn(t *testing.T) {
	s := newTestStore(t)
	cells := []keycodec.Cell{
		put("row1", 1, keycodec.TypePut, "a", "va"),
		put("row1", 1, keycodec.TypePut, "b", "vb"),
		{Row: []byte("row1"), Family: []byte("cf"), Qualifier: nil, Timestamp: 5, Type: keycodec.TypeDeleteFamily},
	}
	if err := s.Put(cells, 1, false); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := s.Get([]byte("row1"), []byte("cf"), []byte("a"), 10); ok {
		t.Fatal("expected column a masked by DeleteFamily")
	}
	if _, ok, _ := s.Get([]byte("row1"), []byte("cf"), []byte("b"), 10); ok {
		t.Fatal("expected column b masked by DeleteFamily")
	}
}

func TestScanMergesMemBufferAndFlushedFilesAcrossRows(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put([]keycodec.Cell{put("a", 1, keycodec.TypePut, "q", "va")}, 1, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]keycodec.Cell{put("b", 1, keycodec.TypePut, "q", "vb")}, 2, false); err != nil {
		t.Fatal(err)
	}

	cells, err := s.Scan(nil, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 2 || string(cells[0].Row) != "a" || string(cells[1].Row) != "b" {
		t.Fatalf("expected rows a,b merged from file+membuffer, got %+v", cells)
	}
}

func TestSelectMinorCompactionRespectsMinFiles(t *testing.T) {
	s := newTestStore(t)
	s.opts.MinFilesToCompact = 3

	if err := s.Put([]keycodec.Cell{put("a", 1, keycodec.TypePut, "q", "v")}, 1, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]keycodec.Cell{put("a", 2, keycodec.TypePut, "q", "v")}, 2, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.SelectMinorCompaction(); ok {
		t.Fatal("expected no selection below MinFilesToCompact")
	}

	if err := s.Put([]keycodec.Cell{put("a", 3, keycodec.TypePut, "q", "v")}, 3, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	selected, ok := s.SelectMinorCompaction()
	if !ok || len(selected) != 3 {
		t.Fatalf("expected all 3 files selected once MinFilesToCompact is met, got %v ok=%v", selected, ok)
	}
}

func TestCompactDropsShadowedTombstoneWhenMajorOverAllFiles(t *testing.T) {
	s := newTestStore(t)
	cells := []keycodec.Cell{
		put("row1", 1, keycodec.TypePut, "q", "v1"),
		put("row1", 2, keycodec.TypeDeleteCell, "q", ""),
	}
	if err := s.Put(cells, 1, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	newFile, err := s.MajorCompact()
	if err != nil {
		t.Fatal(err)
	}
	if newFile == nil {
		t.Fatal("expected a compacted output file")
	}
	if newFile.CellCount != 1 {
		t.Fatalf("expected the spent tombstone dropped and only the ts=1 put (not masked by a DeleteCell at ts=2) kept, got %d cells", newFile.CellCount)
	}
	if s.FileCount() != 1 {
		t.Fatalf("expected exactly the compacted file to remain, got %d files", s.FileCount())
	}
}

func TestCompactRetainsTombstoneWhenNotCoveringAllFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put([]keycodec.Cell{put("row1", 1, keycodec.TypePut, "q", "v1")}, 1, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := s.Put([]keycodec.Cell{put("row1", 2, keycodec.TypeDeleteCell, "q", "")}, 2, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	allFiles := s.AllFiles()
	minor := []*File{allFiles[0]} // only the newer (tombstone-only) file, a partial selection
	out, err := s.Compact(minor, false)
	if err != nil {
		t.Fatal(err)
	}
	if out == nil || out.CellCount != 1 {
		t.Fatalf("expected the tombstone retained since compaction didn't cover every file, got %+v", out)
	}
}
