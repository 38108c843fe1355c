package scheduler

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkvlabs/regiondb/lib/engine/famstore"
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engineconfig"
)

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

func newTestStore(t *testing.T) *famstore.Store {
	t.Helper()
	return famstore.New(famstore.Options{
		Family:       "cf",
		FamilyConfig: engineconfig.FamilyConfig{MaxVersions: 10},
		FS:           newFakeFS(),
	})
}

func put(row string, ts uint64, value string) keycodec.Cell {
	return keycodec.Cell{
		Row: []byte(row), Family: []byte("cf"), Qualifier: []byte("q"),
		Timestamp: ts, Type: keycodec.TypePut, Value: []byte(value),
	}
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before timeout")
	}
}

func TestEnqueueFlushPersistsMemBuffer(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put([]keycodec.Cell{put("row1", 1, "v1")}, 1, false); err != nil {
		t.Fatal(err)
	}

	sch := New(Options{})
	defer sch.Close()

	sch.EnqueueFlush("region1", s)
	eventually(t, time.Second, func() bool { return s.FileCount() == 1 })
}

func TestEnqueueCompactionRunsMinorCompaction(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.Put([]keycodec.Cell{put("row1", uint64(i+1), "v")}, uint64(i+1), false); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if s.FileCount() != 3 {
		t.Fatalf("expected 3 files before compaction, got %d", s.FileCount())
	}

	sch := New(Options{})
	defer sch.Close()

	sch.EnqueueCompaction("region1", s, false)
	eventually(t, time.Second, func() bool { return s.FileCount() == 1 })
}

type recordingMetrics struct {
	mu          sync.Mutex
	flushes     int
	compactions int
	lastMajor   bool
}

func (m *recordingMetrics) ObserveFlush(regionID, family string, d time.Duration, sizeBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
}

func (m *recordingMetrics) ObserveCompaction(regionID, family string, major bool, d time.Duration, selectionBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compactions++
	m.lastMajor = major
}

func TestMetricsRecorderObservesFlushAndCompaction(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.Put([]keycodec.Cell{put("row1", uint64(i+1), "v")}, uint64(i+1), false); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Flush(); err != nil {
			t.Fatal(err)
		}
	}

	rec := &recordingMetrics{}
	sch := New(Options{Metrics: rec})
	defer sch.Close()

	sch.EnqueueCompaction("region1", s, false)
	eventually(t, time.Second, func() bool { return s.FileCount() == 1 })

	rec.mu.Lock()
	compactions := rec.compactions
	rec.mu.Unlock()
	if compactions != 1 {
		t.Fatalf("expected 1 compaction observed, got %d", compactions)
	}

	s2 := newTestStore(t)
	if err := s2.Put([]keycodec.Cell{put("row2", 1, "v1")}, 1, false); err != nil {
		t.Fatal(err)
	}
	sch.EnqueueFlush("region2", s2)
	eventually(t, time.Second, func() bool { return s2.FileCount() == 1 })

	rec.mu.Lock()
	flushes := rec.flushes
	rec.mu.Unlock()
	if flushes != 1 {
		t.Fatalf("expected 1 flush observed, got %d", flushes)
	}
}

func TestEnqueueCompactionRoutesByEstimatedSize(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put([]keycodec.Cell{put("row1", 1, "v1")}, 1, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	sch := &Scheduler{opts: Options{LargeCompactionSizeThreshold: 1 << 30}.withDefaults()}
	if size := sch.estimatedCompactionSize(s, true); size <= 0 {
		t.Fatalf("expected a nonzero estimated size for a non-empty major compaction, got %d", size)
	}

	sch2 := &Scheduler{opts: Options{LargeCompactionSizeThreshold: 1}.withDefaults()}
	if size := sch2.estimatedCompactionSize(s, true); size < sch2.opts.LargeCompactionSizeThreshold {
		t.Fatalf("expected estimated size >= tiny threshold, got %d", size)
	}
}

func TestWaitIfBlockedReturnsImmediatelyWhenNotBlocked(t *testing.T) {
	sch := New(Options{})
	defer sch.Close()

	done := make(chan struct{})
	go func() {
		sch.WaitIfBlocked()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitIfBlocked should not block when not blocked")
	}
}

func TestWaitIfBlockedUnblocksOnceUsageDropsBelowHardCap(t *testing.T) {
	var usage int64 = 1000
	sch := New(Options{
		HardCapBytes:      500,
		GlobalMemoryUsage: func() int64 { return atomic.LoadInt64(&usage) },
		WatchInterval:     10 * time.Millisecond,
	})
	defer sch.Close()

	eventually(t, time.Second, func() bool {
		sch.blockMu.Lock()
		defer sch.blockMu.Unlock()
		return sch.blocked
	})

	done := make(chan struct{})
	go func() {
		sch.WaitIfBlocked()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected WaitIfBlocked to still be blocked")
	case <-time.After(50 * time.Millisecond):
	}

	atomic.StoreInt64(&usage, 100)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected WaitIfBlocked to unblock once usage dropped")
	}
}

func TestMinUnflushedSequenceTreatsUnknownRegionAsFullyFlushed(t *testing.T) {
	sch := New(Options{})
	defer sch.Close()

	if got := sch.minUnflushedSequence("no-such-region"); got != ^uint64(0) {
		t.Fatalf("expected max uint64 for an unregistered region, got %d", got)
	}
}

type fakeWAL struct {
	mu       sync.Mutex
	segments map[string]uint64 // id -> maxSeq for region1
}

func (w *fakeWAL) ArchivableSegments(minUnflushedSequence func(regionID string) uint64) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for id, maxSeq := range w.segments {
		if minUnflushedSequence("region1") > maxSeq {
			out = append(out, id)
		}
	}
	return out
}

func (w *fakeWAL) MarkArchived(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.segments, id)
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived []string
}

func (a *fakeArchiver) ArchiveWALSegment(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, id)
	return nil
}

func TestRunWALArchivalArchivesSegmentsPastFlushPoint(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put([]keycodec.Cell{put("row1", 1, "v1")}, 5, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if got := s.FlushedThroughSequence(); got != 5 {
		t.Fatalf("expected flushed-through sequence 5, got %d", got)
	}

	sch := New(Options{WatchInterval: 10 * time.Millisecond})
	defer sch.Close()
	sch.Register("region1", s)

	w := &fakeWAL{segments: map[string]uint64{"seg-old": 4, "seg-new": 10}}
	arch := &fakeArchiver{}
	sch.RunWALArchival(w, arch)

	eventually(t, time.Second, func() bool {
		arch.mu.Lock()
		defer arch.mu.Unlock()
		return len(arch.archived) == 1 && arch.archived[0] == "seg-old"
	})

	w.mu.Lock()
	_, stillPresent := w.segments["seg-new"]
	w.mu.Unlock()
	if !stillPresent {
		t.Fatal("expected seg-new (not yet flushed past) to remain unarchived")
	}
}
