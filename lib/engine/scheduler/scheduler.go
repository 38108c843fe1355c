// Package scheduler implements FlushCompactScheduler (spec.md §4.9: C9),
// the background worker pool that drives flushes, minor/major compactions,
// write back-pressure, and WAL-segment archival for every Region hosted on
// this node.
//
// Grounded on lib/db/util.LockFreeMPSC for its work queues — the teacher's
// only lock-free work-queue primitive, and the one already committed to in
// DESIGN.md for this role — and on spec.md §4.9/§5's literal ordering
// guarantees: flushes for one Store are serialized, at most one compaction
// runs per Store at a time, and large-queue compactions get their own,
// separately sized worker pool from small ones. WAL roll on period/size is
// already self-driven inside wal.WAL (spec.md §4.5); this package's
// WAL-facing responsibility is narrower — polling for segments every
// registered Store has flushed past and handing them to an Archiver.
package scheduler

import (
	"sync"
	"time"

	"github.com/dkvlabs/regiondb/lib/db/util"
	"github.com/dkvlabs/regiondb/lib/engine/famstore"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("engine/scheduler")

type flushTask struct {
	regionID string
	store    *famstore.Store
}

type compactTask struct {
	regionID string
	store    *famstore.Store
	major    bool
}

// WAL is the subset of *wal.WAL the scheduler needs to find and retire
// archivable segments, kept local so this package doesn't need the
// concrete wal type for its own tests.
type WAL interface {
	ArchivableSegments(minUnflushedSequence func(regionID string) uint64) []string
	MarkArchived(id string)
}

// Archiver is the subset of RegionFileSystem (lib/engine/regionfs, C10)
// needed to physically move an archivable WAL segment out of the live log
// directory.
type Archiver interface {
	ArchiveWALSegment(id string) error
}

// Stats is a point-in-time snapshot of scheduler observability (spec.md
// §4.9 "expose queue lengths").
type Stats struct {
	FlushQueueLen           int
	SmallCompactionQueueLen int
	LargeCompactionQueueLen int
	UpdatesBlockedTime      time.Duration
}

// Options configures a Scheduler.
type Options struct {
	FlushWorkers           int
	SmallCompactionWorkers int
	LargeCompactionWorkers int

	// LargeCompactionSizeThreshold routes a compaction whose selected files
	// sum past this many bytes to the large queue instead of the small one
	// (spec.md §4.9 "Two queues: small and large compactions, sized
	// independently; large-queue work yields to flushes" — the yield-to-
	// flushes property falls out naturally here since flush and large-
	// compaction workers are distinct pools and flush workers are never
	// starved by a backlog of large compactions).
	LargeCompactionSizeThreshold int64

	// PerRegionFlushSize mirrors region.memstore.flush.size (engineconfig):
	// the watcher enqueues a flush for any registered Store whose
	// MemBuffer crosses this many bytes.
	PerRegionFlushSize int64
	// HighWatermarkBytes mirrors regionserver.global.memstore.size.upper.limit
	// in absolute bytes: crossing it force-flushes every registered Store
	// to relieve global pressure, a coarser version of HBase's own
	// largest-region-first global flush (documented simplification,
	// DESIGN.md).
	HighWatermarkBytes int64
	// HardCapBytes blocks writers via WaitIfBlocked until global usage
	// drops back under it (spec.md §5 "Writes block when memory exceeds
	// the hard cap").
	HardCapBytes int64
	// GlobalMemoryUsage reports the node-wide MemBuffer byte total across
	// every region hosted here. Nil disables the watermark watcher
	// entirely (e.g. in tests that only exercise the queues directly).
	GlobalMemoryUsage func() int64
	// WatchInterval governs both the watermark watcher and WAL archival
	// polling cadence.
	WatchInterval time.Duration

	// Metrics, if non-nil, is notified of each flush/compaction's duration
	// and selection size — the per-Store histograms lib/engine/metrics
	// feeds from the teacher's maple.GetInfo-style statistics. Nil is the
	// zero-cost default for tests and callers that don't wire metrics.
	Metrics Recorder
}

// Recorder receives flush/compaction observability events. Kept as a
// narrow local interface so this package never depends on lib/engine/metrics
// or its third-party stack directly.
type Recorder interface {
	ObserveFlush(regionID, family string, d time.Duration, sizeBytes int64)
	ObserveCompaction(regionID, family string, major bool, d time.Duration, selectionBytes int64)
}

func (o Options) withDefaults() Options {
	if o.FlushWorkers <= 0 {
		o.FlushWorkers = 2
	}
	if o.SmallCompactionWorkers <= 0 {
		o.SmallCompactionWorkers = 2
	}
	if o.LargeCompactionWorkers <= 0 {
		o.LargeCompactionWorkers = 1
	}
	if o.LargeCompactionSizeThreshold <= 0 {
		o.LargeCompactionSizeThreshold = 512 << 20
	}
	if o.WatchInterval <= 0 {
		o.WatchInterval = 10 * time.Second
	}
	return o
}

// Scheduler is the FlushCompactScheduler: background flush/compaction work
// queues plus write back-pressure tracking (spec.md §4.9). It implements
// region.FlushCompactQueue.
type Scheduler struct {
	opts Options

	flushQueue *util.LockFreeMPSC[flushTask]
	smallQueue *util.LockFreeMPSC[compactTask]
	largeQueue *util.LockFreeMPSC[compactTask]

	storeLocksMu sync.Mutex
	storeLocks   map[*famstore.Store]*sync.Mutex

	regionsMu sync.Mutex
	regions   map[string][]*famstore.Store

	blockMu            sync.Mutex
	blocked            bool
	blockCond          *sync.Cond
	updatesBlockedTime time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Scheduler and starts its worker pools. Callers should
// defer Close.
func New(opts Options) *Scheduler {
	opts = opts.withDefaults()
	sch := &Scheduler{
		opts:       opts,
		flushQueue: util.NewLockFreeMPSC[flushTask](),
		smallQueue: util.NewLockFreeMPSC[compactTask](),
		largeQueue: util.NewLockFreeMPSC[compactTask](),
		storeLocks: make(map[*famstore.Store]*sync.Mutex),
		regions:    make(map[string][]*famstore.Store),
		stopCh:     make(chan struct{}),
	}
	sch.blockCond = sync.NewCond(&sch.blockMu)

	for i := 0; i < opts.FlushWorkers; i++ {
		sch.wg.Add(1)
		go sch.runFlushWorker()
	}
	for i := 0; i < opts.SmallCompactionWorkers; i++ {
		sch.wg.Add(1)
		go sch.runCompactionWorker(sch.smallQueue)
	}
	for i := 0; i < opts.LargeCompactionWorkers; i++ {
		sch.wg.Add(1)
		go sch.runCompactionWorker(sch.largeQueue)
	}
	if opts.GlobalMemoryUsage != nil {
		sch.wg.Add(1)
		go sch.runWatcher()
	}
	return sch
}

// Register tracks s as belonging to regionID for the memory-watermark
// watcher's per-region flush trigger and for WAL archival's
// minUnflushedSequence computation.
func (sch *Scheduler) Register(regionID string, s *famstore.Store) {
	sch.regionsMu.Lock()
	defer sch.regionsMu.Unlock()
	sch.regions[regionID] = append(sch.regions[regionID], s)
}

// Unregister removes every Store tracked under regionID, e.g. on region
// close/split/merge.
func (sch *Scheduler) Unregister(regionID string) {
	sch.regionsMu.Lock()
	defer sch.regionsMu.Unlock()
	delete(sch.regions, regionID)
}

// EnqueueFlush implements region.FlushCompactQueue.
func (sch *Scheduler) EnqueueFlush(regionID string, s *famstore.Store) {
	sch.flushQueue.Push(&flushTask{regionID: regionID, store: s})
}

// EnqueueCompaction implements region.FlushCompactQueue, routing to the
// small or large queue by the selected files' total size.
func (sch *Scheduler) EnqueueCompaction(regionID string, s *famstore.Store, major bool) {
	task := &compactTask{regionID: regionID, store: s, major: major}
	if sch.estimatedCompactionSize(s, major) >= sch.opts.LargeCompactionSizeThreshold {
		sch.largeQueue.Push(task)
		return
	}
	sch.smallQueue.Push(task)
}

func (sch *Scheduler) estimatedCompactionSize(s *famstore.Store, major bool) int64 {
	var files []*famstore.File
	if major {
		files = s.AllFiles()
	} else {
		selected, ok := s.SelectMinorCompaction()
		if !ok {
			return 0
		}
		files = selected
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// Stats returns a snapshot of queue lengths and accumulated write-blocked
// time.
func (sch *Scheduler) Stats() Stats {
	sch.blockMu.Lock()
	blockedTime := sch.updatesBlockedTime
	sch.blockMu.Unlock()
	return Stats{
		FlushQueueLen:           sch.flushQueue.Len(),
		SmallCompactionQueueLen: sch.smallQueue.Len(),
		LargeCompactionQueueLen: sch.largeQueue.Len(),
		UpdatesBlockedTime:      blockedTime,
	}
}

// WaitIfBlocked blocks the caller while global memory exceeds the hard
// cap, accumulating the wait into UpdatesBlockedTime (spec.md §5 "Writes
// block when memory exceeds the hard cap; the wait duration is
// accumulated in updatesBlockedTime"). Region itself holds no Scheduler
// reference (see DESIGN.md), so this is meant to be called by whatever
// request-handling layer issues the Region.Put/Batch call, immediately
// before it does.
func (sch *Scheduler) WaitIfBlocked() {
	sch.blockMu.Lock()
	defer sch.blockMu.Unlock()
	if !sch.blocked {
		return
	}
	start := time.Now()
	for sch.blocked {
		sch.blockCond.Wait()
	}
	sch.updatesBlockedTime += time.Since(start)
}

// Close stops every worker and the watermark/archival watchers, waiting
// for in-flight tasks to finish. Tasks already queued are still delivered
// to the workers and run before Close returns.
func (sch *Scheduler) Close() {
	close(sch.stopCh)
	sch.flushQueue.Close()
	sch.smallQueue.Close()
	sch.largeQueue.Close()

	sch.blockMu.Lock()
	sch.blocked = false
	sch.blockCond.Broadcast()
	sch.blockMu.Unlock()

	sch.wg.Wait()
}

func (sch *Scheduler) lockFor(s *famstore.Store) *sync.Mutex {
	sch.storeLocksMu.Lock()
	defer sch.storeLocksMu.Unlock()
	l, ok := sch.storeLocks[s]
	if !ok {
		l = &sync.Mutex{}
		sch.storeLocks[s] = l
	}
	return l
}

// runFlushWorker serializes flushes per Store (spec.md §4.9 "flushes for
// the same Store are serialized") via lockFor, while letting flushes of
// distinct Stores proceed on separate worker goroutines in parallel.
func (sch *Scheduler) runFlushWorker() {
	defer sch.wg.Done()
	for t := range sch.flushQueue.Recv() {
		l := sch.lockFor(t.store)
		l.Lock()
		sizeBytes := t.store.MemBufferSizeBytes()
		start := time.Now()
		_, err := t.store.Flush()
		if err != nil {
			log.Errorf("flush region=%s family=%s: %v", t.regionID, t.store.Family(), err)
		}
		if sch.opts.Metrics != nil {
			sch.opts.Metrics.ObserveFlush(t.regionID, t.store.Family(), time.Since(start), sizeBytes)
		}
		l.Unlock()
	}
}

// runCompactionWorker enforces at most one compaction per Store at a time
// (spec.md §4.9 "compactions on disjoint file sets within a Store may not
// overlap") by sharing the same per-Store lock runFlushWorker uses —
// serializing a Store's flushes and compactions against each other too,
// which matches HRegion's updatesLock-adjacent discipline of never
// flushing and compacting one Store concurrently.
func (sch *Scheduler) runCompactionWorker(q *util.LockFreeMPSC[compactTask]) {
	defer sch.wg.Done()
	for t := range q.Recv() {
		l := sch.lockFor(t.store)
		l.Lock()
		sch.runCompaction(t)
		l.Unlock()
	}
}

func (sch *Scheduler) runCompaction(t *compactTask) {
	if t.major {
		var selectionBytes int64
		for _, f := range t.store.AllFiles() {
			selectionBytes += f.Size
		}
		start := time.Now()
		_, err := t.store.MajorCompact()
		if err != nil {
			log.Errorf("major compact region=%s family=%s: %v", t.regionID, t.store.Family(), err)
		}
		if sch.opts.Metrics != nil {
			sch.opts.Metrics.ObserveCompaction(t.regionID, t.store.Family(), true, time.Since(start), selectionBytes)
		}
		return
	}
	selected, ok := t.store.SelectMinorCompaction()
	if !ok {
		return
	}
	var selectionBytes int64
	for _, f := range selected {
		selectionBytes += f.Size
	}
	start := time.Now()
	_, err := t.store.Compact(selected, false)
	if err != nil {
		log.Errorf("minor compact region=%s family=%s: %v", t.regionID, t.store.Family(), err)
	}
	if sch.opts.Metrics != nil {
		sch.opts.Metrics.ObserveCompaction(t.regionID, t.store.Family(), false, time.Since(start), selectionBytes)
	}
}

func (sch *Scheduler) runWatcher() {
	defer sch.wg.Done()
	ticker := time.NewTicker(sch.opts.WatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sch.checkWatermarks()
		case <-sch.stopCh:
			return
		}
	}
}

func (sch *Scheduler) checkWatermarks() {
	global := sch.opts.GlobalMemoryUsage()

	sch.blockMu.Lock()
	wasBlocked := sch.blocked
	sch.blocked = sch.opts.HardCapBytes > 0 && global > sch.opts.HardCapBytes
	if wasBlocked && !sch.blocked {
		sch.blockCond.Broadcast()
	}
	sch.blockMu.Unlock()

	sch.regionsMu.Lock()
	regions := make(map[string][]*famstore.Store, len(sch.regions))
	for id, stores := range sch.regions {
		regions[id] = append([]*famstore.Store(nil), stores...)
	}
	sch.regionsMu.Unlock()

	globalPressure := sch.opts.HighWatermarkBytes > 0 && global >= sch.opts.HighWatermarkBytes
	for regionID, stores := range regions {
		for _, s := range stores {
			if globalPressure || s.MemBufferSizeBytes() >= sch.opts.PerRegionFlushSize {
				sch.EnqueueFlush(regionID, s)
			}
		}
	}
}

// RunWALArchival starts a background loop that, on WatchInterval, hands
// any WAL segment every registered Store has flushed past to archiver and
// marks it archived in w (spec.md §3 "WAL entries become eligible for
// archival once every Store whose edits they contain has flushed past
// that sequence").
func (sch *Scheduler) RunWALArchival(w WAL, archiver Archiver) {
	sch.wg.Add(1)
	go func() {
		defer sch.wg.Done()
		ticker := time.NewTicker(sch.opts.WatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, id := range w.ArchivableSegments(sch.minUnflushedSequence) {
					if err := archiver.ArchiveWALSegment(id); err != nil {
						log.Errorf("archive wal segment %s: %v", id, err)
						continue
					}
					w.MarkArchived(id)
				}
			case <-sch.stopCh:
				return
			}
		}
	}()
}

// minUnflushedSequence reports the lowest FlushedThroughSequence across
// every Store registered for regionID. An unregistered region is treated
// as fully flushed (max uint64) so a stray segment referencing it never
// blocks archival indefinitely.
func (sch *Scheduler) minUnflushedSequence(regionID string) uint64 {
	sch.regionsMu.Lock()
	stores := append([]*famstore.Store(nil), sch.regions[regionID]...)
	sch.regionsMu.Unlock()

	if len(stores) == 0 {
		return ^uint64(0)
	}
	min := ^uint64(0)
	for _, s := range stores {
		if seq := s.FlushedThroughSequence(); seq < min {
			min = seq
		}
	}
	return min
}
