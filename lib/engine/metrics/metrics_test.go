package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dkvlabs/regiondb/lib/engine/blockcache"
	"github.com/dkvlabs/regiondb/lib/engine/scheduler"
)

func TestReportBlockCacheExposesCountersAndGauges(t *testing.T) {
	r := NewRegistry()
	r.ReportBlockCache(blockcache.Stats{
		SizeBytes: 100, FreeBytes: 924, Count: 3,
		HitCount: 10, MissCount: 2, EvictionCount: 1,
	})

	var buf bytes.Buffer
	r.WritePrometheus(&buf)
	out := buf.String()

	for _, metric := range []string{
		"regiondb_blockcache_hits_total",
		"regiondb_blockcache_misses_total",
		"regiondb_blockcache_evictions_total",
		"regiondb_blockcache_used_bytes",
		"regiondb_blockcache_free_bytes",
	} {
		if !strings.Contains(out, metric) {
			t.Fatalf("expected exposition to contain %s, got:\n%s", metric, out)
		}
	}
}

func TestReportBlockCacheCountersOnlyAdvanceForward(t *testing.T) {
	r := NewRegistry()
	r.ReportBlockCache(blockcache.Stats{HitCount: 10})
	r.ReportBlockCache(blockcache.Stats{HitCount: 10})
	r.ReportBlockCache(blockcache.Stats{HitCount: 15})

	if got := r.blockCacheHits.Get(); got != 15 {
		t.Fatalf("expected cumulative hit counter of 15, got %d", got)
	}
}

func TestReportSchedulerExposesQueueGauges(t *testing.T) {
	r := NewRegistry()
	r.ReportScheduler(scheduler.Stats{
		FlushQueueLen:           4,
		SmallCompactionQueueLen: 2,
		LargeCompactionQueueLen: 1,
		UpdatesBlockedTime:      250 * time.Millisecond,
	})

	var buf bytes.Buffer
	r.WritePrometheus(&buf)
	out := buf.String()
	if !strings.Contains(out, "regiondb_scheduler_flush_queue_length") {
		t.Fatalf("expected flush queue gauge in exposition, got:\n%s", out)
	}
	if !strings.Contains(out, "regiondb_scheduler_updates_blocked_seconds") {
		t.Fatalf("expected updates-blocked gauge in exposition, got:\n%s", out)
	}
}

func TestObserveFlushAndCompactionFeedStoreStats(t *testing.T) {
	r := NewRegistry()

	if stats := r.StoreStatsFor("region-1", "cf"); stats.FlushCount != 0 {
		t.Fatalf("expected zero-value stats for an unobserved store, got %+v", stats)
	}

	r.ObserveFlush("region-1", "cf", 10*time.Millisecond, 1024)
	r.ObserveFlush("region-1", "cf", 20*time.Millisecond, 2048)
	r.ObserveCompaction("region-1", "cf", false, 50*time.Millisecond, 4096)

	stats := r.StoreStatsFor("region-1", "cf")
	if stats.FlushCount != 2 {
		t.Fatalf("expected 2 flushes observed, got %d", stats.FlushCount)
	}
	if stats.CompactionCount != 1 {
		t.Fatalf("expected 1 compaction observed, got %d", stats.CompactionCount)
	}
	if stats.MeanFlushSizeBytes <= 0 {
		t.Fatalf("expected a positive mean flush size, got %v", stats.MeanFlushSizeBytes)
	}
}

func TestObserveFlushKeepsRegionsAndFamiliesDistinct(t *testing.T) {
	r := NewRegistry()
	r.ObserveFlush("region-1", "cf", time.Millisecond, 10)
	r.ObserveFlush("region-2", "cf", time.Millisecond, 10)
	r.ObserveFlush("region-1", "cf2", time.Millisecond, 10)

	if got := r.StoreStatsFor("region-1", "cf").FlushCount; got != 1 {
		t.Fatalf("expected region-1/cf to have 1 flush, got %d", got)
	}
	if got := r.StoreStatsFor("region-2", "cf").FlushCount; got != 1 {
		t.Fatalf("expected region-2/cf to have 1 flush, got %d", got)
	}
	if got := r.StoreStatsFor("region-1", "cf2").FlushCount; got != 1 {
		t.Fatalf("expected region-1/cf2 to have 1 flush, got %d", got)
	}
}

func TestWALListenerCountsCompletedRolls(t *testing.T) {
	r := NewRegistry()
	listener := r.WALListener()

	listener.PreLogRoll("seg-1", "seg-2")
	listener.PostLogRoll("seg-1", "seg-2")
	listener.PostLogRoll("seg-2", "seg-3")

	if got := r.walRolls.Get(); got != 2 {
		t.Fatalf("expected 2 rolls counted, got %d", got)
	}
}
