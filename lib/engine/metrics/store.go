package metrics

import (
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// storeMetrics holds the go-metrics histograms for one (regionID, family)
// Store, the generalization of maple.GetInfo's single size histogram to a
// per-Store flush/compaction breakdown.
type storeMetrics struct {
	flushDuration      gometrics.Histogram
	flushSizeBytes     gometrics.Histogram
	compactionDuration gometrics.Histogram
	selectionSizeBytes gometrics.Histogram
}

// newSample returns go-metrics' customary exponentially-decaying reservoir
// (1028 samples, alpha 0.015), large enough to stay representative without
// retaining every observation for the process lifetime.
func newSample() gometrics.Sample {
	return gometrics.NewExpDecaySample(1028, 0.015)
}

func newStoreMetrics() *storeMetrics {
	return &storeMetrics{
		flushDuration:      gometrics.NewHistogram(newSample()),
		flushSizeBytes:     gometrics.NewHistogram(newSample()),
		compactionDuration: gometrics.NewHistogram(newSample()),
		selectionSizeBytes: gometrics.NewHistogram(newSample()),
	}
}

func storeKey(regionID, family string) string {
	return regionID + "/" + family
}

func (r *Registry) storeMetricsFor(regionID, family string) *storeMetrics {
	key := storeKey(regionID, family)
	r.storesMu.Lock()
	defer r.storesMu.Unlock()
	m, ok := r.stores[key]
	if !ok {
		m = newStoreMetrics()
		r.stores[key] = m
	}
	return m
}

// ObserveFlush implements scheduler.Recorder, recording one flush's
// duration and the MemBuffer byte size it flushed.
func (r *Registry) ObserveFlush(regionID, family string, d time.Duration, sizeBytes int64) {
	m := r.storeMetricsFor(regionID, family)
	m.flushDuration.Update(d.Nanoseconds())
	m.flushSizeBytes.Update(sizeBytes)
}

// ObserveCompaction implements scheduler.Recorder, recording one
// compaction's duration and selection size (spec.md §4.7). major is not
// tracked as a separate series: a Store's compaction histogram mixes
// minor and major runs, matching how maple.GetInfo reports one histogram
// per database rather than splitting by operation kind.
func (r *Registry) ObserveCompaction(regionID, family string, major bool, d time.Duration, selectionBytes int64) {
	m := r.storeMetricsFor(regionID, family)
	m.compactionDuration.Update(d.Nanoseconds())
	m.selectionSizeBytes.Update(selectionBytes)
}

// StoreStats is a GetInfo-style snapshot of one Store's flush/compaction
// behavior, read out of the underlying go-metrics histograms.
type StoreStats struct {
	FlushCount              int64
	MeanFlushDuration       time.Duration
	MeanFlushSizeBytes      float64
	CompactionCount         int64
	MeanCompactionDuration  time.Duration
	P99CompactionDuration   time.Duration
	MeanSelectionSizeBytes  float64
}

// StoreStatsFor returns the current statistics for (regionID, family), or
// the zero value if no flush or compaction has been observed for it yet.
func (r *Registry) StoreStatsFor(regionID, family string) StoreStats {
	key := storeKey(regionID, family)
	r.storesMu.Lock()
	m, ok := r.stores[key]
	r.storesMu.Unlock()
	if !ok {
		return StoreStats{}
	}
	return StoreStats{
		FlushCount:             m.flushDuration.Count(),
		MeanFlushDuration:      time.Duration(m.flushDuration.Mean()),
		MeanFlushSizeBytes:     m.flushSizeBytes.Mean(),
		CompactionCount:        m.compactionDuration.Count(),
		MeanCompactionDuration: time.Duration(m.compactionDuration.Mean()),
		P99CompactionDuration:  time.Duration(m.compactionDuration.Percentile(0.99)),
		MeanSelectionSizeBytes: m.selectionSizeBytes.Mean(),
	}
}
