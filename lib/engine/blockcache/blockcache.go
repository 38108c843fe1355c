// Package blockcache implements the process-wide, capacity-bounded byte-block
// cache shared by every open SortedFile handle, keyed by (fileId, offset).
//
// Grounded on lib/db/engines/maple/internal's use of xsync.MapOf as the
// concurrent backing map for a sharded KV engine: here the same structure
// holds cached block bytes instead of KV entries, giving lock-free reads on
// the hot Get path. Per-band least-recently-used ordering (the teacher has
// no analogue for this) is built from hashicorp/golang-lru's simplelru.LRU,
// one instance per band, sized large enough to never auto-evict on its own —
// eviction is driven entirely by our own band-scan evictor comparing bytes
// used against capacity, per spec.md §4.4.
package blockcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/simplelru"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dkvlabs/regiondb/lib/engine/sortedfile"
)

// Band is the eviction priority band an entry belongs to (spec.md §4.4).
type Band int

const (
	// BandSingle holds blocks on their first insert.
	BandSingle Band = iota
	// BandMulti holds blocks promoted on a second (or later) hit.
	BandMulti
	// BandInMemory holds pinned blocks — index and bloom categories,
	// regardless of a family's data-block caching setting.
	BandInMemory

	numBands = 3
)

func (b Band) String() string {
	switch b {
	case BandSingle:
		return "SINGLE-ACCESS"
	case BandMulti:
		return "MULTI-ACCESS"
	case BandInMemory:
		return "IN-MEMORY"
	default:
		return "UNKNOWN"
	}
}

func bandFor(category sortedfile.Category) Band {
	switch category {
	case sortedfile.CategoryIndex, sortedfile.CategoryBloom:
		return BandInMemory
	default:
		return BandSingle
	}
}

type cacheKey struct {
	fileID string
	offset uint64
}

type blockEntry struct {
	key      cacheKey
	data     []byte
	category sortedfile.Category
	band     Band
}

func (e *blockEntry) chargedSize() int64 {
	// Both header and payload bytes are charged, since e.data is the raw
	// on-disk block bytes (header included) as handed to Put.
	return int64(len(e.data))
}

// Options configures a Cache's capacity and per-band eviction floors.
type Options struct {
	// CapacityBytes is the total byte budget charged across all bands.
	CapacityBytes int64
	// FloorBytes[band] is the minimum byte footprint the evictor leaves in
	// that band even under pressure (spec.md §4.4 "never evicting below a
	// configurable floor per band"). Zero means no floor.
	FloorBytes [numBands]int64
}

func (o Options) withDefaults() Options {
	if o.CapacityBytes <= 0 {
		o.CapacityBytes = 256 << 20
	}
	return o
}

// Cache is the process-wide block cache. It implements sortedfile.BlockCache.
type Cache struct {
	opts Options

	// blocks is the lock-free concurrent index from key to entry, shared by
	// every reader goroutine.
	blocks *xsync.MapOf[cacheKey, *blockEntry]

	// bandMu guards the three recency-ordered LRUs; simplelru is not
	// concurrency-safe on its own, unlike the xsync map above.
	bandMu sync.Mutex
	bands  [numBands]*lru.LRU

	usedBytes int64 // protected by bandMu

	metrics metrics
}

type metrics struct {
	mu              sync.Mutex
	hits            uint64
	misses          uint64
	evictions       uint64
	cachingHits     uint64
	cachingRequests uint64
}

// New creates a Cache with the given capacity and band floors.
func New(opts Options) *Cache {
	opts = opts.withDefaults()
	c := &Cache{
		opts:   opts,
		blocks: xsync.NewMapOf[cacheKey, *blockEntry](),
	}
	for i := range c.bands {
		// A very large count cap: count-based eviction inside simplelru
		// never fires, since we evict by bytes ourselves.
		band, _ := lru.NewLRU(1<<31-1, nil)
		c.bands[i] = band
	}
	return c
}

// Get implements sortedfile.BlockCache.
func (c *Cache) Get(fileID string, offset uint64) ([]byte, bool) {
	key := cacheKey{fileID, offset}
	e, ok := c.blocks.Load(key)
	if !ok {
		c.metrics.mu.Lock()
		c.metrics.misses++
		c.metrics.mu.Unlock()
		return nil, false
	}

	c.metrics.mu.Lock()
	c.metrics.hits++
	if e.category == sortedfile.CategoryData {
		c.metrics.cachingRequests++
		c.metrics.cachingHits++
	}
	c.metrics.mu.Unlock()

	c.bandMu.Lock()
	c.bands[e.band].Get(key) // touch recency
	if e.band == BandSingle {
		// Second (or later) hit promotes SINGLE-ACCESS to MULTI-ACCESS.
		c.bands[BandSingle].Remove(key)
		e.band = BandMulti
		c.bands[BandMulti].Add(key, e)
	}
	c.bandMu.Unlock()

	return e.data, true
}

// Put implements sortedfile.BlockCache.
func (c *Cache) Put(fileID string, offset uint64, category sortedfile.Category, data []byte) {
	key := cacheKey{fileID, offset}
	band := bandFor(category)
	e := &blockEntry{key: key, data: data, category: category, band: band}

	if category == sortedfile.CategoryData {
		c.metrics.mu.Lock()
		c.metrics.cachingRequests++
		c.metrics.mu.Unlock()
	}

	var old *blockEntry
	c.blocks.Compute(key, func(cur *blockEntry, loaded bool) (*blockEntry, bool) {
		if loaded {
			old = cur
		}
		return e, false
	})
	if old != nil {
		c.bandMu.Lock()
		c.usedBytes -= old.chargedSize()
		c.bands[old.band].Remove(key)
		c.bandMu.Unlock()
	}

	c.bandMu.Lock()
	c.usedBytes += e.chargedSize()
	c.bands[band].Add(key, e)
	c.bandMu.Unlock()

	c.evictIfNeeded()
}

// InvalidateFile implements sortedfile.BlockCache, removing every block
// belonging to fileID — called when a file is archived post-compaction or
// -split (spec.md §4.4).
func (c *Cache) InvalidateFile(fileID string) {
	var victims []cacheKey
	c.blocks.Range(func(k cacheKey, v *blockEntry) bool {
		if k.fileID == fileID {
			victims = append(victims, k)
		}
		return true
	})
	for _, k := range victims {
		var removed *blockEntry
		c.blocks.Compute(k, func(cur *blockEntry, loaded bool) (*blockEntry, bool) {
			if loaded {
				removed = cur
			}
			return nil, true
		})
		if removed != nil {
			c.bandMu.Lock()
			c.usedBytes -= removed.chargedSize()
			c.bands[removed.band].Remove(k)
			c.bandMu.Unlock()
		}
	}
}

// evictIfNeeded scans bands in the order SINGLE -> MULTI -> IN-MEMORY,
// never evicting a band below its configured floor, until usedBytes fits
// within capacity or every band is at its floor.
func (c *Cache) evictIfNeeded() {
	c.bandMu.Lock()
	defer c.bandMu.Unlock()

	for c.usedBytes > c.opts.CapacityBytes {
		evictedAny := false
		for band := Band(0); band < numBands; band++ {
			if c.bandBytesLocked(band) <= c.opts.FloorBytes[band] {
				continue
			}
			k, v, ok := c.bands[band].RemoveOldest()
			if !ok {
				continue
			}
			key := k.(cacheKey)
			e := v.(*blockEntry)
			c.usedBytes -= e.chargedSize()
			c.blocks.Compute(key, func(cur *blockEntry, loaded bool) (*blockEntry, bool) {
				return nil, true
			})
			c.metrics.mu.Lock()
			c.metrics.evictions++
			c.metrics.mu.Unlock()
			evictedAny = true
			if c.usedBytes <= c.opts.CapacityBytes {
				break
			}
		}
		if !evictedAny {
			// Every band is at its floor; nothing more can be reclaimed.
			break
		}
	}
}

// bandBytesLocked sums the charged size of every entry currently in band.
// Called with bandMu held.
func (c *Cache) bandBytesLocked(band Band) int64 {
	var total int64
	for _, k := range c.bands[band].Keys() {
		if v, ok := c.bands[band].Peek(k); ok {
			total += v.(*blockEntry).chargedSize()
		}
	}
	return total
}

// Stats is a point-in-time snapshot of the cache's spec.md §4.4 metrics.
type Stats struct {
	SizeBytes         int64
	FreeBytes         int64
	Count             int
	HitCount          uint64
	MissCount         uint64
	EvictionCount     uint64
	HitPercent        float64
	CachingHitPercent float64
}

// Stats reports size/free/count/hit/miss/eviction/hit-percent and
// caching-hit-percent (spec.md §4.4). CachingHitPercent is computed over
// DATA-category requests only, since INDEX and BLOOM are always cached
// regardless of family setting and so never represent an optional "asked
// to cache" decision the way a DATA block's admission does.
func (c *Cache) Stats() Stats {
	c.bandMu.Lock()
	used := c.usedBytes
	count := c.blocks.Size()
	c.bandMu.Unlock()

	c.metrics.mu.Lock()
	hits, misses, evictions := c.metrics.hits, c.metrics.misses, c.metrics.evictions
	cachingHits, cachingRequests := c.metrics.cachingHits, c.metrics.cachingRequests
	c.metrics.mu.Unlock()

	free := c.opts.CapacityBytes - used
	if free < 0 {
		free = 0
	}

	var hitPct, cachingHitPct float64
	if total := hits + misses; total > 0 {
		hitPct = float64(hits) / float64(total) * 100
	}
	if cachingRequests > 0 {
		cachingHitPct = float64(cachingHits) / float64(cachingRequests) * 100
	}

	return Stats{
		SizeBytes:         used,
		FreeBytes:         free,
		Count:             count,
		HitCount:          hits,
		MissCount:         misses,
		EvictionCount:     evictions,
		HitPercent:        hitPct,
		CachingHitPercent: cachingHitPct,
	}
}

var _ sortedfile.BlockCache = (*Cache)(nil)
