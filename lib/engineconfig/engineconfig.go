// Package engineconfig declares the typed configuration recognized by the
// engine (spec.md §6) and how it's loaded from viper, following the
// teacher's cmd/serve ServerConfig pattern (flags bound to viper, env
// prefix DKV_, .env/.env.local loaded first via godotenv).
package engineconfig

import (
	"time"

	"github.com/spf13/viper"
)

// BloomGranularity is the bloom-filter key granularity (spec.md §6 cells.bloom.*).
type BloomGranularity string

const (
	BloomNone   BloomGranularity = "NONE"
	BloomRow    BloomGranularity = "ROW"
	BloomRowCol BloomGranularity = "ROWCOL"
)

// Encoding is a data-block encoding (spec.md §4.2).
type Encoding string

const (
	EncodingNone     Encoding = "NONE"
	EncodingPrefix   Encoding = "PREFIX"
	EncodingDiff     Encoding = "DIFF"
	EncodingFastDiff Encoding = "FAST_DIFF"
)

// Compression names a block compression algorithm (spec.md §6 cells.compression.*).
type Compression string

const (
	CompressionNone   Compression = "NONE"
	CompressionGzip   Compression = "GZIP"
	CompressionSnappy Compression = "SNAPPY"
	CompressionLZ4    Compression = "LZ4"
	CompressionZSTD   Compression = "ZSTD"
)

// FamilyConfig holds the per-column-family recognized keys.
type FamilyConfig struct {
	IncludesMVCC bool
	IncludesTags bool
	Compression  Compression
	Bloom        BloomGranularity
	Encoding     Encoding
	BlockCache   bool
	// MaxVersions bounds how many versions of a cell compaction retains
	// (spec.md §4.7 "version horizon").
	MaxVersions int
	// TTL is the age past which a cell is dropped by compaction regardless
	// of version count; zero means no TTL.
	TTL time.Duration
	// TombstonePurgeDelay is the minimum age a delete-type cell must reach,
	// in addition to being covered by a major compaction over every file,
	// before compaction drops it (spec.md §4.7: "dropped only in a major
	// compaction that includes all files and whose horizon exceeds the
	// tombstone age"). Guards against a tombstone being purged before an
	// older, still-masked put that arrived late (e.g. via replication) is
	// guaranteed to have arrived.
	TombstonePurgeDelay time.Duration
}

// Config holds every recognized key from spec.md §6.
type Config struct {
	// region.memstore.flush.size
	RegionMemstoreFlushSize int64
	// regionserver.global.memstore.size.upper.limit / .lower.limit
	GlobalMemstoreUpperLimit float64
	GlobalMemstoreLowerLimit float64
	// wal.logroll.period / wal.logroll.size
	WALLogRollPeriod time.Duration
	WALLogRollSize   int64
	// hstore.compactionThreshold
	StoreCompactionThreshold int
	// hstore.blockingStoreFiles
	StoreBlockingFileCount int
	// hfile.format.version
	FileFormatVersion int
	// hfile.index.max.chunksize
	IndexMaxChunkSize int64
	// hfile.block.cache.size
	BlockCacheSizeFraction float64
	// block.cache.force.important
	ForceCacheImportantBlocks bool
	// snapshot.enabled
	SnapshotEnabled bool
	// coprocessor.abort.on.error
	CoprocessorAbortOnError bool

	// DefaultFamily holds cells.includes.{mvcc,tags} / cells.compression /
	// cells.bloom / cells.encoding defaults applied to families that don't
	// override them.
	DefaultFamily FamilyConfig

	LogLevel string
	DataDir  string
}

// Default returns the engine's built-in defaults, mirrored in spirit from
// HBase's own hbase-default.xml values.
func Default() Config {
	return Config{
		RegionMemstoreFlushSize:  128 << 20, // 128 MiB
		GlobalMemstoreUpperLimit: 0.4,
		GlobalMemstoreLowerLimit: 0.35,
		WALLogRollPeriod:         time.Hour,
		WALLogRollSize:           256 << 20,
		StoreCompactionThreshold: 3,
		StoreBlockingFileCount:   10,
		FileFormatVersion:        3,
		IndexMaxChunkSize:        128 << 10,
		BlockCacheSizeFraction:   0.4,
		ForceCacheImportantBlocks: true,
		SnapshotEnabled:           true,
		CoprocessorAbortOnError:   false,
		DefaultFamily: FamilyConfig{
			IncludesMVCC: true,
			IncludesTags: false,
			Compression:  CompressionNone,
			Bloom:        BloomRow,
			Encoding:     EncodingFastDiff,
			BlockCache:   true,
			MaxVersions:  1,
			TombstonePurgeDelay: 5 * time.Minute,
		},
		LogLevel: "info",
		DataDir:  "data",
	}
}

// FromViper overlays viper-bound values (which may come from flags, env
// vars with the DKV_ prefix, or a config file) on top of Default().
func FromViper(v *viper.Viper) Config {
	c := Default()

	if v == nil {
		return c
	}
	if v.IsSet("region.memstore.flush.size") {
		c.RegionMemstoreFlushSize = v.GetInt64("region.memstore.flush.size")
	}
	if v.IsSet("regionserver.global.memstore.size.upper.limit") {
		c.GlobalMemstoreUpperLimit = v.GetFloat64("regionserver.global.memstore.size.upper.limit")
	}
	if v.IsSet("regionserver.global.memstore.size.lower.limit") {
		c.GlobalMemstoreLowerLimit = v.GetFloat64("regionserver.global.memstore.size.lower.limit")
	}
	if v.IsSet("wal.logroll.period") {
		c.WALLogRollPeriod = v.GetDuration("wal.logroll.period")
	}
	if v.IsSet("wal.logroll.size") {
		c.WALLogRollSize = v.GetInt64("wal.logroll.size")
	}
	if v.IsSet("hstore.compactionThreshold") {
		c.StoreCompactionThreshold = v.GetInt("hstore.compactionThreshold")
	}
	if v.IsSet("hstore.blockingStoreFiles") {
		c.StoreBlockingFileCount = v.GetInt("hstore.blockingStoreFiles")
	}
	if v.IsSet("hfile.format.version") {
		c.FileFormatVersion = v.GetInt("hfile.format.version")
	}
	if v.IsSet("hfile.index.max.chunksize") {
		c.IndexMaxChunkSize = v.GetInt64("hfile.index.max.chunksize")
	}
	if v.IsSet("hfile.block.cache.size") {
		c.BlockCacheSizeFraction = v.GetFloat64("hfile.block.cache.size")
	}
	if v.IsSet("block.cache.force.important") {
		c.ForceCacheImportantBlocks = v.GetBool("block.cache.force.important")
	}
	if v.IsSet("snapshot.enabled") {
		c.SnapshotEnabled = v.GetBool("snapshot.enabled")
	}
	if v.IsSet("coprocessor.abort.on.error") {
		c.CoprocessorAbortOnError = v.GetBool("coprocessor.abort.on.error")
	}
	if v.IsSet("log-level") {
		c.LogLevel = v.GetString("log-level")
	}
	if v.IsSet("data-dir") {
		c.DataDir = v.GetString("data-dir")
	}
	return c
}
