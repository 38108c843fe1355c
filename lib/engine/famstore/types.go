// Package famstore implements Store (spec.md §3/§4.7: C7), the per-family
// unit owning one MemBuffer plus an ordered, immutable SortedFile set, and
// the flush/compaction pipeline that keeps that set small.
//
// Named famstore rather than store to avoid colliding with the teacher's
// lib/store package, which this module keeps as lib/lockmgr's storage
// abstraction (see DESIGN.md).
//
// Grounded on spec.md §4.7's algorithms directly (original_source ships no
// HStore.java, only regionserver-adjacent tests such as
// TestForceCacheImportantBlocks); the compaction-selection ratio and file
// count bounds mirror HBase's own documented defaults
// (hbase.hstore.compaction.ratio=1.2, .min=3, .max=10) since spec.md names
// the algorithm shape but leaves the constants to the implementation.
package famstore

import (
	"io"
	"time"

	"github.com/dkvlabs/regiondb/lib/engine/sortedfile"
	"github.com/dkvlabs/regiondb/lib/engineconfig"
)

// File is one immutable SortedFile tracked by a Store, plus the metadata
// the Store needs without re-opening it.
type File struct {
	FileID      string
	FirstKey    []byte // keycodec-encoded
	LastKey     []byte // keycodec-encoded
	CellCount   uint64
	Size        int64
	MaxSequence uint64

	// Reference marks a split reference file: it covers only the half of
	// Parent on Side of SplitKey, until compaction rewrites it concrete
	// (spec.md §4.7 "Files may be reference files... during a split").
	Reference  bool
	Parent     string
	SplitKey   []byte
	SplitUpper bool // true: this side is [splitKey, end); false: [start, splitKey)
}

// FileSystem is the subset of RegionFileSystem (lib/engine/regionfs, C10)
// that Store needs to create, publish, open, and archive its family's
// files, kept as a local interface so famstore never imports regionfs
// (regionfs will depend on famstore's types, not the reverse).
type FileSystem interface {
	// CreateFile opens a new file for writing in family's directory,
	// returning a writer and the id Store should pass to PublishFile.
	CreateFile(family string) (io.WriteCloser, string, error)
	// PublishFile atomically makes fileID visible (stage→rename per
	// spec.md §4.10 "commitStoreFile").
	PublishFile(family, fileID string) error
	// OpenFile opens an existing, published file for reading.
	OpenFile(family, fileID string) (io.ReaderAt, int64, error)
	// ArchiveFile moves fileID out of the live set into archival storage,
	// retained until no reference/snapshot needs it.
	ArchiveFile(family, fileID string) error
}

// Options configures a Store.
type Options struct {
	Family       string
	FamilyConfig engineconfig.FamilyConfig
	Writer       sortedfile.WriterOptions
	Cache        sortedfile.BlockCache
	FS           FileSystem

	// CompactionRatio bounds minor-compaction selection: no selected file
	// may exceed CompactionRatio * sum(smaller selected files).
	CompactionRatio float64
	// MinFilesToCompact is hstore.compactionThreshold (engineconfig).
	MinFilesToCompact int
	// MaxFilesToCompact bounds one compaction's input file count.
	MaxFilesToCompact int
	// Now is injectable for TTL-based compaction tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CompactionRatio <= 0 {
		o.CompactionRatio = 1.2
	}
	if o.MinFilesToCompact <= 0 {
		o.MinFilesToCompact = 3
	}
	if o.MaxFilesToCompact <= 0 {
		o.MaxFilesToCompact = 10
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
