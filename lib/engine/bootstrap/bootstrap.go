// Package bootstrap discovers and opens already-persisted regions from a
// data directory, the "store load" half of spec.md §4.8's OPENING → OPEN
// transition. It is the one place that wires RegionFileSystem, Store, and
// Region together from nothing but a directory tree, so cmd/regionadmin and
// cmd/engined share a single code path instead of each re-deriving it.
package bootstrap

import (
	"math"
	"os"
	"path/filepath"

	"github.com/dkvlabs/regiondb/lib/engine/blockcodec"
	"github.com/dkvlabs/regiondb/lib/engine/blockcodec/compress"
	"github.com/dkvlabs/regiondb/lib/engine/famstore"
	"github.com/dkvlabs/regiondb/lib/engine/region"
	"github.com/dkvlabs/regiondb/lib/engine/regionfs"
	"github.com/dkvlabs/regiondb/lib/engine/sortedfile"
	"github.com/dkvlabs/regiondb/lib/engineconfig"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("engine/bootstrap")

// TableRef names one namespace/table directory found under a data root.
type TableRef struct {
	Namespace string
	Table     string
}

// DiscoverTables walks dataDir/tables for namespace/table directory pairs,
// following regionfs.Root's own "tables/<namespace>/<table>" layout.
func DiscoverTables(dataDir string) ([]TableRef, error) {
	tablesDir := filepath.Join(dataDir, "tables")
	namespaces, err := os.ReadDir(tablesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, engineerrors.New(engineerrors.KindTransientIO, "bootstrap.DiscoverTables", err)
	}
	var out []TableRef
	for _, ns := range namespaces {
		if !ns.IsDir() {
			continue
		}
		tables, err := os.ReadDir(filepath.Join(tablesDir, ns.Name()))
		if err != nil {
			return nil, engineerrors.New(engineerrors.KindTransientIO, "bootstrap.DiscoverTables", err)
		}
		for _, t := range tables {
			if t.IsDir() {
				out = append(out, TableRef{Namespace: ns.Name(), Table: t.Name()})
			}
		}
	}
	return out, nil
}

// DiscoverRegions lists the encoded names of every region directory under
// a table's directory (one that carries a .regioninfo descriptor).
func DiscoverRegions(tableDir string) ([]string, error) {
	entries, err := os.ReadDir(tableDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, engineerrors.New(engineerrors.KindTransientIO, "bootstrap.DiscoverRegions", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(tableDir, e.Name(), ".regioninfo")); err == nil {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// WriterOptionsFor derives a sortedfile.WriterOptions from a family's
// recognized configuration (spec.md §6 cells.compression/bloom/encoding),
// the same conversion Store.Flush/Compact need before writing a file.
func WriterOptionsFor(cfg engineconfig.Config, fc engineconfig.FamilyConfig) sortedfile.WriterOptions {
	return sortedfile.WriterOptions{
		Encoding:          encodingFor(fc.Encoding),
		Compression:       compress.Algorithm(fc.Compression),
		FormatVersion:     cfg.FileFormatVersion,
		IndexMaxChunkSize: cfg.IndexMaxChunkSize,
		Bloom:             fc.Bloom,
	}
}

func encodingFor(e engineconfig.Encoding) blockcodec.Encoding {
	switch e {
	case engineconfig.EncodingPrefix:
		return blockcodec.EncodingPrefix
	case engineconfig.EncodingDiff:
		return blockcodec.EncodingDiff
	case engineconfig.EncodingFastDiff:
		return blockcodec.EncodingFastDiff
	default:
		return blockcodec.EncodingNone
	}
}

// OpenRegionOptions configures OpenRegion.
type OpenRegionOptions struct {
	Root      *regionfs.Root
	Namespace string
	Table     string
	Encoded   string
	Config    engineconfig.Config
	Cache     sortedfile.BlockCache
	WAL       region.WAL
	Hooks     region.Hooks
}

// OpenRegion reads a region's .regioninfo, loads every family's published
// files into a fresh famstore.Store (LoadFile, not a flush/compact path),
// and returns a Region in state OPEN. It never replays the WAL: cells
// still only in WAL segments newer than a Store's last flush are not
// recovered here — WAL replay is a separate concern (spec.md §4.5 "replay
// (...) on node recovery") left to the caller that owns the node-wide WAL.
func OpenRegion(opts OpenRegionOptions) (*region.Region, error) {
	const op = "bootstrap.OpenRegion"

	tableFS := opts.Root.Table(opts.Namespace, opts.Table)
	info, err := tableFS.ReadRegionInfo(opts.Encoded)
	if err != nil {
		return nil, err
	}
	regionFS := tableFS.Region(info)

	families, err := regionFS.ListFamilies()
	if err != nil {
		return nil, err
	}

	stores := make(map[string]*famstore.Store, len(families))
	for _, family := range families {
		fc := opts.Config.DefaultFamily
		store := famstore.New(famstore.Options{
			Family:       family,
			FamilyConfig: fc,
			Writer:       WriterOptionsFor(opts.Config, fc),
			Cache:        opts.Cache,
			FS:           regionFS,
		})

		fileIDs, err := regionFS.ListFiles(family)
		if err != nil {
			return nil, err
		}
		for _, fileID := range fileIDs {
			f, err := loadFileMeta(regionFS, family, fileID, opts.Cache, fc)
			if err != nil {
				return nil, engineerrors.New(engineerrors.KindCorruptFile, op, err)
			}
			store.LoadFile(f)
		}
		stores[family] = store
	}

	r := region.New(region.Options{
		Info:   info,
		Stores: stores,
		WAL:    opts.WAL,
		Hooks:  opts.Hooks,
	})
	r.MarkOpen()
	log.Infof("opened region %s (%d families)", info.EncodedName, len(stores))
	return r, nil
}

// loadFileMeta opens fileID just long enough to read its trailer-level
// metadata and derive the highest MVCC sequence any of its cells carries,
// since famstore.File tracks that for compaction/recency ordering but
// sortedfile.Handle doesn't expose it directly.
func loadFileMeta(fs *regionfs.RegionFS, family, fileID string, cache sortedfile.BlockCache, fc engineconfig.FamilyConfig) (*famstore.File, error) {
	r, size, err := fs.OpenFile(family, fileID)
	if err != nil {
		return nil, err
	}
	h, err := sortedfile.Open(r, size, fileID, sortedfile.OpenOptions{
		Cache:           cache,
		CacheDataBlocks: fc.BlockCache,
	})
	if err != nil {
		return nil, err
	}
	defer h.Close()

	maxSeq, err := highestSequence(h)
	if err != nil {
		return nil, err
	}

	return &famstore.File{
		FileID:      fileID,
		FirstKey:    h.FirstKey(),
		LastKey:     h.LastKey(),
		CellCount:   h.CellCount(),
		Size:        size,
		MaxSequence: maxSeq,
	}, nil
}

func highestSequence(h *sortedfile.Handle) (uint64, error) {
	it, err := h.Scan(nil, nil, math.MaxUint64)
	if err != nil {
		return 0, err
	}
	var max uint64
	for {
		c, ok, err := it.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		if seq, present := c.MVCC(); present && seq > max {
			max = seq
		}
	}
	return max, nil
}
