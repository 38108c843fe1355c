package famstore

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/membuffer"
	"github.com/dkvlabs/regiondb/lib/engine/sortedfile"
	"github.com/dkvlabs/regiondb/lib/engineconfig"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// Store owns one column family's MemBuffer and its ordered, immutable
// SortedFile set (spec.md §3 "Store", §4.7).
//
// Put takes Store's RWMutex for reading (concurrent puts proceed
// together) while Flush's snapshot takes it for writing, mirroring
// HRegion's own updatesLock read/write split in original_source: the
// write-lock section is the only place the MemBuffer-swap boundary and
// the flushed-through sequence number are captured together, so a put
// racing a flush lands deterministically on one side of the boundary or
// the other.
type Store struct {
	opts Options

	mu         sync.RWMutex
	highestSeq uint64

	memBuf *membuffer.MemBuffer

	filesMu sync.RWMutex
	files   []*File // newest (highest MaxSequence) first
	handles map[string]*sortedfile.Handle
}

// New creates an empty Store for one family.
func New(opts Options) *Store {
	return &Store{
		opts:    opts.withDefaults(),
		memBuf:  membuffer.New(),
		handles: make(map[string]*sortedfile.Handle),
	}
}

// Family returns the column family name this Store owns.
func (s *Store) Family() string { return s.opts.Family }

// FamilyConfig returns this Store's family configuration, letting the
// Region layer decide e.g. whether to tag cells with an MVCC number before
// inserting, without Store needing to know about MVCC itself.
func (s *Store) FamilyConfig() engineconfig.FamilyConfig { return s.opts.FamilyConfig }

// Put inserts cells already assigned sequence by the WAL append that
// preceded this call (spec.md dataflow: "WAL append (by durability) →
// MemBuffer insert"). skipWAL marks cells written with SKIP_WAL durability
// for membuffer's separate mutationsWithoutWALSize accounting.
func (s *Store) Put(cells []keycodec.Cell, sequence uint64, skipWAL bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range cells {
		if err := s.memBuf.Insert(c, skipWAL); err != nil {
			return err
		}
	}
	for {
		old := atomic.LoadUint64(&s.highestSeq)
		if sequence <= old {
			return nil
		}
		if atomic.CompareAndSwapUint64(&s.highestSeq, old, sequence) {
			return nil
		}
	}
}

// MemBufferSizeBytes and MutationsWithoutWALSize expose the MemBuffer's
// size accounting for the Scheduler's memory-watermark checks (spec.md
// §4.9).
func (s *Store) MemBufferSizeBytes() int64         { return s.memBuf.SizeBytes() }
func (s *Store) MutationsWithoutWALSize() int64    { return s.memBuf.MutationsWithoutWALSize() }
func (s *Store) FileCount() int {
	s.filesMu.RLock()
	defer s.filesMu.RUnlock()
	return len(s.files)
}

// LoadFile registers an already-published file discovered on disk, for the
// "store load" half of spec.md §4.8's OPENING → OPEN transition: a fresh
// Store starts with no files until its region-open path replays
// RegionFS.ListFiles and calls this once per file, before any WAL replay
// runs. It never touches WAL replay or the WAL itself.
func (s *Store) LoadFile(f *File) {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()
	s.files = insertByRecency(s.files, f)
}

// Close invalidates every open file handle's cached blocks. Called when
// the owning Region closes (spec.md §4.4 "entries are invalidated when the
// file is archived" — closing without archiving still drops this node's
// in-memory view so a later reopen starts cold).
func (s *Store) Close() {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()
	for _, h := range s.handles {
		h.Close()
	}
	s.handles = make(map[string]*sortedfile.Handle)
}

// Get returns the most recent visible cell for (row, family, qualifier) at
// readVersion, honoring tombstone masking across the MemBuffer and every
// SortedFile (spec.md §3 read dataflow).
func (s *Store) Get(row, family, qualifier []byte, readVersion uint64) (keycodec.Cell, bool, error) {
	// The maximum timestamp puts start before every cell of the family,
	// including a family-level tombstone with an empty qualifier.
	start := keycodec.Cell{Row: row, Family: family, Timestamp: ^uint64(0)}
	end := keycodec.Cell{Row: row, Family: nextBytes(family)}

	cells, err := s.collect(&start, &end, readVersion)
	if err != nil {
		return keycodec.Cell{}, false, err
	}
	sortCells(cells)
	masked := maskCells(cells)
	for _, c := range masked {
		if eqBytes(c.Qualifier, qualifier) {
			return c, true, nil
		}
	}
	return keycodec.Cell{}, false, nil
}

// Scan returns every visible cell whose row lies in [startRow, endRow)
// (endRow nil means unbounded), merged across the MemBuffer and every
// SortedFile and tombstone-masked (spec.md §3 "Region.get/scan builds a merging iterator across
// each Store's MemBuffer and SortedFile set").
func (s *Store) Scan(startRow, endRow []byte, readVersion uint64) ([]keycodec.Cell, error) {
	var start *keycodec.Cell
	if startRow != nil {
		c := keycodec.Cell{Row: startRow}
		start = &c
	}
	var end *keycodec.Cell
	if endRow != nil {
		c := keycodec.Cell{Row: endRow}
		end = &c
	}

	cells, err := s.collect(start, end, readVersion)
	if err != nil {
		return nil, err
	}
	sortCells(cells)
	return maskCells(cells), nil
}

// collect gathers every candidate cell (tombstones included) from the
// MemBuffer and every tracked SortedFile within [start, end) visible at
// readVersion, unsorted and unmasked.
func (s *Store) collect(start, end *keycodec.Cell, readVersion uint64) ([]keycodec.Cell, error) {
	const op = "famstore.Store.collect"

	var all []keycodec.Cell
	all = append(all, s.memBuf.Scan(start, end, readVersion)...)

	s.filesMu.RLock()
	files := append([]*File(nil), s.files...)
	s.filesMu.RUnlock()

	for _, f := range files {
		h, err := s.handleFor(f)
		if err != nil {
			return nil, err
		}
		var startEnc, endEnc []byte
		if start != nil {
			enc, err := keycodec.Encode(*start)
			if err != nil {
				return nil, engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
			}
			startEnc = enc
		}
		if end != nil {
			enc, err := keycodec.Encode(*end)
			if err != nil {
				return nil, engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
			}
			endEnc = enc
		}
		it, err := h.Scan(startEnc, endEnc, readVersion)
		if err != nil {
			return nil, err
		}
		for {
			c, ok, err := it.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			all = append(all, c)
		}
	}
	return all, nil
}

func (s *Store) handleFor(f *File) (*sortedfile.Handle, error) {
	const op = "famstore.Store.handleFor"
	s.filesMu.Lock()
	defer s.filesMu.Unlock()

	if h, ok := s.handles[f.FileID]; ok {
		return h, nil
	}
	r, size, err := s.opts.FS.OpenFile(s.opts.Family, f.FileID)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	h, err := sortedfile.Open(r, size, f.FileID, sortedfile.OpenOptions{
		Cache:           s.opts.Cache,
		CacheDataBlocks: s.opts.FamilyConfig.BlockCache,
	})
	if err != nil {
		return nil, err
	}
	s.handles[f.FileID] = h
	return h, nil
}

func sortCells(cells []keycodec.Cell) {
	sort.Slice(cells, func(i, j int) bool { return keycodec.Compare(cells[i], cells[j]) < 0 })
}

// nextBytes returns b followed by a zero byte, the lexicographically
// smallest byte string greater than b, used to build an exclusive end
// boundary just past family b's cells.
func nextBytes(b []byte) []byte {
	out := make([]byte, len(b)+1)
	copy(out, b)
	return out
}
