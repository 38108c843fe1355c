package sortedfile

import (
	"io"

	"github.com/dkvlabs/regiondb/lib/engine/blockcodec"
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// OpenOptions configures how a Handle treats its block cache.
type OpenOptions struct {
	Cache BlockCache
	// CacheDataBlocks mirrors the owning family's blockCacheEnabled
	// setting. Index and bloom blocks are always pinned regardless of
	// this flag (spec.md §4.3 "important blocks").
	CacheDataBlocks bool
}

// Handle is an opened, read-only SortedFile.
type Handle struct {
	r      io.ReaderAt
	size   int64
	fileID string
	opts   OpenOptions

	trailer trailer
	info    fileInfo
	root    []indexEntry
	bloom   *bloomFilter
}

// Open loads a SortedFile's TRAILER, root index, FILE_INFO, and bloom
// filter (if present), pinning index/bloom blocks into the cache
// regardless of the family's block-cache setting (spec.md §4.3 "open(fileId,
// blockCache) → handle ... pins important blocks into the cache even if
// the family's data-block caching is disabled").
func Open(r io.ReaderAt, size int64, fileID string, opts OpenOptions) (*Handle, error) {
	const op = "sortedfile.Open"
	if size < int64(trailerPayloadSize) {
		return nil, engineerrors.New(engineerrors.KindCorruptFile, op, errShortFile)
	}

	trailerBuf := make([]byte, trailerPayloadSize)
	if _, err := r.ReadAt(trailerBuf, size-int64(trailerPayloadSize)); err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	tr, err := decodeTrailer(trailerBuf)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindCorruptFile, op, err)
	}

	h := &Handle{r: r, size: size, fileID: fileID, opts: opts, trailer: tr}

	fiRaw, err := h.readRange(tr.FileInfoOffset, tr.FileInfoSize)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindCorruptFile, op, err)
	}
	fiPayload, _, err := blockcodec.ReadRawBlockPayload(fiRaw, blockcodec.TypeFileInfo)
	if err != nil {
		return nil, err
	}
	info, err := decodeFileInfo(fiPayload)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindCorruptFile, op, err)
	}
	h.info = info

	rootRaw, err := h.readIndexBlock(tr.RootIndexOffset, tr.RootIndexSize, blockcodec.TypeRootIndex)
	if err != nil {
		return nil, err
	}
	h.root = rootRaw

	if tr.BloomMetaOffset != 0 {
		bRaw, err := h.readRange(tr.BloomMetaOffset, tr.BloomMetaSize)
		if err != nil {
			return nil, engineerrors.New(engineerrors.KindCorruptFile, op, err)
		}
		if opts.Cache != nil {
			opts.Cache.Put(fileID, tr.BloomMetaOffset, CategoryBloom, bRaw)
		}
		payload, _, err := blockcodec.ReadRawBlockPayload(bRaw, blockcodec.TypeBloomChunk)
		if err != nil {
			return nil, err
		}
		bloom, err := decodeBloomFilter(payload)
		if err != nil {
			return nil, engineerrors.New(engineerrors.KindCorruptFile, op, err)
		}
		h.bloom = bloom
	}

	return h, nil
}

// FirstKey and LastKey return the keycodec-encoded bounds of the file
// (spec.md §3 TRAILER invariant).
func (h *Handle) FirstKey() []byte { return h.info.FirstKey }
func (h *Handle) LastKey() []byte  { return h.info.LastKey }
func (h *Handle) CellCount() uint64 { return h.trailer.CellCount }

// Close invalidates this file's cached blocks. SortedFiles are archived,
// not deleted in place, so eviction — not an fd close — is the
// correctness-relevant action (spec.md §4.4: "entries are invalidated
// when the file is archived").
func (h *Handle) Close() {
	if h.opts.Cache != nil {
		h.opts.Cache.InvalidateFile(h.fileID)
	}
}

func (h *Handle) readRange(offset uint64, size uint32) ([]byte, error) {
	if int64(offset)+int64(size) > h.size {
		return nil, errShortFile
	}
	buf := make([]byte, size)
	if _, err := h.r.ReadAt(buf, int64(offset)); err != nil {
		return nil, err
	}
	return buf, nil
}

// readIndexBlock fetches (from cache or disk) and decodes one index
// block's entries, always pinning it into the cache under CategoryIndex.
func (h *Handle) readIndexBlock(offset uint64, size uint32, typ blockcodec.Type) ([]indexEntry, error) {
	const op = "sortedfile.readIndexBlock"
	var raw []byte
	if h.opts.Cache != nil {
		if cached, ok := h.opts.Cache.Get(h.fileID, offset); ok {
			raw = cached
		}
	}
	if raw == nil {
		var err error
		raw, err = h.readRange(offset, size)
		if err != nil {
			return nil, engineerrors.New(engineerrors.KindCorruptFile, op, err)
		}
		if h.opts.Cache != nil {
			h.opts.Cache.Put(h.fileID, offset, CategoryIndex, raw)
		}
	}
	payload, _, err := blockcodec.ReadRawBlockPayload(raw, typ)
	if err != nil {
		return nil, err
	}
	entries, err := decodeIndexEntries(payload)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindCorruptFile, op, err)
	}
	return entries, nil
}

// readDataBlock fetches and decodes one DATA/ENCODED_DATA block, honoring
// CacheDataBlocks.
func (h *Handle) readDataBlock(offset uint64, size uint32) (blockcodec.Block, error) {
	const op = "sortedfile.readDataBlock"
	typ := blockcodec.TypeData
	if h.info.Encoding != blockcodec.EncodingNone {
		typ = blockcodec.TypeEncodedData
	}

	var raw []byte
	if h.opts.Cache != nil {
		if cached, ok := h.opts.Cache.Get(h.fileID, offset); ok {
			raw = cached
		}
	}
	if raw == nil {
		var err error
		raw, err = h.readRange(offset, size)
		if err != nil {
			return blockcodec.Block{}, engineerrors.New(engineerrors.KindCorruptFile, op, err)
		}
		if h.opts.Cache != nil && h.opts.CacheDataBlocks {
			h.opts.Cache.Put(h.fileID, offset, CategoryData, raw)
		}
	}
	return blockcodec.ReadBlock(raw, typ, h.info.Encoding, h.info.Compression)
}

// descend walks from the root index down to the data-block entry that
// would contain encodedKey (the entry with the largest firstKey <=
// encodedKey at each level), returning ok=false if encodedKey precedes
// every entry in the file.
func (h *Handle) descend(encodedKey []byte) (indexEntry, bool, error) {
	entries := h.root
	depth := h.trailer.IndexDepth
	for {
		idx, ok := seekEntry(entries, encodedKey)
		if !ok {
			return indexEntry{}, false, nil
		}
		if depth == 0 {
			return entries[idx], true, nil
		}
		typ := blockcodec.TypeIntermediateIndex
		if depth == 1 {
			typ = blockcodec.TypeLeafIndex
		}
		next, err := h.readIndexBlock(entries[idx].offset, entries[idx].size, typ)
		if err != nil {
			return indexEntry{}, false, err
		}
		entries = next
		depth--
	}
}

// seekEntry returns the last entry whose firstKey is <= encodedKey (the
// block that would contain encodedKey if it's present at all).
func seekEntry(entries []indexEntry, encodedKey []byte) (int, bool) {
	lo, hi := 0, len(entries)-1
	best := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if keycodec.CompareEncoded(entries[mid].firstKey, encodedKey) <= 0 {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// Get returns the first cell matching (row, family, qualifier) visible at
// readVersion (the highest timestamp <= readVersion), or found=false.
func (h *Handle) Get(row, family, qualifier []byte, readVersion uint64) (keycodec.Cell, bool, error) {
	seek := keycodec.Cell{Row: row, Family: family, Qualifier: qualifier, Timestamp: readVersion}

	if h.bloom != nil {
		key := bloomKey(h.info.Bloom, row, family, qualifier)
		if !h.bloom.mayContain(key) {
			return keycodec.Cell{}, false, nil
		}
	}

	encodedSeek, err := keycodec.Encode(seek)
	if err != nil {
		return keycodec.Cell{}, false, err
	}

	// A run's versions can continue past the block descend picks, so read
	// forward from the seek key rather than from one block.
	it, err := h.Scan(encodedSeek, nil, readVersion)
	if err != nil {
		return keycodec.Cell{}, false, err
	}
	c, ok, err := it.Next()
	if err != nil || !ok {
		return keycodec.Cell{}, false, err
	}
	if !eqBytes(c.Row, row) || !eqBytes(c.Family, family) || !eqBytes(c.Qualifier, qualifier) {
		return keycodec.Cell{}, false, nil
	}
	return c, true, nil
}

func eqBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Scan returns a lazy iterator over [startKey, endKey) (endKey exclusive;
// a nil endKey scans to the end of the file), filtered to cells with
// timestamp <= readVersion.
func (h *Handle) Scan(startKey, endKey []byte, readVersion uint64) (*Iterator, error) {
	seekKey := startKey
	if seekKey == nil || keycodec.CompareEncoded(seekKey, h.info.FirstKey) < 0 {
		seekKey = h.info.FirstKey
	}
	startEntry, ok, err := h.descend(seekKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Iterator{done: true}, nil
	}
	block, err := h.readDataBlock(startEntry.offset, startEntry.size)
	if err != nil {
		return nil, err
	}
	return &Iterator{
		h:           h,
		block:       block,
		pos:         0,
		nextOffset:  startEntry.offset + uint64(startEntry.size),
		startKey:    startKey,
		endKey:      endKey,
		readVersion: readVersion,
	}, nil
}

// Iterator lazily walks data blocks in file order.
type Iterator struct {
	h           *Handle
	block       blockcodec.Block
	pos         int
	nextOffset  uint64
	startKey    []byte
	endKey      []byte
	readVersion uint64
	done        bool
}

// Next advances and returns the next visible cell, or ok=false when the
// iterator is exhausted or endKey is reached.
func (it *Iterator) Next() (keycodec.Cell, bool, error) {
	if it.done {
		return keycodec.Cell{}, false, nil
	}
	for {
		for it.pos < len(it.block.Cells) {
			c := it.block.Cells[it.pos]
			it.pos++
			if c.Timestamp > it.readVersion {
				continue
			}
			if it.startKey != nil || it.endKey != nil {
				enc, err := keycodec.Encode(c)
				if err != nil {
					return keycodec.Cell{}, false, err
				}
				if it.startKey != nil && keycodec.CompareEncoded(enc, it.startKey) < 0 {
					continue
				}
				if it.endKey != nil && keycodec.CompareEncoded(enc, it.endKey) >= 0 {
					it.done = true
					return keycodec.Cell{}, false, nil
				}
			}
			return c, true, nil
		}
		if it.nextOffset >= it.h.trailer.DataBlocksEnd {
			it.done = true
			return keycodec.Cell{}, false, nil
		}
		// Peek the next block's header to learn its on-disk size before
		// reading it fully.
		hdrBuf, err := it.h.readRange(it.nextOffset, uint32(blockcodec.HeaderSize))
		if err != nil {
			return keycodec.Cell{}, false, err
		}
		n, err := blockcodec.EncodedLength(hdrBuf)
		if err != nil {
			it.done = true
			return keycodec.Cell{}, false, err
		}
		block, err := it.h.readDataBlock(it.nextOffset, uint32(n))
		if err != nil {
			it.done = true
			return keycodec.Cell{}, false, err
		}
		it.block = block
		it.pos = 0
		it.nextOffset += uint64(n)
	}
}
