package sortedfile

import (
	"io"

	"github.com/dkvlabs/regiondb/lib/engine/blockcodec"
	"github.com/dkvlabs/regiondb/lib/engine/blockcodec/compress"
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engineconfig"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// WriterOptions configures a new SortedFile (spec.md §6 per-family cells.*
// keys and hfile.* keys).
type WriterOptions struct {
	Encoding          blockcodec.Encoding
	Compression       compress.Algorithm
	ChecksumType      blockcodec.ChecksumType
	FormatVersion     int // 2 or 3 (spec.md §6 hfile.format.version)
	TargetBlockSize   int
	IndexMaxChunkSize int64
	Bloom             engineconfig.BloomGranularity
	BloomFalsePositiveRate float64
	// ExpectedEntries sizes the bloom filter's bit array; callers pass the
	// MemBuffer snapshot's cell count or a Store-level estimate.
	ExpectedEntries int
}

func (o WriterOptions) withDefaults() WriterOptions {
	if o.TargetBlockSize <= 0 {
		o.TargetBlockSize = 64 << 10
	}
	if o.IndexMaxChunkSize <= 0 {
		o.IndexMaxChunkSize = 128 << 10
	}
	if o.FormatVersion == 0 {
		o.FormatVersion = 3
	}
	if o.BloomFalsePositiveRate <= 0 {
		o.BloomFalsePositiveRate = 0.01
	}
	if o.ExpectedEntries <= 0 {
		o.ExpectedEntries = 1024
	}
	return o
}

// Writer appends cells in order and produces one immutable SortedFile.
// Cells must arrive already sorted per keycodec.Compare (spec.md §4.3
// "append(cell): cells must arrive in §3 order").
type Writer struct {
	w      io.Writer
	opts   WriterOptions
	fileID string

	offset uint64

	pending     []keycodec.Cell
	pendingSize int

	leafEntries []indexEntry
	bloom       *bloomFilter

	firstKey []byte
	lastKey  []byte
	lastCell keycodec.Cell
	haveLast bool
	cellCount uint64

	finished bool
}

// NewWriter starts writing a SortedFile to w. w need not be seekable;
// SortedFile.Finish() computes all offsets forward-only, matching spec.md
// §3's "append-only during writing" invariant.
func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	opts = opts.withDefaults()
	var bloom *bloomFilter
	if opts.Bloom != engineconfig.BloomNone && opts.Bloom != "" {
		bloom = newBloomFilter(opts.ExpectedEntries, opts.BloomFalsePositiveRate)
	}
	return &Writer{w: w, opts: opts, bloom: bloom, fileID: NewFileID()}
}

// FileID returns the identifier assigned to the file being written, stable
// for the lifetime of this Writer.
func (w *Writer) FileID() string { return w.fileID }

// Append adds a cell to the file. Cells must be non-decreasing per
// keycodec.Compare.
func (w *Writer) Append(c keycodec.Cell) error {
	const op = "sortedfile.Writer.Append"
	if w.finished {
		return engineerrors.New(engineerrors.KindCorruptEncoding, op, errWriterFinished)
	}
	if w.haveLast && keycodec.Compare(w.lastCell, c) > 0 {
		return engineerrors.New(engineerrors.KindCorruptEncoding, op, errOutOfOrder)
	}

	enc, err := keycodec.Encode(c)
	if err != nil {
		return err
	}
	if w.firstKey == nil {
		w.firstKey = enc
	}
	w.lastKey = enc
	w.lastCell = c
	w.haveLast = true
	w.cellCount++

	if w.bloom != nil {
		w.bloom.add(bloomKey(w.opts.Bloom, c.Row, c.Family, c.Qualifier))
	}

	w.pending = append(w.pending, c)
	w.pendingSize += len(enc)
	if w.pendingSize >= w.opts.TargetBlockSize {
		return w.flushDataBlock()
	}
	return nil
}

func (w *Writer) flushDataBlock() error {
	if len(w.pending) == 0 {
		return nil
	}
	const op = "sortedfile.Writer.flushDataBlock"

	typ := blockcodec.TypeData
	if w.opts.Encoding != blockcodec.EncodingNone {
		typ = blockcodec.TypeEncodedData
	}
	blockFirstKey, err := keycodec.Encode(w.pending[0])
	if err != nil {
		return err
	}

	raw, err := blockcodec.WriteBlock(typ, w.pending, w.opts.Encoding, w.opts.Compression, w.opts.ChecksumType, w.prevDataOffset())
	if err != nil {
		return engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
	}
	if _, err := w.w.Write(raw); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, op, err)
	}

	w.leafEntries = append(w.leafEntries, indexEntry{
		firstKey: blockFirstKey,
		offset:   w.offset,
		size:     uint32(len(raw)),
	})
	w.offset += uint64(len(raw))
	w.pending = w.pending[:0]
	w.pendingSize = 0
	return nil
}

func (w *Writer) prevDataOffset() uint64 {
	if len(w.leafEntries) == 0 {
		return 0
	}
	return w.leafEntries[len(w.leafEntries)-1].offset
}

// FileResult is returned by Finish: the identity and range a Store needs
// to track the new file without re-opening it.
type FileResult struct {
	FileID    string
	FirstKey  []byte // keycodec-encoded
	LastKey   []byte // keycodec-encoded
	CellCount uint64
	Size      int64
}

// Finish flushes any buffered cells, writes the multi-level index, bloom,
// FILE_INFO, and TRAILER blocks, and returns the file's identity. Finish
// must be the last call made on w; the caller is responsible for the
// atomic stage-then-rename into the family directory (lib/engine/regionfs)
// that makes the file visible (spec.md §3: "becomes visible only after
// successful TRAILER write and atomic rename").
func (w *Writer) Finish() (FileResult, error) {
	const op = "sortedfile.Writer.Finish"
	if w.finished {
		return FileResult{}, engineerrors.New(engineerrors.KindCorruptEncoding, op, errWriterFinished)
	}
	w.finished = true

	if err := w.flushDataBlock(); err != nil {
		return FileResult{}, err
	}
	if len(w.leafEntries) == 0 {
		return FileResult{}, engineerrors.New(engineerrors.KindCorruptEncoding, op, errEmptyFile)
	}

	dataBlocksEnd := w.offset
	rootOffset, rootSize, indexDepth, err := w.writeIndexLevels()
	if err != nil {
		return FileResult{}, err
	}

	var bloomOffset uint64
	var bloomSize uint32
	if w.bloom != nil {
		payload := w.bloom.encode()
		raw := blockcodec.WriteRawBlock(blockcodec.TypeBloomChunk, payload, w.opts.ChecksumType, w.offset)
		if _, err := w.w.Write(raw); err != nil {
			return FileResult{}, engineerrors.New(engineerrors.KindTransientIO, op, err)
		}
		bloomOffset = w.offset
		bloomSize = uint32(len(raw))
		w.offset += uint64(len(raw))
	}

	fi := fileInfo{
		FormatVersion: w.opts.FormatVersion,
		Encoding:      w.opts.Encoding,
		Compression:   w.opts.Compression,
		Bloom:         w.opts.Bloom,
		FirstKey:      w.firstKey,
		LastKey:       w.lastKey,
	}
	fiPayload := fi.encode()
	fiRaw := blockcodec.WriteRawBlock(blockcodec.TypeFileInfo, fiPayload, w.opts.ChecksumType, w.offset)
	if _, err := w.w.Write(fiRaw); err != nil {
		return FileResult{}, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	fiOffset := w.offset
	fiSize := uint32(len(fiRaw))
	w.offset += uint64(len(fiRaw))

	tr := trailer{
		Version:         w.opts.FormatVersion,
		HasChecksums:    w.opts.ChecksumType != blockcodec.ChecksumNone,
		IndexDepth:      indexDepth,
		DataBlocksEnd:   dataBlocksEnd,
		RootIndexOffset: rootOffset,
		RootIndexSize:   rootSize,
		BloomMetaOffset: bloomOffset,
		BloomMetaSize:   bloomSize,
		FileInfoOffset:  fiOffset,
		FileInfoSize:    fiSize,
		CellCount:       w.cellCount,
	}
	// The trailer is written unwrapped (no block header/checksum envelope)
	// at a fixed size so a reader can always find it by seeking to
	// (fileSize - trailerPayloadSize), without first knowing this file's
	// checksum type — the chicken-and-egg that wrapping it like any other
	// block would create.
	trailerRaw := tr.encode()
	if _, err := w.w.Write(trailerRaw); err != nil {
		return FileResult{}, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	w.offset += uint64(len(trailerRaw))

	return FileResult{
		FileID:    w.fileID,
		FirstKey:  w.firstKey,
		LastKey:   w.lastKey,
		CellCount: w.cellCount,
		Size:      int64(w.offset),
	}, nil
}

// writeIndexLevels builds the multi-level index bottom-up: data-block
// entries are chunked by IndexMaxChunkSize into LEAF_INDEX blocks, whose
// own entries are chunked again into INTERMEDIATE_INDEX blocks, and so on
// until one block remains — that one is tagged ROOT_INDEX (spec.md §4.3:
// "multi-level index built bottom-up with a configured max chunk size").
func (w *Writer) writeIndexLevels() (rootOffset uint64, rootSize uint32, indexDepth int, err error) {
	entries := w.leafEntries
	level := 0
	for {
		chunks := chunkEntries(entries, w.opts.IndexMaxChunkSize)
		isRoot := len(chunks) == 1

		typ := blockcodec.TypeIntermediateIndex
		if level == 0 {
			typ = blockcodec.TypeLeafIndex
		}
		if isRoot {
			typ = blockcodec.TypeRootIndex
		}

		var next []indexEntry
		for _, chunk := range chunks {
			payload := encodeIndexEntries(chunk)
			raw := blockcodec.WriteRawBlock(typ, payload, w.opts.ChecksumType, w.offset)
			if _, werr := w.w.Write(raw); werr != nil {
				return 0, 0, 0, engineerrors.New(engineerrors.KindTransientIO, "sortedfile.Writer.writeIndexLevels", werr)
			}
			entry := indexEntry{firstKey: chunk[0].firstKey, offset: w.offset, size: uint32(len(raw))}
			w.offset += uint64(len(raw))
			next = append(next, entry)
		}
		if isRoot {
			return next[0].offset, next[0].size, level, nil
		}
		entries = next
		level++
	}
}
