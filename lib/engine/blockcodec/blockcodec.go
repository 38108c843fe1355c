package blockcodec

import (
	"fmt"

	"github.com/dkvlabs/regiondb/lib/engine/blockcodec/compress"
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// WriteBlock serializes cells (already in sorted order, all belonging to
// one logical data/index/bloom block) into the on-disk block form: a fixed
// Header, the checksum bytes it declares, then the (optionally compressed)
// encoded payload.
//
// Grounded on original_source's HFileBlock.Writer.writeHeaderAndData: the
// header records both on-disk and uncompressed sizes so a reader can size
// its decompression buffer without a second pass, and the previous block's
// file offset so a reverse scan (used by reference-file splitting) never
// needs the root index.
func WriteBlock(typ Type, cells []keycodec.Cell, enc Encoding, algo compress.Algorithm, checksumType ChecksumType, prevBlockOffset uint64) ([]byte, error) {
	const op = "blockcodec.WriteBlock"

	uncompressed, err := encodeCells(cells, enc)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
	}

	compressor, err := compress.Get(algo)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
	}
	compressed, err := compressor.Compress(nil, uncompressed)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
	}

	header := Header{
		Type:             typ,
		OnDiskSize:       uint32(len(compressed)),
		UncompressedSize: uint32(len(uncompressed)),
		PrevBlockOffset:  prevBlockOffset,
		ChecksumType:     checksumType,
	}
	checksum := computeChecksum(checksumType, compressed)

	out := make([]byte, 0, HeaderSize+len(checksum)+len(compressed))
	out = append(out, header.encode()...)
	out = append(out, checksum...)
	out = append(out, compressed...)
	return out, nil
}

// Block is a decoded block ready for iteration or index construction.
type Block struct {
	Header Header
	Cells  []keycodec.Cell
}

// ReadBlock parses and verifies a block written by WriteBlock, decoding its
// cells with enc. expectedType enforces that the caller opened the offset
// it thought it did; a mismatch signals a corrupt index (spec.md §9:
// CorruptFile).
func ReadBlock(b []byte, expectedType Type, enc Encoding, algo compress.Algorithm) (Block, error) {
	const op = "blockcodec.ReadBlock"

	header, err := decodeHeader(b)
	if err != nil {
		return Block{}, engineerrors.New(engineerrors.KindCorruptFile, op, err)
	}
	if header.Type != expectedType {
		return Block{}, engineerrors.New(engineerrors.KindCorruptFile, op,
			fmt.Errorf("block type mismatch: want %s got %s", expectedType, header.Type))
	}

	off := HeaderSize
	checksumLen := header.ChecksumType.size()
	if len(b) < off+checksumLen+int(header.OnDiskSize) {
		return Block{}, engineerrors.New(engineerrors.KindCorruptFile, op,
			fmt.Errorf("truncated block: need %d bytes, have %d", off+checksumLen+int(header.OnDiskSize), len(b)))
	}
	checksum := b[off : off+checksumLen]
	off += checksumLen
	compressed := b[off : off+int(header.OnDiskSize)]

	if err := verifyChecksum(header.ChecksumType, compressed, checksum); err != nil {
		return Block{}, err
	}

	compressor, err := compress.Get(algo)
	if err != nil {
		return Block{}, engineerrors.New(engineerrors.KindCorruptFile, op, err)
	}
	uncompressed, err := compressor.Decompress(make([]byte, 0, header.UncompressedSize), compressed)
	if err != nil {
		return Block{}, engineerrors.New(engineerrors.KindCorruptFile, op, err)
	}
	if uint32(len(uncompressed)) != header.UncompressedSize {
		return Block{}, engineerrors.New(engineerrors.KindCorruptFile, op,
			fmt.Errorf("uncompressed size mismatch: header says %d, got %d", header.UncompressedSize, len(uncompressed)))
	}

	cells, err := decodeCells(uncompressed, enc)
	if err != nil {
		return Block{}, engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
	}
	return Block{Header: header, Cells: cells}, nil
}

// WriteRawBlock frames an already-serialized payload (index entries, a
// bloom filter, FILE_INFO) in the same header+checksum envelope as a cell
// block, uncompressed: these blocks are small relative to data blocks and
// are read on nearly every access, so paying a decompression cost buys
// little (spec.md §4.3's "important blocks" are exactly these).
func WriteRawBlock(typ Type, payload []byte, checksumType ChecksumType, prevBlockOffset uint64) []byte {
	header := Header{
		Type:             typ,
		OnDiskSize:       uint32(len(payload)),
		UncompressedSize: uint32(len(payload)),
		PrevBlockOffset:  prevBlockOffset,
		ChecksumType:     checksumType,
	}
	checksum := computeChecksum(checksumType, payload)
	out := make([]byte, 0, HeaderSize+len(checksum)+len(payload))
	out = append(out, header.encode()...)
	out = append(out, checksum...)
	out = append(out, payload...)
	return out
}

// ReadRawBlockPayload is the WriteRawBlock counterpart: it verifies the
// checksum and returns the raw, uncompressed payload bytes.
func ReadRawBlockPayload(b []byte, expectedType Type) ([]byte, Header, error) {
	const op = "blockcodec.ReadRawBlockPayload"

	header, err := decodeHeader(b)
	if err != nil {
		return nil, Header{}, engineerrors.New(engineerrors.KindCorruptFile, op, err)
	}
	if header.Type != expectedType {
		return nil, Header{}, engineerrors.New(engineerrors.KindCorruptFile, op,
			fmt.Errorf("block type mismatch: want %s got %s", expectedType, header.Type))
	}
	off := HeaderSize
	checksumLen := header.ChecksumType.size()
	if len(b) < off+checksumLen+int(header.OnDiskSize) {
		return nil, Header{}, engineerrors.New(engineerrors.KindCorruptFile, op,
			fmt.Errorf("truncated block: need %d bytes, have %d", off+checksumLen+int(header.OnDiskSize), len(b)))
	}
	checksum := b[off : off+checksumLen]
	off += checksumLen
	payload := b[off : off+int(header.OnDiskSize)]
	if err := verifyChecksum(header.ChecksumType, payload, checksum); err != nil {
		return nil, Header{}, err
	}
	return payload, header, nil
}

// EncodedLength returns how many bytes b occupies on disk, the amount the
// caller should advance its cursor by after reading the block at b's
// start. Used by sortedfile's Iterator to step from one data block to the
// next.
func EncodedLength(b []byte) (int, error) {
	header, err := decodeHeader(b)
	if err != nil {
		return 0, err
	}
	return HeaderSize + header.ChecksumType.size() + int(header.OnDiskSize), nil
}
