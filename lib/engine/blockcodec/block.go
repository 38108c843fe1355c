// Package blockcodec groups sorted cells into fixed-target-size blocks and
// writes/reads them with optional prefix encoding and compression
// (spec.md §4.2: C2 BlockCodec).
//
// Grounded on original_source's hfile.HFileBlock (header layout: block
// type, on-disk size, uncompressed size, previous-block offset, checksum
// type+bytes) and hfile.DataBlockEncoding (NONE/PREFIX/DIFF/FAST_DIFF).
// other_examples/cnxfgit-lsm-tree-go__sst_writer.go and
// Prince-Hervoet-GoSeeLSM__sstable.go were read for how Go LSM engines
// typically frame a block with a length+checksum header; this package
// keeps HBase's richer encoding taxonomy since spec.md explicitly names
// all four encodings and requires a checksum-mismatch failure mode.
package blockcodec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// Type identifies the kind of block (spec.md §3 SortedFile physical layout).
type Type byte

const (
	TypeData Type = iota
	TypeEncodedData
	TypeLeafIndex
	TypeIntermediateIndex
	TypeRootIndex
	TypeBloomChunk
	TypeBloomMeta
	TypeFileInfo
	TypeTrailer
)

func (t Type) String() string {
	switch t {
	case TypeData:
		return "DATA"
	case TypeEncodedData:
		return "ENCODED_DATA"
	case TypeLeafIndex:
		return "LEAF_INDEX"
	case TypeIntermediateIndex:
		return "INTERMEDIATE_INDEX"
	case TypeRootIndex:
		return "ROOT_INDEX"
	case TypeBloomChunk:
		return "BLOOM_CHUNK"
	case TypeBloomMeta:
		return "BLOOM_META"
	case TypeFileInfo:
		return "FILE_INFO"
	case TypeTrailer:
		return "TRAILER"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// ChecksumType names the per-block checksum algorithm.
type ChecksumType byte

const (
	ChecksumNone ChecksumType = iota
	ChecksumCRC32
)

// size returns the number of checksum bytes that follow the header for t.
func (t ChecksumType) size() int {
	if t == ChecksumCRC32 {
		return 4
	}
	return 0
}

// HeaderSize is the fixed portion of every block header, not including the
// variable-length checksum bytes that follow it (spec.md §4.2: "every
// block has a length and checksum header").
const HeaderSize = 1 /* type */ + 4 /* onDiskSize */ + 4 /* uncompressedSize */ + 8 /* prevOffset */ + 1 /* checksumType */

// Header is the fixed-size prefix of every on-disk block.
type Header struct {
	Type             Type
	OnDiskSize       uint32 // size of the (possibly compressed) payload following header+checksum
	UncompressedSize uint32
	PrevBlockOffset  uint64
	ChecksumType     ChecksumType
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	b[0] = byte(h.Type)
	binary.BigEndian.PutUint32(b[1:5], h.OnDiskSize)
	binary.BigEndian.PutUint32(b[5:9], h.UncompressedSize)
	binary.BigEndian.PutUint64(b[9:17], h.PrevBlockOffset)
	b[17] = byte(h.ChecksumType)
	return b
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("truncated block header: %d bytes", len(b))
	}
	return Header{
		Type:             Type(b[0]),
		OnDiskSize:       binary.BigEndian.Uint32(b[1:5]),
		UncompressedSize: binary.BigEndian.Uint32(b[5:9]),
		PrevBlockOffset:  binary.BigEndian.Uint64(b[9:17]),
		ChecksumType:     ChecksumType(b[17]),
	}, nil
}

func computeChecksum(typ ChecksumType, payload []byte) []byte {
	switch typ {
	case ChecksumCRC32:
		sum := crc32.ChecksumIEEE(payload)
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, sum)
		return b
	default:
		return nil
	}
}

// verifyChecksum checks payload against the checksum bytes that preceded
// it on disk, returning ChecksumMismatch on failure.
func verifyChecksum(typ ChecksumType, payload, want []byte) error {
	if typ == ChecksumNone {
		return nil
	}
	got := computeChecksum(typ, payload)
	if string(got) != string(want) {
		return engineerrors.New(engineerrors.KindChecksumMismatch, "blockcodec.verifyChecksum",
			fmt.Errorf("checksum mismatch for %d-byte payload", len(payload)))
	}
	return nil
}
