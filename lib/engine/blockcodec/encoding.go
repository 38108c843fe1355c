package blockcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
)

// Encoding is a data-block cell encoding (spec.md §4.2). NONE stores each
// cell's full keycodec.Encode bytes; PREFIX shares each row's common prefix
// with its predecessor in the block and elides a repeated family; DIFF
// additionally elides a repeated qualifier; FAST_DIFF further stores the value length as a delta from the
// previous cell's value length.
//
// Grounded on original_source's hfile.encoding.{NoneEncoder,
// PrefixKeyDeltaEncoder, DiffKeyDeltaEncoder, FastDiffDeltaEncoder}, scaled
// down to the fields spec.md actually names (row/family/qualifier sharing
// and value-length deltas) rather than DIFF's full per-field delta set.
type Encoding byte

const (
	EncodingNone Encoding = iota
	EncodingPrefix
	EncodingDiff
	EncodingFastDiff
)

func (e Encoding) String() string {
	switch e {
	case EncodingNone:
		return "NONE"
	case EncodingPrefix:
		return "PREFIX"
	case EncodingDiff:
		return "DIFF"
	case EncodingFastDiff:
		return "FAST_DIFF"
	default:
		return fmt.Sprintf("Encoding(%d)", byte(e))
	}
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func putVarint(buf *bytes.Buffer, v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func putBytes(buf *bytes.Buffer, b []byte) {
	putUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

type byteReader struct {
	b   []byte
	off int
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.b[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("blockcodec: truncated uvarint at offset %d", r.off)
	}
	r.off += n
	return v, nil
}

func (r *byteReader) varint() (int64, error) {
	v, n := binary.Varint(r.b[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("blockcodec: truncated varint at offset %d", r.off)
	}
	r.off += n
	return v, nil
}

func (r *byteReader) bytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if r.off+int(n) > len(r.b) {
		return nil, fmt.Errorf("blockcodec: truncated byte segment at offset %d", r.off)
	}
	out := r.b[r.off : r.off+int(n)]
	r.off += int(n)
	return out, nil
}

func (r *byteReader) done() bool { return r.off >= len(r.b) }

// encodeCells serializes cells (already in sorted order) into a single
// uncompressed block payload using enc.
func encodeCells(cells []keycodec.Cell, enc Encoding) ([]byte, error) {
	var buf bytes.Buffer
	switch enc {
	case EncodingNone:
		for _, c := range cells {
			raw, err := keycodec.Encode(c)
			if err != nil {
				return nil, err
			}
			putBytes(&buf, raw)
		}
	case EncodingPrefix, EncodingDiff, EncodingFastDiff:
		var prev keycodec.Cell
		havePrev := false
		for _, c := range cells {
			sharedRow := 0
			if havePrev {
				sharedRow = commonPrefixLen(prev.Row, c.Row)
			}
			putUvarint(&buf, uint64(sharedRow))
			putBytes(&buf, c.Row[sharedRow:])

			sameFamily := havePrev && bytes.Equal(prev.Family, c.Family)
			sameQualifier := havePrev && enc != EncodingPrefix && bytes.Equal(prev.Qualifier, c.Qualifier)
			flags := byte(0)
			if sameFamily {
				flags |= 0x1
			}
			if sameQualifier {
				flags |= 0x2
			}
			buf.WriteByte(flags)
			if !sameFamily {
				putBytes(&buf, c.Family)
			}
			if !sameQualifier {
				putBytes(&buf, c.Qualifier)
			}

			var tsType [9]byte
			binary.BigEndian.PutUint64(tsType[:8], ^c.Timestamp)
			tsType[8] = byte(c.Type)
			buf.Write(tsType[:])

			tagBytes := keycodec.EncodeTags(c.Tags)
			putBytes(&buf, tagBytes)

			if enc == EncodingFastDiff && havePrev {
				putVarint(&buf, int64(len(c.Value))-int64(len(prev.Value)))
			} else {
				putUvarint(&buf, uint64(len(c.Value)))
			}
			buf.Write(c.Value)

			prev = c
			havePrev = true
		}
	default:
		return nil, fmt.Errorf("blockcodec: unknown encoding %v", enc)
	}
	return buf.Bytes(), nil
}

// decodeCells parses a block payload produced by encodeCells back into
// cells, in on-disk order.
func decodeCells(payload []byte, enc Encoding) ([]keycodec.Cell, error) {
	var out []keycodec.Cell
	r := &byteReader{b: payload}
	switch enc {
	case EncodingNone:
		for !r.done() {
			raw, err := r.bytes()
			if err != nil {
				return nil, err
			}
			c, err := keycodec.Decode(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	case EncodingPrefix, EncodingDiff, EncodingFastDiff:
		var prev keycodec.Cell
		havePrev := false
		for !r.done() {
			sharedRow, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			suffix, err := r.bytes()
			if err != nil {
				return nil, err
			}
			row := make([]byte, int(sharedRow)+len(suffix))
			if havePrev && sharedRow > 0 {
				copy(row, prev.Row[:sharedRow])
			}
			copy(row[sharedRow:], suffix)

			if r.off >= len(r.b) {
				return nil, fmt.Errorf("blockcodec: truncated flags byte at offset %d", r.off)
			}
			flags := r.b[r.off]
			r.off++

			var family []byte
			if flags&0x1 != 0 {
				family = prev.Family
			} else {
				family, err = r.bytes()
				if err != nil {
					return nil, err
				}
			}
			var qualifier []byte
			if flags&0x2 != 0 {
				qualifier = prev.Qualifier
			} else {
				qualifier, err = r.bytes()
				if err != nil {
					return nil, err
				}
			}

			if r.off+9 > len(r.b) {
				return nil, fmt.Errorf("blockcodec: truncated timestamp/type at offset %d", r.off)
			}
			ts := ^binary.BigEndian.Uint64(r.b[r.off : r.off+8])
			typ := keycodec.Type(r.b[r.off+8])
			r.off += 9

			tagBytes, err := r.bytes()
			if err != nil {
				return nil, err
			}
			tags, err := keycodec.DecodeTags(tagBytes)
			if err != nil {
				return nil, err
			}

			var valLen int64
			if enc == EncodingFastDiff && havePrev {
				delta, err := r.varint()
				if err != nil {
					return nil, err
				}
				valLen = int64(len(prev.Value)) + delta
			} else {
				u, err := r.uvarint()
				if err != nil {
					return nil, err
				}
				valLen = int64(u)
			}
			if valLen < 0 || r.off+int(valLen) > len(r.b) {
				return nil, fmt.Errorf("blockcodec: invalid value length %d at offset %d", valLen, r.off)
			}
			value := make([]byte, valLen)
			copy(value, r.b[r.off:r.off+int(valLen)])
			r.off += int(valLen)

			c := keycodec.Cell{
				Row:       row,
				Family:    family,
				Qualifier: qualifier,
				Timestamp: ts,
				Type:      typ,
				Value:     value,
				Tags:      tags,
			}
			out = append(out, c)
			prev = c
			havePrev = true
		}
	default:
		return nil, fmt.Errorf("blockcodec: unknown encoding %v", enc)
	}
	return out, nil
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
