// Package keycodec implements the canonical byte-level encoding and
// comparison of Cells (spec.md §3, §4.1: C1 KeyCodec).
//
// Grounded on original_source's org.apache.hadoop.hbase.KeyValue /
// CellComparatorImpl: a single flat byte buffer (row, family, qualifier,
// timestamp, type) with a dedicated comparator that sorts by row, family,
// qualifier ascending and timestamp descending. other_examples/
// AmrMurad1-Go-Store__format.go and dd0wney-graphdb__sstable_types.go were
// read for how Go LSM engines typically lay out an analogous encoded-key
// type; this package keeps HBase's richer Cell shape (type byte + tags)
// rather than those simpler (key, seq) schemes, since spec.md requires
// the full multi-version/tombstone type taxonomy. Unlike KeyValue's
// implicit "qualifier runs to the end of the key part" layout (which
// relies on an externally-tracked key length), every variable-length
// segment here carries an explicit length prefix so a Cell's encoded
// form is self-delimiting and comparable without a surrounding container.
package keycodec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// Type is the cell's mutation type (spec.md §3).
type Type byte

const (
	TypePut                 Type = 4
	TypeDeleteCell          Type = 8
	TypeDeleteFamilyVersion Type = 10
	TypeDeleteColumn        Type = 12
	TypeDeleteFamily        Type = 14
	// TypeMaximum is never stored; it sorts after every stored type at an
	// equal timestamp.
	TypeMaximum Type = 255
)

func (t Type) String() string {
	switch t {
	case TypePut:
		return "Put"
	case TypeDeleteCell:
		return "DeleteCell"
	case TypeDeleteFamilyVersion:
		return "DeleteFamilyVersion"
	case TypeDeleteColumn:
		return "DeleteColumn"
	case TypeDeleteFamily:
		return "DeleteFamily"
	case TypeMaximum:
		return "Maximum"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// IsDelete reports whether t is any tombstone type.
func IsDelete(t Type) bool {
	switch t {
	case TypeDeleteCell, TypeDeleteFamilyVersion, TypeDeleteColumn, TypeDeleteFamily:
		return true
	default:
		return false
	}
}

// IsDeleteColumn reports whether t masks all versions of a column at or
// before its timestamp (DeleteColumn), as opposed to a single version
// (DeleteCell/DeleteFamilyVersion).
func IsDeleteColumn(t Type) bool { return t == TypeDeleteColumn }

// IsDeleteFamily reports whether t masks an entire column family at or
// before its timestamp.
func IsDeleteFamily(t Type) bool { return t == TypeDeleteFamily }

// MaxRowLength bounds Cell.Row per spec.md §3.
const MaxRowLength = 32 << 10

// Tag is a single TLV tuple attached to a cell (spec.md §3: visibility
// label, MVCC, ...).
type Tag struct {
	Type  byte
	Value []byte
}

// Well-known tag types.
const (
	TagTypeMVCC       byte = 0x01
	TagTypeVisibility byte = 0x02
)

// Cell is the atomic unit of the store (spec.md §3).
type Cell struct {
	Row       []byte
	Family    []byte
	Qualifier []byte
	Timestamp uint64
	Type      Type
	Value     []byte
	Tags      []Tag
}

// MVCC returns the cell's MVCC tag value and whether one is present.
func (c Cell) MVCC() (uint64, bool) {
	for _, t := range c.Tags {
		if t.Type == TagTypeMVCC && len(t.Value) == 8 {
			return binary.BigEndian.Uint64(t.Value), true
		}
	}
	return 0, false
}

// WithMVCC returns a copy of c with an MVCC tag set to v, replacing any
// existing MVCC tag.
func (c Cell) WithMVCC(v uint64) Cell {
	out := c
	tags := make([]Tag, 0, len(c.Tags)+1)
	for _, t := range c.Tags {
		if t.Type != TagTypeMVCC {
			tags = append(tags, t)
		}
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	tags = append(tags, Tag{Type: TagTypeMVCC, Value: buf})
	out.Tags = tags
	return out
}

// Clone returns a deep copy of c; useful once a cell crosses a boundary
// into structures (MemBuffer, BlockCache) that must outlive the buffer it
// was decoded from.
func (c Cell) Clone() Cell {
	clone := Cell{
		Row:       append([]byte(nil), c.Row...),
		Family:    append([]byte(nil), c.Family...),
		Qualifier: append([]byte(nil), c.Qualifier...),
		Timestamp: c.Timestamp,
		Type:      c.Type,
		Value:     append([]byte(nil), c.Value...),
	}
	if len(c.Tags) > 0 {
		clone.Tags = make([]Tag, len(c.Tags))
		for i, t := range c.Tags {
			clone.Tags[i] = Tag{Type: t.Type, Value: append([]byte(nil), t.Value...)}
		}
	}
	return clone
}

// Encode produces the canonical on-disk/in-memory byte form of a cell.
//
// Layout: rowLen(u16) row famLen(u8) family qualLen(u16) qualifier
// timestamp(u64, bit-inverted) type(u8) tagsLen(u32) tags valueLen(u32) value
//
// The timestamp is stored bit-inverted (^ts) so that descending logical
// timestamps produce ascending byte order for equal (row, family,
// qualifier), satisfying spec.md §4.1's ordering guarantee without a
// special case in the comparator for the timestamp segment.
func Encode(c Cell) ([]byte, error) {
	const op = "keycodec.Encode"
	if len(c.Row) > MaxRowLength {
		return nil, engineerrors.New(engineerrors.KindCorruptEncoding, op, fmt.Errorf("row length %d exceeds %d", len(c.Row), MaxRowLength))
	}
	if len(c.Family) > 255 {
		return nil, engineerrors.New(engineerrors.KindCorruptEncoding, op, fmt.Errorf("family length %d exceeds 255", len(c.Family)))
	}
	if len(c.Qualifier) > 1<<16-1 {
		return nil, engineerrors.New(engineerrors.KindCorruptEncoding, op, fmt.Errorf("qualifier length %d exceeds 65535", len(c.Qualifier)))
	}

	tagBytes := EncodeTags(c.Tags)

	size := 2 + len(c.Row) + 1 + len(c.Family) + 2 + len(c.Qualifier) + 8 + 1 + 4 + len(tagBytes) + 4 + len(c.Value)
	buf := bytes.NewBuffer(make([]byte, 0, size))

	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(len(c.Row)))
	buf.Write(u16[:])
	buf.Write(c.Row)

	buf.WriteByte(byte(len(c.Family)))
	buf.Write(c.Family)

	binary.BigEndian.PutUint16(u16[:], uint16(len(c.Qualifier)))
	buf.Write(u16[:])
	buf.Write(c.Qualifier)

	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], ^c.Timestamp)
	buf.Write(u64[:])

	buf.WriteByte(byte(c.Type))

	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(tagBytes)))
	buf.Write(u32[:])
	buf.Write(tagBytes)

	binary.BigEndian.PutUint32(u32[:], uint32(len(c.Value)))
	buf.Write(u32[:])
	buf.Write(c.Value)

	return buf.Bytes(), nil
}

// segments holds byte offsets into an encoded cell buffer, used by both
// Decode and the zero-copy comparator so the layout is parsed exactly once
// per concern.
type segments struct {
	row, family, qualifier []byte
	tsType                 []byte // 9 bytes: inverted timestamp + type
	tags                   []byte
	value                  []byte
}

func parseSegments(b []byte) (segments, error) {
	var s segments
	if len(b) < 2 {
		return s, fmt.Errorf("truncated: %d bytes", len(b))
	}
	rowLen := int(binary.BigEndian.Uint16(b[0:2]))
	off := 2
	if len(b) < off+rowLen+1 {
		return s, fmt.Errorf("truncated row")
	}
	s.row = b[off : off+rowLen]
	off += rowLen

	famLen := int(b[off])
	off++
	if len(b) < off+famLen+2 {
		return s, fmt.Errorf("truncated family")
	}
	s.family = b[off : off+famLen]
	off += famLen

	qualLen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if len(b) < off+qualLen+9 {
		return s, fmt.Errorf("truncated qualifier")
	}
	s.qualifier = b[off : off+qualLen]
	off += qualLen

	s.tsType = b[off : off+9]
	off += 9

	if len(b) < off+4 {
		return s, fmt.Errorf("truncated tags length")
	}
	tagsLen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if len(b) < off+tagsLen+4 {
		return s, fmt.Errorf("truncated tags")
	}
	s.tags = b[off : off+tagsLen]
	off += tagsLen

	valLen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if len(b) != off+valLen {
		return s, fmt.Errorf("trailing or missing value bytes")
	}
	s.value = b[off : off+valLen]

	return s, nil
}

// Decode parses the byte form produced by Encode.
func Decode(b []byte) (Cell, error) {
	const op = "keycodec.Decode"
	s, err := parseSegments(b)
	if err != nil {
		return Cell{}, engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
	}
	ts := ^binary.BigEndian.Uint64(s.tsType[0:8])
	typ := Type(s.tsType[8])
	tags, err := decodeTags(s.tags)
	if err != nil {
		return Cell{}, engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
	}
	return Cell{
		Row:       append([]byte(nil), s.row...),
		Family:    append([]byte(nil), s.family...),
		Qualifier: append([]byte(nil), s.qualifier...),
		Timestamp: ts,
		Type:      typ,
		Value:     append([]byte(nil), s.value...),
		Tags:      tags,
	}, nil
}

func decodeTags(b []byte) ([]Tag, error) {
	return DecodeTags(b)
}

// EncodeTags serializes a tag list to its TLV wire form, shared by Encode
// and by BlockCodec's prefix-encoding schemes which store tags verbatim
// per cell.
func EncodeTags(tags []Tag) []byte {
	var buf bytes.Buffer
	for _, t := range tags {
		buf.WriteByte(t.Type)
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(t.Value)))
		buf.Write(lenBuf[:])
		buf.Write(t.Value)
	}
	return buf.Bytes()
}

// DecodeTags parses the TLV wire form produced by EncodeTags.
func DecodeTags(b []byte) ([]Tag, error) {
	var tags []Tag
	off := 0
	for off < len(b) {
		if off+3 > len(b) {
			return nil, fmt.Errorf("truncated tag header")
		}
		typ := b[off]
		l := int(binary.BigEndian.Uint16(b[off+1 : off+3]))
		off += 3
		if off+l > len(b) {
			return nil, fmt.Errorf("truncated tag value")
		}
		tags = append(tags, Tag{Type: typ, Value: append([]byte(nil), b[off:off+l]...)})
		off += l
	}
	return tags, nil
}

// Compare implements the total order from spec.md §3: row asc, family asc,
// qualifier asc, timestamp desc, type asc within equal timestamp.
func Compare(a, b Cell) int {
	if c := bytes.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	if c := bytes.Compare(a.Family, b.Family); c != 0 {
		return c
	}
	if c := bytes.Compare(a.Qualifier, b.Qualifier); c != 0 {
		return c
	}
	if a.Timestamp != b.Timestamp {
		// descending: newer (larger) timestamp sorts first
		if a.Timestamp > b.Timestamp {
			return -1
		}
		return 1
	}
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	return 0
}

// Less is a convenience wrapper for sort.Interface-style callers.
func Less(a, b Cell) bool { return Compare(a, b) < 0 }

// CompareEncoded compares two encoded cells segment-by-segment without a
// full Decode, the zero-copy comparator BlockCodec's binary search relies
// on (design note in spec.md §9). Falls back to whole-buffer bytes.Compare
// if either buffer fails to parse, which only happens on already-corrupt
// input the caller is about to reject anyway.
func CompareEncoded(a, b []byte) int {
	sa, errA := parseSegments(a)
	sb, errB := parseSegments(b)
	if errA != nil || errB != nil {
		return bytes.Compare(a, b)
	}
	if c := bytes.Compare(sa.row, sb.row); c != 0 {
		return c
	}
	if c := bytes.Compare(sa.family, sb.family); c != 0 {
		return c
	}
	if c := bytes.Compare(sa.qualifier, sb.qualifier); c != 0 {
		return c
	}
	// tsType holds the inverted timestamp followed by the type byte, both
	// already in ascending-byte-order-equals-logical-order form.
	return bytes.Compare(sa.tsType, sb.tsType)
}
