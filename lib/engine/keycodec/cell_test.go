package keycodec

import (
	"bytes"
	"testing"
)

func sampleCell(row, qual string, ts uint64, typ Type, val string) Cell {
	return Cell{
		Row:       []byte(row),
		Family:    []byte("cf"),
		Qualifier: []byte(qual),
		Timestamp: ts,
		Type:      typ,
		Value:     []byte(val),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Cell{
		sampleCell("row1", "q1", 100, TypePut, "v1"),
		sampleCell("row1", "", 1, TypeDeleteFamily, ""),
		sampleCell("", "q", 0, TypePut, "x"),
	}
	for i, c := range cases {
		c.Tags = []Tag{{Type: TagTypeVisibility, Value: []byte("secret")}}
		enc, err := Encode(c)
		if err != nil {
			t.Fatalf("case %d: encode: %v", i, err)
		}
		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if !bytes.Equal(dec.Row, c.Row) || !bytes.Equal(dec.Qualifier, c.Qualifier) ||
			dec.Timestamp != c.Timestamp || dec.Type != c.Type || !bytes.Equal(dec.Value, c.Value) {
			t.Fatalf("case %d: round trip mismatch: got %+v want %+v", i, dec, c)
		}
		if len(dec.Tags) != 1 || !bytes.Equal(dec.Tags[0].Value, c.Tags[0].Value) {
			t.Fatalf("case %d: tag mismatch: %+v", i, dec.Tags)
		}
	}
}

func TestDecodeTruncatedFails(t *testing.T) {
	if _, err := Decode([]byte{0, 1}); err == nil {
		t.Fatal("expected error decoding truncated buffer")
	}
}

func TestCompareOrdering(t *testing.T) {
	a := sampleCell("r1", "q", 10, TypePut, "a")
	b := sampleCell("r1", "q", 20, TypePut, "b")
	// higher timestamp sorts first (descending)
	if Compare(b, a) >= 0 {
		t.Fatalf("expected b (ts=20) before a (ts=10)")
	}

	c := sampleCell("r1", "q", 10, TypeDeleteCell, "")
	// same timestamp: lower type value sorts first
	if TypePut < TypeDeleteCell {
		if Compare(a, c) >= 0 {
			t.Fatalf("expected Put before DeleteCell at equal timestamp")
		}
	}

	d := sampleCell("r0", "q", 10, TypePut, "")
	if Compare(d, a) >= 0 {
		t.Fatalf("expected r0 before r1")
	}
}

func TestCompareEncodedMatchesCompare(t *testing.T) {
	cells := []Cell{
		sampleCell("apple", "q1", 5, TypePut, "v"),
		sampleCell("apple", "q10", 5, TypePut, "v"),
		sampleCell("banana", "q1", 3, TypeDeleteCell, ""),
		sampleCell("banana", "q1", 30, TypePut, "v2"),
	}
	encoded := make([][]byte, len(cells))
	for i, c := range cells {
		enc, err := Encode(c)
		if err != nil {
			t.Fatal(err)
		}
		encoded[i] = enc
	}
	for i := range cells {
		for j := range cells {
			want := Compare(cells[i], cells[j])
			got := CompareEncoded(encoded[i], encoded[j])
			normalize := func(v int) int {
				switch {
				case v < 0:
					return -1
				case v > 0:
					return 1
				default:
					return 0
				}
			}
			if normalize(want) != normalize(got) {
				t.Fatalf("mismatch at (%d,%d): Compare=%d CompareEncoded=%d", i, j, want, got)
			}
		}
	}
}

func TestIsDeleteHelpers(t *testing.T) {
	if !IsDelete(TypeDeleteCell) || !IsDelete(TypeDeleteColumn) || !IsDelete(TypeDeleteFamily) || !IsDelete(TypeDeleteFamilyVersion) {
		t.Fatal("expected all delete types to report IsDelete")
	}
	if IsDelete(TypePut) {
		t.Fatal("Put should not be a delete")
	}
	if !IsDeleteColumn(TypeDeleteColumn) || IsDeleteColumn(TypeDeleteCell) {
		t.Fatal("IsDeleteColumn mismatch")
	}
	if !IsDeleteFamily(TypeDeleteFamily) || IsDeleteFamily(TypeDeleteColumn) {
		t.Fatal("IsDeleteFamily mismatch")
	}
}

func TestMVCCTag(t *testing.T) {
	c := sampleCell("r", "q", 1, TypePut, "v")
	if _, ok := c.MVCC(); ok {
		t.Fatal("expected no mvcc tag initially")
	}
	c2 := c.WithMVCC(42)
	v, ok := c2.MVCC()
	if !ok || v != 42 {
		t.Fatalf("expected mvcc=42, got %d ok=%v", v, ok)
	}
	c3 := c2.WithMVCC(43)
	if len(c3.Tags) != 1 {
		t.Fatalf("expected WithMVCC to replace, not append: %+v", c3.Tags)
	}
}
