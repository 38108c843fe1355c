package blockcodec

import (
	"testing"

	"github.com/dkvlabs/regiondb/lib/engine/blockcodec/compress"
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

func sampleCells() []keycodec.Cell {
	mk := func(row, qual string, ts uint64, val string) keycodec.Cell {
		return keycodec.Cell{
			Row:       []byte(row),
			Family:    []byte("cf"),
			Qualifier: []byte(qual),
			Timestamp: ts,
			Type:      keycodec.TypePut,
			Value:     []byte(val),
		}
	}
	return []keycodec.Cell{
		mk("apple", "q1", 10, "v1"),
		mk("apple", "q2", 9, "v2-longer-value"),
		mk("banana", "q1", 20, ""),
		mk("banana", "q1", 5, "old"),
	}
}

func cellsEqual(a, b []keycodec.Cell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if keycodec.Compare(a[i], b[i]) != 0 || string(a[i].Value) != string(b[i].Value) {
			return false
		}
	}
	return true
}

func TestWriteReadBlockRoundTrip(t *testing.T) {
	cells := sampleCells()
	encodings := []Encoding{EncodingNone, EncodingPrefix, EncodingDiff, EncodingFastDiff}
	algos := []compress.Algorithm{compress.None, compress.Snappy, compress.ZSTD}

	for _, enc := range encodings {
		for _, algo := range algos {
			raw, err := WriteBlock(TypeData, cells, enc, algo, ChecksumCRC32, 1234)
			if err != nil {
				t.Fatalf("enc=%v algo=%v: WriteBlock: %v", enc, algo, err)
			}
			blk, err := ReadBlock(raw, TypeData, enc, algo)
			if err != nil {
				t.Fatalf("enc=%v algo=%v: ReadBlock: %v", enc, algo, err)
			}
			if !cellsEqual(blk.Cells, cells) {
				t.Fatalf("enc=%v algo=%v: round trip mismatch: got %+v", enc, algo, blk.Cells)
			}
			if blk.Header.PrevBlockOffset != 1234 {
				t.Fatalf("enc=%v algo=%v: prev offset mismatch", enc, algo)
			}
			n, err := EncodedLength(raw)
			if err != nil {
				t.Fatalf("enc=%v algo=%v: EncodedLength: %v", enc, algo, err)
			}
			if n != len(raw) {
				t.Fatalf("enc=%v algo=%v: EncodedLength=%d want %d", enc, algo, n, len(raw))
			}
		}
	}
}

func TestReadBlockTypeMismatch(t *testing.T) {
	raw, err := WriteBlock(TypeData, sampleCells(), EncodingNone, compress.None, ChecksumCRC32, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ReadBlock(raw, TypeLeafIndex, EncodingNone, compress.None); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestReadBlockChecksumMismatch(t *testing.T) {
	raw, err := WriteBlock(TypeData, sampleCells(), EncodingNone, compress.None, ChecksumCRC32, 0)
	if err != nil {
		t.Fatal(err)
	}
	// corrupt a payload byte without touching the header/checksum.
	raw[len(raw)-1] ^= 0xFF
	_, err = ReadBlock(raw, TypeData, EncodingNone, compress.None)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if !engineerrors.Is(err, engineerrors.KindChecksumMismatch) {
		t.Fatalf("expected KindChecksumMismatch, got %v", err)
	}
}

func TestWriteReadRawBlockRoundTrip(t *testing.T) {
	payload := []byte("some index entries go here")
	raw := WriteRawBlock(TypeRootIndex, payload, ChecksumCRC32, 99)
	got, header, err := ReadRawBlockPayload(raw, TypeRootIndex)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: got %q want %q", got, payload)
	}
	if header.PrevBlockOffset != 99 {
		t.Fatalf("prev offset mismatch: %d", header.PrevBlockOffset)
	}
	raw[len(raw)-1] ^= 0xFF
	if _, _, err := ReadRawBlockPayload(raw, TypeRootIndex); err == nil {
		t.Fatal("expected checksum mismatch after corruption")
	}
}

func TestReadBlockTruncated(t *testing.T) {
	raw, err := WriteBlock(TypeData, sampleCells(), EncodingNone, compress.None, ChecksumCRC32, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ReadBlock(raw[:HeaderSize+1], TypeData, EncodingNone, compress.None); err == nil {
		t.Fatal("expected truncated block error")
	}
}
