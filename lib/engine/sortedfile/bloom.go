package sortedfile

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/dkvlabs/regiondb/lib/engineconfig"
)

// bloomFilter is a standard Kirsch-Mitzenmacher double-hashing bloom
// filter: k simulated hash functions derived from two independent FNV
// hashes of the key (spec.md §4.3: "bloom (if present) covers rows (or
// row+col) present in the file").
//
// Grounded on original_source's util.bloom.ByteBloomFilter (bit array +
// fold-based double hashing); simplified to FNV-1/FNV-1a instead of
// Hadoop's Murmur3 variant since no cross-implementation compatibility is
// required here.
type bloomFilter struct {
	bits []byte
	k    int
	nbits uint64
}

func newBloomFilter(expectedEntries int, falsePositiveRate float64) *bloomFilter {
	if expectedEntries < 1 {
		expectedEntries = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	n := float64(expectedEntries)
	m := math.Ceil(-1 * n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	if m < 8 {
		m = 8
	}
	k := int(math.Round((m / n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}
	nbits := uint64(m)
	return &bloomFilter{
		bits:  make([]byte, (nbits+7)/8),
		k:     k,
		nbits: nbits,
	}
}

func (b *bloomFilter) hashes(key []byte) (uint64, uint64) {
	h1 := fnv.New64a()
	h1.Write(key)
	sum1 := h1.Sum64()
	h2 := fnv.New64()
	h2.Write(key)
	sum2 := h2.Sum64()
	return sum1, sum2
}

func (b *bloomFilter) add(key []byte) {
	h1, h2 := b.hashes(key)
	for i := 0; i < b.k; i++ {
		idx := (h1 + uint64(i)*h2) % b.nbits
		b.bits[idx/8] |= 1 << (idx % 8)
	}
}

func (b *bloomFilter) mayContain(key []byte) bool {
	h1, h2 := b.hashes(key)
	for i := 0; i < b.k; i++ {
		idx := (h1 + uint64(i)*h2) % b.nbits
		if b.bits[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

func (b *bloomFilter) encode() []byte {
	out := make([]byte, 0, 12+len(b.bits))
	var hdr [12]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(b.k))
	binary.BigEndian.PutUint64(hdr[4:12], b.nbits)
	out = append(out, hdr[:]...)
	out = append(out, b.bits...)
	return out
}

func decodeBloomFilter(b []byte) (*bloomFilter, error) {
	if len(b) < 12 {
		return nil, fmt.Errorf("sortedfile: truncated bloom meta: %d bytes", len(b))
	}
	k := int(binary.BigEndian.Uint32(b[0:4]))
	nbits := binary.BigEndian.Uint64(b[4:12])
	want := int((nbits + 7) / 8)
	if len(b)-12 != want {
		return nil, fmt.Errorf("sortedfile: bloom bit array size mismatch: header says %d bytes, got %d", want, len(b)-12)
	}
	bits := append([]byte(nil), b[12:]...)
	return &bloomFilter{bits: bits, k: k, nbits: nbits}, nil
}

// bloomKey extracts the bytes a bloom filter should hash for a cell's row
// (or row+family+qualifier) per the configured granularity.
func bloomKey(granularity engineconfig.BloomGranularity, row, family, qualifier []byte) []byte {
	if granularity == engineconfig.BloomRowCol {
		key := make([]byte, 0, len(row)+len(family)+len(qualifier)+2)
		key = append(key, row...)
		key = append(key, 0)
		key = append(key, family...)
		key = append(key, qualifier...)
		return key
	}
	return row
}
