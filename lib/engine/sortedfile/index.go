package sortedfile

import (
	"encoding/binary"
	"fmt"
)

// indexEntry points at one block one level below: its first key (the raw
// keycodec-encoded bytes of the block's first cell, or of the first entry
// of the level below for non-leaf levels) and its on-disk location.
type indexEntry struct {
	firstKey []byte
	offset   uint64
	size     uint32
}

func encodeIndexEntries(entries []indexEntry) []byte {
	var buf []byte
	var tmp [binary.MaxVarintLen64]byte
	for _, e := range entries {
		n := binary.PutUvarint(tmp[:], uint64(len(e.firstKey)))
		buf = append(buf, tmp[:n]...)
		buf = append(buf, e.firstKey...)
		var fixed [12]byte
		binary.BigEndian.PutUint64(fixed[0:8], e.offset)
		binary.BigEndian.PutUint32(fixed[8:12], e.size)
		buf = append(buf, fixed[:]...)
	}
	return buf
}

func decodeIndexEntries(b []byte) ([]indexEntry, error) {
	var entries []indexEntry
	off := 0
	for off < len(b) {
		keyLen, n := binary.Uvarint(b[off:])
		if n <= 0 {
			return nil, fmt.Errorf("sortedfile: truncated index entry key length at %d", off)
		}
		off += n
		if off+int(keyLen)+12 > len(b) {
			return nil, fmt.Errorf("sortedfile: truncated index entry at %d", off)
		}
		key := append([]byte(nil), b[off:off+int(keyLen)]...)
		off += int(keyLen)
		entryOffset := binary.BigEndian.Uint64(b[off : off+8])
		entrySize := binary.BigEndian.Uint32(b[off+8 : off+12])
		off += 12
		entries = append(entries, indexEntry{firstKey: key, offset: entryOffset, size: entrySize})
	}
	return entries, nil
}

// chunkEntries groups entries into runs whose encoded size stays under
// maxChunkSize (spec.md §4.3/§6 hfile.index.max.chunksize), always placing
// at least one entry per chunk so a single oversized entry doesn't stall
// index construction.
func chunkEntries(entries []indexEntry, maxChunkSize int64) [][]indexEntry {
	if len(entries) == 0 {
		return nil
	}
	var chunks [][]indexEntry
	var cur []indexEntry
	var curSize int64
	entrySize := func(e indexEntry) int64 { return int64(len(e.firstKey)) + 12 }
	for _, e := range entries {
		sz := entrySize(e)
		if len(cur) > 0 && curSize+sz > maxChunkSize {
			chunks = append(chunks, cur)
			cur = nil
			curSize = 0
		}
		cur = append(cur, e)
		curSize += sz
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}
