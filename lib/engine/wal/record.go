package wal

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// Edit is one WAL record: every Cell written atomically for a single
// mutation against one region, under the sequence number the WAL assigned
// it (spec.md §3 "WAL file. Ordered sequence of (sequenceNumber, regionId,
// edit)").
type Edit struct {
	Sequence uint64
	RegionID string
	Cells    []keycodec.Cell
}

// commitMarker trails every record's payload; its presence (and an intact
// checksum) is what makes a record a "commit marker"-terminated unit per
// spec.md §3 — a crash mid-write leaves a record with no trailing marker
// or a checksum mismatch, and replay stops there.
const commitMarker = 0x01

// encodeEdit serializes e as: [uint32 payloadLen][payload][uint32 crc32].
// payload is seq(8) + regionID(varint-len+bytes) + cellCount(varint) +
// cells(each varint-len + keycodec.Encode bytes) + commitMarker(1).
func encodeEdit(e Edit) ([]byte, error) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, e.Sequence)

	payload = appendUvarintBytes(payload, uint64(len(e.RegionID)))
	payload = append(payload, e.RegionID...)

	payload = appendUvarintBytes(payload, uint64(len(e.Cells)))
	for _, c := range e.Cells {
		enc, err := keycodec.Encode(c)
		if err != nil {
			return nil, err
		}
		payload = appendUvarintBytes(payload, uint64(len(enc)))
		payload = append(payload, enc...)
	}
	payload = append(payload, commitMarker)

	out := make([]byte, 4, 4+len(payload)+4)
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	checksum := crc32.ChecksumIEEE(payload)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], checksum)
	out = append(out, crcBuf[:]...)
	return out, nil
}

// decodeEditAt decodes one record starting at buf[0:], returning the edit,
// the number of bytes consumed, and an error. It returns errIncompleteRecord
// (not a corruption) when buf does not contain a full record — the
// expected tail state of a file truncated by a crash mid-append.
func decodeEditAt(buf []byte) (Edit, int, error) {
	if len(buf) < 4 {
		return Edit{}, 0, errIncompleteRecord
	}
	payloadLen := binary.BigEndian.Uint32(buf)
	total := 4 + int(payloadLen) + 4
	if len(buf) < total {
		return Edit{}, 0, errIncompleteRecord
	}
	payload := buf[4 : 4+payloadLen]
	wantCRC := binary.BigEndian.Uint32(buf[4+payloadLen : total])
	if crc32.ChecksumIEEE(payload) != wantCRC {
		return Edit{}, 0, engineerrors.New(engineerrors.KindChecksumMismatch, "wal.decodeEditAt", errRecordChecksum)
	}
	if len(payload) == 0 || payload[len(payload)-1] != commitMarker {
		return Edit{}, 0, engineerrors.New(engineerrors.KindCorruptFile, "wal.decodeEditAt", errUncommittedRecord)
	}

	var r byteReader = payload
	seq, err := r.uint64()
	if err != nil {
		return Edit{}, 0, err
	}
	regionIDLen, err := r.uvarint()
	if err != nil {
		return Edit{}, 0, err
	}
	regionID, err := r.take(int(regionIDLen))
	if err != nil {
		return Edit{}, 0, err
	}
	cellCount, err := r.uvarint()
	if err != nil {
		return Edit{}, 0, err
	}
	cells := make([]keycodec.Cell, 0, cellCount)
	for i := uint64(0); i < cellCount; i++ {
		cellLen, err := r.uvarint()
		if err != nil {
			return Edit{}, 0, err
		}
		cellBytes, err := r.take(int(cellLen))
		if err != nil {
			return Edit{}, 0, err
		}
		c, err := keycodec.Decode(cellBytes)
		if err != nil {
			return Edit{}, 0, err
		}
		cells = append(cells, c)
	}

	return Edit{Sequence: seq, RegionID: string(regionID), Cells: cells}, total, nil
}

func appendUvarintBytes(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// byteReader is a tiny cursor over an edit's payload bytes.
type byteReader []byte

func (r *byteReader) uint64() (uint64, error) {
	if len(*r) < 8 {
		return 0, engineerrors.New(engineerrors.KindCorruptEncoding, "wal.byteReader.uint64", errShortRecord)
	}
	v := binary.BigEndian.Uint64(*r)
	*r = (*r)[8:]
	return v, nil
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(*r)
	if n <= 0 {
		return 0, engineerrors.New(engineerrors.KindCorruptEncoding, "wal.byteReader.uvarint", errShortRecord)
	}
	*r = (*r)[n:]
	return v, nil
}

func (r *byteReader) take(n int) ([]byte, error) {
	if len(*r) < n {
		return nil, engineerrors.New(engineerrors.KindCorruptEncoding, "wal.byteReader.take", errShortRecord)
	}
	b := (*r)[:n]
	*r = (*r)[n:]
	return b, nil
}
