package region

import (
	"encoding/binary"
	"time"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/wal"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

func decodeInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, errBadCounterWidth
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func encodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

// Increment performs a read-modify-write atomic per-column delta under
// row's latch, each producing a new version (spec.md §4.8 "increment(row,
// deltas): read-modify-write atomic on row; each produces a new version
// per column"). Stored values are 8-byte big-endian signed counters.
func (r *Region) Increment(row, family []byte, deltas map[string]int64, durability wal.Durability) ([]keycodec.Cell, error) {
	const op = "Region.increment"
	if err := r.requireOpen(op); err != nil {
		return nil, err
	}
	s, err := r.storeFor(family)
	if err != nil {
		return nil, err
	}

	unlock := r.latches.Lock(row)
	defer unlock()

	now := uint64(time.Now().UnixMilli())
	result := make([]keycodec.Cell, 0, len(deltas))
	for qualifier, delta := range deltas {
		var base int64
		current, ok, err := s.Get(row, family, []byte(qualifier), ^uint64(0))
		if err != nil {
			return nil, err
		}
		if ok {
			v, derr := decodeInt64(current.Value)
			if derr != nil {
				return nil, engineerrors.New(engineerrors.KindCorruptEncoding, op, derr)
			}
			base = v
		}
		result = append(result, keycodec.Cell{
			Row: row, Family: family, Qualifier: []byte(qualifier),
			Timestamp: now, Type: keycodec.TypePut, Value: encodeInt64(base + delta),
		})
	}

	if err := r.mutateLocked(row, result, durability); err != nil {
		return nil, err
	}
	return result, nil
}

// Append performs a read-modify-write atomic byte-concatenation per column
// under row's latch (spec.md §4.8 "append(row, appends): read-modify-write
// atomic on row; each produces a new version per column").
func (r *Region) Append(row, family []byte, appends map[string][]byte, durability wal.Durability) ([]keycodec.Cell, error) {
	const op = "Region.append"
	if err := r.requireOpen(op); err != nil {
		return nil, err
	}
	s, err := r.storeFor(family)
	if err != nil {
		return nil, err
	}

	unlock := r.latches.Lock(row)
	defer unlock()

	now := uint64(time.Now().UnixMilli())
	result := make([]keycodec.Cell, 0, len(appends))
	for qualifier, suffix := range appends {
		current, ok, err := s.Get(row, family, []byte(qualifier), ^uint64(0))
		if err != nil {
			return nil, err
		}
		var base []byte
		if ok {
			base = current.Value
		}
		newVal := append(append([]byte(nil), base...), suffix...)
		result = append(result, keycodec.Cell{
			Row: row, Family: family, Qualifier: []byte(qualifier),
			Timestamp: now, Type: keycodec.TypePut, Value: newVal,
		})
	}

	if err := r.mutateLocked(row, result, durability); err != nil {
		return nil, err
	}
	return result, nil
}
