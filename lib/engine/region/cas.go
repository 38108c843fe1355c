package region

import (
	"bytes"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/wal"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// Comparator is the operator checkAndMutate evaluates the current value
// against expectedValue with (spec.md §4.8 "EQUAL/NOT_EQUAL/LESS/GREATER/…").
type Comparator int

const (
	CompareEqual Comparator = iota
	CompareNotEqual
	CompareLess
	CompareLessOrEqual
	CompareGreater
	CompareGreaterOrEqual
)

func (cmp Comparator) eval(c int) bool {
	switch cmp {
	case CompareEqual:
		return c == 0
	case CompareNotEqual:
		return c != 0
	case CompareLess:
		return c < 0
	case CompareLessOrEqual:
		return c <= 0
	case CompareGreater:
		return c > 0
	case CompareGreaterOrEqual:
		return c >= 0
	default:
		return false
	}
}

// CheckAndMutateStats counts outcomes across a Region's lifetime (spec.md
// §4.8 "counted in checkMutatePassed/Failed").
type CheckAndMutateStats struct {
	Passed uint64
	Failed uint64
}

// Stats returns a snapshot of this Region's checkAndMutate counters.
func (r *Region) Stats() CheckAndMutateStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// CheckAndMutate holds row's latch for the entire read-compare-mutate
// sequence, evaluating cmp against the current (family, qualifier) value
// and applying mutation only if it returns true (spec.md §4.8
// "checkAndMutate: holds row latch; reads current cell; if comparator…
// returns true, performs the mutation. Atomic").
func (r *Region) CheckAndMutate(row, family, qualifier []byte, cmp Comparator, expected []byte, mutation []keycodec.Cell, durability wal.Durability) (bool, error) {
	const op = "Region.checkAndMutate"
	if err := r.requireOpen(op); err != nil {
		return false, err
	}
	if !r.contains(row) {
		return false, engineerrors.New(engineerrors.KindInvalidRange, op, nil)
	}
	s, err := r.storeFor(family)
	if err != nil {
		return false, err
	}

	unlock := r.latches.Lock(row)
	defer unlock()

	current, ok, err := s.Get(row, family, qualifier, ^uint64(0))
	if err != nil {
		return false, err
	}
	var cur []byte
	if ok {
		cur = current.Value
	}
	passed := cmp.eval(bytes.Compare(cur, expected))

	r.mu.Lock()
	if passed {
		r.stats.Passed++
	} else {
		r.stats.Failed++
	}
	r.mu.Unlock()

	if !passed {
		return false, nil
	}
	if err := r.mutateLocked(row, mutation, durability); err != nil {
		return false, err
	}
	return true, nil
}
