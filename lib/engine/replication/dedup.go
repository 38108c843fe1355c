package replication

// SeqKey identifies one delivered edit for de-duplication purposes.
type SeqKey struct {
	RegionID string
	Sequence uint64
}

// Deduper tracks which (regionId, sequence) pairs a sink has already
// applied, implementing the receiver side of spec.md §4.12's at-least-once
// delivery contract: a sink may see the same edit more than once (retried
// batch after a timeout, re-delivery after sink-set refresh) and must apply
// it exactly once.
type Deduper struct {
	seen map[SeqKey]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[SeqKey]struct{})}
}

// Admit reports whether key has not been seen before, recording it as seen
// either way. A caller applies the edit only when Admit returns true.
func (d *Deduper) Admit(key SeqKey) bool {
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Forget drops key, letting a bounded Deduper implementation (not this one)
// evict old entries once their region's min-unflushed-sequence has advanced
// past them. This implementation never evicts on its own; callers that need
// a bound should wrap it.
func (d *Deduper) Forget(key SeqKey) {
	delete(d.seen, key)
}
