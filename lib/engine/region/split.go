package region

import (
	"bytes"
	"time"

	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// SplitFileSystem is the subset of RegionFileSystem (lib/engine/regionfs,
// C10) a split/merge transaction needs to lay out daughter regions.
type SplitFileSystem interface {
	CreateRegionDir(info Info) error
	// CreateReferenceFiles populates daughter's family directories with
	// reference files pointing at parent's current files, marked upper
	// (true: daughter covers [splitKey, end)) or lower (false). splitKey
	// is nil for a merge, where reference files cover the whole parent.
	CreateReferenceFiles(parent Info, daughter Info, splitKey []byte, upper bool) error
	WriteRegionInfo(info Info) error
}

// Catalog is the subset of the external Catalog collaborator (lib/catalog)
// a split/merge transaction needs to flip region state at the PONR.
type Catalog interface {
	// MarkSplit atomically records parent as SPLIT with daughters as its
	// successors; this call IS the point of no return (spec.md §4.8
	// "PONR: atomically flip parent's state to SPLIT in catalog; from
	// this instant, daughters are authoritative").
	MarkSplit(parent Info, daughters []Info) error
	// MarkMerged atomically records parents as MERGED with merged as
	// their successor; this call is the merge's PONR.
	MarkMerged(parents []Info, merged Info) error
}

// SplitTransaction carries the collaborators a split/merge needs (spec.md
// §4.8 "Split transaction (PONR = point of no return)").
type SplitTransaction struct {
	FS      SplitFileSystem
	Catalog Catalog
}

// Split executes the two-phase split transaction against splitKey, which
// must lie strictly inside r's range. Before the PONR, any failure rolls
// r back to OPEN; once the Catalog accepts MarkSplit, r is left SPLIT
// (terminal) and the two returned daughter Infos are authoritative —
// failures past that point must retry opening the daughters forward, not
// roll back (spec.md §4.8 "Failure before PONR rolls back... Failure
// after PONR completes forward").
func (t SplitTransaction) Split(r *Region, splitKey []byte) (lower, upper Info, err error) {
	const op = "Region.split"
	if bytes.Compare(splitKey, r.info.StartKey) <= 0 ||
		(len(r.info.EndKey) > 0 && bytes.Compare(splitKey, r.info.EndKey) >= 0) {
		return Info{}, Info{}, engineerrors.New(engineerrors.KindInvalidRange, op, nil)
	}

	// preSplit: quiesce new writes and flush every Store so the reference
	// files daughters inherit cover everything written so far.
	r.setState(StateSplitting)
	for _, s := range r.stores {
		if _, ferr := s.Flush(); ferr != nil {
			r.setState(StateOpen)
			return Info{}, Info{}, ferr
		}
	}

	now := time.Now().UnixNano()
	lower = NewInfo(r.info.Namespace, r.info.Table, r.info.StartKey, splitKey, now)
	upper = NewInfo(r.info.Namespace, r.info.Table, splitKey, r.info.EndKey, now)

	// Before-PONR: create daughter directories and reference files
	// pointing at the parent's files with a top/bottom marker, and write
	// each daughter's descriptor. A failure anywhere here rolls back to
	// OPEN; nothing has touched the catalog yet.
	for _, step := range []func() error{
		func() error { return t.FS.CreateRegionDir(lower) },
		func() error { return t.FS.CreateRegionDir(upper) },
		func() error { return t.FS.CreateReferenceFiles(r.info, lower, splitKey, false) },
		func() error { return t.FS.CreateReferenceFiles(r.info, upper, splitKey, true) },
		func() error { return t.FS.WriteRegionInfo(lower) },
		func() error { return t.FS.WriteRegionInfo(upper) },
	} {
		if serr := step(); serr != nil {
			r.setState(StateOpen)
			return Info{}, Info{}, serr
		}
	}

	// PONR.
	if cerr := t.Catalog.MarkSplit(r.info, []Info{lower, upper}); cerr != nil {
		r.setState(StateOpen)
		return Info{}, Info{}, cerr
	}
	r.setState(StateSplit)

	return lower, upper, nil
}

// Merge executes a two-phase merge of r with other into one new region
// covering their combined range (spec.md §4.8 "Merge transaction mirrors
// split: pre-quiesce both inputs; create merged region with reference
// files to both parents; PONR"). Both inputs must be distinct, OPEN, and
// adjacent (one's EndKey equals the other's StartKey).
func (t SplitTransaction) Merge(r, other *Region) (merged Info, err error) {
	const op = "Region.merge"
	if r.id == other.id {
		return Info{}, engineerrors.New(engineerrors.KindMergeRegion, op, nil)
	}
	if r.State() != StateOpen || other.State() != StateOpen {
		return Info{}, engineerrors.New(engineerrors.KindMergeRegion, op, nil)
	}
	adjacent := bytes.Equal(r.info.EndKey, other.info.StartKey) || bytes.Equal(other.info.EndKey, r.info.StartKey)
	if !adjacent {
		return Info{}, engineerrors.New(engineerrors.KindMergeRegion, op, nil)
	}

	r.setState(StateMerging)
	other.setState(StateMerging)
	rollback := func() {
		r.setState(StateOpen)
		other.setState(StateOpen)
	}

	for _, s := range r.stores {
		if _, ferr := s.Flush(); ferr != nil {
			rollback()
			return Info{}, ferr
		}
	}
	for _, s := range other.stores {
		if _, ferr := s.Flush(); ferr != nil {
			rollback()
			return Info{}, ferr
		}
	}

	startKey, endKey := r.info.StartKey, r.info.EndKey
	if bytes.Compare(other.info.StartKey, startKey) < 0 {
		startKey = other.info.StartKey
	}
	if len(endKey) > 0 && (len(other.info.EndKey) == 0 || bytes.Compare(other.info.EndKey, endKey) > 0) {
		endKey = other.info.EndKey
	}
	merged = NewInfo(r.info.Namespace, r.info.Table, startKey, endKey, time.Now().UnixNano())

	for _, step := range []func() error{
		func() error { return t.FS.CreateRegionDir(merged) },
		func() error { return t.FS.CreateReferenceFiles(r.info, merged, nil, false) },
		func() error { return t.FS.CreateReferenceFiles(other.info, merged, nil, false) },
		func() error { return t.FS.WriteRegionInfo(merged) },
	} {
		if serr := step(); serr != nil {
			rollback()
			return Info{}, serr
		}
	}

	// PONR.
	if cerr := t.Catalog.MarkMerged([]Info{r.info, other.info}, merged); cerr != nil {
		rollback()
		return Info{}, cerr
	}
	r.setState(StateMerged)
	other.setState(StateMerged)

	return merged, nil
}
