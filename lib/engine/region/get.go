package region

import (
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// GetOptions configures a Get call (spec.md §4.8 "get(row, family/qual
// filter, maxVersions, timerange)").
type GetOptions struct {
	Family    []byte
	Qualifier []byte
	// TimerangeMax bounds the visible timestamp upper edge; 0 means
	// unbounded (read the latest).
	TimerangeMax uint64
	// ReadPoint is the MVCC snapshot boundary; 0 means no snapshot
	// filtering.
	ReadPoint uint64
}

// Get returns the visible cell for (row, family, qualifier), subject to
// this Region's MVCC read point (spec.md §4.8 "get: read-your-writes for
// committed cells, subject to MVCC read point"). Returns ok=false if
// nothing is visible.
//
// Store has already collapsed tombstone-masked versions to the single
// newest survivor per qualifier; Get applies the MVCC filter on top of
// that survivor rather than re-deriving it from every raw version — the
// same documented simplification scan.go's groupRows makes.
func (r *Region) Get(row []byte, opts GetOptions) (keycodec.Cell, bool, error) {
	const op = "Region.get"
	if err := r.requireOpen(op); err != nil {
		return keycodec.Cell{}, false, err
	}
	if !r.contains(row) {
		return keycodec.Cell{}, false, engineerrors.New(engineerrors.KindInvalidRange, op, nil)
	}
	s, err := r.storeFor(opts.Family)
	if err != nil {
		return keycodec.Cell{}, false, err
	}

	upper := opts.TimerangeMax
	if upper == 0 {
		upper = ^uint64(0)
	}

	c, ok, err := s.Get(row, opts.Family, opts.Qualifier, upper)
	if err != nil || !ok {
		return keycodec.Cell{}, false, err
	}
	if !mvccVisible(c, opts.ReadPoint) {
		return keycodec.Cell{}, false, nil
	}
	return c, true, nil
}
