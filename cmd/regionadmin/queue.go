package regionadmin

import (
	"fmt"

	"github.com/dkvlabs/regiondb/lib/engine/famstore"
)

// syncQueue implements region.FlushCompactQueue by running the work
// immediately in the calling goroutine instead of handing it to a
// background Scheduler — regionadmin is a one-shot offline tool, not a
// running node, so there is no scheduler to hand work to.
type syncQueue struct {
	err error
}

func (q *syncQueue) EnqueueFlush(regionID string, s *famstore.Store) {
	if q.err != nil {
		return
	}
	if _, err := s.Flush(); err != nil {
		q.err = fmt.Errorf("flush %s/%s: %w", regionID, s.Family(), err)
	}
}

func (q *syncQueue) EnqueueCompaction(regionID string, s *famstore.Store, major bool) {
	if q.err != nil {
		return
	}
	var err error
	if major {
		_, err = s.MajorCompact()
	} else {
		selected, ok := s.SelectMinorCompaction()
		if !ok {
			return
		}
		_, err = s.Compact(selected, false)
	}
	if err != nil {
		q.err = fmt.Errorf("compact %s/%s: %w", regionID, s.Family(), err)
	}
}
