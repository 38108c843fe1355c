package catalog

import (
	"encoding/json"

	"github.com/dkvlabs/regiondb/lib/engine/region"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// lockTimeoutSeconds is the timeout passed to lockmgr for a split/merge
// PONR lock. lockmgr hands it to the store as deleteIn, which lstore counts
// in its own write operations rather than in seconds: the lock is reclaimed
// after that many further writes to the lock store.
const lockTimeoutSeconds = 30

// MarkSplit implements region.Catalog: the split transaction's point of
// no return. Acquiring parent's lock first means two nodes racing the
// same parent split can't both win — the second AcquireLock simply fails
// and the caller's SplitTransaction aborts before any catalog state
// changes (spec.md §4.8 "PONR: atomically flip parent's state").
func (c *Catalog) MarkSplit(parent region.Info, daughters []region.Info) error {
	const op = "catalog.MarkSplit"
	unlock, err := c.acquirePONR(parent.EncodedName)
	if err != nil {
		return err
	}
	defer unlock()

	daughterNames := make([]string, len(daughters))
	for i, d := range daughters {
		daughterNames[i] = d.EncodedName
		if err := c.putRegion(RegionRecord{Info: d, State: RegionOpen}); err != nil {
			return engineerrors.New(engineerrors.KindTransientIO, op, err)
		}
	}

	parentRec, err := c.GetRegion(parent.EncodedName)
	if err != nil {
		return err
	}
	parentRec.State = RegionSplit
	parentRec.Daughters = daughterNames
	if err := c.putRegion(parentRec); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, op, err)
	}

	if err := c.replaceTableRegions(parent.Namespace, parent.Table, []string{parent.EncodedName}, daughterNames); err != nil {
		return err
	}
	log.Infof("catalog: split %s into %v", parent.EncodedName, daughterNames)
	return nil
}

// MarkMerged implements region.Catalog: the merge transaction's point of
// no return, serialized the same way as MarkSplit but locking the first
// parent (merges always involve adjacent siblings already serialized
// against further splits by their own row-range ownership).
func (c *Catalog) MarkMerged(parents []region.Info, merged region.Info) error {
	const op = "catalog.MarkMerged"
	if len(parents) == 0 {
		return engineerrors.New(engineerrors.KindInvalidRange, op, nil)
	}
	unlock, err := c.acquirePONR(parents[0].EncodedName)
	if err != nil {
		return err
	}
	defer unlock()

	parentNames := make([]string, len(parents))
	for i, p := range parents {
		parentNames[i] = p.EncodedName
	}

	if err := c.putRegion(RegionRecord{Info: merged, State: RegionOpen}); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, op, err)
	}

	for _, p := range parents {
		rec, err := c.GetRegion(p.EncodedName)
		if err != nil {
			return err
		}
		rec.State = RegionMerged
		rec.Parents = nil
		rec.Daughters = []string{merged.EncodedName}
		if err := c.putRegion(rec); err != nil {
			return engineerrors.New(engineerrors.KindTransientIO, op, err)
		}
	}

	if err := c.replaceTableRegions(merged.Namespace, merged.Table, parentNames, []string{merged.EncodedName}); err != nil {
		return err
	}
	log.Infof("catalog: merged %v into %s", parentNames, merged.EncodedName)
	return nil
}

// acquirePONR serializes a split/merge commit on key, returning a release
// function the caller must defer. Nil c.locks (single-writer tests only)
// skips locking entirely.
func (c *Catalog) acquirePONR(key string) (release func(), err error) {
	const op = "catalog.acquirePONR"
	if c.locks == nil {
		return func() {}, nil
	}
	ok, ownerID, err := c.locks.AcquireLock("split/"+key, lockTimeoutSeconds)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	if !ok {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, nil)
	}
	return func() {
		if _, err := c.locks.ReleaseLock("split/"+key, ownerID); err != nil {
			log.Warningf("catalog: failed releasing PONR lock for %s: %v", key, err)
		}
	}, nil
}

// replaceTableRegions swaps oldIDs out of namespace/table's region list for
// newIDs, preserving the position of the first removed id so the region
// list doesn't drift to the end on every split/merge.
func (c *Catalog) replaceTableRegions(namespace, table string, oldIDs, newIDs []string) error {
	const op = "catalog.replaceTableRegions"
	t, err := c.GetTable(namespace, table)
	if err != nil {
		return err
	}
	old := make(map[string]bool, len(oldIDs))
	for _, id := range oldIDs {
		old[id] = true
	}

	out := make([]string, 0, len(t.RegionIDs)+len(newIDs))
	inserted := false
	for _, id := range t.RegionIDs {
		if old[id] {
			if !inserted {
				out = append(out, newIDs...)
				inserted = true
			}
			continue
		}
		out = append(out, id)
	}
	if !inserted {
		out = append(out, newIDs...)
	}
	t.RegionIDs = out

	buf, err := json.Marshal(t)
	if err != nil {
		return engineerrors.New(engineerrors.KindUnknown, op, err)
	}
	if err := c.backend.Put(tableKey(namespace, table), buf); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	return nil
}

var _ region.Catalog = (*Catalog)(nil)
