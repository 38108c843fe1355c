// Package catalog implements the external Catalog collaborator spec.md §1
// says region.Region only ever reaches through a narrow interface: PONR
// recording for split/merge, plus the table/region bookkeeping a cluster
// needs to route requests and run the catalog-janitor style reconciliation
// spec.md leaves unspecified. Two backing reference implementations are
// provided: lib/catalog/catalogstore (single node, pebble-backed) and
// lib/catalog/dcatalog (raft-replicated, adapted from lib/store/dstore).
//
// Grounded on original_source's MetaTableAccessor/RegionStateStore, which
// keep exactly this data (table enablement, region→state, region→server)
// in a single system table rather than a bespoke service; this package
// follows the same shape without carrying over HBase's own meta-table row
// format, since that format is a wire/storage detail, not part of the
// Catalog contract spec.md names.
package catalog

import (
	"encoding/json"

	"github.com/dkvlabs/regiondb/lib/engine/region"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
	"github.com/dkvlabs/regiondb/lib/lockmgr"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("catalog")

// Backend is the narrow storage surface a Catalog needs: point get/put/
// delete plus a prefix scan, the operations both catalogstore (pebble)
// and dcatalog (raft-replicated) implement. Kept separate from
// lib/store.IStore (which lockmgr already uses for PONR locking). The
// Catalog itself uses only Put/Get/Delete: ListRegions reads the region
// ids the Catalog keeps in each TableRecord rather than scanning.
type Backend interface {
	Put(key string, value []byte) error
	Get(key string) (value []byte, ok bool, err error)
	Delete(key string) error
	// Scan calls fn for every key with the given prefix, in ascending
	// key order, stopping at the first error fn returns.
	Scan(prefix string, fn func(key string, value []byte) error) error
}

// RegionState mirrors the lifecycle names region.State already uses, kept
// as a separate string type here since the catalog's view of a region
// persists across process restarts and should not silently track an
// in-memory enum's numbering.
type RegionState string

const (
	RegionOpen    RegionState = "OPEN"
	RegionSplit   RegionState = "SPLIT"
	RegionMerged  RegionState = "MERGED"
	RegionOffline RegionState = "OFFLINE"
)

// TableRecord is the catalog's view of one table: its enablement and the
// encoded names of every region currently covering it.
type TableRecord struct {
	Namespace string
	Name      string
	Enabled   bool
	RegionIDs []string
}

// RegionRecord is the catalog's view of one region: its descriptor,
// lifecycle state, assignment, and (for SPLIT/MERGED regions) the
// successor region set a client should follow instead.
type RegionRecord struct {
	Info      region.Info
	State     RegionState
	ServerID  string
	Daughters []string // successors: the daughters once SPLIT, the merged region once MERGED
	Parents   []string // not set by MarkSplit/MarkMerged (MarkMerged clears it)
}

// Catalog is the Catalog external collaborator (spec.md §1/§4.8): table
// and region bookkeeping backed by a Backend, with split/merge PONR
// flips additionally serialized through lockmgr so two nodes racing the
// same parent region can never both win.
type Catalog struct {
	backend Backend
	locks   lockmgr.ILockManager
}

// New builds a Catalog over backend, using locks to serialize PONR
// flips. locks may be nil only in single-writer tests; a production
// Catalog always passes a real lockmgr.ILockManager so concurrent split
// attempts on the same parent region fail safe instead of racing.
func New(backend Backend, locks lockmgr.ILockManager) *Catalog {
	return &Catalog{backend: backend, locks: locks}
}

func tableKey(namespace, name string) string { return "table/" + namespace + "/" + name }
func regionKey(encodedName string) string    { return "region/" + encodedName }

// CreateTable registers an empty, enabled table.
func (c *Catalog) CreateTable(namespace, name string) error {
	const op = "catalog.CreateTable"
	rec := TableRecord{Namespace: namespace, Name: name, Enabled: true}
	buf, err := json.Marshal(rec)
	if err != nil {
		return engineerrors.New(engineerrors.KindUnknown, op, err)
	}
	if err := c.backend.Put(tableKey(namespace, name), buf); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	return nil
}

// GetTable returns the table's current record.
func (c *Catalog) GetTable(namespace, name string) (TableRecord, error) {
	const op = "catalog.GetTable"
	buf, ok, err := c.backend.Get(tableKey(namespace, name))
	if err != nil {
		return TableRecord{}, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	if !ok {
		return TableRecord{}, engineerrors.New(engineerrors.KindNotFound, op, nil)
	}
	var rec TableRecord
	if err := json.Unmarshal(buf, &rec); err != nil {
		return TableRecord{}, engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
	}
	return rec, nil
}

// SetTableEnabled flips a table's enablement, e.g. before a Restore
// (snapshot package) replaces its region set.
func (c *Catalog) SetTableEnabled(namespace, name string, enabled bool) error {
	const op = "catalog.SetTableEnabled"
	rec, err := c.GetTable(namespace, name)
	if err != nil {
		return err
	}
	rec.Enabled = enabled
	buf, err := json.Marshal(rec)
	if err != nil {
		return engineerrors.New(engineerrors.KindUnknown, op, err)
	}
	if err := c.backend.Put(tableKey(namespace, name), buf); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	return nil
}

// RegisterRegion records a newly-created region as OPEN and unassigned,
// adding it to its table's region list.
func (c *Catalog) RegisterRegion(info region.Info) error {
	const op = "catalog.RegisterRegion"
	if err := c.putRegion(RegionRecord{Info: info, State: RegionOpen}); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	return c.appendTableRegion(info.Namespace, info.Table, info.EncodedName)
}

// GetRegion returns one region's current catalog record.
func (c *Catalog) GetRegion(encodedName string) (RegionRecord, error) {
	const op = "catalog.GetRegion"
	buf, ok, err := c.backend.Get(regionKey(encodedName))
	if err != nil {
		return RegionRecord{}, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	if !ok {
		return RegionRecord{}, engineerrors.New(engineerrors.KindUnknownRegion, op, nil)
	}
	var rec RegionRecord
	if err := json.Unmarshal(buf, &rec); err != nil {
		return RegionRecord{}, engineerrors.New(engineerrors.KindCorruptEncoding, op, err)
	}
	return rec, nil
}

// ListRegions returns every region currently registered for a table, in
// the order RegisterRegion/MarkSplit/MarkMerged last left the table's
// region list.
func (c *Catalog) ListRegions(namespace, name string) ([]RegionRecord, error) {
	t, err := c.GetTable(namespace, name)
	if err != nil {
		return nil, err
	}
	out := make([]RegionRecord, 0, len(t.RegionIDs))
	for _, id := range t.RegionIDs {
		rec, err := c.GetRegion(id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Assign records encodedName as hosted on serverID.
func (c *Catalog) Assign(encodedName, serverID string) error {
	const op = "catalog.Assign"
	rec, err := c.GetRegion(encodedName)
	if err != nil {
		return err
	}
	rec.ServerID = serverID
	if err := c.putRegion(rec); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	return nil
}

// Unassign clears a region's server assignment, e.g. before the region
// balancer or the janitor reassigns it elsewhere.
func (c *Catalog) Unassign(encodedName string) error {
	return c.Assign(encodedName, "")
}

func (c *Catalog) putRegion(rec RegionRecord) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.backend.Put(regionKey(rec.Info.EncodedName), buf)
}

func (c *Catalog) appendTableRegion(namespace, name, encodedName string) error {
	const op = "catalog.appendTableRegion"
	t, err := c.GetTable(namespace, name)
	if err != nil {
		return err
	}
	t.RegionIDs = append(t.RegionIDs, encodedName)
	buf, err := json.Marshal(t)
	if err != nil {
		return engineerrors.New(engineerrors.KindUnknown, op, err)
	}
	return c.backend.Put(tableKey(namespace, name), buf)
}
