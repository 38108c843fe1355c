// Package region implements Region (spec.md §3/§4.8: C8), the request-level
// orchestrator owning every Store for one row-range: row-atomic put/delete/
// batch/checkAndMutate/increment/append, the merging read path, MVCC, and
// the split/merge state machine.
//
// Grounded on original_source's HRegion as the conceptual owner of this
// responsibility (the region-level tests shipped in original_source —
// TestHRegionInfo, the WAL roll/listener tests — describe its surrounding
// contracts even though no HRegion.java itself ships); row latching follows
// lib/db/engines/maple's xsync-backed concurrent map pattern already used
// by blockcache, generalized here to a striped mutex table since row
// latches are acquire/release pairs rather than a long-lived value store.
package region

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/dkvlabs/regiondb/lib/engine/famstore"
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/wal"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// State is one of the region lifecycle states named in spec.md §3/§4.8.
type State int

const (
	StateOpening State = iota
	StateOpen
	StateClosing
	StateClosed
	StateSplitting
	StateSplit
	StateMerging
	StateMerged
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "OPENING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateSplitting:
		return "SPLITTING"
	case StateSplit:
		return "SPLIT"
	case StateMerging:
		return "MERGING"
	case StateMerged:
		return "MERGED"
	case StateOffline:
		return "OFFLINE"
	default:
		return "UNKNOWN"
	}
}

// Info identifies a region's identity and row-range (spec.md §3 "Region").
// StartKey/EndKey follow the standard half-open-interval convention: an
// empty StartKey means "from the beginning of the table" and an empty
// EndKey means "to the end".
type Info struct {
	Namespace   string
	Table       string
	StartKey    []byte
	EndKey      []byte
	CreatedAt   int64 // unix nanos, part of the encoded name derivation
	EncodedName string
}

// newEncodedName derives the hashed suffix spec.md §3 names ("region id
// (derived from table, startKey, creation time, hashed suffix)"), mirroring
// HBase's own table,startKey,createdAt.hash encoded-name convention.
// Grounded on the same hash/fnv discipline sortedfile's bloom filter
// already uses — the pack carries no standalone hashing library, and FNV
// is a stdlib primitive rather than a hand-rolled hash.
func newEncodedName(table string, startKey []byte, createdAt int64) string {
	h := fnv.New64a()
	h.Write([]byte(table))
	h.Write(startKey)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(createdAt))
	h.Write(buf[:])
	return fmt.Sprintf("%s,%x,%d.%016x", table, startKey, createdAt, h.Sum64())
}

// NewInfo builds an Info for a fresh region, deriving its encoded name.
func NewInfo(namespace, table string, startKey, endKey []byte, createdAt int64) Info {
	return Info{
		Namespace:   namespace,
		Table:       table,
		StartKey:    startKey,
		EndKey:      endKey,
		CreatedAt:   createdAt,
		EncodedName: newEncodedName(table, startKey, createdAt),
	}
}

// Hooks is the subset of the MasterObserver/RegionObserver taxonomy
// (spec.md §8 "Hook system") a Region invokes around a mutation. The full
// hook set and ObserverContext machinery live in lib/engine/observer (C11);
// Region holds only this interface, never a back-reference to that
// package, per spec.md §8's "no back-pointer to Region".
type Hooks interface {
	PreMutate(ctx *HookContext)
	PostMutate(ctx *HookContext)
}

// HookContext is passed to each Hooks call. Bypass lets an observer veto
// the default mutation path entirely; Complete lets it signal "don't call
// any further observers" (spec.md §8 "ObserverContext carrying bypass and
// complete signals"). Observers must not retain ctx past the call.
type HookContext struct {
	Row      []byte
	Cells    []keycodec.Cell
	Bypass   bool
	Complete bool

	// RegionID and Sequence are populated before PostMutate, identifying
	// the WAL edit this mutation produced (spec.md §4.12 "register on WAL
	// actions") — zero/empty at PreMutate, since no WAL entry exists yet.
	RegionID string
	Sequence uint64
}

type noopHooks struct{}

func (noopHooks) PreMutate(*HookContext)  {}
func (noopHooks) PostMutate(*HookContext) {}

// WAL is the subset of *wal.WAL a Region needs, kept local so tests can
// substitute a fake without depending on the concrete package.
type WAL interface {
	Append(regionID string, cells []keycodec.Cell, durability wal.Durability) (uint64, error)
}

// FlushCompactQueue is the subset of FlushCompactScheduler (lib/engine/
// scheduler, C9) a Region needs to request background work without
// importing that package — the Scheduler depends on Region/Store, not the
// reverse.
type FlushCompactQueue interface {
	EnqueueFlush(regionID string, s *famstore.Store)
	EnqueueCompaction(regionID string, s *famstore.Store, major bool)
}

// Options configures a new Region.
type Options struct {
	Info   Info
	Stores map[string]*famstore.Store // keyed by family name
	WAL    WAL
	Hooks  Hooks
}

// Region owns the Stores for a single row-range and orchestrates
// request-level atomicity, MVCC, and the split/merge state machine
// (spec.md §4.8).
type Region struct {
	info   Info
	id     string
	stores map[string]*famstore.Store
	wal    WAL
	hooks  Hooks

	mu    sync.RWMutex
	state State
	stats CheckAndMutateStats

	mvcc    *MVCC
	latches latchTable
}

// New creates a Region in state OPENING; callers must call MarkOpen once
// WAL replay and store loading finish (spec.md §4.8 "OPENING → OPEN on
// successful replay + store load").
func New(opts Options) *Region {
	hooks := opts.Hooks
	if hooks == nil {
		hooks = noopHooks{}
	}
	return &Region{
		info:   opts.Info,
		id:     opts.Info.EncodedName,
		stores: opts.Stores,
		wal:    opts.WAL,
		hooks:  hooks,
		state:  StateOpening,
		mvcc:   NewMVCC(),
	}
}

// ID returns the region's encoded name, used as its WAL regionID.
func (r *Region) ID() string { return r.id }

// Info returns the region's identity/row-range descriptor.
func (r *Region) Info() Info { return r.info }

// Stores returns the region's per-family Stores, keyed by family name, so a
// node-wide orchestrator (cmd/engined) can register each with a
// FlushCompactScheduler without Region itself depending on that package.
func (r *Region) Stores() map[string]*famstore.Store { return r.stores }

func (r *Region) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Region) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// MarkOpen transitions OPENING → OPEN.
func (r *Region) MarkOpen() { r.setState(StateOpen) }

// MarkClosed transitions CLOSING → CLOSED, called once a final flush
// completes (spec.md §4.8 "OPEN → CLOSING on graceful stop; CLOSING →
// CLOSED on flush complete").
func (r *Region) MarkClosed() { r.setState(StateClosed) }

// BeginClose transitions OPEN → CLOSING, quiescing new writes.
func (r *Region) BeginClose() { r.setState(StateClosing) }

func (r *Region) requireOpen(op string) error {
	if r.State() != StateOpen {
		return engineerrors.New(engineerrors.KindRegionNotOnline, op, nil)
	}
	return nil
}

// contains reports whether row falls in [StartKey, EndKey).
func (r *Region) contains(row []byte) bool {
	if len(r.info.StartKey) > 0 && bytes.Compare(row, r.info.StartKey) < 0 {
		return false
	}
	if len(r.info.EndKey) > 0 && bytes.Compare(row, r.info.EndKey) >= 0 {
		return false
	}
	return true
}

func (r *Region) storeFor(family []byte) (*famstore.Store, error) {
	s, ok := r.stores[string(family)]
	if !ok {
		return nil, engineerrors.New(engineerrors.KindNoSuchFamily, "Region", nil)
	}
	return s, nil
}

// groupByFamily splits cells into per-family slices, preserving relative
// order within each family.
func groupByFamily(cells []keycodec.Cell) map[string][]keycodec.Cell {
	out := make(map[string][]keycodec.Cell)
	for _, c := range cells {
		key := string(c.Family)
		out[key] = append(out[key], c)
	}
	return out
}
