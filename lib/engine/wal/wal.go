// Package wal implements the crash-safe, append-only write-ahead log that
// guards every MemBuffer insert (spec.md §4.5: C5 WAL).
//
// Grounded on original_source's FSHLog/WALActionsListener contract (roll on
// size/period/explicit request, pre/post roll and archive hooks,
// TestLogRollPeriod's idle-roll-ticker requirement) — the teacher repo has
// no WAL of its own (lib/db is an in-memory engine with no durability
// layer), so the record framing here is new code following the same
// length+checksum discipline as lib/engine/blockcodec rather than adapting
// a teacher file.
package wal

import (
	"io"
	"sync"
	"time"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// Options configures a WAL.
type Options struct {
	Opener FileOpener
	// RollSize triggers a roll once the current segment's byte size
	// reaches it.
	RollSize int64
	// RollPeriod triggers a roll even under zero write traffic, driven by
	// a free-running ticker (spec.md §4.5, §8 item 1).
	RollPeriod time.Duration
	Clock      Clock
	Listener   ActionsListener
}

func (o Options) withDefaults() Options {
	if o.RollSize <= 0 {
		o.RollSize = 256 << 20
	}
	if o.RollPeriod <= 0 {
		o.RollPeriod = time.Hour
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Listener == nil {
		o.Listener = NopActionsListener{}
	}
	return o
}

// WAL is a per-node append-only log shared by every region hosted on the
// node (spec.md §3 "The WAL is per-node and receives edits from all its
// regions").
type WAL struct {
	opts Options

	mu      sync.Mutex
	cur     *segment
	history []*segment // closed segments, oldest first, newest-rolled last

	nextSeq    uint64
	lastSynced uint64
	lastRollAt time.Time

	closed bool
	stopCh chan struct{}
	ticker Ticker
}

// New opens a fresh WAL, creating its first segment immediately.
func New(opts Options) (*WAL, error) {
	opts = opts.withDefaults()
	if opts.Opener == nil {
		return nil, engineerrors.New(engineerrors.KindCorruptEncoding, "wal.New", errNilOpener)
	}

	w := &WAL{opts: opts, stopCh: make(chan struct{})}
	if err := w.rollLocked(); err != nil {
		return nil, err
	}
	w.lastRollAt = opts.Clock.Now()

	w.ticker = opts.Clock.NewTicker(opts.RollPeriod)
	go w.runRollTicker()

	return w, nil
}

func (w *WAL) runRollTicker() {
	for {
		select {
		case <-w.ticker.C():
			w.mu.Lock()
			if !w.closed && w.opts.Clock.Now().Sub(w.lastRollAt) >= w.opts.RollPeriod {
				_ = w.rollLocked()
				w.lastRollAt = w.opts.Clock.Now()
			}
			w.mu.Unlock()
		case <-w.stopCh:
			return
		}
	}
}

// Append assigns the edit a strictly increasing global sequence number,
// writes it to the current segment, and honors durability's sync contract
// before returning (spec.md §4.5). The returned sequence also satisfies
// spec.md's "per-region sequence numbers are strictly increasing across
// all files" invariant: it is drawn from one WAL-lifetime counter, so any
// subsequence restricted to one region is trivially increasing too.
// SkipWAL edits are never written and return sequence 0.
func (w *WAL) Append(regionID string, cells []keycodec.Cell, durability Durability) (uint64, error) {
	const op = "wal.Append"
	if durability == SkipWAL {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, engineerrors.New(engineerrors.KindTransientIO, op, errWALClosed)
	}

	w.nextSeq++
	seq := w.nextSeq

	raw, err := encodeEdit(Edit{Sequence: seq, RegionID: regionID, Cells: cells})
	if err != nil {
		return 0, err
	}

	// Append failure is fatal to the node per spec.md §4.5: the caller is
	// expected to abort the regions whose edits may be lost rather than
	// retry past a write error here.
	if _, err := w.cur.w.Write(raw); err != nil {
		return 0, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	w.cur.recordAppend(seq, regionID, len(raw))

	if durability.requiresSync() {
		if err := w.cur.w.Sync(); err != nil {
			return 0, engineerrors.New(engineerrors.KindTransientIO, op, err)
		}
		w.lastSynced = seq
	}

	if w.cur.size >= w.opts.RollSize {
		if err := w.rollLocked(); err != nil {
			return seq, err
		}
	}

	return seq, nil
}

// Sync blocks until sequence is durably persisted, syncing the current
// segment if it has not already been synced past sequence. Used for
// explicit group-commit by callers that appended with AsyncWAL and later
// need a durability point.
func (w *WAL) Sync(sequence uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if sequence <= w.lastSynced {
		return nil
	}
	if err := w.cur.w.Sync(); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, "wal.Sync", err)
	}
	w.lastSynced = w.cur.lastSeq
	return nil
}

// Roll closes the current segment and opens a new one, notifying
// PreLogRoll/PostLogRoll listeners (spec.md §4.5).
func (w *WAL) Roll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rollLocked()
}

func (w *WAL) rollLocked() error {
	const op = "wal.roll"
	oldID := ""
	if w.cur != nil {
		oldID = w.cur.ID()
	}

	newWriter, newID, err := w.opts.Opener.Create()
	if err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, op, err)
	}

	w.opts.Listener.PreLogRoll(oldID, newID)

	if w.cur != nil {
		w.cur.closed = true
		if err := w.cur.w.Close(); err != nil {
			return engineerrors.New(engineerrors.KindTransientIO, op, err)
		}
		w.history = append(w.history, w.cur)
	}
	w.cur = newSegment(newID, newWriter)

	w.opts.Listener.PostLogRoll(oldID, newID)
	return nil
}

// ArchivableSegments returns closed segments whose edits are safe to
// delete given minUnflushedSequence, in oldest-first order, without
// removing them from history — the caller (RegionFileSystem/Scheduler)
// performs the actual archival and then calls MarkArchived.
func (w *WAL) ArchivableSegments(minUnflushedSequence func(regionID string) uint64) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ids []string
	for _, seg := range w.history {
		if seg.IsArchivable(minUnflushedSequence) {
			ids = append(ids, seg.ID())
		}
	}
	return ids
}

// MarkArchived removes id from history after the caller has physically
// archived it, notifying PreLogArchive/PostLogArchive listeners.
func (w *WAL) MarkArchived(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.opts.Listener.PreLogArchive(id)
	for i, seg := range w.history {
		if seg.ID() == id {
			w.history = append(w.history[:i], w.history[i+1:]...)
			break
		}
	}
	w.opts.Listener.PostLogArchive(id)
}

// Close stops the roll ticker and closes the current segment. Closed
// segments in history are left for the caller to replay/archive.
func (w *WAL) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stopCh)
	if w.ticker != nil {
		w.ticker.Stop()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur != nil && !w.cur.closed {
		w.cur.closed = true
		return w.cur.w.Close()
	}
	return nil
}

// ReplayEdit is one record yielded by Replay, carrying the segment id it
// came from for diagnostics.
type ReplayEdit struct {
	SegmentID string
	Edit      Edit
}

// Replay reads segmentID sequentially, yielding edits whose sequence
// exceeds perRegionMinSeq[edit.RegionID] (spec.md §4.5 "on node recovery,
// yields edits whose sequence > minUnflushedSequence(region)"). It stops
// at the first incomplete or checksum-mismatched record, since that is
// exactly the tail a crash mid-append leaves behind — not further
// corruption to report.
func (w *WAL) Replay(segmentID string, perRegionMinSeq map[string]uint64) ([]ReplayEdit, error) {
	const op = "wal.Replay"
	r, err := w.opts.Opener.OpenForReplay(segmentID)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	defer r.Close()

	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}

	var out []ReplayEdit
	offset := 0
	for offset < len(buf) {
		e, n, err := decodeEditAt(buf[offset:])
		if err != nil {
			if err == errIncompleteRecord || engineerrors.Is(err, engineerrors.KindChecksumMismatch) || engineerrors.Is(err, engineerrors.KindCorruptFile) {
				break
			}
			return out, err
		}
		offset += n

		minSeq := perRegionMinSeq[e.RegionID]
		if e.Sequence > minSeq {
			out = append(out, ReplayEdit{SegmentID: segmentID, Edit: e})
		}
	}
	return out, nil
}
