package famstore

import (
	"sync/atomic"

	"github.com/dkvlabs/regiondb/lib/engine/sortedfile"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// Flush publishes the MemBuffer's current contents as a new SortedFile
// (spec.md §4.7 "Flush: snapshotForFlush → write new SortedFile via
// BlockCodec → rename into the family dir → atomically extend the
// in-memory file set and drop the snapshot"). Returns (nil, nil) if the
// MemBuffer was empty.
//
// The write-lock section below is held only long enough to take the
// MemBuffer snapshot and read the flushed-through sequence together — the
// actual file write happens outside the lock so new puts are never
// blocked on disk I/O, only on the O(1) snapshot swap itself.
func (s *Store) Flush() (*File, error) {
	const op = "famstore.Store.Flush"

	s.mu.Lock()
	snap := s.memBuf.SnapshotForFlush()
	flushSeq := atomic.LoadUint64(&s.highestSeq)
	s.mu.Unlock()

	if snap.Len() == 0 {
		return nil, nil
	}

	w, fileID, err := s.opts.FS.CreateFile(s.opts.Family)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}

	writer := sortedfile.NewWriter(w, s.opts.Writer)
	for _, c := range snap.All() {
		if err := writer.Append(c); err != nil {
			w.Close()
			return nil, err
		}
	}
	result, err := writer.Finish()
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}

	if err := s.opts.FS.PublishFile(s.opts.Family, fileID); err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}

	f := &File{
		FileID:      fileID,
		FirstKey:    result.FirstKey,
		LastKey:     result.LastKey,
		CellCount:   result.CellCount,
		Size:        result.Size,
		MaxSequence: flushSeq,
	}

	s.filesMu.Lock()
	s.files = append([]*File{f}, s.files...)
	s.filesMu.Unlock()

	return f, nil
}

// FlushedThroughSequence returns the highest WAL sequence captured by the
// most recent flush's boundary, i.e. the value the Scheduler/WAL use to
// decide archival eligibility (spec.md §3 "WAL entries become eligible for
// archival once every Store whose edits they contain has flushed past that
// sequence").
func (s *Store) FlushedThroughSequence() uint64 {
	s.filesMu.RLock()
	defer s.filesMu.RUnlock()
	if len(s.files) == 0 {
		return 0
	}
	// files[0] is the newest flush, and each flush's snapshot boundary only
	// ever covers sequences past the previous flush's, so it necessarily
	// carries the highest MaxSequence among all of this store's files.
	return s.files[0].MaxSequence
}
