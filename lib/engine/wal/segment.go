package wal

import "io"

// SyncWriter is what a WAL segment is written through. *os.File satisfies
// this directly; tests substitute an in-memory implementation.
type SyncWriter interface {
	io.Writer
	Sync() error
	io.Closer
}

// FileOpener creates new WAL segment storage. RegionFileSystem supplies the
// production implementation (one file per roll under the node's WAL
// directory); this package only depends on the interface.
type FileOpener interface {
	// Create returns a new, empty segment ready for appends and the id
	// (e.g. file path or name) to remember it by.
	Create() (SyncWriter, string, error)
	// OpenForReplay opens an existing segment (by the id Create returned)
	// for sequential reading.
	OpenForReplay(id string) (io.ReadCloser, error)
}

// segment tracks one WAL file's bookkeeping: the byte range written, the
// sequence range it holds, and which regions it carries edits for — the
// state RegionFileSystem/Scheduler need to decide archival eligibility.
type segment struct {
	id     string
	w      SyncWriter
	size   int64
	closed bool

	firstSeq uint64
	lastSeq  uint64
	haveSeq  bool

	// regionMaxSeq is the highest sequence number this segment carries for
	// each region; a segment is archivable once every region's flush point
	// has passed regionMaxSeq[region] for every region present here.
	regionMaxSeq map[string]uint64

	// hasUserEdits is false only for a segment that was rolled without a
	// single successful append (e.g. a period-roll on an idle WAL);
	// archival of such a segment never needs to wait on any region's
	// flush point.
	hasUserEdits bool
}

func newSegment(id string, w SyncWriter) *segment {
	return &segment{id: id, w: w, regionMaxSeq: make(map[string]uint64)}
}

func (s *segment) recordAppend(seq uint64, regionID string, n int) {
	if !s.haveSeq {
		s.firstSeq = seq
		s.haveSeq = true
	}
	s.lastSeq = seq
	s.size += int64(n)
	s.hasUserEdits = true
	if cur, ok := s.regionMaxSeq[regionID]; !ok || seq > cur {
		s.regionMaxSeq[regionID] = seq
	}
}

// IsArchivable reports whether every region this segment carries edits for
// has flushed past this segment's highest sequence for that region
// (spec.md §3: "rolled files are candidates for archival once
// minUnflushedSequence(region) > lastSequence(file) for every region whose
// edits appear").
func (s *segment) IsArchivable(minUnflushedSequence func(regionID string) uint64) bool {
	if !s.hasUserEdits {
		return true
	}
	for region, maxSeq := range s.regionMaxSeq {
		if minUnflushedSequence(region) <= maxSeq {
			return false
		}
	}
	return true
}

// ID returns the segment's identifier (its path/name, as returned by
// FileOpener.Create).
func (s *segment) ID() string { return s.id }
