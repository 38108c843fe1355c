package regionfs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/dkvlabs/regiondb/lib/engine/wal"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// WALFS is rooted at the node's shared WAL directory and satisfies both
// wal.FileOpener (segment creation/replay) and scheduler.Archiver
// (ArchiveWALSegment). It imports wal for the SyncWriter type; scheduler
// declares Archiver locally, so this package does not import scheduler.
type WALFS struct {
	dir string
}

// Create opens a new, empty WAL segment file named by a fresh id. Unlike
// store files, a WAL segment has no stage-then-publish step: it's written
// to incrementally and is durable (via Sync, on SyncWAL appends) as it
// grows, not atomically revealed all at once.
func (w *WALFS) Create() (wal.SyncWriter, string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, "", engineerrors.New(engineerrors.KindTransientIO, "WALFS.Create", err)
	}
	id := newFileID()
	path := filepath.Join(w.dir, id+walFileExt)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, "", engineerrors.New(engineerrors.KindTransientIO, "WALFS.Create", err)
	}
	return syncWriterFile{f}, id, nil
}

// OpenForReplay opens an existing segment (live or already archived) for
// sequential reading.
func (w *WALFS) OpenForReplay(id string) (io.ReadCloser, error) {
	path := filepath.Join(w.dir, id+walFileExt)
	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if !os.IsNotExist(err) {
		return nil, engineerrors.New(engineerrors.KindTransientIO, "WALFS.OpenForReplay", err)
	}
	archived := filepath.Join(w.dir, archiveDir, id+walFileExt)
	f, err = os.Open(archived)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, engineerrors.New(engineerrors.KindNotFound, "WALFS.OpenForReplay", err)
		}
		return nil, engineerrors.New(engineerrors.KindTransientIO, "WALFS.OpenForReplay", err)
	}
	return f, nil
}

// ArchiveWALSegment moves id's segment file out of the live WAL directory
// into its archive subdirectory (scheduler.Archiver).
func (w *WALFS) ArchiveWALSegment(id string) error {
	if err := os.MkdirAll(filepath.Join(w.dir, archiveDir), 0o755); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, "WALFS.ArchiveWALSegment", err)
	}
	src := filepath.Join(w.dir, id+walFileExt)
	dst := filepath.Join(w.dir, archiveDir, id+walFileExt)
	if err := os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return engineerrors.New(engineerrors.KindNotFound, "WALFS.ArchiveWALSegment", err)
		}
		return engineerrors.New(engineerrors.KindTransientIO, "WALFS.ArchiveWALSegment", err)
	}
	return nil
}

// syncWriterFile adapts *os.File to wal.SyncWriter (io.Writer + Sync() +
// io.Closer) without exposing *os.File's wider surface.
type syncWriterFile struct{ f *os.File }

func (s syncWriterFile) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s syncWriterFile) Sync() error                 { return s.f.Sync() }
func (s syncWriterFile) Close() error                { return s.f.Close() }

var _ wal.FileOpener = (*WALFS)(nil)
