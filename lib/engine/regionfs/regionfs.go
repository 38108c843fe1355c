// Package regionfs implements RegionFileSystem (spec.md §4.10: C10): safe
// directory layout and atomic rearrangement of region/family/store-file
// state on the underlying file system — region directories, the
// .regioninfo descriptor, store-file staging and publish, split/merge
// reference files, archival, and the WAL segment storage FileOpener.
//
// Grounded on spec.md §4.10's literal operation list directly
// (original_source's filtered sources ship no single FSUtils/
// HRegionFileSystem.java body, only the invariant that publish is a single
// atomic rename); store files and descriptor files are written to a
// staging path and renamed into place, while WAL segments are written in
// place and grow incrementally. Raw os/
// path-filepath layout has no analog among the pack's domain libraries
// (dragonboat/pebble both own their storage end to end rather than
// exposing a directory-layout primitive a caller can reuse) — see
// DESIGN.md for the standard-library justification.
package regionfs

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

var log = logger.GetLogger("engine/regionfs")

const (
	storeFileExt   = ".sf"
	refFileExt     = ".ref"
	walFileExt     = ".wal"
	stagingExt     = ".tmp"
	archiveDir     = "archive"
	regionInfoFile = ".regioninfo"
)

// Root is the node-wide entry point into the on-disk layout rooted at one
// data directory (engineconfig.Config.DataDir). It hands out the two
// narrower filesystems callers actually depend on: a TableFS per table and
// one WALFS shared by every region on the node.
type Root struct {
	dataDir string
}

// NewRoot returns a Root rooted at dataDir. dataDir is created on first use
// by the filesystems it hands out, not here.
func NewRoot(dataDir string) *Root {
	return &Root{dataDir: dataDir}
}

// Table returns the TableFS for namespace/table, creating no directories
// until a caller actually writes through it.
func (r *Root) Table(namespace, table string) *TableFS {
	return &TableFS{
		dir: filepath.Join(r.dataDir, "tables", namespace, table),
	}
}

// WAL returns the node's single WALFS, rooted at dataDir/wal.
func (r *Root) WAL() *WALFS {
	return &WALFS{dir: filepath.Join(r.dataDir, "wal")}
}

// SnapshotsDir returns dataDir/snapshots, where snapshot manifests live
// (spec.md §6 "snapshots/<name>/ for snapshot manifests with file
// references (no data copy)").
func (r *Root) SnapshotsDir() string {
	return filepath.Join(r.dataDir, "snapshots")
}

// writeAtomic stages data under path+stagingExt, fsyncs it, then renames it
// onto path — the single-rename discipline spec.md §4.10's invariant names
// ("any file visible to readers has passed through a single atomic rename
// from a staging name; partial files are invisible").
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, "regionfs.writeAtomic", err)
	}
	staging := path + stagingExt
	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, "regionfs.writeAtomic", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(staging)
		return engineerrors.New(engineerrors.KindTransientIO, "regionfs.writeAtomic", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(staging)
		return engineerrors.New(engineerrors.KindTransientIO, "regionfs.writeAtomic", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(staging)
		return engineerrors.New(engineerrors.KindTransientIO, "regionfs.writeAtomic", err)
	}
	if err := os.Rename(staging, path); err != nil {
		os.Remove(staging)
		return engineerrors.New(engineerrors.KindTransientIO, "regionfs.writeAtomic", err)
	}
	return nil
}

// writeAtomicIdempotent behaves like writeAtomic but skips the write (and
// therefore leaves path's mtime untouched) when path already holds
// byte-identical content — the property spec.md §4.10 names for
// writeRegionInfo ("idempotent on re-open — file mtime must not change on
// re-open").
func writeAtomicIdempotent(path string, data []byte) error {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return nil
	}
	return writeAtomic(path, data)
}

func newFileID() string { return uuid.NewString() }

// stagingWriter wraps the *os.File behind CreateFile's staging name so
// PublishFile only has to rename, never reopen.
type stagingWriter struct {
	f       *os.File
	staging string
	final   string
}

func createStaging(dir, fileID, ext string) (*stagingWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, "regionfs.createStaging", err)
	}
	final := filepath.Join(dir, fileID+ext)
	staging := final + stagingExt
	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, "regionfs.createStaging", err)
	}
	return &stagingWriter{f: f, staging: staging, final: final}, nil
}

func (w *stagingWriter) Write(p []byte) (int, error) { return w.f.Write(p) }

func (w *stagingWriter) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return engineerrors.New(engineerrors.KindTransientIO, "regionfs.stagingWriter.Close", err)
	}
	return w.f.Close()
}

func (w *stagingWriter) publish() error {
	if err := os.Rename(w.staging, w.final); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, "regionfs.publish", err)
	}
	return nil
}

var _ io.WriteCloser = (*stagingWriter)(nil)

func marshalJSON(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindCorruptEncoding, "regionfs.marshalJSON", err)
	}
	return data, nil
}
