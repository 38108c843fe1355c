package regionfs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/dkvlabs/regiondb/lib/engine/famstore"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// RegionFS is rooted at one region's directory and satisfies
// famstore.FileSystem for every family Store the region owns: it lays out
// each family's store files, stages new ones, publishes them with a single
// atomic rename, and archives retired ones.
type RegionFS struct {
	dir string
}

// CreateFile opens a new staging file under family's directory, returning a
// writer and the id to later pass to PublishFile (famstore.FileSystem).
func (r *RegionFS) CreateFile(family string) (io.WriteCloser, string, error) {
	fileID := newFileID()
	w, err := createStaging(filepath.Join(r.dir, family), fileID, storeFileExt)
	if err != nil {
		return nil, "", err
	}
	return w, fileID, nil
}

// PublishFile renames fileID's staging file onto its final name, the single
// atomic rename spec.md §4.10 requires before a file is visible to readers.
func (r *RegionFS) PublishFile(family, fileID string) error {
	final := filepath.Join(r.dir, family, fileID+storeFileExt)
	staging := final + stagingExt
	if err := os.Rename(staging, final); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, "RegionFS.PublishFile", err)
	}
	return nil
}

// OpenFile opens an already-published file for reading.
func (r *RegionFS) OpenFile(family, fileID string) (io.ReaderAt, int64, error) {
	path := filepath.Join(r.dir, family, fileID+storeFileExt)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, engineerrors.New(engineerrors.KindNotFound, "RegionFS.OpenFile", err)
		}
		return nil, 0, engineerrors.New(engineerrors.KindTransientIO, "RegionFS.OpenFile", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, engineerrors.New(engineerrors.KindTransientIO, "RegionFS.OpenFile", err)
	}
	return f, info.Size(), nil
}

// ArchiveFile moves fileID out of family's live set into family/archive,
// retained until no reference/snapshot needs it (spec.md §4.10 "archiveFile").
func (r *RegionFS) ArchiveFile(family, fileID string) error {
	familyDir := filepath.Join(r.dir, family)
	archiveSub := filepath.Join(familyDir, archiveDir)
	if err := os.MkdirAll(archiveSub, 0o755); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, "RegionFS.ArchiveFile", err)
	}
	src := filepath.Join(familyDir, fileID+storeFileExt)
	dst := filepath.Join(archiveSub, fileID+storeFileExt)
	if err := os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return engineerrors.New(engineerrors.KindNotFound, "RegionFS.ArchiveFile", err)
		}
		return engineerrors.New(engineerrors.KindTransientIO, "RegionFS.ArchiveFile", err)
	}
	return nil
}

// HasReferences reports whether family's directory still holds any
// reference-descriptor files left over from a split (spec.md §4.10
// "hasReferences(family)"), used to decide whether a compaction must
// rewrite a reference concrete before the parent's originals can be
// archived.
func (r *RegionFS) HasReferences(family string) (bool, error) {
	refs, err := listFilesWithExt(filepath.Join(r.dir, family), refFileExt)
	if err != nil {
		return false, err
	}
	return len(refs) > 0, nil
}

// ListFamilies returns the names of every family directory this region
// currently holds (spec.md §4.10 "listFamilies").
func (r *RegionFS) ListFamilies() ([]string, error) {
	return listSubdirs(r.dir)
}

// ListFiles returns the ids of every published (non-staging, non-archived)
// store file under family, for callers — snapshot manifest construction,
// chiefly — that need the live file set without going through a famstore.Store.
func (r *RegionFS) ListFiles(family string) ([]string, error) {
	return listFilesWithExt(filepath.Join(r.dir, family), storeFileExt)
}

// FilePath returns the absolute path of fileID's published file under
// family, for callers that need to hardlink or copy it directly (snapshot
// clone) rather than go through OpenFile's io.ReaderAt.
func (r *RegionFS) FilePath(family, fileID string) string {
	return filepath.Join(r.dir, family, fileID+storeFileExt)
}

var _ famstore.FileSystem = (*RegionFS)(nil)
