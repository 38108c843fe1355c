package regionfs

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dkvlabs/regiondb/lib/engine/region"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// TableFS is rooted at one table's directory and satisfies
// region.SplitFileSystem: it lays out daughter region directories, their
// .regioninfo descriptors, and split/merge reference files.
type TableFS struct {
	dir string
}

// GetTableDir returns the table's root directory (spec.md §4.10 "getTableDir").
func (t *TableFS) GetTableDir() string { return t.dir }

func (t *TableFS) regionDir(info region.Info) string {
	return filepath.Join(t.dir, info.EncodedName)
}

// CreateRegionDir makes info's region directory, a no-op if it already
// exists (spec.md §4.10 "createRegionDir").
func (t *TableFS) CreateRegionDir(info region.Info) error {
	if err := os.MkdirAll(t.regionDir(info), 0o755); err != nil {
		return engineerrors.New(engineerrors.KindTransientIO, "TableFS.CreateRegionDir", err)
	}
	return nil
}

// WriteRegionInfo writes info's .regioninfo descriptor, idempotently: a
// re-open that writes the same Info again leaves the file's mtime
// untouched (spec.md §4.10's invariant).
func (t *TableFS) WriteRegionInfo(info region.Info) error {
	data, err := marshalJSON(info)
	if err != nil {
		return err
	}
	path := filepath.Join(t.regionDir(info), regionInfoFile)
	return writeAtomicIdempotent(path, data)
}

// ReadRegionInfo reads and decodes the .regioninfo descriptor for
// encodedName (spec.md §4.10 "readRegionInfo").
func (t *TableFS) ReadRegionInfo(encodedName string) (region.Info, error) {
	path := filepath.Join(t.dir, encodedName, regionInfoFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return region.Info{}, engineerrors.New(engineerrors.KindNotFound, "TableFS.ReadRegionInfo", err)
		}
		return region.Info{}, engineerrors.New(engineerrors.KindTransientIO, "TableFS.ReadRegionInfo", err)
	}
	var info region.Info
	if err := json.Unmarshal(data, &info); err != nil {
		return region.Info{}, engineerrors.New(engineerrors.KindCorruptedSnapshot, "TableFS.ReadRegionInfo", err)
	}
	return info, nil
}

// Region returns the RegionFS backing info's family stores, the famstore.
// FileSystem implementation passed to every famstore.Store the region owns.
func (t *TableFS) Region(info region.Info) *RegionFS {
	return &RegionFS{dir: t.regionDir(info)}
}

// referenceDescriptor is the small JSON pointer file createReferenceFiles
// writes into a daughter's family directory: it identifies which parent
// file a reference covers and which half of it this daughter owns. Nothing
// in this module reads these back into famstore.File{Reference: true, ...}
// entries when a region is opened.
type referenceDescriptor struct {
	Parent       string
	ParentFileID string
	SplitKey     []byte
	Upper        bool
}

// CreateReferenceFiles populates daughter's family directories with
// reference descriptors for every published file currently in parent's
// matching family directory (spec.md §4.10 "createReferenceFile(parent,
// splitKey, side)"). splitKey is nil for a merge, where references cover
// the whole parent file.
func (t *TableFS) CreateReferenceFiles(parent, daughter region.Info, splitKey []byte, upper bool) error {
	parentDir := t.regionDir(parent)
	families, err := listSubdirs(parentDir)
	if err != nil {
		return err
	}
	for _, family := range families {
		files, err := listFilesWithExt(filepath.Join(parentDir, family), storeFileExt)
		if err != nil {
			return err
		}
		for _, fileID := range files {
			desc := referenceDescriptor{
				Parent:       parent.EncodedName,
				ParentFileID: fileID,
				SplitKey:     splitKey,
				Upper:        upper,
			}
			data, err := marshalJSON(desc)
			if err != nil {
				return err
			}
			refPath := filepath.Join(t.regionDir(daughter), family, fileID+refFileExt)
			if err := writeAtomic(refPath, data); err != nil {
				return err
			}
		}
	}
	return nil
}

func listSubdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, engineerrors.New(engineerrors.KindTransientIO, "regionfs.listSubdirs", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func listFilesWithExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, engineerrors.New(engineerrors.KindTransientIO, "regionfs.listFilesWithExt", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == ext {
			out = append(out, name[:len(name)-len(ext)])
		}
	}
	return out, nil
}

var _ region.SplitFileSystem = (*TableFS)(nil)
