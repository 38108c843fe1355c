package snapshot

import (
	"os"
	"testing"

	"github.com/dkvlabs/regiondb/lib/engine/region"
	"github.com/dkvlabs/regiondb/lib/engine/regionfs"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

func publishFile(t *testing.T, root *regionfs.Root, namespace, table string, info region.Info, family, content string) {
	t.Helper()
	tableFS := root.Table(namespace, table)
	if err := tableFS.CreateRegionDir(info); err != nil {
		t.Fatal(err)
	}
	if err := tableFS.WriteRegionInfo(info); err != nil {
		t.Fatal(err)
	}
	rfs := tableFS.Region(info)
	w, fileID, err := rfs.CreateFile(family)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := rfs.PublishFile(family, fileID); err != nil {
		t.Fatal(err)
	}
}

func TestBuildWriteReadRoundTrip(t *testing.T) {
	root := regionfs.NewRoot(t.TempDir())
	info := region.NewInfo("ns", "t", nil, nil, 1)
	publishFile(t, root, "ns", "t", info, "cf", "hello")

	m, err := Build(root, "ns", "t", "snap0", []region.Info{info})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Regions) != 1 || len(m.Regions[0].Files) != 1 {
		t.Fatalf("expected one region with one file, got %+v", m)
	}

	if err := Write(root, m); err != nil {
		t.Fatal(err)
	}
	got, err := Read(root, "snap0")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "snap0" || len(got.Regions) != 1 {
		t.Fatalf("expected round-tripped manifest to match, got %+v", got)
	}
}

func TestReadMissingManifestReturnsCorruptedSnapshot(t *testing.T) {
	root := regionfs.NewRoot(t.TempDir())
	_, err := Read(root, "no-such-snapshot")
	if !engineerrors.Is(err, engineerrors.KindCorruptedSnapshot) {
		t.Fatalf("expected KindCorruptedSnapshot, got %v", err)
	}
}

func TestEmptySnapshotCloneProducesZeroFiles(t *testing.T) {
	root := regionfs.NewRoot(t.TempDir())
	m, err := Build(root, "ns", "t", "empty", nil)
	if err != nil {
		t.Fatal(err)
	}
	infos, err := Clone(root, m, "ns", "t2")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected an empty snapshot to clone zero regions, got %d", len(infos))
	}
}

func TestCloneMaterializesFilesUnderNewTable(t *testing.T) {
	root := regionfs.NewRoot(t.TempDir())
	info := region.NewInfo("ns", "t", nil, nil, 1)
	publishFile(t, root, "ns", "t", info, "cf", "hello")

	m, err := Build(root, "ns", "t", "snap1", []region.Info{info})
	if err != nil {
		t.Fatal(err)
	}

	infos, err := Clone(root, m, "ns", "t2")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected one cloned region, got %d", len(infos))
	}

	clonedRFS := root.Table("ns", "t2").Region(infos[0])
	files, err := clonedRFS.ListFiles("cf")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected the cloned region to have one file, got %v", files)
	}
	data, err := os.ReadFile(clonedRFS.FilePath("cf", files[0]))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected cloned file content to match the source, got %q", data)
	}
}

func TestCloneFromCorruptedManifestFailsAndLeavesNoTable(t *testing.T) {
	root := regionfs.NewRoot(t.TempDir())
	info := region.NewInfo("ns", "t", nil, nil, 1)
	publishFile(t, root, "ns", "t", info, "cf", "hello")

	m, err := Build(root, "ns", "t", "snap2", []region.Info{info})
	if err != nil {
		t.Fatal(err)
	}

	srcRFS := root.Table("ns", "t").Region(info)
	fileID := m.Regions[0].Files[0].FileID
	if err := os.WriteFile(srcRFS.FilePath("cf", fileID), []byte("corrupted content here"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Clone(root, m, "ns", "t3")
	if !engineerrors.Is(err, engineerrors.KindCorruptedSnapshot) {
		t.Fatalf("expected KindCorruptedSnapshot from a size mismatch, got %v", err)
	}

	destDir := root.Table("ns", "t3").GetTableDir()
	entries, statErr := os.ReadDir(destDir)
	if statErr == nil && len(entries) != 0 {
		t.Fatalf("expected a failed clone to leave no region directories behind, found %v", entries)
	}
}

func TestRestoreMaterializesBackIntoSourceTable(t *testing.T) {
	root := regionfs.NewRoot(t.TempDir())
	info := region.NewInfo("ns", "t", nil, nil, 1)
	publishFile(t, root, "ns", "t", info, "cf", "hello")

	m, err := Build(root, "ns", "t", "snap3", []region.Info{info})
	if err != nil {
		t.Fatal(err)
	}

	infos, err := Restore(root, m)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected restore to materialize one region, got %d", len(infos))
	}
}
