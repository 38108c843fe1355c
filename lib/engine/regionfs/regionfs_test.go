package regionfs

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkvlabs/regiondb/lib/engine/region"
)

func TestCreatePublishOpenArchiveRoundTrips(t *testing.T) {
	root := NewRoot(t.TempDir())
	info := region.NewInfo("ns", "t", nil, nil, 1)
	table := root.Table("ns", "t")
	if err := table.CreateRegionDir(info); err != nil {
		t.Fatal(err)
	}
	rfs := table.Region(info)

	w, fileID, err := rfs.CreateFile("cf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// Not yet visible: staging file only.
	if _, _, err := rfs.OpenFile("cf", fileID); err == nil {
		t.Fatal("expected unpublished file to be invisible")
	}

	if err := rfs.PublishFile("cf", fileID); err != nil {
		t.Fatal(err)
	}

	r, size, err := rfs.OpenFile("cf", fileID)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Fatalf("expected hello, got %q", buf)
	}

	if err := rfs.ArchiveFile("cf", fileID); err != nil {
		t.Fatal(err)
	}
	if _, _, err := rfs.OpenFile("cf", fileID); err == nil {
		t.Fatal("expected archived file to no longer open from the live path")
	}
}

func TestWriteRegionInfoIsIdempotentOnReopen(t *testing.T) {
	root := NewRoot(t.TempDir())
	info := region.NewInfo("ns", "t", nil, nil, 1)
	table := root.Table("ns", "t")
	if err := table.CreateRegionDir(info); err != nil {
		t.Fatal(err)
	}
	if err := table.WriteRegionInfo(info); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(table.GetTableDir(), info.EncodedName, regionInfoFile)
	first, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := table.WriteRegionInfo(info); err != nil {
		t.Fatal(err)
	}
	second, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !first.ModTime().Equal(second.ModTime()) {
		t.Fatalf("expected mtime unchanged on idempotent re-write, got %v -> %v", first.ModTime(), second.ModTime())
	}

	got, err := table.ReadRegionInfo(info.EncodedName)
	if err != nil {
		t.Fatal(err)
	}
	if got.EncodedName != info.EncodedName {
		t.Fatalf("expected round-tripped EncodedName %q, got %q", info.EncodedName, got.EncodedName)
	}
}

func TestReadRegionInfoUnknownReturnsNotFound(t *testing.T) {
	root := NewRoot(t.TempDir())
	table := root.Table("ns", "t")
	if _, err := table.ReadRegionInfo("no-such-region"); err == nil {
		t.Fatal("expected an error for a missing .regioninfo")
	}
}

func TestCreateReferenceFilesMarksDaughterAndHasReferences(t *testing.T) {
	root := NewRoot(t.TempDir())
	table := root.Table("ns", "t")

	parent := region.NewInfo("ns", "t", nil, nil, 1)
	if err := table.CreateRegionDir(parent); err != nil {
		t.Fatal(err)
	}
	prfs := table.Region(parent)
	w, fileID, err := prfs.CreateFile("cf")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("data"))
	w.Close()
	if err := prfs.PublishFile("cf", fileID); err != nil {
		t.Fatal(err)
	}

	daughter := region.NewInfo("ns", "t", nil, []byte("m"), 2)
	if err := table.CreateRegionDir(daughter); err != nil {
		t.Fatal(err)
	}
	if err := table.CreateReferenceFiles(parent, daughter, []byte("m"), false); err != nil {
		t.Fatal(err)
	}

	drfs := table.Region(daughter)
	has, err := drfs.HasReferences("cf")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Fatal("expected daughter's cf family to carry a reference to parent's file")
	}

	families, err := drfs.ListFamilies()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 1 || families[0] != "cf" {
		t.Fatalf("expected exactly family cf, got %v", families)
	}
}

func TestWALCreateAppendArchiveAndReplay(t *testing.T) {
	root := NewRoot(t.TempDir())
	w := root.WAL()

	sw, id, err := w.Create()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sw.Write([]byte("edit1")); err != nil {
		t.Fatal(err)
	}
	if err := sw.Sync(); err != nil {
		t.Fatal(err)
	}
	if err := sw.Close(); err != nil {
		t.Fatal(err)
	}

	rc, err := w.OpenForReplay(id)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "edit1" {
		t.Fatalf("expected edit1, got %q", data)
	}

	if err := w.ArchiveWALSegment(id); err != nil {
		t.Fatal(err)
	}

	// Replay must still work after archival.
	rc, err = w.OpenForReplay(id)
	if err != nil {
		t.Fatal(err)
	}
	data, err = io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "edit1" {
		t.Fatalf("expected edit1 from archived segment, got %q", data)
	}
}

func TestWALOpenForReplayUnknownReturnsError(t *testing.T) {
	root := NewRoot(t.TempDir())
	w := root.WAL()
	if _, err := w.OpenForReplay("no-such-segment"); err == nil {
		t.Fatal("expected an error for a missing WAL segment")
	}
}

func TestListFilesAndFilePathReflectPublishedFiles(t *testing.T) {
	root := NewRoot(t.TempDir())
	info := region.NewInfo("ns", "t", nil, nil, 1)
	table := root.Table("ns", "t")
	if err := table.CreateRegionDir(info); err != nil {
		t.Fatal(err)
	}
	rfs := table.Region(info)

	w, fileID, err := rfs.CreateFile("cf")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("data"))
	w.Close()

	if files, _ := rfs.ListFiles("cf"); len(files) != 0 {
		t.Fatalf("expected no published files before PublishFile, got %v", files)
	}

	if err := rfs.PublishFile("cf", fileID); err != nil {
		t.Fatal(err)
	}

	files, err := rfs.ListFiles("cf")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != fileID {
		t.Fatalf("expected ListFiles to report the published file, got %v", files)
	}
	if _, err := os.Stat(rfs.FilePath("cf", fileID)); err != nil {
		t.Fatalf("expected FilePath to point at the published file on disk: %v", err)
	}
}
