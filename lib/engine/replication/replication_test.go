package replication

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/wal"
)

type fakeCatalog struct{ servers []string }

func (c fakeCatalog) LiveServers(string) ([]string, error) { return c.servers, nil }

func serverNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("server-%d", i)
	}
	return out
}

func TestChooseSinksPicksRatioOfLiveServers(t *testing.T) {
	m := NewSinkManager("peer1", fakeCatalog{servers: serverNames(20)}, 0, 0)
	sinks, err := m.Sinks()
	if err != nil {
		t.Fatal(err)
	}
	if len(sinks) != 2 {
		t.Fatalf("expected 2 sinks for 20 live servers at the default ratio, got %d", len(sinks))
	}
}

func TestChooseSinksFloorsToOneWhenRatioUnderflows(t *testing.T) {
	m := NewSinkManager("peer1", fakeCatalog{servers: serverNames(2)}, 0, 0)
	sinks, err := m.Sinks()
	if err != nil {
		t.Fatal(err)
	}
	if len(sinks) != 1 {
		t.Fatalf("expected 1 sink when ratio*n < 1, got %d", len(sinks))
	}
}

func TestReportBadSinkOnceHasNoEffect(t *testing.T) {
	m := NewSinkManager("peer1", fakeCatalog{servers: serverNames(2)}, 0, 0)
	sinks, _ := m.Sinks()
	if len(sinks) != 1 {
		t.Fatalf("sanity check failed, got %d sinks", len(sinks))
	}
	m.ReportBadSink(sinks[0])
	if len(m.sinks) != 1 {
		t.Fatalf("expected a single bad report to leave the sink in rotation, got %d sinks", len(m.sinks))
	}
}

func TestReportBadSinkPastThresholdRemovesIt(t *testing.T) {
	m := NewSinkManager("peer1", fakeCatalog{servers: serverNames(20)}, 0, 0)
	sinks, _ := m.Sinks()
	if len(sinks) != 2 {
		t.Fatalf("sanity check failed, got %d sinks", len(sinks))
	}
	target := sinks[0]
	for i := 0; i <= DefaultBadSinkThreshold; i++ {
		m.ReportBadSink(target)
	}
	if len(m.sinks) != 1 {
		t.Fatalf("expected the over-threshold sink removed, got %d sinks remaining", len(m.sinks))
	}
}

func TestReportBadSinkDownToZeroRefreshesFromCatalog(t *testing.T) {
	m := NewSinkManager("peer1", fakeCatalog{servers: serverNames(20)}, 0, 0)
	sinks, _ := m.Sinks()
	if len(sinks) != 2 {
		t.Fatalf("sanity check failed, got %d sinks", len(sinks))
	}
	a, b := sinks[0], sinks[1]
	for i := 0; i <= DefaultBadSinkThreshold; i++ {
		m.ReportBadSink(a)
		m.ReportBadSink(b)
	}
	refreshed, err := m.Sinks()
	if err != nil {
		t.Fatal(err)
	}
	if len(refreshed) != 2 {
		t.Fatalf("expected the sink set to refresh back to 2 once it hit zero, got %d", len(refreshed))
	}
}

type recordingShipper struct {
	batches map[string][][]wal.Edit
	failFor map[string]bool
}

func newRecordingShipper() *recordingShipper {
	return &recordingShipper{batches: map[string][][]wal.Edit{}, failFor: map[string]bool{}}
}

func (s *recordingShipper) Ship(sink Sink, batch []wal.Edit) error {
	if s.failFor[sink.ServerID] {
		return errors.New("simulated sink failure")
	}
	s.batches[sink.ServerID] = append(s.batches[sink.ServerID], batch)
	return nil
}

type globalOnly struct{ families map[string]bool }

func (g globalOnly) IsGlobal(family []byte) bool { return g.families[string(family)] }

func TestTapFiltersNonGlobalFamiliesAndControlCells(t *testing.T) {
	shipper := newRecordingShipper()
	mgr := NewSinkManager("peer1", fakeCatalog{servers: serverNames(2)}, 0, 0)
	tap := NewTap(globalOnly{families: map[string]bool{"cf": true}}, shipper, mgr, DefaultBatchMaxBytes)

	edit := wal.Edit{
		Sequence: 1,
		RegionID: "r1",
		Cells: []keycodec.Cell{
			{Row: []byte("row"), Family: []byte("cf"), Qualifier: []byte("q"), Value: []byte("v"), Type: keycodec.TypePut},
			{Row: []byte("row"), Family: []byte("local"), Qualifier: []byte("q"), Value: []byte("v"), Type: keycodec.TypePut},
			{Row: []byte("row"), Family: nil, Qualifier: []byte("marker"), Type: keycodec.TypePut},
		},
	}
	if err := tap.Append(edit); err != nil {
		t.Fatal(err)
	}
	if err := tap.Flush(); err != nil {
		t.Fatal(err)
	}

	for _, server := range serverNames(2)[:1] {
		batches := shipper.batches[server]
		if len(batches) != 1 || len(batches[0]) != 1 || len(batches[0][0].Cells) != 1 {
			t.Fatalf("expected exactly one global-scope cell shipped to %s, got %+v", server, batches)
		}
	}
}

func TestTapFlushesAutomaticallyPastMaxBytes(t *testing.T) {
	shipper := newRecordingShipper()
	mgr := NewSinkManager("peer1", fakeCatalog{servers: serverNames(1)}, 1, 0)
	tap := NewTap(globalOnly{families: map[string]bool{"cf": true}}, shipper, mgr, 16)

	big := make([]byte, 64)
	edit := wal.Edit{
		Sequence: 1,
		RegionID: "r1",
		Cells:    []keycodec.Cell{{Row: []byte("row"), Family: []byte("cf"), Qualifier: []byte("q"), Value: big, Type: keycodec.TypePut}},
	}
	if err := tap.Append(edit); err != nil {
		t.Fatal(err)
	}
	if len(shipper.batches["server-0"]) != 1 {
		t.Fatalf("expected Append to auto-flush once pending bytes exceed maxBytes, got %d batches", len(shipper.batches["server-0"]))
	}
}

func TestTapReportsBadSinkOnShipFailure(t *testing.T) {
	shipper := newRecordingShipper()
	shipper.failFor["server-0"] = true
	mgr := NewSinkManager("peer1", fakeCatalog{servers: serverNames(1)}, 1, 1)
	tap := NewTap(globalOnly{families: map[string]bool{"cf": true}}, shipper, mgr, DefaultBatchMaxBytes)

	edit := wal.Edit{
		Sequence: 1,
		RegionID: "r1",
		Cells:    []keycodec.Cell{{Row: []byte("row"), Family: []byte("cf"), Qualifier: []byte("q"), Value: []byte("v"), Type: keycodec.TypePut}},
	}
	if err := tap.Append(edit); err != nil {
		t.Fatal(err)
	}
	if err := tap.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := tap.Append(edit); err != nil {
		t.Fatal(err)
	}
	if err := tap.Flush(); err != nil {
		t.Fatal(err)
	}

	if _, bad := mgr.badCount["server-0"]; bad {
		t.Fatal("expected the sink to be retired (removed from badCount) once it exceeded the threshold")
	}
	sinks, err := mgr.Sinks()
	if err != nil {
		t.Fatal(err)
	}
	if len(sinks) != 1 {
		t.Fatalf("expected the sink set to refresh back to 1 after the bad sink was retired, got %d", len(sinks))
	}
}

func TestDeduperAdmitsEachKeyOnce(t *testing.T) {
	d := NewDeduper()
	key := SeqKey{RegionID: "r1", Sequence: 42}
	if !d.Admit(key) {
		t.Fatal("expected the first admission of a fresh key to succeed")
	}
	if d.Admit(key) {
		t.Fatal("expected a repeated delivery of the same key to be rejected")
	}
	d.Forget(key)
	if !d.Admit(key) {
		t.Fatal("expected Admit to succeed again after Forget")
	}
}
