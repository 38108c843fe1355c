package catalog

import (
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/dkvlabs/regiondb/lib/engine/region"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBackend() *memBackend { return &memBackend{data: map[string][]byte{}} }

func (m *memBackend) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memBackend) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memBackend) Scan(prefix string, fn func(key string, value []byte) error) error {
	m.mu.Lock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.Unlock()
	sort.Strings(keys)
	for _, k := range keys {
		m.mu.Lock()
		v := m.data[k]
		m.mu.Unlock()
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

type fakeLockManager struct {
	mu    sync.Mutex
	held  map[string][]byte
	denyN int
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{held: map[string][]byte{}}
}

func (f *fakeLockManager) AcquireLock(key string, timeout uint64) (bool, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyN > 0 {
		f.denyN--
		return false, nil, nil
	}
	if _, held := f.held[key]; held {
		return false, nil, nil
	}
	owner := []byte(key + "-owner")
	f.held[key] = owner
	return true, owner, nil
}

func (f *fakeLockManager) ReleaseLock(key string, ownerID []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	return true, nil
}

func TestCreateAndGetTableRoundTrips(t *testing.T) {
	c := New(newMemBackend(), nil)
	if err := c.CreateTable("ns", "t"); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetTable("ns", "t")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Enabled || got.Namespace != "ns" || got.Name != "t" {
		t.Fatalf("unexpected table record: %+v", got)
	}
}

func TestGetTableMissingReturnsNotFound(t *testing.T) {
	c := New(newMemBackend(), nil)
	_, err := c.GetTable("ns", "nope")
	if !engineerrors.Is(err, engineerrors.KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestRegisterRegionAddsToTableAndIsFetchable(t *testing.T) {
	c := New(newMemBackend(), nil)
	if err := c.CreateTable("ns", "t"); err != nil {
		t.Fatal(err)
	}
	info := region.NewInfo("ns", "t", nil, nil, 1)
	if err := c.RegisterRegion(info); err != nil {
		t.Fatal(err)
	}

	rec, err := c.GetRegion(info.EncodedName)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != RegionOpen {
		t.Fatalf("expected a freshly registered region to be OPEN, got %v", rec.State)
	}

	regions, err := c.ListRegions("ns", "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 1 || regions[0].Info.EncodedName != info.EncodedName {
		t.Fatalf("expected ListRegions to return the registered region, got %+v", regions)
	}
}

func TestGetRegionMissingReturnsUnknownRegion(t *testing.T) {
	c := New(newMemBackend(), nil)
	_, err := c.GetRegion("no-such-region")
	if !engineerrors.Is(err, engineerrors.KindUnknownRegion) {
		t.Fatalf("expected KindUnknownRegion, got %v", err)
	}
}

func TestAssignAndUnassignUpdateServerID(t *testing.T) {
	c := New(newMemBackend(), nil)
	if err := c.CreateTable("ns", "t"); err != nil {
		t.Fatal(err)
	}
	info := region.NewInfo("ns", "t", nil, nil, 1)
	if err := c.RegisterRegion(info); err != nil {
		t.Fatal(err)
	}

	if err := c.Assign(info.EncodedName, "server-1"); err != nil {
		t.Fatal(err)
	}
	rec, err := c.GetRegion(info.EncodedName)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ServerID != "server-1" {
		t.Fatalf("expected server-1, got %q", rec.ServerID)
	}

	if err := c.Unassign(info.EncodedName); err != nil {
		t.Fatal(err)
	}
	rec, err = c.GetRegion(info.EncodedName)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ServerID != "" {
		t.Fatalf("expected unassign to clear ServerID, got %q", rec.ServerID)
	}
}

func setupSplitFixture(t *testing.T) (*Catalog, region.Info) {
	t.Helper()
	c := New(newMemBackend(), newFakeLockManager())
	if err := c.CreateTable("ns", "t"); err != nil {
		t.Fatal(err)
	}
	parent := region.NewInfo("ns", "t", nil, nil, 1)
	if err := c.RegisterRegion(parent); err != nil {
		t.Fatal(err)
	}
	return c, parent
}

func TestMarkSplitFlipsParentAndRegistersDaughters(t *testing.T) {
	c, parent := setupSplitFixture(t)
	lower := region.NewInfo("ns", "t", nil, []byte("m"), 2)
	upper := region.NewInfo("ns", "t", []byte("m"), nil, 2)

	if err := c.MarkSplit(parent, []region.Info{lower, upper}); err != nil {
		t.Fatal(err)
	}

	parentRec, err := c.GetRegion(parent.EncodedName)
	if err != nil {
		t.Fatal(err)
	}
	if parentRec.State != RegionSplit {
		t.Fatalf("expected parent state SPLIT, got %v", parentRec.State)
	}
	if len(parentRec.Daughters) != 2 {
		t.Fatalf("expected 2 daughters recorded, got %v", parentRec.Daughters)
	}

	regions, err := c.ListRegions("ns", "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 2 {
		t.Fatalf("expected table region list to now hold the 2 daughters, got %d", len(regions))
	}
	for _, r := range regions {
		if r.Info.EncodedName == parent.EncodedName {
			t.Fatalf("expected parent to be removed from the table's region list")
		}
	}
}

func TestMarkSplitFailsWhenLockHeldByAnother(t *testing.T) {
	mb := newMemBackend()
	locks := newFakeLockManager()
	c := New(mb, locks)
	if err := c.CreateTable("ns", "t"); err != nil {
		t.Fatal(err)
	}
	parent := region.NewInfo("ns", "t", nil, nil, 1)
	if err := c.RegisterRegion(parent); err != nil {
		t.Fatal(err)
	}

	locks.denyN = 1
	lower := region.NewInfo("ns", "t", nil, []byte("m"), 2)
	upper := region.NewInfo("ns", "t", []byte("m"), nil, 2)
	err := c.MarkSplit(parent, []region.Info{lower, upper})
	if err == nil {
		t.Fatal("expected MarkSplit to fail when the PONR lock is already held")
	}

	parentRec, getErr := c.GetRegion(parent.EncodedName)
	if getErr != nil {
		t.Fatal(getErr)
	}
	if parentRec.State != RegionOpen {
		t.Fatalf("expected a failed split to leave parent OPEN, got %v", parentRec.State)
	}
}

func TestMarkMergedFlipsParentsAndRegistersMerged(t *testing.T) {
	c := New(newMemBackend(), newFakeLockManager())
	if err := c.CreateTable("ns", "t"); err != nil {
		t.Fatal(err)
	}
	lower := region.NewInfo("ns", "t", nil, []byte("m"), 1)
	upper := region.NewInfo("ns", "t", []byte("m"), nil, 1)
	if err := c.RegisterRegion(lower); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterRegion(upper); err != nil {
		t.Fatal(err)
	}

	merged := region.NewInfo("ns", "t", nil, nil, 2)
	if err := c.MarkMerged([]region.Info{lower, upper}, merged); err != nil {
		t.Fatal(err)
	}

	for _, p := range []region.Info{lower, upper} {
		rec, err := c.GetRegion(p.EncodedName)
		if err != nil {
			t.Fatal(err)
		}
		if rec.State != RegionMerged || len(rec.Daughters) != 1 || rec.Daughters[0] != merged.EncodedName {
			t.Fatalf("expected parent %s to be MERGED pointing at %s, got %+v", p.EncodedName, merged.EncodedName, rec)
		}
	}

	regions, err := c.ListRegions("ns", "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 1 || regions[0].Info.EncodedName != merged.EncodedName {
		t.Fatalf("expected table region list to now hold only the merged region, got %+v", regions)
	}
}
