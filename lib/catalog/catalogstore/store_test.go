package catalogstore

import "testing"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	})
	return s
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.Get("k1"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := s.Put("k1", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get("k1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(v) != "v1" {
		t.Fatalf("expected v1, got %q ok=%v", v, ok)
	}

	if err := s.Delete("k1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Get("k1"); err != nil || ok {
		t.Fatalf("expected key to be gone after delete, got ok=%v err=%v", ok, err)
	}
}

func TestScanReturnsOnlyMatchingPrefixInOrder(t *testing.T) {
	s := openTestStore(t)

	for _, k := range []string{"region/b", "region/a", "region/c", "table/x"} {
		if err := s.Put(k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}

	var got []string
	err := s.Scan("region/", func(key string, value []byte) error {
		got = append(got, key)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"region/a", "region/b", "region/c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestScanStopsAtFirstCallbackError(t *testing.T) {
	s := openTestStore(t)
	for _, k := range []string{"region/a", "region/b"} {
		if err := s.Put(k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}

	errStop := errStopScan{}
	count := 0
	err := s.Scan("region/", func(key string, value []byte) error {
		count++
		return errStop
	})
	if err != errStop {
		t.Fatalf("expected the callback's error to propagate, got %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the scan to stop after the first callback, called %d times", count)
	}
}

type errStopScan struct{}

func (errStopScan) Error() string { return "stop" }

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := s2.Close(); err != nil {
			t.Fatal(err)
		}
	}()
	v, ok, err := s2.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(v) != "v" {
		t.Fatalf("expected the value to survive a reopen, got %q ok=%v", v, ok)
	}
}
