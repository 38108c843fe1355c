package catalogstore

import (
	"github.com/cockroachdb/pebble"
	"github.com/dkvlabs/regiondb/lib/catalog"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("catalog/catalogstore")

var _ catalog.Backend = (*Store)(nil)

// Store implements catalog.Backend over a single pebble.DB. Every write
// goes through pebble.Sync, matching lockmgr's expectation that a PONR
// commit the Catalog reports as done cannot be lost by a crash right
// after.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if necessary) a pebble.DB rooted at dir as a
// catalog.Backend.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying pebble.DB.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(key string, value []byte) error {
	return s.db.Set([]byte(key), value, pebble.Sync)
}

func (s *Store) Get(key string) ([]byte, bool, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), v...)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

// Scan calls fn for every key with the given prefix, in ascending key
// order, stopping at the first error fn returns or the first iteration
// error pebble reports.
func (s *Store) Scan(prefix string, fn func(key string, value []byte) error) error {
	lower := []byte(prefix)
	upper := prefixUpperBound(lower)
	iter := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	defer func() {
		if cerr := iter.Close(); cerr != nil {
			log.Errorf("catalogstore: closing scan iterator for prefix %q: %v", prefix, cerr)
		}
	}()

	for valid := iter.First(); valid; valid = iter.Next() {
		key := string(iter.Key())
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

// prefixUpperBound returns the smallest key that is strictly greater than
// every key with the given prefix, or nil if prefix is all 0xff bytes (no
// finite upper bound needed, scan to the end of the keyspace).
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] == 0xff {
			upper = upper[:i]
			continue
		}
		upper[i]++
		return upper[:i+1]
	}
	return nil
}
