// Package dcatalog implements catalog.Backend over a dragonboat raft
// shard, adapted from lib/store/dstore: the same SyncPropose/SyncRead
// retry-on-ErrSystemBusy discipline, driving KVStateMachine's Put/
// Delete/Get/Scan instead of dstore's general Set/SetE/SetEIfUnset/
// Expire/Delete/Get/Has/GetDBInfo surface.
package dcatalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkvlabs/regiondb/lib/catalog"
	"github.com/dkvlabs/regiondb/lib/catalog/dcatalog/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("catalog/dcatalog")
)

// Store is a catalog.Backend backed by a dragonboat raft shard: every
// Put/Delete commits through consensus before returning, every Get/Scan
// is a linearizable read against the shard's state machine.
type Store struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// New wraps an already-started raft shard (shardID on nh) as a
// catalog.Backend.
func New(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) *Store {
	return &Store{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
	}
}

var _ catalog.Backend = (*Store)(nil)

func (s *Store) write(cmd internal.Command) error {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("dcatalog: SyncPropose system busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}
		if err != nil {
			return err
		}
		if res.Value != 1 {
			return fmt.Errorf("dcatalog: command rejected: %s", string(res.Data))
		}
		return nil
	}
	return fmt.Errorf("dcatalog: write timed out after %d retries", retries)
}

func read[R any](s *Store, q internal.Query) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.nh.SyncRead(ctx, s.shardID, q)
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("dcatalog: SyncRead system busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}
		if err != nil {
			return zero, err
		}
		casted, ok := res.(R)
		if !ok {
			return zero, fmt.Errorf("dcatalog: unexpected response type: received %T, expected %T", res, zero)
		}
		return casted, nil
	}
	return zero, fmt.Errorf("dcatalog: read timed out after %d retries", retries)
}

func (s *Store) Put(key string, value []byte) error {
	return s.write(internal.Command{Type: internal.CommandTPut, Key: key, Value: value})
}

func (s *Store) Delete(key string) error {
	return s.write(internal.Command{Type: internal.CommandTDelete, Key: key})
}

func (s *Store) Get(key string) ([]byte, bool, error) {
	res, err := read[internal.GetResult](s, internal.Query{Type: internal.QueryTGet, Key: key})
	if err != nil {
		return nil, false, err
	}
	return res.Value, res.Ok, nil
}

// Scan fetches every entry under prefix in one round trip and replays it
// through fn locally, since a raft read can only return a single value.
func (s *Store) Scan(prefix string, fn func(key string, value []byte) error) error {
	res, err := read[internal.ScanResult](s, internal.Query{Type: internal.QueryTScan, Prefix: prefix})
	if err != nil {
		return err
	}
	for _, e := range res.Entries {
		if err := fn(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}
