package dcatalog

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dkvlabs/regiondb/lib/catalog/dcatalog/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// KVStateMachine is dcatalog's raft state machine, adapted from
// lib/store/dstore's KVStateMachine: the replicated Catalog's data is a
// small table/region metadata keyspace rather than a general-purpose
// KVDB, so the backing storage here is a plain in-memory map instead of
// a pluggable db.KVDB — snapshotting the whole keyspace as one JSON blob
// is cheap at this size, unlike dstore's fuzzy-snapshot KVDB.Save.
type KVStateMachine struct {
	replicaID uint64
	shardID   uint64
	data      map[string][]byte
}

// CreateStateMachineFactory returns a function dragonboat uses to create
// one state machine per (shardID, replicaID).
func CreateStateMachineFactory() func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &KVStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			data:      make(map[string][]byte),
		}
	}
}

// Lookup handles read-only queries.
func (fsm *KVStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, fmt.Errorf("invalid Query type: %T", itf)
	}

	switch q.Type {
	case internal.QueryTGet:
		v, ok := fsm.data[q.Key]
		return internal.GetResult{Value: v, Ok: ok}, nil
	case internal.QueryTScan:
		keys := make([]string, 0)
		for k := range fsm.data {
			if strings.HasPrefix(k, q.Prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		entries := make([]internal.Entry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, internal.Entry{Key: k, Value: fsm.data[k]})
		}
		return internal.ScanResult{Entries: entries}, nil
	default:
		return nil, fmt.Errorf("unknown Query operation: %d", q.Type)
	}
}

// Update applies a batch of write commands.
func (fsm *KVStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}
	start := time.Now()

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{Value: 0, Data: []byte("empty command ignored")}
			continue
		}
		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{Value: 0, Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
			continue
		}

		switch cmd.Type {
		case internal.CommandTPut:
			fsm.data[cmd.Key] = cmd.Value
			entries[idx].Result = sm.Result{Value: 1, Data: []byte(fmt.Sprintf("put: key=%s", cmd.Key))}
		case internal.CommandTDelete:
			delete(fsm.data, cmd.Key)
			entries[idx].Result = sm.Result{Value: 1, Data: []byte(fmt.Sprintf("deleted key=%s", cmd.Key))}
		default:
			entries[idx].Result = sm.Result{Value: 0, Data: []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type))}
		}
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("dcatalog: statemachine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// PrepareSnapshot copies the keyspace while no Update is running, so
// SaveSnapshot can encode that copy concurrently with later updates.
func (fsm *KVStateMachine) PrepareSnapshot() (interface{}, error) {
	snap := make(map[string][]byte, len(fsm.data))
	for k, v := range fsm.data {
		snap[k] = v
	}
	return snap, nil
}

// SaveSnapshot writes the keyspace copy taken by PrepareSnapshot as one
// JSON object (the live keyspace when no copy is passed).
func (fsm *KVStateMachine) SaveSnapshot(ctx interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	data, ok := ctx.(map[string][]byte)
	if !ok {
		data = fsm.data
	}
	return json.NewEncoder(writer).Encode(data)
}

// RecoverFromSnapshot replaces the keyspace with a previously saved one.
func (fsm *KVStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	data := make(map[string][]byte)
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return err
	}
	fsm.data = data
	return nil
}

// Close performs any necessary cleanup. Nothing to release: the keyspace
// is a plain in-process map.
func (fsm *KVStateMachine) Close() error {
	return nil
}
