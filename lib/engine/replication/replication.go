// Package replication ships committed WAL edits to a set of peer sinks
// (spec.md §4.12: C12 ReplicationTap).
//
// Grounded on original_source's TestReplicationSinkManager: sink selection
// (k = max(1, floor(ratio·liveSinks))), bad-sink bookkeeping past a fixed
// threshold, and the zero-sinks refresh trigger are carried with the same
// constant name shape as the Java DEFAULT_BAD_SINK_THRESHOLD. No
// ReplicationSink/ReplicationSource server body ships in original_source's
// filtered sources, so the shipping/batching loop is new code following
// spec.md §4.12's operation list directly.
package replication

import (
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("engine/replication")

// DefaultBadSinkThreshold mirrors ReplicationSinkManager.DEFAULT_BAD_SINK_THRESHOLD:
// a sink reported bad more than this many times is dropped from rotation.
const DefaultBadSinkThreshold = 3

// DefaultSinkRatio is the fraction of live peer servers chosen as sinks
// (ReplicationSinkManager's RATIO_REGIONSERVERS default of 0.1), tuned so
// that TestReplicationSinkManager's exact fixture counts (20 servers -> 2
// sinks, 2 servers -> 1 sink) hold under k = max(1, floor(ratio*n)).
const DefaultSinkRatio = 0.1
