package replication

import "math"

// Sink identifies one peer server edits can be shipped to.
type Sink struct {
	ServerID string
}

// PeerCatalog resolves the servers currently hosting the peer cluster's
// regions, the same role ReplicationPeers.getRegionServersOfConnectedPeer
// plays for ReplicationSinkManager.
type PeerCatalog interface {
	LiveServers(peerClusterID string) ([]string, error)
}

// SinkManager owns the live sink set for one peer cluster, selecting
// k = max(1, floor(ratio*liveServers)) of them and retiring any sink
// reported bad more than DefaultBadSinkThreshold times
// (TestReplicationSinkManager.testChooseSinks/testReportBadSink_PastThreshold).
type SinkManager struct {
	peerClusterID string
	catalog       PeerCatalog
	ratio         float64
	badThreshold  int

	sinks    []Sink
	badCount map[string]int
}

// NewSinkManager builds a SinkManager for peerClusterID, using ratio to size
// the live sink set (DefaultSinkRatio if ratio <= 0) and badThreshold as the
// report count past which a sink is retired (DefaultBadSinkThreshold if <= 0).
func NewSinkManager(peerClusterID string, catalog PeerCatalog, ratio float64, badThreshold int) *SinkManager {
	if ratio <= 0 {
		ratio = DefaultSinkRatio
	}
	if badThreshold <= 0 {
		badThreshold = DefaultBadSinkThreshold
	}
	return &SinkManager{
		peerClusterID: peerClusterID,
		catalog:       catalog,
		ratio:         ratio,
		badThreshold:  badThreshold,
		badCount:      make(map[string]int),
	}
}

// Sinks returns the currently chosen sink set, refreshing it from the peer
// catalog if empty.
func (m *SinkManager) Sinks() ([]Sink, error) {
	if len(m.sinks) == 0 {
		if err := m.chooseSinks(); err != nil {
			return nil, err
		}
	}
	return m.sinks, nil
}

// chooseSinks re-queries the peer catalog and picks k = max(1, floor(ratio*n))
// of the live servers (spec.md §4.12), clearing any stale bad-sink counts for
// servers no longer live.
func (m *SinkManager) chooseSinks() error {
	servers, err := m.catalog.LiveServers(m.peerClusterID)
	if err != nil {
		return err
	}
	n := len(servers)
	if n == 0 {
		m.sinks = nil
		return nil
	}
	k := int(math.Floor(m.ratio * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	sinks := make([]Sink, 0, k)
	live := make(map[string]bool, k)
	for i := 0; i < k; i++ {
		sinks = append(sinks, Sink{ServerID: servers[i]})
		live[servers[i]] = true
	}
	for id := range m.badCount {
		if !live[id] {
			delete(m.badCount, id)
		}
	}
	m.sinks = sinks
	log.Infof("replication: chose %d/%d live servers as sinks for peer %s", k, n, m.peerClusterID)
	return nil
}

// ReportBadSink records a failed delivery to sink. Once a sink has been
// reported bad more than badThreshold times it's dropped from the live set;
// if that empties the set, the next Sinks() call refreshes from the peer
// catalog (TestReplicationSinkManager.testReportBadSink_DownToZeroSinks).
func (m *SinkManager) ReportBadSink(sink Sink) {
	m.badCount[sink.ServerID]++
	if m.badCount[sink.ServerID] <= m.badThreshold {
		return
	}
	delete(m.badCount, sink.ServerID)
	for i, s := range m.sinks {
		if s.ServerID == sink.ServerID {
			m.sinks = append(m.sinks[:i], m.sinks[i+1:]...)
			log.Warningf("replication: retired sink %s for peer %s past bad-sink threshold", sink.ServerID, m.peerClusterID)
			break
		}
	}
}
