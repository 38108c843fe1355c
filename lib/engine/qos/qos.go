// Package qos implements the engine's priority classification contract
// (spec.md §6 "QoS classification"): the external RPC layer consults
// Classify after decoding a request and before enqueueing it, so catalog
// traffic is never starved behind ordinary region traffic.
//
// Grounded on original_source's TestPriorityRpc (AnnotationReadingPriorityFunction's
// getPriority): HIGH_QOS for an admin request targeting the catalog
// region, and for Scan.next against a scanner whose region is the catalog
// region, resolved through the stored scanner id rather than the request's
// own payload (TestPriorityRpc's mockRS.getScanner(scannerId) lookup).
// Everything else classifies NORMAL_QOS.
package qos

// Priority is the engine's two-level QoS classification (spec.md §6).
type Priority int

const (
	NormalQoS Priority = iota
	HighQoS
)

func (p Priority) String() string {
	if p == HighQoS {
		return "HIGH_QOS"
	}
	return "NORMAL_QOS"
}

// Request carries the fields Classify needs, already resolved by the
// caller's request decode step — qos never parses wire bytes itself.
type Request struct {
	// Method names the RPC, e.g. "Get", "Scan.next", "Admin.Split".
	Method string
	// Admin is true for administrative operations (split/merge/flush
	// triggers, table enable/disable, ...).
	Admin bool
	// TargetsCatalogRegion is true when the request's region specifier
	// resolves to the catalog table's special first region.
	TargetsCatalogRegion bool
	// ScannerID and HasScannerID identify the open scanner a Scan.next
	// call continues, if any.
	ScannerID    uint64
	HasScannerID bool
}

// ScannerRegionResolver reports whether an open scanner's region is the
// catalog region, the lookup TestPriorityRpc performs via
// HRegionServer.getScanner(scannerId).getRegionInfo().isMetaRegion().
type ScannerRegionResolver interface {
	IsCatalogRegion(scannerID uint64) bool
}

// Classify returns req's priority: HIGH_QOS for an admin request against
// the catalog region, or a Scan.next against a scanner whose region is the
// catalog region; NORMAL_QOS otherwise (spec.md §6's literal contract).
// scanners may be nil when req carries no scanner id.
func Classify(req Request, scanners ScannerRegionResolver) Priority {
	if req.Admin && req.TargetsCatalogRegion {
		return HighQoS
	}
	if req.Method == "Scan.next" && req.HasScannerID && scanners != nil && scanners.IsCatalogRegion(req.ScannerID) {
		return HighQoS
	}
	return NormalQoS
}
