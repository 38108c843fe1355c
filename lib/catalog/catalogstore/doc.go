// Package catalogstore implements catalog.Backend directly on top of a
// single pebble.DB, for the single-node reference Catalog: an always-on
// local store, crash-safe by pebble's own WAL, that needs no consensus
// round trip to read or write a table/region record.
//
// Unlike lib/store's lstore (an in-memory wrapper around db.KVDB that
// loses everything on restart), catalogstore is on-disk and durable —
// the region→node assignment table and the .regioninfo shadow index it
// backs must survive a process restart without replaying anything.
//
// For a replicated Catalog across multiple nodes, see lib/catalog/dcatalog,
// which drives the same Put/Get/Delete/Scan surface through dragonboat
// raft instead of a single pebble.DB.
package catalogstore
