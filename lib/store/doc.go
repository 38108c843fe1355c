// Package store provides a high-level interface for key-value storage operations
// with advanced features like expiration, deletion scheduling, and unified error handling.
// It serves as an abstraction layer over the lower-level db.KVDB implementations, adding
// functionality such as write index management and standardized error reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for key-value operations across different backends
//   - Pluggable storage backend architecture through DBFactory pattern
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for interacting with
//     a key-value store. All implementations share this common interface, allowing
//     applications to switch between different storage backends without code changes.
//     The interface methods return custom Error types that provide detailed information
//     about operation results.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages. This system allows applications to make informed
//     decisions based on specific error conditions rather than generic errors.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances, providing dependency injection and flexible configuration of
//     storage backends.
//
// Implementations:
//
//	The package includes one implementation of the IStore interface:
//
//	- Local Store (lstore): A simple, non-distributed implementation that directly
//	  utilizes a db.KVDB instance. It manages write index progression internally
//	  using atomic operations to ensure thread safety. This implementation is suitable
//	  for single-node applications where distributed consensus is not required.
//	  Available in the "github.com/dkvlabs/regiondb/lib/store/lstore" package.
//
// This interface-driven approach allows applications to:
//   - Handle errors in a consistent and type-safe manner across implementations
//   - Abstract storage implementation details from application logic
//
// In this repository, IStore has exactly one caller: lib/lockmgr, which
// uses its SetEIfUnset/Get/Delete trio to implement a distributed lock
// over lstore. lib/catalog's own table/region storage goes through the
// narrower catalog.Backend interface instead (lib/catalog/catalogstore,
// a single-node pebble-backed store; lib/catalog/dcatalog, a raft-backed
// one built directly on Dragonboat rather than on this package's IStore),
// which adds prefix scanning IStore does not offer.
package store
