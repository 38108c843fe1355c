// Package cmd implements the command-line interface for regiondb, a
// per-node region storage engine. It provides a hierarchical command
// structure for booting the engine and for offline region maintenance.
//
// The package is organized into several subpackages:
//
//   - engined: Boots a single-node storage engine (opens regions, serves admin/metrics)
//   - regionadmin: Offline maintenance on a region's on-disk files (flush, compact, split, inspect-hfile)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See regiondb -help for a list of all commands.
package cmd
