// Package cmd implements the command-line interface of dDoc. It provides a
// hierarchical command structure with operations for running the server and
// talking to it as a client.
//
// The package is organized into several subpackages:
//
//   - doc: Commands for whole documents (get, upsert, remove) and a load generator (perf)
//   - subdoc: Commands for path based access (lookup, mutate)
//   - search: The search command, printing hits and metadata
//   - serve: Commands for starting and configuring the dDoc server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Client commands read their connection settings from flags or from DDOC_*
// environment variables (e.g. DDOC_ENDPOINTS=node1:11210,node2:11210).
//
// See ddoc -help for a list of all commands.
package cmd
