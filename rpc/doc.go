// Package rpc provides the network layer of the document database. It carries
// requests of the bucket client to the server and streams the responses back.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration, connection strings and logging.
//
//   - engine: The non-blocking client engine. It runs on the reactor goroutine,
//     manages the socket, request ids, timeouts and streamed search frames.
//
//   - client: The bucket client. Every call returns a future, search queries
//     return a lazily executed request that is iterated row by row.
//
//   - transport: Server side network abstractions with pluggable listeners
//     (TCP, Unix sockets) sharing one frame format.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - server: The RPC server hosting one in-memory document store per bucket.
package rpc
