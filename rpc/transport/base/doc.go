// Package base provides the foundation for the server transport layers of the
// document store, implementing core functionality for RPC communication independent
// of the specific network protocol (TCP, Unix sockets). It serves as a base layer
// that is extended with protocol-specific connectors.
//
// The package focuses on:
//   - A protocol-agnostic server transport implementation
//   - Performance optimization through buffer reuse
//   - A frame-based message protocol with bucketID and requestID tracking
//   - Several response frames per request for streamed results
//
// Frame format:
//
//	8 bytes bucketID | 8 bytes requestID | 4 bytes length | payload
//
// Key Components:
//
//   - IServerConnector: Interface for protocol-specific operations that allows
//     extending the base transport with different network protocols.
//
//   - serverTransport: Core server implementation that accepts connections and
//     routes requests to the registered handler.
//
//   - AppendFrame / DecodeFrame: Frame codec for non-blocking sockets. The client
//     engine appends frames to its output buffer and decodes whatever the socket
//     delivered so far.
//
// Performance Optimizations:
//
//   - Buffer Pooling: The server uses a sync.Pool to reuse buffers, reducing
//     GC pressure and memory allocations.
//
//   - Worker Pool: Each connection processes up to WorkersPerConn requests in
//     parallel. Responses are matched by request id, so they may leave in any order.
//
//   - Frame Batching: The transport uses net.Buffers to reduce syscalls when
//     writing frames, combining header and payload into a single write operation.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to a connection are serialized
//	with a mutex, so the frames of one streamed response keep their order.
package base
