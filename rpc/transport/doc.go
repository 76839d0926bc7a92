// Package transport defines the server side of the RPC communication of the
// document store. It provides a common contract that all listener implementations
// must fulfill, enabling protocol-agnostic request handling.
//
// The package focuses on:
//   - Defining a clear interface for server transport layers
//   - Supporting bucket-based request routing
//   - Streaming several response frames for one request
//   - Enabling multiple transport implementations (TCP, Unix sockets)
//
// Key Components:
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to appropriate handlers.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
//   - ResponseWriter: Sends one response frame, a handler calls it once per frame.
//
// The client side has no transport interface: the client engine (package
// rpc/engine) drives its non-blocking sockets from the reactor itself and only
// shares the frame format of package base.
package transport
