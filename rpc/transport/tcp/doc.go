// Package tcp implements the TCP socket server transport of the document store's
// RPC system. It provides the TCP implementation of the base package's connector
// interface.
//
// Accepted connections get TCP_NODELAY and keep-alive. Everything else, buffer reuse,
// the per connection worker pool and frame handling, is inherited from package base.
//
// The default server buffer size is set to 512 KB, which provides good performance
// for typical workloads, but can be customized for specific use cases.
package tcp
