// Package unix implements the server transport of the document store's RPC system
// using Unix domain sockets. It provides optimized communication for clients
// running on the same machine. Clients connect with an endpoint of the form
// "unix:/path/to/socket".
//
// This package extends the base transport layer with a Unix socket-specific
// connector while inheriting all core functionality from the base package.
//
// Performance Characteristics:
//
//   - Default buffer size: 64 KB, optimized for local communication patterns
//   - Reduced overhead: Eliminates TCP/IP stack processing for better performance
package unix
