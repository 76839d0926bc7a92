// Package common provides the data structures shared by the client, the engine
// and the server of dDoc.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Connection string parsing
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Message: Core data structure of every RPC frame. Which fields are set depends
//     on the MessageType. Errors of the document store travel with their RetCode,
//     so Message.Error restores a *docstore.Error on the client side. A search is
//     answered with several frames: batches of hits in Rows and a final frame with
//     Done set and the metadata in Meta.
//
//   - ServerConfig / ClientConfig: Configuration of the two sides, both render a
//     readable dump with String().
//
//   - ConnectionString: Parses "ddoc://host1:port,host2/bucket?operation_timeout=2.5".
//     Hosts without a port get the implicit port of the scheme (ddoc 11210,
//     ddocs 11207, http 8091).
//
//   - InitLoggers: Installs the "LEVEL | package | message" log format for all
//     package loggers.
package common
