// Package server implements the RPC server of the document store. It routes the
// requests of every connection to the bucket they address and lets an adapter
// answer them against the bucket's document store.
//
// The package focuses on:
//   - Server-side RPC request handling for document, sub-document and search operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Streaming of search results in batches
//   - Request metrics in the Prometheus text format
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a
//     docstore.IDocStore and answers through a SendFunc.
//
//   - NewDocStoreServerAdapter: Factory function creating the adapter that
//     translates RPC requests to docstore.IDocStore method calls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Buckets:         []string{"default", "travel-sample"},
//	  Transport:       "tcp",
//	  Endpoint:        "0.0.0.0:11210",
//	  WorkersPerConn:  8,
//	  SearchBatchSize: 64,
//	  LogLevel:        "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(config.WorkersPerConn),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Buckets are addressed by id, the FNV-1a hash of the bucket name
// (util.BucketID). Two names with the same id are rejected at startup.
//
// A search request is answered with zero or more frames carrying batches of hits
// followed by one frame with Done set and the metadata of the search. Errors in
// the query are reported inside the metadata, not as a failed response.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve is not thread-safe and should be called only once.
package server
