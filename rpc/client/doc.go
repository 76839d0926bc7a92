// Package client implements the asynchronous client of a dDoc bucket.
//
// A Bucket owns a reactor.Loop running on its own goroutine and the
// engine.Engine of the bucket connection. Public methods never block on the
// network: each call is handed to the loop with Post and returns a
// future.Future that settles once the engine reported the outcome.
//
// Key Components:
//
//   - Connect: returns the shared connect future. The endpoints are tried in
//     order, the connection is opened at most once and never re-established.
//
//   - Get, Upsert, Remove: whole document operations. Replies are decoded into
//     GetResult and MutationResult.
//
//   - LookupIn, MutateIn: sub-document operations built with the lib/subdoc
//     spec builders. Mixing lookup and mutation specs is rejected right away.
//
//   - SearchQuery, SearchQueryAs: lazy search requests. The Bucket implements
//     search.Executor, rows stream in as the server sends them.
//
// Usage Example:
//
//	b, err := client.NewBucketFromConnectionString("ddoc://localhost:11210/people", serializer.NewBinarySerializer())
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
//	if _, err := b.Connect().Await(ctx); err != nil {
//		return err
//	}
//
//	if _, err := b.Upsert("u1", map[string]any{"name": "Anna", "tags": []string{}}, 0).Await(ctx); err != nil {
//		return err
//	}
//	res, err := b.MutateIn("u1", 0, subdoc.PushLast("tags", false, "admin")).Await(ctx)
//
// Errors:
//
// Failures of the server are reported as *docstore.Error and match the
// docstore sentinels with errors.Is. Deadlines surface as
// *engine.TimeoutError, connection problems as *engine.TransportError.
// Requests issued before Connect completed fail with engine.ErrNotConnected.
//
// Thread Safety:
//
//	All methods of Bucket are safe for concurrent use. A search.SearchRequest
//	must only be iterated by one goroutine.
package client
