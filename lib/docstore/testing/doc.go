// Package testing provides a conformance suite and benchmarks for
// implementations of the docstore.IDocStore interface.
//
// Example usage:
//
//	factory := func() docstore.IDocStore {
//		return docstore.NewLocalStore("test")
//	}
//
//	testing.RunDocStoreTests(t, "LocalStore", factory)
//	testing.RunDocStoreBenchmarks(b, "LocalStore", factory)
package testing
