package testing

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/lib/subdoc"
)

// RunDocStoreBenchmarks runs all benchmarks for an IDocStore implementation
func RunDocStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Upsert", func(b *testing.B) {
			benchmarkUpsert(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("Counter", func(b *testing.B) {
			benchmarkCounter(b, factory())
		})

		b.Run("LookupIn", func(b *testing.B) {
			benchmarkLookupIn(b, factory())
		})

		b.Run("Search", func(b *testing.B) {
			benchmarkSearch(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func fill(b *testing.B, store docstore.IDocStore, n int) {
	b.Helper()
	for i := 0; i < n; i++ {
		doc := fmt.Sprintf(`{"id":%d,"name":"user %d","tags":["t%d"]}`, i, i, i%10)
		if _, err := store.Upsert(fmt.Sprintf("key-%d", i), []byte(doc), 0); err != nil {
			b.Fatalf("Upsert failed: %v", err)
		}
	}
}

func benchmarkUpsert(b *testing.B, store docstore.IDocStore) {
	var counter atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			_, _ = store.Upsert(fmt.Sprintf("key-%d", i), []byte(`{"value":"benchmark"}`), 0)
		}
	})
}

func benchmarkGet(b *testing.B, store docstore.IDocStore) {
	const numKeys = 1000
	fill(b, store, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			_, _, _ = store.Get(fmt.Sprintf("key-%d", r.Intn(numKeys)))
		}
	})
}

func benchmarkCounter(b *testing.B, store docstore.IDocStore) {
	if _, err := store.Upsert("counter", []byte(`{"n":0}`), 0); err != nil {
		b.Fatalf("Upsert failed: %v", err)
	}
	specs := []subdoc.Spec{subdoc.Counter("n", 1, false)}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = store.MutateIn("counter", specs, 0)
		}
	})
}

func benchmarkLookupIn(b *testing.B, store docstore.IDocStore) {
	const numKeys = 1000
	fill(b, store, numKeys)
	specs := []subdoc.Spec{subdoc.Get("name"), subdoc.Exists("tags[0]")}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			_, _ = store.LookupIn(fmt.Sprintf("key-%d", r.Intn(numKeys)), specs)
		}
	})
}

func benchmarkSearch(b *testing.B, store docstore.IDocStore) {
	fill(b, store, 1000)
	body := []byte(`{"query":{"query":"tags:t3"},"size":10}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.Search(body)
	}
}
