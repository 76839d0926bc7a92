package testing

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/lib/subdoc"
	"github.com/tidwall/gjson"
)

// StoreFactory is a function that creates a new, empty IDocStore
type StoreFactory func() docstore.IDocStore

// RunDocStoreTests runs the conformance suite for an IDocStore implementation.
func RunDocStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Upsert&Get", func(t *testing.T) {
			testUpsertGet(t, factory())
		})

		t.Run("Cas", func(t *testing.T) {
			testCas(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("LookupIn", func(t *testing.T) {
			testLookupIn(t, factory())
		})

		t.Run("MutateIn", func(t *testing.T) {
			testMutateIn(t, factory())
		})

		t.Run("MutateInAtomic", func(t *testing.T) {
			testMutateInAtomic(t, factory())
		})

		t.Run("Search", func(t *testing.T) {
			testSearch(t, factory())
		})

		t.Run("ConcurrentCounter", func(t *testing.T) {
			testConcurrentCounter(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustUpsert(t testing.TB, store docstore.IDocStore, key, value string) uint64 {
	t.Helper()
	cas, err := store.Upsert(key, []byte(value), 0)
	if err != nil {
		t.Fatalf("Upsert(%q) failed: %v", key, err)
	}
	return cas
}

func expectCode(t testing.TB, err error, want *docstore.Error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Errorf("Expected error with code %s, got %v", want.Code, err)
	}
}

func sameJSON(a, b string) bool {
	var va, vb any
	if json.Unmarshal([]byte(a), &va) != nil || json.Unmarshal([]byte(b), &vb) != nil {
		return false
	}
	ja, _ := json.Marshal(va)
	jb, _ := json.Marshal(vb)
	return string(ja) == string(jb)
}

func getDoc(t testing.TB, store docstore.IDocStore, key string) string {
	t.Helper()
	value, _, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return string(value)
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testUpsertGet(t *testing.T, store docstore.IDocStore) {
	cas1 := mustUpsert(t, store, "doc", `{"a":1}`)
	if cas1 == 0 {
		t.Error("Expected a non zero cas")
	}

	value, cas, err := store.Get("doc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cas != cas1 || !sameJSON(string(value), `{"a":1}`) {
		t.Errorf("Expected %s with cas %d, got %s with cas %d", `{"a":1}`, cas1, value, cas)
	}

	cas2 := mustUpsert(t, store, "doc", `[1,2]`)
	if cas2 <= cas1 {
		t.Errorf("Expected cas to grow, got %d after %d", cas2, cas1)
	}

	if _, _, err := store.Get("missing"); !errors.Is(err, docstore.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	for _, bad := range []string{`"string"`, `42`, `{broken`} {
		if _, err := store.Upsert("bad", []byte(bad), 0); !errors.Is(err, docstore.ErrDocNotJSON) {
			t.Errorf("Upsert(%s): expected ErrDocNotJSON, got %v", bad, err)
		}
	}

	if store.Len() != 1 {
		t.Errorf("Expected 1 document, got %d", store.Len())
	}
}

func testCas(t *testing.T, store docstore.IDocStore) {
	cas := mustUpsert(t, store, "doc", `{"v":1}`)

	_, err := store.Upsert("doc", []byte(`{"v":2}`), cas+100)
	expectCode(t, err, docstore.ErrKeyExists)

	_, err = store.Upsert("missing", []byte(`{"v":2}`), cas)
	expectCode(t, err, docstore.ErrKeyNotFound)

	next, err := store.Upsert("doc", []byte(`{"v":3}`), cas)
	if err != nil {
		t.Fatalf("Upsert with the current cas failed: %v", err)
	}
	if next == cas {
		t.Error("Expected a new cas after the write")
	}

	_, err = store.MutateIn("doc", []subdoc.Spec{subdoc.Upsert("v", 4, false)}, cas)
	expectCode(t, err, docstore.ErrKeyExists)

	if !sameJSON(getDoc(t, store, "doc"), `{"v":3}`) {
		t.Error("Failed cas checks must not modify the document")
	}
}

func testRemove(t *testing.T, store docstore.IDocStore) {
	cas := mustUpsert(t, store, "doc", `{}`)

	expectCode(t, store.Remove("doc", cas+1), docstore.ErrKeyExists)
	if err := store.Remove("doc", cas); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	expectCode(t, store.Remove("doc", 0), docstore.ErrKeyNotFound)
	if store.Len() != 0 {
		t.Errorf("Expected an empty store, got %d documents", store.Len())
	}
}

func testLookupIn(t *testing.T, store docstore.IDocStore) {
	cas := mustUpsert(t, store, "doc", `{"name":"anna","tags":["a","b"],"n":{"x":1}}`)

	res, err := store.LookupIn("doc", []subdoc.Spec{
		subdoc.Get("name"),
		subdoc.Exists("n.x"),
		subdoc.Get("tags[-1]"),
		subdoc.Get("missing"),
		subdoc.Get("name.x"),
		subdoc.Get("tags[x]"),
	})
	if err != nil {
		t.Fatalf("LookupIn failed: %v", err)
	}
	if res.Cas != cas || res.Len() != 6 {
		t.Fatalf("Unexpected result header: cas %d, %d items", res.Cas, res.Len())
	}

	var name, last string
	if err := res.Get(0, &name); err != nil || name != "anna" {
		t.Errorf("Expected name anna, got %q (%v)", name, err)
	}
	if !res.Exists(1) {
		t.Error("Expected n.x to exist")
	}
	if err := res.Get(2, &last); err != nil || last != "b" {
		t.Errorf("Expected last tag b, got %q (%v)", last, err)
	}

	codes := map[int]docstore.RetCode{
		3: docstore.RetCPathNotFound,
		4: docstore.RetCPathMismatch,
		5: docstore.RetCInvalidPath,
	}
	for i, code := range codes {
		if res.Exists(i) || res.Items[i].Code != uint64(code) {
			t.Errorf("Item %d: expected code %s, got %d", i, code, res.Items[i].Code)
		}
	}

	_, err = store.LookupIn("doc", []subdoc.Spec{subdoc.Upsert("x", 1, false)})
	expectCode(t, err, docstore.ErrInvalidOperation)
	_, err = store.LookupIn("missing", []subdoc.Spec{subdoc.Get("x")})
	expectCode(t, err, docstore.ErrKeyNotFound)
}

func testMutateIn(t *testing.T, store docstore.IDocStore) {
	mustUpsert(t, store, "doc", `{"name":"anna","tags":["a"],"n":1,"nested":{"x":true}}`)

	res, err := store.MutateIn("doc", []subdoc.Spec{
		subdoc.Upsert("age", 30, false),
		subdoc.Counter("n", 5, false),
		subdoc.PushLast("tags", false, "b", "c"),
		subdoc.PushFirst("tags", false, "z"),
		subdoc.PushAt("tags[1]", "y"),
		subdoc.Insert("deep.er.value", "v", true),
		subdoc.Remove("nested.x"),
		subdoc.Replace("name", "berta"),
		subdoc.PushUnique("uniq", 1, true),
	}, 0)
	if err != nil {
		t.Fatalf("MutateIn failed: %v", err)
	}

	var counter int64
	if err := res.Get(1, &counter); err != nil || counter != 6 {
		t.Errorf("Expected counter 6, got %d (%v)", counter, err)
	}

	want := `{"name":"berta","tags":["z","y","a","b","c"],"n":6,"nested":{},"age":30,"deep":{"er":{"value":"v"}},"uniq":[1]}`
	if got := getDoc(t, store, "doc"); !sameJSON(got, want) {
		t.Errorf("Expected %s, got %s", want, got)
	}

	failures := []struct {
		spec subdoc.Spec
		want *docstore.Error
	}{
		{subdoc.PushUnique("tags", "a", false), docstore.ErrPathExists},
		{subdoc.Insert("name", "x", false), docstore.ErrPathExists},
		{subdoc.Replace("missing", 1), docstore.ErrPathNotFound},
		{subdoc.Upsert("a.b.c", 1, false), docstore.ErrPathNotFound},
		{subdoc.Counter("name", 1, false), docstore.ErrPathMismatch},
		{subdoc.Counter("n", 0, false), docstore.ErrDeltaInvalid},
		{subdoc.PushLast("name", false, 1), docstore.ErrPathMismatch},
		{subdoc.PushAt("tags[9]", 1), docstore.ErrPathNotFound},
		{subdoc.PushUnique("tags", map[string]int{"a": 1}, false), docstore.ErrValueInvalid},
		{subdoc.Upsert("tags[0]", 1, false), docstore.ErrInvalidPath},
		{subdoc.Upsert("a..b", 1, false), docstore.ErrInvalidPath},
	}
	for _, f := range failures {
		t.Run(f.spec.String(), func(t *testing.T) {
			_, err := store.MutateIn("doc", []subdoc.Spec{f.spec}, 0)
			expectCode(t, err, f.want)
		})
	}

	_, err = store.MutateIn("doc", []subdoc.Spec{subdoc.Get("name")}, 0)
	expectCode(t, err, docstore.ErrInvalidOperation)
}

func testMutateInAtomic(t *testing.T, store docstore.IDocStore) {
	cas := mustUpsert(t, store, "doc", `{"a":1}`)

	_, err := store.MutateIn("doc", []subdoc.Spec{
		subdoc.Upsert("b", 2, false),
		subdoc.Replace("missing", 3),
	}, 0)
	expectCode(t, err, docstore.ErrPathNotFound)

	value, after, _ := store.Get("doc")
	if after != cas || !sameJSON(string(value), `{"a":1}`) {
		t.Errorf("A failed batch must not change the document, got %s (cas %d -> %d)", value, cas, after)
	}
}

func testConcurrentCounter(t *testing.T, store docstore.IDocStore) {
	mustUpsert(t, store, "counter", `{"hits":0}`)

	const workers, rounds = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if _, err := store.MutateIn("counter", []subdoc.Spec{subdoc.Counter("hits", 1, false)}, 0); err != nil {
					t.Errorf("Counter failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	want := fmt.Sprintf(`{"hits":%d}`, workers*rounds)
	if got := getDoc(t, store, "counter"); !sameJSON(got, want) {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func testSearch(t *testing.T, store docstore.IDocStore) {
	mustUpsert(t, store, "u1", `{"name":"Anna Smith","city":"Berlin","age":30}`)
	mustUpsert(t, store, "u2", `{"name":"Bob Stone","city":"Paris","age":42}`)
	mustUpsert(t, store, "u3", `{"name":"Carla Smith","city":"Berlin","age":25}`)

	hits, meta := store.Search([]byte(`{"query":{"query":"+city:berlin age:<30"},"size":10}`))
	if n := gjson.GetBytes(meta, "total_hits").Int(); n != 2 {
		t.Fatalf("Expected 2 hits, got %d (%s)", n, meta)
	}
	if len(hits) != 2 || gjson.GetBytes(hits[0], "id").String() != "u3" {
		t.Errorf("Expected u3 to rank first, got %s", hits)
	}

	hits, meta = store.Search([]byte(`{"query":{"nonsense":true}}`))
	if len(hits) != 0 || !gjson.GetBytes(meta, "errors").Exists() {
		t.Errorf("Expected an error in the metadata, got %s", meta)
	}
}
