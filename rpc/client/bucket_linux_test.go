//go:build linux

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/lib/search"
	"github.com/ValentinKolb/dDoc/lib/subdoc"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/engine"
	"github.com/ValentinKolb/dDoc/rpc/serializer"
	"github.com/ValentinKolb/dDoc/rpc/server"
	"github.com/ValentinKolb/dDoc/rpc/transport/tcp"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// startServer runs an RPC server for buckets on a random local port
func startServer(t testing.TB, buckets ...string) (*server.RPCServer, string) {
	t.Helper()
	srv := server.NewRPCServer(common.ServerConfig{
		Buckets:         buckets,
		Transport:       "tcp",
		Endpoint:        "127.0.0.1:0",
		WorkersPerConn:  4,
		SearchBatchSize: 2,
		LogLevel:        "error",
	}, tcp.NewTCPDefaultServerTransport(4), serializer.NewBinarySerializer())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		select {
		case err := <-errCh:
			t.Fatalf("Server failed: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("Server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return srv, srv.Addr().String()
}

func newTestBucket(t testing.TB, bucket string, endpoints ...string) *Bucket {
	t.Helper()
	b, err := NewBucket(common.ClientConfig{
		Endpoints:        endpoints,
		Bucket:           bucket,
		OperationTimeout: 2 * time.Second,
		ConnectTimeout:   2 * time.Second,
	}, serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("NewBucket failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func connectedBucket(t testing.TB, bucket string, endpoints ...string) *Bucket {
	t.Helper()
	b := newTestBucket(t, bucket, endpoints...)
	if _, err := b.Connect().Await(testCtx(t)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return b
}

func testCtx(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestBucketDocuments(t *testing.T) {
	_, addr := startServer(t, "people")
	b := connectedBucket(t, "people", addr)
	ctx := testCtx(t)

	type person struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	upsert, err := b.Upsert("u1", person{Name: "Anna", Age: 30}, 0).Await(ctx)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if upsert.Cas == 0 || upsert.Key != "u1" {
		t.Errorf("Unexpected upsert result %+v", upsert)
	}

	get, err := b.Get("u1").Await(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var p person
	if err := get.Content(&p); err != nil || p.Name != "Anna" || p.Age != 30 {
		t.Errorf("Unexpected document %s (%v)", get.Value, err)
	}
	if get.Cas != upsert.Cas {
		t.Errorf("Expected cas %d, got %d", upsert.Cas, get.Cas)
	}

	// stale cas
	if _, err := b.Upsert("u1", []byte(`{"name":"Bob"}`), upsert.Cas+1000).Await(ctx); !errors.Is(err, docstore.ErrKeyExists) {
		t.Errorf("Expected a cas mismatch, got %v", err)
	}

	if _, err := b.Remove("u1", get.Cas).Await(ctx); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := b.Get("u1").Await(ctx); !errors.Is(err, docstore.ErrKeyNotFound) {
		t.Errorf("Expected key not found after remove, got %v", err)
	}
}

func TestBucketSubdoc(t *testing.T) {
	_, addr := startServer(t, "people")
	b := connectedBucket(t, "people", addr)
	ctx := testCtx(t)

	if _, err := b.Upsert("u1", json.RawMessage(`{"name":"Anna","tags":["dev"],"visits":1}`), 0).Await(ctx); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	mut, err := b.MutateIn("u1", 0,
		subdoc.PushLast("tags", false, "admin", "ops"),
		subdoc.Counter("visits", 2, false),
		subdoc.Upsert("address.city", "Berlin", true),
	).Await(ctx)
	if err != nil {
		t.Fatalf("MutateIn failed: %v", err)
	}
	var visits int
	if err := mut.Get(1, &visits); err != nil || visits != 3 {
		t.Errorf("Expected counter value 3, got %d (%v)", visits, err)
	}

	res, err := b.LookupIn("u1",
		subdoc.Get("tags"),
		subdoc.Exists("address.city"),
		subdoc.Get("missing"),
	).Await(ctx)
	if err != nil {
		t.Fatalf("LookupIn failed: %v", err)
	}
	var tags []string
	if err := res.Get(0, &tags); err != nil || fmt.Sprint(tags) != "[dev admin ops]" {
		t.Errorf("Unexpected tags %v (%v)", tags, err)
	}
	if !res.Exists(1) {
		t.Error("Expected address.city to exist")
	}
	var ie *subdoc.ItemError
	if err := res.Err(2); !errors.As(err, &ie) || ie.Code != uint64(docstore.RetCPathNotFound) {
		t.Errorf("Expected path not found for the missing path, got %v", err)
	}
	if res.Cas != mut.Cas {
		t.Errorf("Expected cas %d, got %d", mut.Cas, res.Cas)
	}
}

func TestBucketMisuse(t *testing.T) {
	b := newTestBucket(t, "people", "127.0.0.1:1")

	tests := map[string]struct {
		result func() (bool, error)
		want   error
	}{
		"MutationInLookup": {func() (bool, error) {
			_, err, ok := b.LookupIn("k", subdoc.Remove("a")).Result()
			return ok, err
		}, ErrLookupSpec},
		"LookupInMutation": {func() (bool, error) {
			_, err, ok := b.MutateIn("k", 0, subdoc.Get("a")).Result()
			return ok, err
		}, ErrMutationSpec},
		"NoSpecs": {func() (bool, error) {
			_, err, ok := b.LookupIn("k").Result()
			return ok, err
		}, subdoc.ErrNoCommands},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ok, err := tc.result()
			if !ok {
				t.Fatal("Expected the future to be settled immediately")
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err, ok := b.Upsert("k", []byte(`{"a":`), 0).Result(); !ok || !errors.Is(err, docstore.ErrDocNotJSON) {
		t.Errorf("Expected an immediate error for invalid JSON, got %v", err)
	}
}

func TestBucketNotConnected(t *testing.T) {
	_, addr := startServer(t, "people")
	b := newTestBucket(t, "people", addr)

	if _, err := b.Get("u1").Await(testCtx(t)); !errors.Is(err, engine.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected before Connect, got %v", err)
	}
	if b.Connected() {
		t.Error("Bucket must not report a connection before Connect")
	}
}

func TestBucketConnectShared(t *testing.T) {
	_, addr := startServer(t, "people")
	b := newTestBucket(t, "people", addr)

	first := b.Connect()
	if second := b.Connect(); first != second {
		t.Error("Connect must return the same future")
	}
	if ok, err := first.Await(testCtx(t)); err != nil || !ok {
		t.Fatalf("Connect failed: %v", err)
	}
	if !b.Connected() || b.State() != "connected" {
		t.Errorf("Expected a connected bucket, got state %s", b.State())
	}
}

func TestBucketConnectFailover(t *testing.T) {
	_, addr := startServer(t, "people")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	dead := ln.Addr().String()
	_ = ln.Close()

	b := connectedBucket(t, "people", dead, addr)
	if _, err := b.Upsert("k", []byte(`{}`), 0).Await(testCtx(t)); err != nil {
		t.Errorf("Upsert after fail-over failed: %v", err)
	}

	unreachable := newTestBucket(t, "people", dead)
	var te *engine.TransportError
	if _, err := unreachable.Connect().Await(testCtx(t)); !errors.As(err, &te) {
		t.Errorf("Expected a transport error, got %v", err)
	}
}

func TestBucketUnknownBucket(t *testing.T) {
	_, addr := startServer(t, "people")
	b := connectedBucket(t, "other", addr)

	if _, err := b.Get("k").Await(testCtx(t)); !errors.Is(err, docstore.ErrInternal) {
		t.Errorf("Expected an error for an unknown bucket, got %v", err)
	}
}

func TestBucketSearch(t *testing.T) {
	_, addr := startServer(t, "people")
	b := connectedBucket(t, "people", addr)
	ctx := testCtx(t)

	for i := 0; i < 5; i++ {
		doc := fmt.Sprintf(`{"name":"user %d","age":%d,"city":"Berlin"}`, i, 20+i)
		if _, err := b.Upsert(fmt.Sprintf("u%d", i), []byte(doc), 0).Await(ctx); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	t.Run("Rows", func(t *testing.T) {
		req, err := b.SearchQuery("people-idx", search.NewMatchQuery("berlin").SetField("city"), search.NewParams().SetLimit(10))
		if err != nil {
			t.Fatalf("SearchQuery failed: %v", err)
		}
		rows, err := req.Execute(ctx)
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if len(rows) != 5 {
			t.Errorf("Expected 5 rows, got %d", len(rows))
		}
		if rows[0].Index != "people-idx" {
			t.Errorf("Expected index people-idx, got %q", rows[0].Index)
		}
		if total, err := req.TotalHits(); err != nil || total != 5 {
			t.Errorf("Expected 5 total hits, got %d (%v)", total, err)
		}
		if _, err := req.Execute(ctx); !errors.Is(err, search.ErrAlreadyQueried) {
			t.Errorf("Expected ErrAlreadyQueried, got %v", err)
		}
	})

	t.Run("BreakAndResume", func(t *testing.T) {
		req, err := b.SearchQuery("people", "age:>=22", nil)
		if err != nil {
			t.Fatalf("SearchQuery failed: %v", err)
		}
		seen := 0
		for _, err := range req.Rows(ctx) {
			if err != nil {
				t.Fatalf("Row error: %v", err)
			}
			seen++
			break
		}
		if _, err := req.TotalHits(); !errors.Is(err, search.ErrMetaNotReady) {
			t.Errorf("Expected ErrMetaNotReady before the last row, got %v", err)
		}
		for _, err := range req.Rows(ctx) {
			if err != nil {
				t.Fatalf("Row error: %v", err)
			}
			seen++
		}
		if seen != 3 {
			t.Errorf("Expected 3 rows, got %d", seen)
		}
	})

	t.Run("RawRows", func(t *testing.T) {
		req, err := SearchQueryAs[json.RawMessage](b, "people", search.NewPrefixQuery("user").SetField("name"), search.NewParams().SetLimit(2), search.RawRows)
		if err != nil {
			t.Fatalf("SearchQueryAs failed: %v", err)
		}
		rows, err := req.Execute(ctx)
		if err != nil || len(rows) != 2 {
			t.Fatalf("Expected 2 raw rows, got %d (%v)", len(rows), err)
		}
		if !json.Valid(rows[0]) {
			t.Errorf("Expected raw JSON, got %s", rows[0])
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		req, err := b.SearchQuery("people", search.NewRegexQuery("(").SetField("name"), nil)
		if err != nil {
			t.Fatalf("SearchQuery failed: %v", err)
		}
		var se *search.SearchError
		if _, err := req.Execute(ctx); !errors.As(err, &se) {
			t.Errorf("Expected a search error, got %v", err)
		}
	})

	t.Run("InvalidQuery", func(t *testing.T) {
		if _, err := b.SearchQuery("people", 42, nil); !errors.Is(err, search.ErrInvalidQuery) {
			t.Errorf("Expected ErrInvalidQuery, got %v", err)
		}
	})
}

func TestBucketClose(t *testing.T) {
	_, addr := startServer(t, "people")
	b := connectedBucket(t, "people", addr)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	var te *engine.TransportError
	if _, err := b.Get("k").Await(testCtx(t)); !errors.As(err, &te) || !errors.Is(err, engine.ErrClosed) {
		t.Errorf("Expected a closed transport error, got %v", err)
	}
	if _, err := b.ExecuteSearch(testCtx(t), []byte(`{}`)); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("Expected ErrClosed for a search, got %v", err)
	}
}

func TestBucketConnectionString(t *testing.T) {
	_, addr := startServer(t, "people")

	b, err := NewBucketFromConnectionString("ddoc://"+addr+"/people?operation_timeout=1.5", serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("NewBucketFromConnectionString failed: %v", err)
	}
	defer b.Close()

	if b.Name() != "people" || b.Config().OperationTimeout != 1500*time.Millisecond {
		t.Errorf("Unexpected config %+v", b.Config())
	}
	if _, err := b.Connect().Await(testCtx(t)); err != nil {
		t.Errorf("Connect failed: %v", err)
	}

	if _, err := NewBucket(common.ClientConfig{Endpoints: []string{addr}}, serializer.NewBinarySerializer()); !errors.Is(err, ErrNoBucket) {
		t.Errorf("Expected ErrNoBucket, got %v", err)
	}
}
