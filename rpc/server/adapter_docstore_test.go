package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/lib/subdoc"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/tidwall/gjson"
)

// collect runs one request through the adapter and returns all sent messages
func collect(t *testing.T, adapter IRPCServerAdapter, store docstore.IDocStore, req *common.Message) []*common.Message {
	t.Helper()
	var sent []*common.Message
	adapter.Handle(req, store, func(resp *common.Message) error {
		sent = append(sent, resp)
		return nil
	})
	return sent
}

func TestAdapterDocumentOperations(t *testing.T) {
	adapter := NewDocStoreServerAdapter(2)
	store := docstore.NewLocalStore("test")

	resp := collect(t, adapter, store, common.NewUpsertRequest("doc", []byte(`{"a":1}`), 0))
	if len(resp) != 1 || resp[0].Error() != nil || resp[0].Cas == 0 {
		t.Fatalf("Unexpected upsert response %+v", resp)
	}
	cas := resp[0].Cas

	resp = collect(t, adapter, store, common.NewGetRequest("doc"))
	if len(resp) != 1 || string(resp[0].Value) != `{"a":1}` || resp[0].Cas != cas {
		t.Errorf("Unexpected get response %+v", resp)
	}

	resp = collect(t, adapter, store, common.NewRemoveRequest("doc", cas+1))
	if err := resp[0].Error(); !errors.Is(err, docstore.ErrKeyExists) {
		t.Errorf("Expected cas mismatch, got %v", err)
	}

	resp = collect(t, adapter, store, common.NewRemoveRequest("doc", cas))
	if err := resp[0].Error(); err != nil {
		t.Errorf("Remove failed: %v", err)
	}

	resp = collect(t, adapter, store, common.NewGetRequest("doc"))
	if err := resp[0].Error(); !errors.Is(err, docstore.ErrKeyNotFound) {
		t.Errorf("Expected key not found, got %v", err)
	}
}

func TestAdapterSubdocOperations(t *testing.T) {
	adapter := NewDocStoreServerAdapter(2)
	store := docstore.NewLocalStore("test")
	if _, err := store.Upsert("doc", []byte(`{"n":1,"arr":[]}`), 0); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	req, err := common.NewMutateInRequest("doc", []subdoc.Spec{
		subdoc.Counter("n", 4, false),
		subdoc.PushLast("arr", false, "x"),
	}, 0)
	if err != nil {
		t.Fatalf("NewMutateInRequest failed: %v", err)
	}
	res, err := collect(t, adapter, store, req)[0].SubdocResult("doc")
	if err != nil {
		t.Fatalf("MutateIn failed: %v", err)
	}
	var n int
	if err := res.Get(0, &n); err != nil || n != 5 {
		t.Errorf("Expected counter 5, got %d (%v)", n, err)
	}

	req, _ = common.NewLookupInRequest("doc", []subdoc.Spec{subdoc.Get("arr[0]"), subdoc.Exists("missing")})
	res, err = collect(t, adapter, store, req)[0].SubdocResult("doc")
	if err != nil {
		t.Fatalf("LookupIn failed: %v", err)
	}
	var first string
	if err := res.Get(0, &first); err != nil || first != "x" {
		t.Errorf("Expected x, got %q (%v)", first, err)
	}
	if res.Exists(1) {
		t.Error("Expected missing path to not exist")
	}

	bad := &common.Message{MsgType: common.MsgTSubLookupIn, Key: "doc", Specs: []byte{1}}
	if err := collect(t, adapter, store, bad)[0].Error(); !errors.Is(err, docstore.ErrInvalidOperation) {
		t.Errorf("Expected invalid operation for corrupt specs, got %v", err)
	}
}

func TestAdapterSearchStream(t *testing.T) {
	adapter := NewDocStoreServerAdapter(2)
	store := docstore.NewLocalStore("test")
	for i := 0; i < 5; i++ {
		if _, err := store.Upsert(fmt.Sprintf("d%d", i), []byte(`{"kind":"x"}`), 0); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	sent := collect(t, adapter, store, common.NewSearchRequest([]byte(`{"query":{"match_all":{}}}`)))
	if len(sent) != 4 {
		t.Fatalf("Expected 3 row frames and 1 done frame, got %d", len(sent))
	}
	rows := 0
	for i, msg := range sent[:3] {
		if msg.Done {
			t.Errorf("Frame %d must not be the last one", i)
		}
		rows += len(msg.Rows)
	}
	if rows != 5 {
		t.Errorf("Expected 5 rows, got %d", rows)
	}
	last := sent[3]
	if !last.Done || gjson.GetBytes(last.Meta, "total_hits").Int() != 5 {
		t.Errorf("Unexpected final frame %+v", last)
	}

	// a broken query still ends the stream with metadata
	sent = collect(t, adapter, store, common.NewSearchRequest([]byte(`{"query":{"bogus":1}}`)))
	if len(sent) != 1 || !sent[0].Done || !gjson.GetBytes(sent[0].Meta, "errors").Exists() {
		t.Errorf("Expected a single done frame with errors, got %+v", sent)
	}
}

func TestAdapterSearchAbortsOnSendError(t *testing.T) {
	adapter := NewDocStoreServerAdapter(1)
	store := docstore.NewLocalStore("test")
	for i := 0; i < 3; i++ {
		_, _ = store.Upsert(fmt.Sprintf("d%d", i), []byte(`{}`), 0)
	}

	calls := 0
	adapter.Handle(common.NewSearchRequest([]byte(`{"query":{"match_all":{}}}`)), store, func(*common.Message) error {
		calls++
		return errors.New("broken pipe")
	})
	if calls != 1 {
		t.Errorf("Expected the stream to stop after the first failed send, got %d sends", calls)
	}
}

func TestAdapterUnsupported(t *testing.T) {
	adapter := NewDocStoreServerAdapter(0)
	sent := collect(t, adapter, docstore.NewLocalStore("test"), &common.Message{MsgType: common.MsgTSuccess})
	if len(sent) != 1 || sent[0].MsgType != common.MsgTError {
		t.Errorf("Expected an error response, got %+v", sent)
	}

	sent = collect(t, adapter, nil, common.NewGetRequest("k"))
	if len(sent) != 1 || sent[0].Error() == nil {
		t.Errorf("Expected an error for a nil store, got %+v", sent)
	}
}
