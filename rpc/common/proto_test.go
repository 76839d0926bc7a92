package common

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/lib/subdoc"
)

func TestMessageErrorKeepsCode(t *testing.T) {
	resp := NewGetResponse(nil, 0, docstore.NewError(docstore.RetCKeyNotFound, "document \"x\" not found"))
	if resp.Code != uint64(docstore.RetCKeyNotFound) {
		t.Fatalf("Expected code %d, got %d", docstore.RetCKeyNotFound, resp.Code)
	}
	if err := resp.Error(); !errors.Is(err, docstore.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	wrapped := NewRemoveResponse(fmt.Errorf("remove: %w", docstore.ErrKeyExists))
	if err := wrapped.Error(); !errors.Is(err, docstore.ErrKeyExists) {
		t.Errorf("Expected wrapped docstore errors to keep their code, got %v", err)
	}

	plain := NewUpsertResponse(0, errors.New("boom"))
	if err := plain.Error(); !errors.Is(err, docstore.ErrInternal) || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Expected an internal error, got %v", err)
	}

	if err := NewUpsertResponse(7, nil).Error(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestSubdocResponse(t *testing.T) {
	res := &subdoc.Result{Key: "k", Cas: 42, Items: []subdoc.Item{
		{Op: subdoc.OpGet, Path: "a", Value: []byte(`1`)},
		{Op: subdoc.OpGet, Path: "b", Code: uint64(docstore.RetCPathNotFound), Err: "missing"},
	}}
	resp := NewSubdocResponse(MsgTSubLookupIn, res, nil)

	got, err := resp.SubdocResult("k")
	if err != nil {
		t.Fatalf("SubdocResult failed: %v", err)
	}
	if got.Cas != 42 || got.Len() != 2 {
		t.Fatalf("Unexpected result %+v", got)
	}
	var a int
	if err := got.Get(0, &a); err != nil || a != 1 {
		t.Errorf("Expected a=1, got %d (%v)", a, err)
	}
	if got.Exists(1) {
		t.Error("Expected item 1 to have failed")
	}

	failed := NewSubdocResponse(MsgTSubMutateIn, nil, docstore.NewError(docstore.RetCPathExists, "exists"))
	if _, err := failed.SubdocResult("k"); !errors.Is(err, docstore.ErrPathExists) {
		t.Errorf("Expected ErrPathExists, got %v", err)
	}
}

func TestSubdocRequests(t *testing.T) {
	if _, err := NewLookupInRequest("k", nil); err == nil {
		t.Error("Expected an empty batch to be rejected")
	}
	msg, err := NewMutateInRequest("k", []subdoc.Spec{subdoc.Counter("n", 1, true)}, 9)
	if err != nil {
		t.Fatalf("NewMutateInRequest failed: %v", err)
	}
	specs, err := subdoc.Decode(msg.Specs)
	if err != nil || len(specs) != 1 || specs[0].Op() != subdoc.OpCounter || msg.Cas != 9 {
		t.Errorf("Unexpected request %+v (%v)", msg, err)
	}
}

func TestMessageTypeJSON(t *testing.T) {
	for mt := MsgTSuccess; mt <= MsgTSearch; mt++ {
		data, err := mt.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON(%d) failed: %v", mt, err)
		}
		var back MessageType
		if err := back.UnmarshalJSON(data); err != nil || back != mt {
			t.Errorf("%s: round trip gave %s (%v)", mt, back, err)
		}
	}
	var mt MessageType
	if err := mt.UnmarshalJSON([]byte(`"nope"`)); err == nil {
		t.Error("Expected an error for an unknown type")
	}
}

func TestConfigString(t *testing.T) {
	server := ServerConfig{Buckets: []string{"default"}, Transport: "tcp", Endpoint: ":11210", LogLevel: "info"}
	if s := server.String(); !strings.Contains(s, "BUCKETS") || !strings.Contains(s, "default") {
		t.Errorf("Unexpected server config dump:\n%s", s)
	}
	client := ClientConfig{Endpoints: []string{"a:1"}, Bucket: "b"}
	if s := client.String(); !strings.Contains(s, "a:1") || !strings.Contains(s, "ENDPOINTS") {
		t.Errorf("Unexpected client config dump:\n%s", s)
	}
}
