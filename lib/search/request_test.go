package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeStream struct {
	batches [][]json.RawMessage
	meta    []byte
	done    bool
	fetches int
}

func (s *fakeStream) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.fetches++
	if len(s.batches) == 0 {
		s.done = true
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func (s *fakeStream) Done() bool { return s.done }

func (s *fakeStream) Value() []byte {
	if !s.done {
		return nil
	}
	return s.meta
}

type fakeExecutor struct {
	stream *fakeStream
	err    error
	calls  int
	body   []byte
}

func (e *fakeExecutor) ExecuteSearch(_ context.Context, body []byte) (Stream, error) {
	e.calls++
	e.body = body
	if e.err != nil {
		return nil, e.err
	}
	return e.stream, nil
}

func hits(ids ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		out[i] = json.RawMessage(`{"index":"ix","id":"` + id + `","score":1.5}`)
	}
	return out
}

// TestSearchRequestIterates tests a full iteration including an empty intermediate batch
func TestSearchRequestIterates(t *testing.T) {
	exec := &fakeExecutor{stream: &fakeStream{
		batches: [][]json.RawMessage{hits("a", "b"), nil, hits("c")},
		meta:    []byte(`{"total_hits": 3, "took": 1500, "max_score": 1.5, "facets": {"tags": {"total": 2}}}`),
	}}
	body, _ := MakeSearchBody("ix", "q", nil)
	req, err := NewSearchRequest[Row](body, exec, nil)
	if err != nil {
		t.Fatalf("NewSearchRequest failed: %v", err)
	}
	if exec.calls != 0 {
		t.Fatal("Construction must not issue the request")
	}

	if _, err := req.TotalHits(); !errors.Is(err, ErrMetaNotReady) {
		t.Errorf("Expected ErrMetaNotReady, got %v", err)
	}

	rows, err := req.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(rows) != 3 || rows[0].ID != "a" || rows[2].ID != "c" || rows[1].Score != 1.5 {
		t.Errorf("Unexpected rows: %+v", rows)
	}
	if exec.calls != 1 {
		t.Errorf("Expected one call, got %d", exec.calls)
	}

	if n, err := req.TotalHits(); err != nil || n != 3 {
		t.Errorf("Expected 3 hits, got %d (%v)", n, err)
	}
	if took, err := req.Took(); err != nil || took.Nanoseconds() != 1500 {
		t.Errorf("Expected 1500ns, got %v (%v)", took, err)
	}
	if s, err := req.MaxScore(); err != nil || s != 1.5 {
		t.Errorf("Expected max score 1.5, got %v (%v)", s, err)
	}
	if f, err := req.Facets(); err != nil || f["tags"] == nil {
		t.Errorf("Expected tags facet, got %v (%v)", f, err)
	}

	// single pass
	for _, err := range req.Rows(context.Background()) {
		if !errors.Is(err, ErrAlreadyQueried) {
			t.Errorf("Expected ErrAlreadyQueried, got %v", err)
		}
	}
	if exec.calls != 1 {
		t.Errorf("Second iteration must not issue the request, got %d calls", exec.calls)
	}
}

// TestSearchRequestServerError tests that errors in the metadata surface as SearchError
func TestSearchRequestServerError(t *testing.T) {
	exec := &fakeExecutor{stream: &fakeStream{
		meta: []byte(`{"errors": {"pindex_1": "index not found"}, "total_hits": 0}`),
	}}
	req, _ := NewSearchRequest[Row](map[string]any{"indexName": "nope"}, exec, nil)

	_, err := req.Execute(context.Background())
	var se *SearchError
	if !errors.As(err, &se) {
		t.Fatalf("Expected SearchError, got %v", err)
	}
	if len(se.Errors) != 1 || se.Errors[0] != "pindex_1: index not found" {
		t.Errorf("Unexpected errors: %v", se.Errors)
	}

	// the metadata was received nevertheless
	if _, err := req.Meta(); err != nil {
		t.Errorf("Meta failed: %v", err)
	}
	if _, err := req.Execute(context.Background()); !errors.Is(err, ErrAlreadyQueried) {
		t.Errorf("Expected ErrAlreadyQueried, got %v", err)
	}
}

// TestSearchRequestNonJSONMeta tests that opaque metadata reads as empty
func TestSearchRequestNonJSONMeta(t *testing.T) {
	exec := &fakeExecutor{stream: &fakeStream{batches: [][]json.RawMessage{hits("a")}, meta: []byte("rest timeout")}}
	req, _ := NewSearchRequest[json.RawMessage](json.RawMessage(`{}`), exec, RawRows)

	rows, err := req.Execute(context.Background())
	if err != nil || len(rows) != 1 {
		t.Fatalf("Expected one row, got %d (%v)", len(rows), err)
	}
	meta, err := req.Meta()
	if err != nil || len(meta) != 0 {
		t.Errorf("Expected empty meta, got %v (%v)", meta, err)
	}
	if string(req.Raw().Value()) != "rest timeout" {
		t.Errorf("Raw value lost: %q", req.Raw().Value())
	}
}

// TestSearchRequestResume tests that breaking out keeps the remaining rows
func TestSearchRequestResume(t *testing.T) {
	exec := &fakeExecutor{stream: &fakeStream{batches: [][]json.RawMessage{hits("a", "b", "c")}, meta: []byte(`{}`)}}
	req, _ := NewSearchRequest[Row]([]byte(`{}`), exec, nil)

	for row, err := range req.Rows(context.Background()) {
		if err != nil || row.ID != "a" {
			t.Fatalf("Unexpected first row %+v (%v)", row, err)
		}
		break
	}

	rest, err := req.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(rest) != 2 || rest[0].ID != "b" || rest[1].ID != "c" || exec.calls != 1 {
		t.Errorf("Expected rows b and c from one call, got %+v, %d calls", rest, exec.calls)
	}
}

// TestSearchRequestResumeAfterCancel tests that a cancelled wait keeps the request usable
func TestSearchRequestResumeAfterCancel(t *testing.T) {
	exec := &fakeExecutor{stream: &fakeStream{batches: [][]json.RawMessage{hits("a", "b")}, meta: []byte(`{"total_hits":2}`)}}
	req, _ := NewSearchRequest[Row]([]byte(`{}`), exec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := 0
	for _, err := range req.Rows(ctx) {
		n++
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	}
	if n != 1 {
		t.Errorf("Expected exactly the cancel error, got %d items", n)
	}
	if _, err := req.TotalHits(); !errors.Is(err, ErrMetaNotReady) {
		t.Errorf("Expected ErrMetaNotReady before the rows are read, got %v", err)
	}

	rows, err := req.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute after cancel failed: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "a" || exec.calls != 1 {
		t.Errorf("Expected rows a and b from one call, got %+v, %d calls", rows, exec.calls)
	}
	if total, err := req.TotalHits(); err != nil || total != 2 {
		t.Errorf("Expected 2 total hits, got %d (%v)", total, err)
	}
	if _, err := req.Execute(context.Background()); !errors.Is(err, ErrAlreadyQueried) {
		t.Errorf("Expected ErrAlreadyQueried after exhaustion, got %v", err)
	}
}

// TestSearchRequestExecutorError tests that a failed start ends the request
func TestSearchRequestExecutorError(t *testing.T) {
	boom := errors.New("not connected")
	req, _ := NewSearchRequest[Row]([]byte(`{}`), &fakeExecutor{err: boom}, nil)

	if _, err := req.SingleResult(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Expected executor error, got %v", err)
	}
	if _, err := req.Execute(context.Background()); !errors.Is(err, ErrAlreadyQueried) {
		t.Errorf("Expected ErrAlreadyQueried, got %v", err)
	}
}

// TestSingleResult tests the first row and the empty case
func TestSingleResult(t *testing.T) {
	exec := &fakeExecutor{stream: &fakeStream{batches: [][]json.RawMessage{hits("x", "y")}, meta: []byte(`{"total_hits":2}`)}}
	req, _ := NewSearchRequest[Row]([]byte(`{}`), exec, nil)
	row, err := req.SingleResult(context.Background())
	if err != nil || row.ID != "x" {
		t.Errorf("Expected row x, got %+v (%v)", row, err)
	}
	if n, _ := req.TotalHits(); n != 2 {
		t.Errorf("Expected meta after SingleResult, got %d hits", n)
	}

	empty, _ := NewSearchRequest[Row]([]byte(`{}`), &fakeExecutor{stream: &fakeStream{meta: []byte(`{}`)}}, nil)
	if _, err := empty.SingleResult(context.Background()); !errors.Is(err, ErrNoRows) {
		t.Errorf("Expected ErrNoRows, got %v", err)
	}
}
