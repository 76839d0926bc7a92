package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/tidwall/gjson"
)

var Logger = logger.GetLogger("search")

var (
	// ErrAlreadyQueried is returned when a finished request is iterated again
	ErrAlreadyQueried = errors.New("search: this query has already been executed")
	// ErrMetaNotReady is returned when metadata is read before all rows were received
	ErrMetaNotReady = errors.New("search: metadata is only valid once all rows are received")
	// ErrNoRows is returned by SingleResult for an empty result
	ErrNoRows = errors.New("search: no rows")
)

// SearchError wraps the errors reported by the server in the result metadata
type SearchError struct {
	Errors []string
	Raw    json.RawMessage
}

func (e *SearchError) Error() string {
	return "search execution failed: " + strings.Join(e.Errors, "; ")
}

// --------------------------------------------------------------------------
// Executor contract
// --------------------------------------------------------------------------

// Stream is the handle of a running search on the server
type Stream interface {
	// Fetch blocks until the next batch of hits arrived or the stream completed.
	// The batch may be empty.
	Fetch(ctx context.Context) ([]json.RawMessage, error)
	// Done reports whether the final frame was received
	Done() bool
	// Value returns the final metadata payload, nil until Done
	Value() []byte
}

// Executor issues a search body to the server
type Executor interface {
	ExecuteSearch(ctx context.Context, body []byte) (Stream, error)
}

// --------------------------------------------------------------------------
// Request
// --------------------------------------------------------------------------

// SearchRequest executes a search lazily: the network call is made on the
// first iteration. The rows can be iterated exactly once.
//
// A SearchRequest is not safe for concurrent use.
type SearchRequest[R any] struct {
	body       []byte
	executor   Executor
	rowFactory RowFactory[R]

	stream       Stream
	pending      []json.RawMessage
	doIter       bool
	metaReceived bool
}

// NewSearchRequest creates a request for body. body is sent as is when it is
// []byte or json.RawMessage, otherwise it is JSON encoded. A nil rowFactory
// decodes every hit into R.
func NewSearchRequest[R any](body any, executor Executor, rowFactory RowFactory[R]) (*SearchRequest[R], error) {
	var data []byte
	switch b := body.(type) {
	case []byte:
		data = b
	case json.RawMessage:
		data = b
	default:
		var err error
		if data, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode search body: %w", err)
		}
	}
	if rowFactory == nil {
		rowFactory = JSONRows[R]()
	}
	return &SearchRequest[R]{
		body:       data,
		executor:   executor,
		rowFactory: rowFactory,
		doIter:     true,
	}, nil
}

// abandoned reports whether err only means that ctx ended the wait.
// The request stays usable then.
func abandoned(ctx context.Context, err error) bool {
	ctxErr := ctx.Err()
	return ctxErr != nil && errors.Is(err, ctxErr)
}

// Body returns the encoded request body
func (r *SearchRequest[R]) Body() []byte { return r.body }

func (r *SearchRequest[R]) start(ctx context.Context) error {
	if r.stream != nil {
		return nil
	}
	stream, err := r.executor.ExecuteSearch(ctx, r.body)
	if err != nil {
		return err
	}
	r.stream = stream
	return nil
}

// Rows iterates the hits. Errors are yielded with a zero row, a transport or
// server error ends the iteration. After breaking out early, or after ctx was
// done while waiting for hits, a later call to Rows continues with the next hit.
func (r *SearchRequest[R]) Rows(ctx context.Context) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		if !r.doIter {
			yield(zero, ErrAlreadyQueried)
			return
		}
		if err := r.start(ctx); err != nil {
			if !abandoned(ctx, err) {
				r.doIter = false
			}
			yield(zero, err)
			return
		}

		for r.doIter {
			raw := r.pending
			r.pending = nil
			if len(raw) == 0 {
				var err error
				if raw, err = r.stream.Fetch(ctx); err != nil {
					if !abandoned(ctx, err) {
						r.doIter = false
					}
					yield(zero, err)
					return
				}
			}
			if len(raw) == 0 {
				if !r.stream.Done() {
					continue
				}
				r.doIter = false
				if err := r.handleMeta(); err != nil {
					yield(zero, err)
				}
				return
			}
			for i, hit := range raw {
				row, err := r.rowFactory(hit)
				if !yield(row, err) {
					r.pending = raw[i+1:]
					return
				}
			}
		}
	}
}

func (r *SearchRequest[R]) handleMeta() error {
	r.metaReceived = true
	meta := r.stream.Value()
	if !gjson.ValidBytes(meta) {
		return nil
	}
	errs := gjson.GetBytes(meta, "errors")
	if !errs.Exists() {
		return nil
	}
	se := &SearchError{Raw: json.RawMessage(errs.Raw)}
	if errs.IsArray() || errs.IsObject() {
		errs.ForEach(func(key, value gjson.Result) bool {
			if errs.IsObject() {
				se.Errors = append(se.Errors, key.String()+": "+value.String())
			} else {
				se.Errors = append(se.Errors, value.String())
			}
			return true
		})
	} else {
		se.Errors = append(se.Errors, errs.String())
	}
	Logger.Warningf("search failed: %s", se.Error())
	return se
}

// Execute collects all rows. The first error aborts.
func (r *SearchRequest[R]) Execute(ctx context.Context) ([]R, error) {
	var rows []R
	for row, err := range r.Rows(ctx) {
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SingleResult returns the first row and drains the rest so that the
// metadata becomes available
func (r *SearchRequest[R]) SingleResult(ctx context.Context) (R, error) {
	var zero R
	rows, err := r.Execute(ctx)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, ErrNoRows
	}
	return rows[0], nil
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

func (r *SearchRequest[R]) metaResult() (gjson.Result, error) {
	if !r.metaReceived {
		return gjson.Result{}, ErrMetaNotReady
	}
	res := gjson.ParseBytes(r.stream.Value())
	if !res.IsObject() {
		return gjson.Result{}, nil
	}
	return res, nil
}

// Meta returns the metadata object, empty if the server did not send JSON
func (r *SearchRequest[R]) Meta() (map[string]any, error) {
	res, err := r.metaResult()
	if err != nil {
		return nil, err
	}
	if m, ok := res.Value().(map[string]any); ok {
		return m, nil
	}
	return map[string]any{}, nil
}

func (r *SearchRequest[R]) TotalHits() (uint64, error) {
	res, err := r.metaResult()
	return res.Get("total_hits").Uint(), err
}

// Took returns the server side execution time, reported in nanoseconds
func (r *SearchRequest[R]) Took() (time.Duration, error) {
	res, err := r.metaResult()
	return time.Duration(res.Get("took").Int()), err
}

func (r *SearchRequest[R]) MaxScore() (float64, error) {
	res, err := r.metaResult()
	return res.Get("max_score").Float(), err
}

// Facets returns the facet results keyed by facet name
func (r *SearchRequest[R]) Facets() (map[string]any, error) {
	res, err := r.metaResult()
	if err != nil {
		return nil, err
	}
	if m, ok := res.Get("facets").Value().(map[string]any); ok {
		return m, nil
	}
	return map[string]any{}, nil
}

// Raw returns the underlying stream, nil before the first iteration
func (r *SearchRequest[R]) Raw() Stream { return r.stream }
