package client

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/lib/future"
	"github.com/ValentinKolb/dDoc/lib/subdoc"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/samber/lo"
)

// --------------------------------------------------------------------------
// Results
// --------------------------------------------------------------------------

// GetResult is the outcome of Get
type GetResult struct {
	Key   string
	Value []byte
	Cas   uint64
}

// Content decodes the document into v
func (r *GetResult) Content(v any) error {
	return json.Unmarshal(r.Value, v)
}

// MutationResult is the outcome of Upsert and Remove
type MutationResult struct {
	Key string
	Cas uint64
}

// --------------------------------------------------------------------------
// Document Operations
// --------------------------------------------------------------------------

// Get fetches a document
func (b *Bucket) Get(key string) *future.Future[*GetResult] {
	return schedule[*GetResult](b, common.NewGetRequest(key), func(msg *common.Message) (any, error) {
		return &GetResult{Key: key, Value: msg.Value, Cas: msg.Cas}, nil
	})
}

// Upsert stores value under key. Values other than []byte and
// json.RawMessage are encoded as JSON. A non zero cas requires the
// document to exist with that cas.
func (b *Bucket) Upsert(key string, value any, cas uint64) *future.Future[*MutationResult] {
	doc, err := encodeDocument(value)
	if err != nil {
		return future.Rejected[*MutationResult](err)
	}
	return schedule[*MutationResult](b, common.NewUpsertRequest(key, doc, cas), mutationResult(key))
}

// Remove deletes a document. A non zero cas must match the stored one.
func (b *Bucket) Remove(key string, cas uint64) *future.Future[*MutationResult] {
	return schedule[*MutationResult](b, common.NewRemoveRequest(key, cas), mutationResult(key))
}

// --------------------------------------------------------------------------
// Sub-Document Operations
// --------------------------------------------------------------------------

// LookupIn reads several paths of a document. The outcome of each spec is
// reported in the result items.
func (b *Bucket) LookupIn(key string, specs ...subdoc.Spec) *future.Future[*subdoc.Result] {
	if invalid := lo.Filter(specs, func(s subdoc.Spec, _ int) bool { return !s.Op().IsLookup() }); len(invalid) > 0 {
		return future.Rejected[*subdoc.Result](fmt.Errorf("%w: got %s", ErrLookupSpec, invalid[0]))
	}
	msg, err := common.NewLookupInRequest(key, specs)
	if err != nil {
		return future.Rejected[*subdoc.Result](err)
	}
	return schedule[*subdoc.Result](b, msg, subdocResult(key))
}

// MutateIn applies mutations to a document atomically
func (b *Bucket) MutateIn(key string, cas uint64, specs ...subdoc.Spec) *future.Future[*subdoc.Result] {
	if invalid := lo.Filter(specs, func(s subdoc.Spec, _ int) bool { return s.Op().IsLookup() }); len(invalid) > 0 {
		return future.Rejected[*subdoc.Result](fmt.Errorf("%w: got %s", ErrMutationSpec, invalid[0]))
	}
	msg, err := common.NewMutateInRequest(key, specs, cas)
	if err != nil {
		return future.Rejected[*subdoc.Result](err)
	}
	return schedule[*subdoc.Result](b, msg, subdocResult(key))
}

// --------------------------------------------------------------------------
// Decoders
// --------------------------------------------------------------------------

func mutationResult(key string) func(msg *common.Message) (any, error) {
	return func(msg *common.Message) (any, error) {
		return &MutationResult{Key: key, Cas: msg.Cas}, nil
	}
}

func subdocResult(key string) func(msg *common.Message) (any, error) {
	return func(msg *common.Message) (any, error) {
		return msg.SubdocResult(key)
	}
}

func encodeDocument(value any) ([]byte, error) {
	var doc []byte
	switch v := value.(type) {
	case []byte:
		doc = v
	case json.RawMessage:
		doc = v
	default:
		var err error
		if doc, err = json.Marshal(value); err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
	}
	if !json.Valid(doc) {
		return nil, docstore.NewError(docstore.RetCDocNotJSON, "document is not valid JSON")
	}
	return doc, nil
}
