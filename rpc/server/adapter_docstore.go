package server

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/lib/subdoc"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/samber/lo"
)

// NewDocStoreServerAdapter creates the adapter for document, sub-document and
// search requests. Search hits are sent in batches of batchSize rows.
func NewDocStoreServerAdapter(batchSize int) IRPCServerAdapter {
	if batchSize <= 0 {
		batchSize = common.DefaultSearchBatchSize
	}
	return &docStoreServerAdapterImpl{batchSize: batchSize}
}

type docStoreServerAdapterImpl struct {
	batchSize int
}

func (adapter *docStoreServerAdapterImpl) Handle(req *common.Message, store docstore.IDocStore, send SendFunc) {
	// Check for nil store
	if store == nil {
		_ = send(common.NewErrorResponse("handler: store is nil"))
		return
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTDocGet:
		val, cas, err := store.Get(req.Key)
		_ = send(common.NewGetResponse(val, cas, err))
	case common.MsgTDocUpsert:
		cas, err := store.Upsert(req.Key, req.Value, req.Cas)
		_ = send(common.NewUpsertResponse(cas, err))
	case common.MsgTDocRemove:
		err := store.Remove(req.Key, req.Cas)
		_ = send(common.NewRemoveResponse(err))
	case common.MsgTSubLookupIn:
		specs, err := subdoc.Decode(req.Specs)
		if err != nil {
			_ = send(common.NewSubdocResponse(req.MsgType, nil, docstore.NewError(docstore.RetCInvalidOperation, err.Error())))
			return
		}
		res, err := store.LookupIn(req.Key, specs)
		_ = send(common.NewSubdocResponse(req.MsgType, res, err))
	case common.MsgTSubMutateIn:
		specs, err := subdoc.Decode(req.Specs)
		if err != nil {
			_ = send(common.NewSubdocResponse(req.MsgType, nil, docstore.NewError(docstore.RetCInvalidOperation, err.Error())))
			return
		}
		res, err := store.MutateIn(req.Key, specs, req.Cas)
		_ = send(common.NewSubdocResponse(req.MsgType, res, err))
	case common.MsgTSearch:
		adapter.search(req.Value, store, send)
	default:
		_ = send(common.NewErrorResponse(
			fmt.Sprintf("RPC DocStoreAdapter - Unsupported message type: %s", req.MsgType),
		))
	}
}

// search streams the hits in batches followed by the frame carrying the metadata.
// A failed write ends the stream, the client fails the request once the connection drops.
func (adapter *docStoreServerAdapterImpl) search(body []byte, store docstore.IDocStore, send SendFunc) {
	hits, meta := store.Search(body)
	for _, batch := range lo.Chunk(hits, adapter.batchSize) {
		rows := lo.Map(batch, func(hit json.RawMessage, _ int) []byte { return hit })
		if err := send(common.NewSearchRowsResponse(rows)); err != nil {
			Logger.Warningf("search stream aborted: %v", err)
			return
		}
	}
	_ = send(common.NewSearchDoneResponse(meta))
}
