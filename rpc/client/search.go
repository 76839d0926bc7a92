package client

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/search"
	"github.com/ValentinKolb/dDoc/rpc/engine"
)

// ExecuteSearch sends body and returns the stream the hits are delivered to.
// It implements search.Executor.
func (b *Bucket) ExecuteSearch(ctx context.Context, body []byte) (search.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stream := engine.NewRowStream()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, &engine.TransportError{Err: engine.ErrClosed}
	}
	if err := b.loop.Post(func() { b.engine.Search(body, stream) }); err != nil {
		return nil, &engine.TransportError{Err: err}
	}
	return stream, nil
}

// SearchQuery prepares a search on index. query is a search.Query or a query
// string, params may be nil. Nothing is sent before the rows are iterated.
//
// Usage:
//
//	req, err := b.SearchQuery("people", search.NewMatchQuery("berlin").SetField("city"), nil)
//	if err != nil {
//		return err
//	}
//	for row, err := range req.Rows(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(row.ID, row.Score)
//	}
//	total, _ := req.TotalHits()
func (b *Bucket) SearchQuery(index string, query any, params *search.Params) (*search.SearchRequest[search.Row], error) {
	return SearchQueryAs[search.Row](b, index, query, params, nil)
}

// SearchQueryAs is SearchQuery with a custom row type. A nil rowFactory
// decodes every hit into R as JSON.
func SearchQueryAs[R any](b *Bucket, index string, query any, params *search.Params, rowFactory search.RowFactory[R]) (*search.SearchRequest[R], error) {
	body, err := search.MakeSearchBody(index, query, params)
	if err != nil {
		return nil, err
	}
	return search.NewSearchRequest[R](body, b, rowFactory)
}
