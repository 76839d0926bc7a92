package search

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is returned when MakeSearchBody gets neither a Query nor a string
var ErrInvalidQuery = errors.New("search: query must be a Query or a string")

// MakeSearchBody builds the request body for index. A string query is wrapped
// in a StringQuery, params may be nil. The body shares no maps with query or
// params, editing it leaves them unchanged.
func MakeSearchBody(index string, query any, params *Params) (map[string]any, error) {
	var q Query
	switch v := query.(type) {
	case Query:
		q = v
	case string:
		q = NewStringQuery(v)
	default:
		return nil, fmt.Errorf("%w, got %T", ErrInvalidQuery, query)
	}

	body := map[string]any{"query": copyMap(q.Encodable())}
	if params != nil {
		for k, v := range params.Encodable() {
			body[k] = v
		}
	}
	body["indexName"] = index
	return body, nil
}
