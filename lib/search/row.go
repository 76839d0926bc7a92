package search

import "encoding/json"

// Row is the default decoding of one search hit
type Row struct {
	Index       string                      `json:"index"`
	ID          string                      `json:"id"`
	Score       float64                     `json:"score"`
	Fields      map[string]any              `json:"fields,omitempty"`
	Fragments   map[string][]string         `json:"fragments,omitempty"`
	Locations   map[string]map[string][]any `json:"locations,omitempty"`
	Explanation json.RawMessage             `json:"explanation,omitempty"`
	Sort        []any                       `json:"sort,omitempty"`
}

// RowFactory turns the raw JSON of a hit into a row value
type RowFactory[R any] func(raw json.RawMessage) (R, error)

// JSONRows decodes each hit into R with encoding/json
func JSONRows[R any]() RowFactory[R] {
	return func(raw json.RawMessage) (R, error) {
		var r R
		err := json.Unmarshal(raw, &r)
		return r, err
	}
}

// RawRows passes each hit through undecoded
func RawRows(raw json.RawMessage) (json.RawMessage, error) {
	return raw, nil
}
