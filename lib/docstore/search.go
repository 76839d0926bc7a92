package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// DefaultSearchSize is the number of hits returned when the body sets no size
const DefaultSearchSize = 10

type searchHit struct {
	Index       string         `json:"index"`
	ID          string         `json:"id"`
	Score       float64        `json:"score"`
	Fields      map[string]any `json:"fields,omitempty"`
	Explanation map[string]any `json:"explanation,omitempty"`
}

type scored struct {
	id    string
	score float64
	doc   gjson.Result
}

type searchStatus struct {
	Total      int               `json:"total"`
	Failed     int               `json:"failed"`
	Successful int               `json:"successful"`
	Errors     map[string]string `json:"errors,omitempty"`
}

type searchMeta struct {
	Status    searchStatus      `json:"status"`
	Errors    map[string]string `json:"errors,omitempty"`
	TotalHits int               `json:"total_hits"`
	MaxScore  float64           `json:"max_score"`
	Took      int64             `json:"took"`
	Facets    map[string]any    `json:"facets"`
}

// runSearch evaluates body against the documents visited by rangeFn
func runSearch(store string, body []byte, rangeFn func(func(string, document) bool)) ([]json.RawMessage, []byte) {
	start := time.Now()
	meta := searchMeta{Status: searchStatus{Total: 1}}

	fail := func(err error) ([]json.RawMessage, []byte) {
		Logger.Warningf("search in %s failed: %v", store, err)
		meta.Status.Failed = 1
		meta.Status.Errors = map[string]string{store: err.Error()}
		meta.Errors = meta.Status.Errors
		meta.Took = time.Since(start).Nanoseconds()
		data, _ := json.Marshal(meta)
		return nil, data
	}

	if !gjson.ValidBytes(body) {
		return fail(fmt.Errorf("search body is not valid JSON"))
	}
	req := gjson.ParseBytes(body)
	index := req.Get("indexName").String()
	if index == "" {
		index = store
	}

	m, err := compile(req.Get("query"))
	if err != nil {
		return fail(err)
	}
	size, from := DefaultSearchSize, 0
	if v := req.Get("size"); v.Exists() {
		size = int(v.Int())
	}
	if v := req.Get("from"); v.Exists() {
		from = int(v.Int())
	}
	if size < 0 || from < 0 {
		return fail(fmt.Errorf("size and from must not be negative"))
	}
	facets, err := compileFacets(req.Get("facets"))
	if err != nil {
		return fail(err)
	}

	var matches []scored
	rangeFn(func(key string, d document) bool {
		doc := gjson.ParseBytes(d.value)
		if ok, score := m.match(doc); ok {
			matches = append(matches, scored{id: key, score: score, doc: doc})
		}
		return true
	})
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].id < matches[j].id
	})

	meta.Status.Successful = 1
	meta.TotalHits = len(matches)
	if len(matches) > 0 {
		meta.MaxScore = matches[0].score
	}
	meta.Facets = facets.compute(matches)

	fields := lo.Map(req.Get("fields").Array(), func(v gjson.Result, _ int) string { return v.String() })
	explain := req.Get("explain").Bool()

	var hits []json.RawMessage
	for _, sc := range pageOf(matches, from, size) {
		h := searchHit{Index: index, ID: sc.id, Score: sc.score, Fields: selectFields(sc.doc, fields)}
		if explain {
			h.Explanation = map[string]any{"value": sc.score, "message": "sum of matching clause boosts"}
		}
		data, err := json.Marshal(h)
		if err != nil {
			return fail(fmt.Errorf("encode hit %q: %w", sc.id, err))
		}
		hits = append(hits, data)
	}

	meta.Took = time.Since(start).Nanoseconds()
	data, err := json.Marshal(meta)
	if err != nil {
		return fail(err)
	}
	return hits, data
}

func pageOf(matches []scored, from, size int) []scored {
	if from >= len(matches) {
		return nil
	}
	end := min(from+size, len(matches))
	return matches[from:end]
}

// selectFields returns the requested stored fields, "*" selects all top level fields
func selectFields(doc gjson.Result, fields []string) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any)
	if lo.Contains(fields, "*") {
		doc.ForEach(func(key, value gjson.Result) bool {
			out[key.String()] = value.Value()
			return true
		})
		return out
	}
	for _, f := range fields {
		if v := doc.Get(f); v.Exists() {
			out[f] = v.Value()
		}
	}
	return out
}
