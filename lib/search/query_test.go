package search

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/samber/lo"
)

// assertJSON compares got with the JSON document want, ignoring key order and
// number types
func assertJSON(t *testing.T, got any, want string) {
	t.Helper()
	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var g, w any
	if err := json.Unmarshal(data, &g); err != nil {
		t.Fatalf("Unmarshal got failed: %v", err)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("Unmarshal want failed: %v", err)
	}
	if !reflect.DeepEqual(g, w) {
		t.Errorf("Expected %s, got %s", want, data)
	}
}

// TestFuzzyQueryBody tests the body of a fully configured fuzzy query
func TestFuzzyQueryBody(t *testing.T) {
	q := NewFuzzyQuery("someterm").
		SetBoost(1.5).
		SetFuzziness(12).
		SetPrefixLength(23).
		SetField("field")

	body, err := MakeSearchBody("someIndex", q, NewParams().SetExplain(true))
	if err != nil {
		t.Fatalf("MakeSearchBody failed: %v", err)
	}
	assertJSON(t, body, `{
		"query": {"term": "someterm", "boost": 1.5, "fuzziness": 12, "prefix_length": 23, "field": "field"},
		"indexName": "someIndex",
		"explain": true
	}`)

	if q.Term() != "someterm" || q.Fuzziness() != 12 || q.PrefixLength() != 23 || q.Boost() != 1.5 {
		t.Errorf("Getters returned wrong values: %v", q.Encodable())
	}
}

// TestStringQueryBody tests that a bare string becomes a query string query
func TestStringQueryBody(t *testing.T) {
	body, err := MakeSearchBody("ix", "q*ry", NewParams().SetLimit(10).SetExplain(true))
	if err != nil {
		t.Fatalf("MakeSearchBody failed: %v", err)
	}
	assertJSON(t, body, `{"query": {"query": "q*ry"}, "explain": true, "size": 10, "indexName": "ix"}`)

	body, err = MakeSearchBody("ix", NewStringQuery("q*ry").SetBoost(2), NewParams().SetLimit(10).SetExplain(true))
	if err != nil {
		t.Fatalf("MakeSearchBody failed: %v", err)
	}
	assertJSON(t, body, `{"query": {"query": "q*ry", "boost": 2.0}, "explain": true, "size": 10, "indexName": "ix"}`)
}

// TestMakeSearchBodyRejectsOtherTypes tests the query type check
func TestMakeSearchBodyRejectsOtherTypes(t *testing.T) {
	if _, err := MakeSearchBody("ix", 42, nil); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("Expected ErrInvalidQuery, got %v", err)
	}
	body, err := MakeSearchBody("ix", NewPrefixQuery("ab"), nil)
	if err != nil {
		t.Fatalf("MakeSearchBody failed: %v", err)
	}
	assertJSON(t, body, `{"query": {"prefix": "ab"}, "indexName": "ix"}`)
}

// TestSingleQueryKinds tests the term key of every single term query
func TestSingleQueryKinds(t *testing.T) {
	tests := map[string]struct {
		query    Query
		expected string
	}{
		"match":        {NewMatchQuery("bob").SetField("name").SetAnalyzer("en"), `{"match": "bob", "field": "name", "analyzer": "en"}`},
		"match_phrase": {NewMatchPhraseQuery("hello world").SetField("body"), `{"match_phrase": "hello world", "field": "body"}`},
		"prefix":       {NewPrefixQuery("pre").SetField("f"), `{"prefix": "pre", "field": "f"}`},
		"regexp":       {NewRegexQuery("a.*z"), `{"regexp": "a.*z"}`},
		"numeric":      {NewNumericRangeQuery(lo.ToPtr(1.0), nil).SetMinInclusive(true), `{"min": 1, "min_inclusive": true}`},
		"date":         {NewDateRangeQuery("", "2020-01-01").SetDateTimeParser("iso"), `{"end": "2020-01-01", "datetime_parser": "iso"}`},
		"raw":          {NewRawQuery(map[string]any{"match_all": map[string]any{}}), `{"match_all": {}}`},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assertJSON(t, tc.query.Encodable(), tc.expected)
		})
	}
}

// TestRangeGetters tests the open bound reporting of range queries
func TestRangeGetters(t *testing.T) {
	q := NewNumericRangeQuery(nil, lo.ToPtr(9.5))
	if _, ok := q.Min(); ok {
		t.Error("Min should be unset")
	}
	if v, ok := q.Max(); !ok || v != 9.5 {
		t.Errorf("Expected max 9.5, got %v (%v)", v, ok)
	}

	d := NewDateRangeQuery("2020-01-01", "2021-01-01").SetStartInclusive(true)
	if d.Start() != "2020-01-01" || d.End() != "2021-01-01" || !d.StartInclusive() || d.EndInclusive() {
		t.Errorf("Date getters returned wrong values: %v", d.Encodable())
	}
}

// TestSetOption tests option assignment by name
func TestSetOption(t *testing.T) {
	q := NewMatchQuery("x")
	if err := q.ApplyOptions(map[string]any{"fuzziness": "3", "field": "f", "boost": 2}); err != nil {
		t.Fatalf("ApplyOptions failed: %v", err)
	}
	if q.Fuzziness() != 3 || q.Field() != "f" || q.Boost() != 2 {
		t.Errorf("Options not applied: %v", q.Encodable())
	}

	if err := q.SetOption("not_there", 1); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("Expected ErrInvalidOption, got %v", err)
	}
	if err := q.SetOption("fuzziness", "many"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}

	// nil removes the option
	if err := q.SetOption("field", nil); err != nil {
		t.Fatalf("SetOption failed: %v", err)
	}
	if _, ok := q.Encodable()["field"]; ok {
		t.Error("field should have been removed")
	}
}

// TestParamsOptions tests the conversions of the params options
func TestParamsOptions(t *testing.T) {
	ps, err := ParamsFromOptions(map[string]any{
		"limit":   "5",
		"skip":    10,
		"timeout": 1.5,
		"fields":  []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("ParamsFromOptions failed: %v", err)
	}
	assertJSON(t, ps.Encodable(), `{"size": 5, "from": 10, "ctl": {"timeout": 1500}, "fields": ["a", "b"]}`)

	if ps.Timeout() != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s timeout, got %v", ps.Timeout())
	}

	ps.SetTimeout(2 * time.Second)
	if ps.Timeout() != 2*time.Second {
		t.Errorf("Expected 2s timeout, got %v", ps.Timeout())
	}

	if _, err := ParamsFromOptions(map[string]any{"highlight_style": "xml"}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue for bad highlight, got %v", err)
	}
	if _, err := ParamsFromOptions(map[string]any{"size": 1}); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("Expected ErrInvalidOption, got %v", err)
	}
	if _, err := ParamsFromOptions(map[string]any{"facets": 1}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue for facets, got %v", err)
	}
}

// TestHighlight tests the nested highlight object
func TestHighlight(t *testing.T) {
	ps := NewParams()
	if err := ps.SetHighlight(HighlightANSI, "title"); err != nil {
		t.Fatalf("SetHighlight failed: %v", err)
	}
	assertJSON(t, ps.Encodable(), `{"highlight": {"style": "ansi", "fields": ["title"]}}`)

	if err := ps.SetHighlight(HighlightStyle("bold")); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}
	if ps.HighlightStyle() != HighlightANSI {
		t.Errorf("Failed call should keep the old style, got %q", ps.HighlightStyle())
	}
}

// TestCompoundQueries tests conjunction and disjunction encoding
func TestCompoundQueries(t *testing.T) {
	c := NewConjunctionQuery(NewPrefixQuery("a"), NewStringQuery("b"))
	assertJSON(t, c.Encodable(), `{"conjuncts": [{"prefix": "a"}, {"query": "b"}]}`)

	empty := NewConjunctionQuery().SetBoost(3)
	assertJSON(t, empty.Encodable(), `{"boost": 3}`)

	d := NewDisjunctionQuery(NewPrefixQuery("x")).SetMin(1)
	assertJSON(t, d.Encodable(), `{"min": 1, "disjuncts": [{"prefix": "x"}]}`)

	// children are encoded on every call
	d.Or(NewPrefixQuery("y"))
	assertJSON(t, d.Encodable(), `{"min": 1, "disjuncts": [{"prefix": "x"}, {"prefix": "y"}]}`)
	if _, ok := d.json["disjuncts"]; ok {
		t.Error("Encodable must not write children into the node")
	}
}

// TestBooleanQuery tests the clause wrapping of boolean queries
func TestBooleanQuery(t *testing.T) {
	must := NewPrefixQuery("m")
	should := NewDisjunctionQuery(NewPrefixQuery("s")).SetMin(1)

	b := NewBooleanQuery().
		SetMust(must).
		SetShould(should).
		SetMustNot(NewPrefixQuery("n1"), NewPrefixQuery("n2"))

	if b.Should() != should {
		t.Error("A DisjunctionQuery should be used as is")
	}
	if len(b.Must().Conjuncts()) != 1 || b.Must().Conjuncts()[0] != Query(must) {
		t.Error("A single query should be wrapped in a ConjunctionQuery")
	}
	assertJSON(t, b.Encodable(), `{
		"must": {"conjuncts": [{"prefix": "m"}]},
		"should": {"min": 1, "disjuncts": [{"prefix": "s"}]},
		"must_not": {"disjuncts": [{"prefix": "n1"}, {"prefix": "n2"}]}
	}`)

	b.SetShould().SetMustNot()
	assertJSON(t, b.Encodable(), `{"must": {"conjuncts": [{"prefix": "m"}]}}`)
}

// TestRawRoundTrip tests that wrapping an encoded query in a RawQuery keeps it intact
func TestRawRoundTrip(t *testing.T) {
	queries := []Query{
		NewFuzzyQuery("t").SetFuzziness(2),
		NewNumericRangeQuery(lo.ToPtr(1.0), lo.ToPtr(2.0)).SetField("n"),
		NewBooleanQuery().SetMust(NewMatchQuery("a"), NewMatchQuery("b")),
		NewDisjunctionQuery(NewRegexQuery("r")).SetBoost(0.5),
	}
	for _, q := range queries {
		enc := q.Encodable()
		if got := NewRawQuery(enc).Encodable(); !reflect.DeepEqual(got, enc) {
			t.Errorf("Expected %v, got %v", enc, got)
		}
	}
}

// TestSearchBodyIsDetached tests that editing a body leaves its query, params and facets unchanged
func TestSearchBodyIsDetached(t *testing.T) {
	q := NewMatchQuery("berlin").SetField("city")
	ps := NewParams().SetTimeout(2 * time.Second).SetFields("name")
	if err := ps.SetHighlight(HighlightHTML, "name"); err != nil {
		t.Fatalf("SetHighlight failed: %v", err)
	}
	if err := ps.AddFacet("tags", NewTermFacet("tags", 3)); err != nil {
		t.Fatalf("AddFacet failed: %v", err)
	}

	body, err := MakeSearchBody("people", q, ps)
	if err != nil {
		t.Fatalf("MakeSearchBody failed: %v", err)
	}
	body["query"].(map[string]any)["match"] = "paris"
	body["ctl"].(map[string]any)["timeout"] = 1
	body["highlight"].(map[string]any)["style"] = "ansi"
	body["fields"].([]string)[0] = "age"
	body["facets"].(map[string]any)["tags"].(map[string]any)["size"] = 99

	if q.Match() != "berlin" {
		t.Errorf("Query changed through the body: %q", q.Match())
	}
	if ps.Timeout() != 2*time.Second {
		t.Errorf("Timeout changed through the body: %s", ps.Timeout())
	}
	if ps.HighlightStyle() != HighlightHTML {
		t.Errorf("Highlight style changed through the body: %q", ps.HighlightStyle())
	}
	if ps.Fields()[0] != "name" {
		t.Errorf("Fields changed through the body: %v", ps.Fields())
	}
	f, _ := ps.Facets().Get("tags")
	if size := f.(*TermFacet).Size(); size != 3 {
		t.Errorf("Facet size changed through the body: %d", size)
	}
}
