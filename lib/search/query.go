package search

// Query is a node of the search DSL
type Query interface {
	// Encodable returns the JSON object sent to the server.
	// Single-term queries return their live backing map, MakeSearchBody
	// works on a copy.
	Encodable() map[string]any
	SetOption(name string, value any) error
	ApplyOptions(opts map[string]any) error
}

// queryBase carries the JSON storage and the boost option shared by all queries.
// T is the concrete query type so that chained setters keep it.
type queryBase[T any] struct {
	node
	self T
}

func (q *queryBase[T]) Encodable() map[string]any { return q.json }

// Boost returns the score multiplier, 0 if unset
func (q *queryBase[T]) Boost() float64 { return q.getFloat("boost") }

// SetBoost sets the score multiplier
func (q *queryBase[T]) SetBoost(boost float64) T {
	q.set("boost", boost)
	return q.self
}

func boostProps(extra propTable) propTable {
	out := propTable{"boost": p(toFloat, "boost")}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

var (
	stringQueryProps = boostProps(propTable{
		"query": p(toString, "query"),
	})
	matchQueryProps = boostProps(propTable{
		"match":         p(toString, "match"),
		"prefix_length": p(toInt, "prefix_length"),
		"fuzziness":     p(toInt, "fuzziness"),
		"field":         p(toString, "field"),
		"analyzer":      p(toString, "analyzer"),
	})
	fuzzyQueryProps = boostProps(propTable{
		"term":          p(toString, "term"),
		"fuzziness":     p(toInt, "fuzziness"),
		"prefix_length": p(toInt, "prefix_length"),
		"field":         p(toString, "field"),
	})
	matchPhraseQueryProps = boostProps(propTable{
		"match_phrase": p(toString, "match_phrase"),
		"field":        p(toString, "field"),
		"analyzer":     p(toString, "analyzer"),
	})
	prefixQueryProps = boostProps(propTable{
		"prefix": p(toString, "prefix"),
		"field":  p(toString, "field"),
	})
	regexQueryProps = boostProps(propTable{
		"regexp": p(toString, "regexp"),
		"field":  p(toString, "field"),
	})
	numericRangeQueryProps = boostProps(propTable{
		"min":           p(toFloat, "min"),
		"max":           p(toFloat, "max"),
		"min_inclusive": p(toBool, "min_inclusive"),
		"max_inclusive": p(toBool, "max_inclusive"),
		"field":         p(toString, "field"),
	})
	dateRangeQueryProps = boostProps(propTable{
		"start":           p(toString, "start"),
		"end":             p(toString, "end"),
		"start_inclusive": p(toBool, "start_inclusive"),
		"end_inclusive":   p(toBool, "end_inclusive"),
		"field":           p(toString, "field"),
		"datetime_parser": p(toString, "datetime_parser"),
	})
)

// --------------------------------------------------------------------------
// Raw
// --------------------------------------------------------------------------

// RawQuery passes a caller supplied JSON object through unchanged
type RawQuery struct {
	queryBase[*RawQuery]
}

// NewRawQuery wraps obj. Encodable returns obj itself.
func NewRawQuery(obj map[string]any) *RawQuery {
	if obj == nil {
		obj = make(map[string]any)
	}
	q := &RawQuery{}
	q.node = newNode("RawQuery", boostProps(nil))
	q.json = obj
	q.self = q
	return q
}

// --------------------------------------------------------------------------
// Single term queries
// --------------------------------------------------------------------------

// StringQuery uses the query string syntax ("+name:bob -age:>30")
type StringQuery struct {
	queryBase[*StringQuery]
}

// NewStringQuery creates a query string query
func NewStringQuery(query string) *StringQuery {
	q := &StringQuery{}
	q.node = newNode("StringQuery", stringQueryProps)
	q.self = q
	q.set("query", query)
	return q
}

func (q *StringQuery) Query() string { return q.getString("query") }

// MatchQuery analyzes the input and matches the resulting terms
type MatchQuery struct {
	queryBase[*MatchQuery]
}

// NewMatchQuery creates a match query
func NewMatchQuery(match string) *MatchQuery {
	q := &MatchQuery{}
	q.node = newNode("MatchQuery", matchQueryProps)
	q.self = q
	q.set("match", match)
	return q
}

func (q *MatchQuery) Match() string { return q.getString("match") }
func (q *MatchQuery) PrefixLength() int { return q.getInt("prefix_length") }
func (q *MatchQuery) Fuzziness() int { return q.getInt("fuzziness") }
func (q *MatchQuery) Field() string { return q.getString("field") }
func (q *MatchQuery) Analyzer() string { return q.getString("analyzer") }

func (q *MatchQuery) SetPrefixLength(n int) *MatchQuery { q.set("prefix_length", n); return q }
func (q *MatchQuery) SetFuzziness(n int) *MatchQuery { q.set("fuzziness", n); return q }
func (q *MatchQuery) SetField(f string) *MatchQuery { q.set("field", f); return q }
func (q *MatchQuery) SetAnalyzer(a string) *MatchQuery { q.set("analyzer", a); return q }

// FuzzyQuery matches a term within an edit distance
type FuzzyQuery struct {
	queryBase[*FuzzyQuery]
}

// NewFuzzyQuery creates a fuzzy term query
func NewFuzzyQuery(term string) *FuzzyQuery {
	q := &FuzzyQuery{}
	q.node = newNode("FuzzyQuery", fuzzyQueryProps)
	q.self = q
	q.set("term", term)
	return q
}

func (q *FuzzyQuery) Term() string { return q.getString("term") }
func (q *FuzzyQuery) Fuzziness() int { return q.getInt("fuzziness") }
func (q *FuzzyQuery) PrefixLength() int { return q.getInt("prefix_length") }
func (q *FuzzyQuery) Field() string { return q.getString("field") }

func (q *FuzzyQuery) SetFuzziness(n int) *FuzzyQuery { q.set("fuzziness", n); return q }
func (q *FuzzyQuery) SetPrefixLength(n int) *FuzzyQuery { q.set("prefix_length", n); return q }
func (q *FuzzyQuery) SetField(f string) *FuzzyQuery { q.set("field", f); return q }

// MatchPhraseQuery matches the analyzed terms in order
type MatchPhraseQuery struct {
	queryBase[*MatchPhraseQuery]
}

// NewMatchPhraseQuery creates a phrase query
func NewMatchPhraseQuery(phrase string) *MatchPhraseQuery {
	q := &MatchPhraseQuery{}
	q.node = newNode("MatchPhraseQuery", matchPhraseQueryProps)
	q.self = q
	q.set("match_phrase", phrase)
	return q
}

func (q *MatchPhraseQuery) MatchPhrase() string { return q.getString("match_phrase") }
func (q *MatchPhraseQuery) Field() string { return q.getString("field") }
func (q *MatchPhraseQuery) Analyzer() string { return q.getString("analyzer") }

func (q *MatchPhraseQuery) SetField(f string) *MatchPhraseQuery { q.set("field", f); return q }
func (q *MatchPhraseQuery) SetAnalyzer(a string) *MatchPhraseQuery { q.set("analyzer", a); return q }

// PrefixQuery matches terms starting with a prefix
type PrefixQuery struct {
	queryBase[*PrefixQuery]
}

// NewPrefixQuery creates a prefix query
func NewPrefixQuery(prefix string) *PrefixQuery {
	q := &PrefixQuery{}
	q.node = newNode("PrefixQuery", prefixQueryProps)
	q.self = q
	q.set("prefix", prefix)
	return q
}

func (q *PrefixQuery) Prefix() string { return q.getString("prefix") }
func (q *PrefixQuery) Field() string { return q.getString("field") }

func (q *PrefixQuery) SetField(f string) *PrefixQuery { q.set("field", f); return q }

// RegexQuery matches terms against a regular expression
type RegexQuery struct {
	queryBase[*RegexQuery]
}

// NewRegexQuery creates a regular expression query
func NewRegexQuery(regexp string) *RegexQuery {
	q := &RegexQuery{}
	q.node = newNode("RegexQuery", regexQueryProps)
	q.self = q
	q.set("regexp", regexp)
	return q
}

func (q *RegexQuery) Regex() string { return q.getString("regexp") }
func (q *RegexQuery) Field() string { return q.getString("field") }

func (q *RegexQuery) SetField(f string) *RegexQuery { q.set("field", f); return q }

// --------------------------------------------------------------------------
// Range queries
// --------------------------------------------------------------------------

// NumericRangeQuery matches numbers between min and max
type NumericRangeQuery struct {
	queryBase[*NumericRangeQuery]
}

// NewNumericRangeQuery creates a numeric range, a nil bound is open
func NewNumericRangeQuery(min, max *float64) *NumericRangeQuery {
	q := &NumericRangeQuery{}
	q.node = newNode("NumericRangeQuery", numericRangeQueryProps)
	q.self = q
	if min != nil {
		q.set("min", *min)
	}
	if max != nil {
		q.set("max", *max)
	}
	return q
}

// Min returns the lower bound and whether it is set
func (q *NumericRangeQuery) Min() (float64, bool) { return q.getFloat("min"), q.Has("min") }

// Max returns the upper bound and whether it is set
func (q *NumericRangeQuery) Max() (float64, bool) { return q.getFloat("max"), q.Has("max") }

func (q *NumericRangeQuery) MinInclusive() bool { return q.getBool("min_inclusive") }
func (q *NumericRangeQuery) MaxInclusive() bool { return q.getBool("max_inclusive") }
func (q *NumericRangeQuery) Field() string { return q.getString("field") }

func (q *NumericRangeQuery) SetMinInclusive(b bool) *NumericRangeQuery {
	q.set("min_inclusive", b)
	return q
}
func (q *NumericRangeQuery) SetMaxInclusive(b bool) *NumericRangeQuery {
	q.set("max_inclusive", b)
	return q
}
func (q *NumericRangeQuery) SetField(f string) *NumericRangeQuery { q.set("field", f); return q }

// DateRangeQuery matches dates between start and end
type DateRangeQuery struct {
	queryBase[*DateRangeQuery]
}

// NewDateRangeQuery creates a date range, an empty bound is open
func NewDateRangeQuery(start, end string) *DateRangeQuery {
	q := &DateRangeQuery{}
	q.node = newNode("DateRangeQuery", dateRangeQueryProps)
	q.self = q
	if start != "" {
		q.set("start", start)
	}
	if end != "" {
		q.set("end", end)
	}
	return q
}

func (q *DateRangeQuery) Start() string { return q.getString("start") }
func (q *DateRangeQuery) End() string { return q.getString("end") }
func (q *DateRangeQuery) StartInclusive() bool { return q.getBool("start_inclusive") }
func (q *DateRangeQuery) EndInclusive() bool { return q.getBool("end_inclusive") }
func (q *DateRangeQuery) Field() string { return q.getString("field") }
func (q *DateRangeQuery) DateTimeParser() string { return q.getString("datetime_parser") }

func (q *DateRangeQuery) SetStartInclusive(b bool) *DateRangeQuery {
	q.set("start_inclusive", b)
	return q
}
func (q *DateRangeQuery) SetEndInclusive(b bool) *DateRangeQuery {
	q.set("end_inclusive", b)
	return q
}
func (q *DateRangeQuery) SetField(f string) *DateRangeQuery { q.set("field", f); return q }
func (q *DateRangeQuery) SetDateTimeParser(parser string) *DateRangeQuery {
	q.set("datetime_parser", parser)
	return q
}
