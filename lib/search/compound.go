package search

import "github.com/samber/lo"

func encodeAll(qs []Query) []any {
	return lo.Map(qs, func(q Query, _ int) any { return q.Encodable() })
}

// --------------------------------------------------------------------------
// Conjunction / Disjunction
// --------------------------------------------------------------------------

// ConjunctionQuery matches documents matching all of its children
type ConjunctionQuery struct {
	queryBase[*ConjunctionQuery]
	conjuncts []Query
}

// NewConjunctionQuery combines queries with AND
func NewConjunctionQuery(queries ...Query) *ConjunctionQuery {
	q := &ConjunctionQuery{conjuncts: queries}
	q.node = newNode("ConjunctionQuery", boostProps(nil))
	q.self = q
	return q
}

// Conjuncts returns the child queries
func (q *ConjunctionQuery) Conjuncts() []Query { return q.conjuncts }

// And appends child queries
func (q *ConjunctionQuery) And(queries ...Query) *ConjunctionQuery {
	q.conjuncts = append(q.conjuncts, queries...)
	return q
}

// Encodable returns a fresh object, children are encoded on every call
func (q *ConjunctionQuery) Encodable() map[string]any {
	js := copyMap(q.json)
	if len(q.conjuncts) > 0 {
		js["conjuncts"] = encodeAll(q.conjuncts)
	}
	return js
}

// DisjunctionQuery matches documents matching at least Min of its children
type DisjunctionQuery struct {
	queryBase[*DisjunctionQuery]
	disjuncts []Query
}

// NewDisjunctionQuery combines queries with OR
func NewDisjunctionQuery(queries ...Query) *DisjunctionQuery {
	q := &DisjunctionQuery{disjuncts: queries}
	q.node = newNode("DisjunctionQuery", boostProps(propTable{"min": p(toInt, "min")}))
	q.self = q
	return q
}

// Disjuncts returns the child queries
func (q *DisjunctionQuery) Disjuncts() []Query { return q.disjuncts }

// Or appends child queries
func (q *DisjunctionQuery) Or(queries ...Query) *DisjunctionQuery {
	q.disjuncts = append(q.disjuncts, queries...)
	return q
}

func (q *DisjunctionQuery) Min() int { return q.getInt("min") }

// SetMin sets how many children must match
func (q *DisjunctionQuery) SetMin(n int) *DisjunctionQuery {
	q.set("min", n)
	return q
}

func (q *DisjunctionQuery) Encodable() map[string]any {
	js := copyMap(q.json)
	if len(q.disjuncts) > 0 {
		js["disjuncts"] = encodeAll(q.disjuncts)
	}
	return js
}

// --------------------------------------------------------------------------
// Boolean
// --------------------------------------------------------------------------

// BooleanQuery combines a conjunction of required queries with disjunctions of
// optional and excluded ones
type BooleanQuery struct {
	queryBase[*BooleanQuery]
	must    *ConjunctionQuery
	should  *DisjunctionQuery
	mustNot *DisjunctionQuery
}

// NewBooleanQuery creates an empty boolean query
func NewBooleanQuery() *BooleanQuery {
	q := &BooleanQuery{}
	q.node = newNode("BooleanQuery", boostProps(nil))
	q.self = q
	return q
}

func (q *BooleanQuery) Must() *ConjunctionQuery { return q.must }
func (q *BooleanQuery) Should() *DisjunctionQuery { return q.should }
func (q *BooleanQuery) MustNot() *DisjunctionQuery { return q.mustNot }

// SetMust sets the required queries. A single ConjunctionQuery is used as is,
// anything else is wrapped. No arguments clears the clause.
func (q *BooleanQuery) SetMust(queries ...Query) *BooleanQuery {
	switch {
	case len(queries) == 0:
		q.must = nil
	case len(queries) == 1:
		if c, ok := queries[0].(*ConjunctionQuery); ok {
			q.must = c
			break
		}
		fallthrough
	default:
		q.must = NewConjunctionQuery(queries...)
	}
	return q
}

// SetShould sets the optional queries
func (q *BooleanQuery) SetShould(queries ...Query) *BooleanQuery {
	q.should = asDisjunction(queries)
	return q
}

// SetMustNot sets the excluded queries
func (q *BooleanQuery) SetMustNot(queries ...Query) *BooleanQuery {
	q.mustNot = asDisjunction(queries)
	return q
}

func asDisjunction(queries []Query) *DisjunctionQuery {
	if len(queries) == 0 {
		return nil
	}
	if len(queries) == 1 {
		if d, ok := queries[0].(*DisjunctionQuery); ok {
			return d
		}
	}
	return NewDisjunctionQuery(queries...)
}

func (q *BooleanQuery) Encodable() map[string]any {
	js := copyMap(q.json)
	if q.must != nil {
		js["must"] = q.must.Encodable()
	}
	if q.mustNot != nil {
		js["must_not"] = q.mustNot.Encodable()
	}
	if q.should != nil {
		js["should"] = q.should.Encodable()
	}
	return js
}
