package docstore

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// matcher is a compiled search query
type matcher interface {
	// match reports whether doc matches and its score
	match(doc gjson.Result) (bool, float64)
}

func boostOf(q gjson.Result) float64 {
	if b := q.Get("boost"); b.Exists() {
		return b.Float()
	}
	return 1
}

// compile turns the JSON form of a query into a matcher
func compile(q gjson.Result) (matcher, error) {
	if !q.IsObject() {
		return nil, fmt.Errorf("query must be an object, got %s", q.Type)
	}
	boost := boostOf(q)
	has := func(key string) bool { return q.Get(key).Exists() }

	switch {
	case has("conjuncts"):
		children, err := compileAll(q.Get("conjuncts"))
		if err != nil {
			return nil, err
		}
		return &conjunction{children: children, boost: boost}, nil

	case has("disjuncts"):
		children, err := compileAll(q.Get("disjuncts"))
		if err != nil {
			return nil, err
		}
		return &disjunction{children: children, min: int(q.Get("min").Int()), boost: boost}, nil

	case has("must") || has("should") || has("must_not"):
		b := &boolean{boost: boost}
		for key, dst := range map[string]*matcher{"must": &b.must, "should": &b.should, "must_not": &b.mustNot} {
			if !has(key) {
				continue
			}
			m, err := compile(q.Get(key))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			*dst = m
		}
		return b, nil

	case has("match_all"):
		return constant{ok: true, score: boost}, nil
	case has("match_none"):
		return constant{}, nil

	case has("query"):
		return parseQueryString(q.Get("query").String(), boost)

	case has("match"):
		return &matchQuery{
			field:     q.Get("field").String(),
			terms:     analyze(q.Get("match").String()),
			fuzziness: int(q.Get("fuzziness").Int()),
			prefixLen: int(q.Get("prefix_length").Int()),
			boost:     boost,
		}, nil

	case has("match_phrase"):
		return &phrase{field: q.Get("field").String(), terms: analyze(q.Get("match_phrase").String()), boost: boost}, nil

	case has("term"):
		t := &term{field: q.Get("field").String(), boost: boost}
		want := strings.ToLower(q.Get("term").String())
		fuzziness, prefixLen := int(q.Get("fuzziness").Int()), int(q.Get("prefix_length").Int())
		t.test = func(s string) bool { return fuzzyEqual(s, want, fuzziness, prefixLen) }
		return t, nil

	case has("prefix"):
		want := strings.ToLower(q.Get("prefix").String())
		return &term{field: q.Get("field").String(), boost: boost, test: func(s string) bool {
			return strings.HasPrefix(s, want)
		}}, nil

	case has("regexp"):
		re, err := regexp.Compile("^(?:" + q.Get("regexp").String() + ")$")
		if err != nil {
			return nil, fmt.Errorf("invalid regexp: %w", err)
		}
		return &term{field: q.Get("field").String(), boost: boost, test: re.MatchString}, nil

	case has("wildcard"):
		re, err := wildcardRegexp(q.Get("wildcard").String())
		if err != nil {
			return nil, err
		}
		return &term{field: q.Get("field").String(), boost: boost, test: re.MatchString}, nil

	case has("min") || has("max"):
		r := &numericRange{field: q.Get("field").String(), boost: boost, minIncl: true}
		if v := q.Get("min"); v.Exists() {
			r.min = lo.ToPtr(v.Float())
		}
		if v := q.Get("max"); v.Exists() {
			r.max = lo.ToPtr(v.Float())
		}
		if v := q.Get("min_inclusive"); v.Exists() {
			r.minIncl = v.Bool()
		}
		r.maxIncl = q.Get("max_inclusive").Bool()
		return r, nil

	case has("start") || has("end"):
		r := &dateRange{field: q.Get("field").String(), boost: boost, startIncl: true}
		for key, dst := range map[string]**time.Time{"start": &r.start, "end": &r.end} {
			v := q.Get(key)
			if !v.Exists() {
				continue
			}
			t, err := cast.ToTimeE(v.String())
			if err != nil {
				return nil, fmt.Errorf("invalid %s date %q: %w", key, v.String(), err)
			}
			*dst = &t
		}
		if v := q.Get("start_inclusive"); v.Exists() {
			r.startIncl = v.Bool()
		}
		r.endIncl = q.Get("end_inclusive").Bool()
		return r, nil
	}
	return nil, fmt.Errorf("unknown query type: %s", q.Raw)
}

func compileAll(list gjson.Result) ([]matcher, error) {
	if !list.IsArray() {
		return nil, fmt.Errorf("expected a list of queries, got %s", list.Type)
	}
	var out []matcher
	for i, q := range list.Array() {
		m, err := compile(q)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func wildcardRegexp(pattern string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(strings.ToLower(pattern))
	quoted = strings.NewReplacer(`\*`, ".*", `\?`, ".").Replace(quoted)
	re, err := regexp.Compile("^" + quoted + "$")
	if err != nil {
		return nil, fmt.Errorf("invalid wildcard %q: %w", pattern, err)
	}
	return re, nil
}

// --------------------------------------------------------------------------
// Leaf matchers
// --------------------------------------------------------------------------

type constant struct {
	ok    bool
	score float64
}

func (c constant) match(gjson.Result) (bool, float64) { return c.ok, c.score }

// term matches if any term of the field passes test
type term struct {
	field string
	test  func(string) bool
	boost float64
}

func (t *term) match(doc gjson.Result) (bool, float64) {
	if anyTerm(fieldTerms(doc, t.field), t.test) {
		return true, t.boost
	}
	return false, 0
}

// matchQuery matches if any analyzed term is found, the score grows with the
// number of matching terms
type matchQuery struct {
	field     string
	terms     []string
	fuzziness int
	prefixLen int
	boost     float64
}

func (m *matchQuery) match(doc gjson.Result) (bool, float64) {
	have := fieldTerms(doc, m.field)
	found := 0
	for _, want := range m.terms {
		if anyTerm(have, func(s string) bool { return fuzzyEqual(s, want, m.fuzziness, m.prefixLen) }) {
			found++
		}
	}
	if found == 0 {
		return false, 0
	}
	return true, m.boost * float64(found) / float64(len(m.terms))
}

// phrase matches if the terms appear consecutively in one string value
type phrase struct {
	field string
	terms []string
	boost float64
}

func (p *phrase) match(doc gjson.Result) (bool, float64) {
	if len(p.terms) == 0 {
		return false, 0
	}
	for _, text := range fieldTexts(doc, p.field) {
		for i := 0; i+len(p.terms) <= len(text); i++ {
			if slices.Equal(text[i:i+len(p.terms)], p.terms) {
				return true, p.boost
			}
		}
	}
	return false, 0
}

func anyTerm(terms []string, test func(string) bool) bool {
	for _, t := range terms {
		if test(t) {
			return true
		}
	}
	return false
}

type numericRange struct {
	field            string
	min, max         *float64
	minIncl, maxIncl bool
	boost            float64
}

func (r *numericRange) contains(v float64) bool {
	if r.min != nil && (v < *r.min || (!r.minIncl && v == *r.min)) {
		return false
	}
	if r.max != nil && (v > *r.max || (!r.maxIncl && v == *r.max)) {
		return false
	}
	return true
}

func (r *numericRange) match(doc gjson.Result) (bool, float64) {
	for _, v := range fieldValues(doc, r.field) {
		if v.Type == gjson.Number && r.contains(v.Num) {
			return true, r.boost
		}
	}
	return false, 0
}

type dateRange struct {
	field              string
	start, end         *time.Time
	startIncl, endIncl bool
	boost              float64
}

func (r *dateRange) contains(t time.Time) bool {
	if r.start != nil && (t.Before(*r.start) || (!r.startIncl && t.Equal(*r.start))) {
		return false
	}
	if r.end != nil && (t.After(*r.end) || (!r.endIncl && t.Equal(*r.end))) {
		return false
	}
	return true
}

func (r *dateRange) match(doc gjson.Result) (bool, float64) {
	for _, v := range fieldValues(doc, r.field) {
		if v.Type != gjson.String {
			continue
		}
		if t, err := cast.ToTimeE(v.Str); err == nil && r.contains(t) {
			return true, r.boost
		}
	}
	return false, 0
}

// --------------------------------------------------------------------------
// Compound matchers
// --------------------------------------------------------------------------

type conjunction struct {
	children []matcher
	boost    float64
}

func (c *conjunction) match(doc gjson.Result) (bool, float64) {
	if len(c.children) == 0 {
		return false, 0
	}
	var total float64
	for _, m := range c.children {
		ok, score := m.match(doc)
		if !ok {
			return false, 0
		}
		total += score
	}
	return true, total * c.boost
}

type disjunction struct {
	children []matcher
	min      int
	boost    float64
}

func (d *disjunction) match(doc gjson.Result) (bool, float64) {
	var (
		total   float64
		matched int
	)
	for _, m := range d.children {
		if ok, score := m.match(doc); ok {
			matched++
			total += score
		}
	}
	if matched == 0 || matched < d.min {
		return false, 0
	}
	return true, total * d.boost
}

// boolean requires must, excludes must_not and scores should. Without must
// clauses should is required.
type boolean struct {
	must, should, mustNot matcher
	boost                 float64
}

func (b *boolean) match(doc gjson.Result) (bool, float64) {
	var total float64
	if b.mustNot != nil {
		if ok, _ := b.mustNot.match(doc); ok {
			return false, 0
		}
	}
	if b.must != nil {
		ok, score := b.must.match(doc)
		if !ok {
			return false, 0
		}
		total += score
	}
	if b.should != nil {
		ok, score := b.should.match(doc)
		if !ok && b.must == nil {
			return false, 0
		}
		total += score
	}
	if b.must == nil && b.should == nil {
		total = 1
	}
	return true, total * b.boost
}

// --------------------------------------------------------------------------
// Query string
// --------------------------------------------------------------------------

// parseQueryString compiles the query string syntax: whitespace separated
// clauses, optionally prefixed with + (required) or - (excluded), each either
// `term`, `field:term`, `field:"a phrase"`, `field:>=10` or a wildcard like `ab*`.
// A clause may end with ^boost.
func parseQueryString(qs string, boost float64) (matcher, error) {
	clauses, err := splitClauses(qs)
	if err != nil {
		return nil, err
	}
	if len(clauses) == 0 {
		return constant{}, nil
	}

	var must, should, mustNot []matcher
	for _, c := range clauses {
		occur := byte(0)
		if c[0] == '+' || c[0] == '-' {
			occur, c = c[0], c[1:]
		}
		m, err := compileClause(c)
		if err != nil {
			return nil, err
		}
		switch occur {
		case '+':
			must = append(must, m)
		case '-':
			mustNot = append(mustNot, m)
		default:
			should = append(should, m)
		}
	}

	b := &boolean{boost: boost}
	if len(must) > 0 {
		b.must = &conjunction{children: must, boost: 1}
	}
	if len(should) > 0 {
		b.should = &disjunction{children: should, boost: 1}
	}
	if len(mustNot) > 0 {
		b.mustNot = &disjunction{children: mustNot, boost: 1}
	}
	return b, nil
}

// splitClauses splits at whitespace outside of double quotes
func splitClauses(qs string) ([]string, error) {
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
	)
	for _, r := range qs {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case !inQuote && (r == ' ' || r == '\t' || r == '\n'):
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("query string: unterminated quote in %q", qs)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out, nil
}

func compileClause(c string) (matcher, error) {
	boost := 1.0
	if i := strings.LastIndexByte(c, '^'); i > 0 && !strings.HasSuffix(c, `"`) {
		b, err := strconv.ParseFloat(c[i+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("query string: invalid boost in %q", c)
		}
		boost, c = b, c[:i]
	}

	field, value := "", c
	if i := strings.IndexByte(c, ':'); i > 0 && !strings.HasPrefix(c, `"`) {
		field, value = c[:i], c[i+1:]
	}
	if value == "" {
		return nil, fmt.Errorf("query string: empty value in %q", c)
	}

	switch {
	case len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"':
		return &phrase{field: field, terms: analyze(value[1 : len(value)-1]), boost: boost}, nil

	case value[0] == '>' || value[0] == '<':
		op := value[:1]
		rest := value[1:]
		if strings.HasPrefix(rest, "=") {
			op, rest = op+"=", rest[1:]
		}
		n, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return nil, fmt.Errorf("query string: %q is not a number", rest)
		}
		r := &numericRange{field: field, boost: boost}
		switch op {
		case ">":
			r.min = &n
		case ">=":
			r.min, r.minIncl = &n, true
		case "<":
			r.max = &n
		case "<=":
			r.max, r.maxIncl = &n, true
		}
		return r, nil

	case strings.ContainsAny(value, "*?"):
		re, err := wildcardRegexp(value)
		if err != nil {
			return nil, err
		}
		return &term{field: field, test: re.MatchString, boost: boost}, nil
	}
	return &matchQuery{field: field, terms: analyze(value), boost: boost}, nil
}
