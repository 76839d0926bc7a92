package docstore

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// analyze lower-cases text and splits it into terms at every rune that is
// neither a letter nor a digit
func analyze(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// fieldValues returns the leaf values of field in doc. Arrays are flattened.
// An empty field selects every leaf of the document.
func fieldValues(doc gjson.Result, field string) []gjson.Result {
	var out []gjson.Result
	var collect func(v gjson.Result)
	collect = func(v gjson.Result) {
		switch {
		case v.IsArray() || v.IsObject():
			v.ForEach(func(_, child gjson.Result) bool {
				collect(child)
				return true
			})
		case v.Exists():
			out = append(out, v)
		}
	}
	if field == "" {
		collect(doc)
	} else {
		collect(doc.Get(field))
	}
	return out
}

// fieldTerms returns the analyzed terms of the string values of field
func fieldTerms(doc gjson.Result, field string) []string {
	var terms []string
	for _, v := range fieldValues(doc, field) {
		if v.Type == gjson.String {
			terms = append(terms, analyze(v.Str)...)
		}
	}
	return terms
}

// fieldTexts returns the analyzed terms per string value, used for phrases which
// must not span two values
func fieldTexts(doc gjson.Result, field string) [][]string {
	strs := lo.Filter(fieldValues(doc, field), func(v gjson.Result, _ int) bool {
		return v.Type == gjson.String
	})
	return lo.Map(strs, func(v gjson.Result, _ int) []string { return analyze(v.Str) })
}

// levenshtein returns the edit distance of a and b, giving up once it exceeds limit
func levenshtein(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if d := len(ra) - len(rb); d > limit || -d > limit {
		return limit + 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// fuzzyEqual reports whether term is within fuzziness edits of want, with the
// first prefixLen runes matching exactly
func fuzzyEqual(term, want string, fuzziness, prefixLen int) bool {
	if fuzziness <= 0 {
		return term == want
	}
	if prefixLen > 0 {
		rt, rw := []rune(term), []rune(want)
		if len(rt) < prefixLen || len(rw) < prefixLen || string(rt[:prefixLen]) != string(rw[:prefixLen]) {
			return false
		}
	}
	return levenshtein(term, want, fuzziness) <= fuzziness
}
