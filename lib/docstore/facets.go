package docstore

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

type termCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

type numericBucket struct {
	Name  string   `json:"name"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Count int      `json:"count"`
}

type dateBucket struct {
	Name  string `json:"name"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Count int    `json:"count"`

	start, end *time.Time
}

type facetResult struct {
	Field         string          `json:"field"`
	Total         int             `json:"total"`
	Missing       int             `json:"missing"`
	Other         int             `json:"other"`
	Terms         []termCount     `json:"terms,omitempty"`
	NumericRanges []numericBucket `json:"numeric_ranges,omitempty"`
	DateRanges    []dateBucket    `json:"date_ranges,omitempty"`
}

type facetRequest struct {
	name    string
	field   string
	size    int
	numeric []numericBucket
	dates   []dateBucket
}

type facetRequests []facetRequest

func compileFacets(spec gjson.Result) (facetRequests, error) {
	if !spec.Exists() {
		return nil, nil
	}
	if !spec.IsObject() {
		return nil, fmt.Errorf("facets must be an object")
	}
	var out facetRequests
	var err error
	spec.ForEach(func(key, value gjson.Result) bool {
		f := facetRequest{name: key.String(), field: value.Get("field").String(), size: int(value.Get("size").Int())}
		if f.field == "" {
			err = fmt.Errorf("facet %q has no field", f.name)
			return false
		}
		for _, r := range value.Get("numeric_ranges").Array() {
			b := numericBucket{Name: r.Get("name").String()}
			if v := r.Get("min"); v.Exists() {
				n := v.Float()
				b.Min = &n
			}
			if v := r.Get("max"); v.Exists() {
				n := v.Float()
				b.Max = &n
			}
			f.numeric = append(f.numeric, b)
		}
		for _, r := range value.Get("date_ranges").Array() {
			b := dateBucket{Name: r.Get("name").String(), Start: r.Get("start").String(), End: r.Get("end").String()}
			for _, bound := range []struct {
				raw string
				dst **time.Time
			}{{b.Start, &b.start}, {b.End, &b.end}} {
				if bound.raw == "" {
					continue
				}
				t, perr := cast.ToTimeE(bound.raw)
				if perr != nil {
					err = fmt.Errorf("facet %q: invalid date %q", f.name, bound.raw)
					return false
				}
				*bound.dst = &t
			}
			f.dates = append(f.dates, b)
		}
		out = append(out, f)
		return true
	})
	return out, err
}

func (fs facetRequests) compute(matches []scored) map[string]any {
	if len(fs) == 0 {
		return nil
	}
	out := make(map[string]any, len(fs))
	for _, f := range fs {
		out[f.name] = f.compute(matches)
	}
	return out
}

func (f facetRequest) compute(matches []scored) facetResult {
	res := facetResult{Field: f.field}
	switch {
	case len(f.numeric) > 0:
		res.NumericRanges = make([]numericBucket, len(f.numeric))
		copy(res.NumericRanges, f.numeric)
	case len(f.dates) > 0:
		res.DateRanges = make([]dateBucket, len(f.dates))
		copy(res.DateRanges, f.dates)
	}

	counts := make(map[string]int)
	for _, m := range matches {
		values := fieldValues(m.doc, f.field)
		if len(values) == 0 {
			res.Missing++
			continue
		}
		for _, v := range values {
			switch {
			case res.NumericRanges != nil:
				if v.Type != gjson.Number {
					continue
				}
				res.Total++
				if !countNumeric(res.NumericRanges, v.Num) {
					res.Other++
				}
			case res.DateRanges != nil:
				t, err := cast.ToTimeE(v.String())
				if v.Type != gjson.String || err != nil {
					continue
				}
				res.Total++
				if !countDate(res.DateRanges, t) {
					res.Other++
				}
			default:
				terms := analyze(v.String())
				if v.Type == gjson.Number {
					terms = []string{strconv.FormatFloat(v.Num, 'f', -1, 64)}
				}
				for _, t := range terms {
					counts[t]++
					res.Total++
				}
			}
		}
	}

	if res.NumericRanges == nil && res.DateRanges == nil {
		for t, c := range counts {
			res.Terms = append(res.Terms, termCount{Term: t, Count: c})
		}
		sort.Slice(res.Terms, func(i, j int) bool {
			if res.Terms[i].Count != res.Terms[j].Count {
				return res.Terms[i].Count > res.Terms[j].Count
			}
			return res.Terms[i].Term < res.Terms[j].Term
		})
		if f.size > 0 && len(res.Terms) > f.size {
			for _, t := range res.Terms[f.size:] {
				res.Other += t.Count
			}
			res.Terms = res.Terms[:f.size]
		}
	}
	return res
}

func countNumeric(buckets []numericBucket, v float64) bool {
	hit := false
	for i := range buckets {
		b := &buckets[i]
		if (b.Min == nil || v >= *b.Min) && (b.Max == nil || v < *b.Max) {
			b.Count++
			hit = true
		}
	}
	return hit
}

func countDate(buckets []dateBucket, t time.Time) bool {
	hit := false
	for i := range buckets {
		b := &buckets[i]
		if (b.start == nil || !t.Before(*b.start)) && (b.end == nil || t.Before(*b.end)) {
			b.Count++
			hit = true
		}
	}
	return hit
}
