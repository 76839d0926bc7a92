package search

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMissingRangeBoundary is returned when a range bucket has neither bound
	ErrMissingRangeBoundary = errors.New("search: must specify at least one range boundary")
	// ErrFacetWithoutRanges is returned when a range facet without buckets is added
	ErrFacetWithoutRanges = errors.New("search: facet must have at least one range, use AddRange")
	// ErrInvalidFacet is returned when a nil facet is added
	ErrInvalidFacet = errors.New("search: can only add facets")
)

// Facet is an aggregation requested alongside the hits
type Facet interface {
	// Encodable returns the JSON object of the facet, single facets return
	// their live backing map. Facets.Encodable and MakeSearchBody copy it.
	Encodable() map[string]any
	Field() string
}

type rangeFacet interface {
	Facet
	RangeCount() int
}

type facetBase struct {
	node
}

func newFacetBase(kind, field string, props propTable) facetBase {
	props["field"] = p(toString, "field")
	f := facetBase{node: newNode(kind, props)}
	f.set("field", field)
	return f
}

func (f *facetBase) Encodable() map[string]any { return f.json }

func (f *facetBase) Field() string { return f.getString("field") }

func (f *facetBase) String() string { return fmt.Sprintf("%s<%v>", f.kind, f.json) }

func rangeBucket(name, lowKey, highKey string, low, high any) (map[string]any, error) {
	b := make(map[string]any, 3)
	if low != nil {
		b[lowKey] = low
	}
	if high != nil {
		b[highKey] = high
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w (range %q)", ErrMissingRangeBoundary, name)
	}
	b["name"] = name
	return b, nil
}

// --------------------------------------------------------------------------
// Facet kinds
// --------------------------------------------------------------------------

// TermFacet counts the most frequent terms of a field
type TermFacet struct {
	facetBase
}

// NewTermFacet creates a term facet, a zero size leaves the server default
func NewTermFacet(field string, size int) *TermFacet {
	f := &TermFacet{facetBase: newFacetBase("TermFacet", field, propTable{"size": p(toInt, "size")})}
	if size != 0 {
		f.set("size", size)
	}
	return f
}

func (f *TermFacet) Size() int { return f.getInt("size") }

// DateFacet counts hits per date range
type DateFacet struct {
	facetBase
	ranges []any
}

// NewDateFacet creates a date facet without ranges
func NewDateFacet(field string) *DateFacet {
	return &DateFacet{facetBase: newFacetBase("DateFacet", field, propTable{})}
}

// AddRange adds a named bucket, nil bounds are open
func (f *DateFacet) AddRange(name string, start, end *string) error {
	var lo, hi any
	if start != nil {
		lo = *start
	}
	if end != nil {
		hi = *end
	}
	b, err := rangeBucket(name, "start", "end", lo, hi)
	if err != nil {
		return err
	}
	f.ranges = append(f.ranges, b)
	f.json["date_ranges"] = f.ranges
	return nil
}

func (f *DateFacet) RangeCount() int { return len(f.ranges) }

// NumericFacet counts hits per numeric range
type NumericFacet struct {
	facetBase
	ranges []any
}

// NewNumericFacet creates a numeric facet without ranges
func NewNumericFacet(field string) *NumericFacet {
	return &NumericFacet{facetBase: newFacetBase("NumericFacet", field, propTable{})}
}

// AddRange adds a named bucket, nil bounds are open
func (f *NumericFacet) AddRange(name string, min, max *float64) error {
	var lo, hi any
	if min != nil {
		lo = *min
	}
	if max != nil {
		hi = *max
	}
	b, err := rangeBucket(name, "min", "max", lo, hi)
	if err != nil {
		return err
	}
	f.ranges = append(f.ranges, b)
	f.json["numeric_ranges"] = f.ranges
	return nil
}

func (f *NumericFacet) RangeCount() int { return len(f.ranges) }

// --------------------------------------------------------------------------
// Facet set
// --------------------------------------------------------------------------

// Facets is a named set of facets
type Facets struct {
	items map[string]Facet
}

func NewFacets() *Facets {
	return &Facets{items: make(map[string]Facet)}
}

// Add stores f under name, replacing an existing entry.
// Range facets must have at least one range.
func (fs *Facets) Add(name string, f Facet) error {
	if f == nil {
		return ErrInvalidFacet
	}
	if rf, ok := f.(rangeFacet); ok && rf.RangeCount() == 0 {
		return fmt.Errorf("%w (%s)", ErrFacetWithoutRanges, name)
	}
	fs.items[name] = f
	return nil
}

func (fs *Facets) Get(name string) (Facet, bool) {
	f, ok := fs.items[name]
	return f, ok
}

func (fs *Facets) Remove(name string) { delete(fs.items, name) }

func (fs *Facets) Len() int { return len(fs.items) }

// Names returns the facet names in sorted order
func (fs *Facets) Names() []string {
	names := make([]string, 0, len(fs.items))
	for n := range fs.items {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (fs *Facets) Encodable() map[string]any {
	out := make(map[string]any, len(fs.items))
	for n, f := range fs.items {
		out[n] = copyMap(f.Encodable())
	}
	return out
}
