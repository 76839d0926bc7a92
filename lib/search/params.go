package search

import (
	"fmt"
	"time"
)

// HighlightStyle selects how matched terms are marked in fragments
type HighlightStyle string

const (
	HighlightHTML HighlightStyle = "html"
	HighlightANSI HighlightStyle = "ansi"
)

var paramsProps = propTable{
	"limit":            p(toInt, "size"),
	"skip":             p(toInt, "from"),
	"explain":          p(toBool, "explain"),
	"fields":           p(toStringList, "fields"),
	"timeout":          p(toMillis, "ctl", "timeout"),
	"highlight_style":  p(toHighlightStyle, "highlight", "style"),
	"highlight_fields": p(toStringList, "highlight", "fields"),
}

// Params modifies how a query is executed and what comes back
type Params struct {
	node
	facets *Facets
}

func NewParams() *Params {
	return &Params{node: newNode("Params", paramsProps), facets: NewFacets()}
}

// ParamsFromOptions builds params from a name/value map. The "facets" entry,
// if present, must be a map[string]Facet.
func ParamsFromOptions(opts map[string]any) (*Params, error) {
	ps := NewParams()
	rest := make(map[string]any, len(opts))
	for k, v := range opts {
		if k != "facets" {
			rest[k] = v
			continue
		}
		facets, ok := v.(map[string]Facet)
		if !ok {
			return nil, fmt.Errorf("%w: facets must be map[string]Facet, got %T", ErrInvalidValue, v)
		}
		for name, f := range facets {
			if err := ps.facets.Add(name, f); err != nil {
				return nil, err
			}
		}
	}
	if err := ps.ApplyOptions(rest); err != nil {
		return nil, err
	}
	return ps, nil
}

func (ps *Params) Limit() int { return ps.getInt("limit") }
func (ps *Params) Skip() int { return ps.getInt("skip") }
func (ps *Params) Explain() bool { return ps.getBool("explain") }
func (ps *Params) Fields() []string { return ps.getStrings("fields") }
func (ps *Params) HighlightStyle() HighlightStyle { return HighlightStyle(ps.getString("highlight_style")) }
func (ps *Params) HighlightFields() []string { return ps.getStrings("highlight_fields") }
func (ps *Params) Facets() *Facets { return ps.facets }

// Timeout returns the server side timeout, 0 if unset
func (ps *Params) Timeout() time.Duration {
	return time.Duration(ps.getInt("timeout")) * time.Millisecond
}

func (ps *Params) SetLimit(n int) *Params { ps.set("limit", n); return ps }
func (ps *Params) SetSkip(n int) *Params { ps.set("skip", n); return ps }
func (ps *Params) SetExplain(b bool) *Params {
	ps.set("explain", b)
	return ps
}

// SetFields selects the stored fields returned with each hit
func (ps *Params) SetFields(fields ...string) *Params {
	ps.set("fields", fields)
	return ps
}

// SetTimeout sets the server side timeout, sent in milliseconds
func (ps *Params) SetTimeout(d time.Duration) *Params {
	ps.set("timeout", d)
	return ps
}

// SetHighlight enables highlighting. Without fields all fields are highlighted.
func (ps *Params) SetHighlight(style HighlightStyle, fields ...string) error {
	if err := ps.SetOption("highlight_style", string(style)); err != nil {
		return err
	}
	if len(fields) == 0 {
		return ps.SetOption("highlight_fields", nil)
	}
	return ps.SetOption("highlight_fields", fields)
}

// AddFacet adds a named facet
func (ps *Params) AddFacet(name string, f Facet) error {
	return ps.facets.Add(name, f)
}

// Encodable returns the params as a fresh JSON object
func (ps *Params) Encodable() map[string]any {
	js := copyMap(ps.json)
	if ps.facets.Len() > 0 {
		js["facets"] = ps.facets.Encodable()
	}
	return js
}
