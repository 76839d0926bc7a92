package search

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cast"
)

var (
	// ErrInvalidOption is returned for option names a node does not know
	ErrInvalidOption = errors.New("search: not a valid option")
	// ErrInvalidValue is returned when an option value cannot be converted
	ErrInvalidValue = errors.New("search: invalid option value")
)

// --------------------------------------------------------------------------
// Option table
// --------------------------------------------------------------------------

// converter turns a user supplied value into its JSON representation
type converter func(v any) (any, error)

// prop maps an option name to a (nested) JSON path
type prop struct {
	path []string
	conv converter
}

type propTable map[string]prop

func p(conv converter, path ...string) prop {
	return prop{path: path, conv: conv}
}

func toString(v any) (any, error) { return cast.ToStringE(v) }

func toInt(v any) (any, error) { return cast.ToIntE(v) }

func toFloat(v any) (any, error) { return cast.ToFloat64E(v) }

func toBool(v any) (any, error) { return cast.ToBoolE(v) }

func toStringList(v any) (any, error) { return cast.ToStringSliceE(v) }

func toList(v any) (any, error) { return cast.ToSliceE(v) }

// toMillis converts a timeout to milliseconds. Durations are taken as is,
// plain numbers are seconds.
func toMillis(v any) (any, error) {
	if d, ok := v.(time.Duration); ok {
		return d.Milliseconds(), nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, err
	}
	return int64(f * 1000), nil
}

func toHighlightStyle(v any) (any, error) {
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, err
	}
	if s != string(HighlightHTML) && s != string(HighlightANSI) {
		return nil, fmt.Errorf("highlight must be %q or %q, got %q", HighlightHTML, HighlightANSI, s)
	}
	return s, nil
}

// --------------------------------------------------------------------------
// JSON backed node
// --------------------------------------------------------------------------

// node stores the JSON form of a query, facet or params object together with
// the options it accepts
type node struct {
	json  map[string]any
	props propTable
	kind  string
}

func newNode(kind string, props propTable) node {
	return node{json: make(map[string]any), props: props, kind: kind}
}

// SetOption sets an option by name. A nil value removes it.
func (n *node) SetOption(name string, value any) error {
	pr, ok := n.props[name]
	if !ok {
		return fmt.Errorf("%w for %s: %q", ErrInvalidOption, n.kind, name)
	}
	if value == nil {
		deletePath(n.json, pr.path)
		return nil
	}
	v, err := pr.conv(value)
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrInvalidValue, n.kind, name, err)
	}
	setPath(n.json, v, pr.path)
	return nil
}

// ApplyOptions sets several options, in name order. The first failure aborts.
func (n *node) ApplyOptions(opts map[string]any) error {
	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := n.SetOption(name, opts[name]); err != nil {
			return err
		}
	}
	return nil
}

// Option returns the raw JSON value of an option, nil if unset
func (n *node) Option(name string) any {
	pr, ok := n.props[name]
	if !ok {
		return nil
	}
	v, _ := getPath(n.json, pr.path)
	return v
}

// Has reports whether an option is set
func (n *node) Has(name string) bool {
	pr, ok := n.props[name]
	if !ok {
		return false
	}
	_, found := getPath(n.json, pr.path)
	return found
}

// set is used by the typed setters, their input always converts
func (n *node) set(name string, value any) {
	if err := n.SetOption(name, value); err != nil {
		panic(err)
	}
}

func (n *node) getString(name string) string { return cast.ToString(n.Option(name)) }

func (n *node) getInt(name string) int { return cast.ToInt(n.Option(name)) }

func (n *node) getFloat(name string) float64 { return cast.ToFloat64(n.Option(name)) }

func (n *node) getBool(name string) bool { return cast.ToBool(n.Option(name)) }

func (n *node) getStrings(name string) []string { return cast.ToStringSlice(n.Option(name)) }

// --------------------------------------------------------------------------
// Path helpers
// --------------------------------------------------------------------------

func getPath(m map[string]any, path []string) (any, bool) {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(m map[string]any, value any, path []string) {
	cur := m
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[key] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
}

func deletePath(m map[string]any, path []string) {
	cur := m
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, path[len(path)-1])
}

// copyMap copies m including nested objects and lists
func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
