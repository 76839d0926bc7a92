package subdoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ValentinKolb/dDoc/lib/subdoc"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// ErrInvalidSpec is returned for spec strings that cannot be parsed
var ErrInvalidSpec = errors.New("invalid spec")

// specBuilder builds a spec from a path, the raw JSON value and the create flag
type specBuilder struct {
	needsValue bool
	build      func(path string, value json.RawMessage, create bool) (subdoc.Spec, error)
}

var specBuilders = map[string]specBuilder{
	"get": {build: func(path string, _ json.RawMessage, _ bool) (subdoc.Spec, error) {
		return subdoc.Get(path), nil
	}},
	"exists": {build: func(path string, _ json.RawMessage, _ bool) (subdoc.Spec, error) {
		return subdoc.Exists(path), nil
	}},
	"remove": {build: func(path string, _ json.RawMessage, _ bool) (subdoc.Spec, error) {
		return subdoc.Remove(path), nil
	}},
	"replace": {needsValue: true, build: func(path string, v json.RawMessage, _ bool) (subdoc.Spec, error) {
		return subdoc.Replace(path, v), nil
	}},
	"insert": {needsValue: true, build: func(path string, v json.RawMessage, create bool) (subdoc.Spec, error) {
		return subdoc.Insert(path, v, create), nil
	}},
	"upsert": {needsValue: true, build: func(path string, v json.RawMessage, create bool) (subdoc.Spec, error) {
		return subdoc.Upsert(path, v, create), nil
	}},
	"push_first": {needsValue: true, build: func(path string, v json.RawMessage, create bool) (subdoc.Spec, error) {
		values, err := splitValues(v)
		return subdoc.PushFirst(path, create, values...), err
	}},
	"push_last": {needsValue: true, build: func(path string, v json.RawMessage, create bool) (subdoc.Spec, error) {
		values, err := splitValues(v)
		return subdoc.PushLast(path, create, values...), err
	}},
	"push_at": {needsValue: true, build: func(path string, v json.RawMessage, _ bool) (subdoc.Spec, error) {
		values, err := splitValues(v)
		return subdoc.PushAt(path, values...), err
	}},
	"push_unique": {needsValue: true, build: func(path string, v json.RawMessage, create bool) (subdoc.Spec, error) {
		return subdoc.PushUnique(path, v, create), nil
	}},
	"counter": {needsValue: true, build: func(path string, v json.RawMessage, create bool) (subdoc.Spec, error) {
		delta, err := cast.ToInt64E(string(v))
		if err != nil {
			return subdoc.Spec{}, fmt.Errorf("delta must be an integer: %w", err)
		}
		return subdoc.Counter(path, delta, create), nil
	}},
}

// ParseSpec parses a spec string of the form OP[+]:PATH[=JSON].
// A "+" after the operation creates missing parents. Push operations take
// a JSON array whose elements are pushed one by one.
//
// Examples:
//
//	get:address.city
//	upsert+:address.city="Berlin"
//	push_last:tags=["admin","dev"]
//	counter:visits=-1
func ParseSpec(s string) (subdoc.Spec, error) {
	op, rest, ok := strings.Cut(s, ":")
	if !ok {
		return subdoc.Spec{}, fmt.Errorf("%w %q: expected OP:PATH", ErrInvalidSpec, s)
	}
	create := strings.HasSuffix(op, "+")
	op = strings.ToLower(strings.TrimSuffix(op, "+"))

	builder, ok := specBuilders[op]
	if !ok {
		return subdoc.Spec{}, fmt.Errorf("%w %q: unknown operation %q (one of %s)", ErrInvalidSpec, s, op, strings.Join(SpecOperations(), ", "))
	}

	path, raw, hasValue := strings.Cut(rest, "=")
	if builder.needsValue != hasValue {
		if builder.needsValue {
			return subdoc.Spec{}, fmt.Errorf("%w %q: %s needs a value (OP:PATH=JSON)", ErrInvalidSpec, s, op)
		}
		// paths of lookups may contain "=" in quoted keys, keep the whole rest
		path = rest
	}

	var value json.RawMessage
	if builder.needsValue {
		value = json.RawMessage(raw)
		if !json.Valid(value) {
			return subdoc.Spec{}, fmt.Errorf("%w %q: value %s is not valid JSON", ErrInvalidSpec, s, raw)
		}
	}

	spec, err := builder.build(path, value, create)
	if err != nil {
		return subdoc.Spec{}, fmt.Errorf("%w %q: %v", ErrInvalidSpec, s, err)
	}
	return spec, nil
}

// ParseSpecs parses every string with ParseSpec
func ParseSpecs(specs []string) ([]subdoc.Spec, error) {
	out := make([]subdoc.Spec, 0, len(specs))
	for _, s := range specs {
		spec, err := ParseSpec(s)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// SpecOperations returns the names of the supported operations, sorted
func SpecOperations() []string {
	ops := lo.Keys(specBuilders)
	slices.Sort(ops)
	return ops
}

// splitValues turns a JSON array into its elements, other values are pushed as is
func splitValues(raw json.RawMessage) ([]any, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []any{raw}, nil
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("need at least one value to push")
	}
	return lo.Map(elems, func(e json.RawMessage, _ int) any { return e }), nil
}
