package docstore

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/ValentinKolb/dDoc/lib/subdoc"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// isContainer reports whether doc is a JSON object or array
func isContainer(doc []byte) bool {
	root := gjson.ParseBytes(doc)
	return gjson.ValidBytes(doc) && (root.IsObject() || root.IsArray())
}

func failedItem(s subdoc.Spec, err *Error) subdoc.Item {
	return subdoc.Item{Op: s.Op(), Path: s.Path(), Code: uint64(err.Code), Err: err.Msg}
}

// --------------------------------------------------------------------------
// Lookups
// --------------------------------------------------------------------------

// lookup executes a GET or EXISTS spec against doc
func lookup(doc []byte, s subdoc.Spec) subdoc.Item {
	segs, err := parsePath(s.Path())
	if err != nil {
		return failedItem(s, err)
	}
	res, _, _, err := locate(doc, segs)
	if err != nil {
		return failedItem(s, err)
	}
	item := subdoc.Item{Op: s.Op(), Path: s.Path()}
	if s.Op() == subdoc.OpGet {
		item.Value = json.RawMessage(res.Raw)
	}
	return item
}

// --------------------------------------------------------------------------
// Mutations
// --------------------------------------------------------------------------

// mutate applies one mutation and returns the new document. doc is never
// modified in place.
func mutate(doc []byte, s subdoc.Spec) ([]byte, subdoc.Item, *Error) {
	item := subdoc.Item{Op: s.Op(), Path: s.Path()}

	segs, err := parsePath(s.Path())
	if err != nil {
		return nil, item, err
	}
	values, verr := s.RawValues()
	if verr != nil {
		return nil, item, errorf(RetCValueInvalid, "%v", verr)
	}

	var out []byte
	switch s.Op() {
	case subdoc.OpReplace:
		out, err = replace(doc, segs, values[0])
	case subdoc.OpDictAdd:
		out, err = dictSet(doc, segs, values[0], s.CreateParents(), false)
	case subdoc.OpDictUpsert:
		out, err = dictSet(doc, segs, values[0], s.CreateParents(), true)
	case subdoc.OpRemove:
		out, err = remove(doc, segs)
	case subdoc.OpArrayAddFirst:
		out, err = arrayPush(doc, segs, values, s.CreateParents(), true)
	case subdoc.OpArrayAddLast:
		out, err = arrayPush(doc, segs, values, s.CreateParents(), false)
	case subdoc.OpArrayAddUnique:
		out, err = arrayAddUnique(doc, segs, values[0], s.CreateParents())
	case subdoc.OpArrayInsert:
		out, err = arrayInsert(doc, segs, values)
	case subdoc.OpCounter:
		var value int64
		out, value, err = counter(doc, segs, values[0], s.CreateParents())
		if err == nil {
			item.Value, _ = json.Marshal(value)
		}
	default:
		err = errorf(RetCInvalidOperation, "%s is not a mutation", s.Op())
	}
	if err != nil {
		return nil, item, err
	}
	return out, item, nil
}

// setRaw writes raw at a resolved path, the empty path replaces the document
func setRaw(doc []byte, path string, raw []byte) ([]byte, *Error) {
	if path == "" {
		return append([]byte(nil), raw...), nil
	}
	out, err := sjson.SetRawBytes(doc, path, raw)
	if err != nil {
		return nil, errorf(RetCInternalError, "set %q: %v", path, err)
	}
	return out, nil
}

func replace(doc []byte, segs []segment, raw json.RawMessage) ([]byte, *Error) {
	t, err := locateTarget(doc, segs, false)
	if err != nil {
		return nil, err
	}
	if !t.current.Exists() {
		return nil, errorf(RetCPathNotFound, "path %q does not exist", t.path)
	}
	return setRaw(doc, t.path, raw)
}

func dictSet(doc []byte, segs []segment, raw json.RawMessage, create, overwrite bool) ([]byte, *Error) {
	t, err := locateTarget(doc, segs, create)
	if err != nil {
		return nil, err
	}
	if t.last.isIdx {
		return nil, errorf(RetCInvalidPath, "dictionary commands need a key as last path element")
	}
	if !overwrite && t.current.Exists() {
		return nil, errorf(RetCPathExists, "path %q already exists", t.path)
	}
	return setRaw(doc, t.path, raw)
}

func remove(doc []byte, segs []segment) ([]byte, *Error) {
	t, err := locateTarget(doc, segs, false)
	if err != nil {
		return nil, err
	}
	if !t.current.Exists() {
		return nil, errorf(RetCPathNotFound, "path %q does not exist", t.path)
	}
	out, derr := sjson.DeleteBytes(doc, t.path)
	if derr != nil {
		return nil, errorf(RetCInternalError, "delete %q: %v", t.path, derr)
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Arrays
// --------------------------------------------------------------------------

func joinArray(elems [][]byte) []byte {
	return append(append([]byte{'['}, bytes.Join(elems, []byte{','})...), ']')
}

func rawElems(arr gjson.Result) [][]byte {
	items := arr.Array()
	out := make([][]byte, len(items))
	for i, it := range items {
		out[i] = []byte(it.Raw)
	}
	return out
}

func toBytes(values []json.RawMessage) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// arrayTarget returns the existing array at segs, or an empty array if it does not
// exist but may be created
func arrayTarget(doc []byte, segs []segment, create bool) (path string, elems [][]byte, err *Error) {
	if len(segs) == 0 {
		root := gjson.ParseBytes(doc)
		if !root.IsArray() {
			return "", nil, errorf(RetCPathMismatch, "document root is not an array")
		}
		return "", rawElems(root), nil
	}
	t, err := locateTarget(doc, segs, create)
	if err != nil {
		return "", nil, err
	}
	if !t.current.Exists() {
		if !create || t.last.isIdx {
			return "", nil, errorf(RetCPathNotFound, "path %q does not exist", t.path)
		}
		return t.path, nil, nil
	}
	if !t.current.IsArray() {
		return "", nil, errorf(RetCPathMismatch, "path %q is not an array", t.path)
	}
	return t.path, rawElems(t.current), nil
}

func arrayPush(doc []byte, segs []segment, values []json.RawMessage, create, front bool) ([]byte, *Error) {
	path, elems, err := arrayTarget(doc, segs, create)
	if err != nil {
		return nil, err
	}
	if front {
		elems = append(toBytes(values), elems...)
	} else {
		elems = append(elems, toBytes(values)...)
	}
	return setRaw(doc, path, joinArray(elems))
}

func arrayAddUnique(doc []byte, segs []segment, raw json.RawMessage, create bool) ([]byte, *Error) {
	v := gjson.ParseBytes(raw)
	if v.IsObject() || v.IsArray() {
		return nil, errorf(RetCValueInvalid, "unique array values must be primitives")
	}
	path, elems, err := arrayTarget(doc, segs, create)
	if err != nil {
		return nil, err
	}
	for _, e := range elems {
		el := gjson.ParseBytes(e)
		if el.IsObject() || el.IsArray() {
			return nil, errorf(RetCPathMismatch, "array %q contains non primitive values", path)
		}
		if el.Type == v.Type && el.Value() == v.Value() {
			return nil, errorf(RetCPathExists, "value %s already in array %q", raw, path)
		}
	}
	return setRaw(doc, path, joinArray(append(elems, raw)))
}

func arrayInsert(doc []byte, segs []segment, values []json.RawMessage) ([]byte, *Error) {
	if len(segs) == 0 || !segs[len(segs)-1].isIdx {
		return nil, errorf(RetCInvalidPath, "array insert needs an index as last path element")
	}
	last := segs[len(segs)-1]
	if last.index < 0 {
		return nil, errorf(RetCInvalidPath, "array insert needs a non negative index")
	}
	parent, ppath, _, err := locate(doc, segs[:len(segs)-1])
	if err != nil {
		return nil, err
	}
	if !parent.IsArray() {
		return nil, errorf(RetCPathMismatch, "path %q is not an array", ppath)
	}
	elems := rawElems(parent)
	if last.index > len(elems) {
		return nil, errorf(RetCPathNotFound, "index %d is out of range (%d elements)", last.index, len(elems))
	}
	out := make([][]byte, 0, len(elems)+len(values))
	out = append(out, elems[:last.index]...)
	out = append(out, toBytes(values)...)
	out = append(out, elems[last.index:]...)
	return setRaw(doc, ppath, joinArray(out))
}

// --------------------------------------------------------------------------
// Counter
// --------------------------------------------------------------------------

func counter(doc []byte, segs []segment, raw json.RawMessage, create bool) ([]byte, int64, *Error) {
	d := gjson.ParseBytes(raw)
	if d.Type != gjson.Number || d.Num != math.Trunc(d.Num) {
		return nil, 0, errorf(RetCDeltaInvalid, "delta %s is not an integer", raw)
	}
	delta := d.Int()
	if delta == 0 {
		return nil, 0, errorf(RetCDeltaInvalid, "delta must not be zero")
	}

	t, err := locateTarget(doc, segs, create)
	if err != nil {
		return nil, 0, err
	}

	value := delta
	if t.current.Exists() {
		cur := t.current
		if cur.Type != gjson.Number || cur.Num != math.Trunc(cur.Num) {
			return nil, 0, errorf(RetCPathMismatch, "path %q is not an integer", t.path)
		}
		old := cur.Int()
		value = old + delta
		if (delta > 0 && value < old) || (delta < 0 && value > old) {
			return nil, 0, errorf(RetCDeltaInvalid, "counter %q would overflow", t.path)
		}
	} else if t.last.isIdx {
		return nil, 0, errorf(RetCPathNotFound, "path %q does not exist", t.path)
	}

	out, serr := sjson.SetBytes(doc, t.path, value)
	if serr != nil {
		return nil, 0, errorf(RetCInternalError, "set %q: %v", t.path, serr)
	}
	return out, value, nil
}
