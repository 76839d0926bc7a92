package docstore

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// segment is one step of a sub-document path: a dictionary key or an array index
type segment struct {
	key   string
	index int
	isIdx bool
}

// parsePath parses paths like `a.b[2].c`, `arr[-1]` or "`dotted.key`.x".
// The empty path addresses the document root.
func parsePath(path string) ([]segment, *Error) {
	if path == "" {
		return nil, nil
	}
	var (
		segs []segment
		i    int
	)
	for i < len(path) {
		// key
		switch {
		case path[i] == '`':
			end := strings.IndexByte(path[i+1:], '`')
			if end < 0 {
				return nil, errorf(RetCInvalidPath, "unterminated quote in %q", path)
			}
			segs = append(segs, segment{key: path[i+1 : i+1+end]})
			i += end + 2
		case path[i] == '[':
			if len(segs) > 0 {
				return nil, errorf(RetCInvalidPath, "missing key before index in %q", path)
			}
		default:
			start := i
			for i < len(path) && path[i] != '.' && path[i] != '[' {
				i++
			}
			if i == start {
				return nil, errorf(RetCInvalidPath, "empty key in %q", path)
			}
			segs = append(segs, segment{key: path[start:i]})
		}

		// indexes
		for i < len(path) && path[i] == '[' {
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, errorf(RetCInvalidPath, "unterminated index in %q", path)
			}
			n, err := strconv.Atoi(path[i+1 : i+end])
			if err != nil || n < -1 {
				return nil, errorf(RetCInvalidPath, "invalid index %q in %q", path[i+1:i+end], path)
			}
			segs = append(segs, segment{index: n, isIdx: true})
			i += end + 1
		}

		if i < len(path) {
			if path[i] != '.' || i == len(path)-1 {
				return nil, errorf(RetCInvalidPath, "unexpected %q at offset %d in %q", path[i], i, path)
			}
			i++
		}
	}
	return segs, nil
}

// escapeKey escapes the characters gjson and sjson treat as path syntax
func escapeKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', '~':
			b.WriteByte('\\')
		}
		b.WriteByte(key[i])
	}
	return b.String()
}

func joinPath(parent, elem string) string {
	if parent == "" {
		return elem
	}
	return parent + "." + elem
}

// valueAt returns the value at a resolved path, the empty path is the root
func valueAt(doc []byte, path string) gjson.Result {
	if path == "" {
		return gjson.ParseBytes(doc)
	}
	return gjson.GetBytes(doc, path)
}

// step descends one segment from cur. It returns the resolved path element and the
// child, which may not exist.
func step(cur gjson.Result, seg segment) (string, gjson.Result, *Error) {
	if !seg.isIdx {
		if !cur.IsObject() {
			return "", gjson.Result{}, errorf(RetCPathMismatch, "%q is not inside an object", seg.key)
		}
		elem := escapeKey(seg.key)
		return elem, cur.Get(elem), nil
	}
	if !cur.IsArray() {
		return "", gjson.Result{}, errorf(RetCPathMismatch, "index %d is not inside an array", seg.index)
	}
	arr := cur.Array()
	idx := seg.index
	if idx < 0 {
		idx = len(arr) - 1
	}
	elem := strconv.Itoa(idx)
	if idx < 0 || idx >= len(arr) {
		return elem, gjson.Result{}, nil
	}
	return elem, arr[idx], nil
}

// locate walks segs through doc. A missing element fails with RetCPathNotFound,
// a scalar on the way with RetCPathMismatch. On failure path and depth describe
// the deepest element that exists.
func locate(doc []byte, segs []segment) (res gjson.Result, path string, depth int, err *Error) {
	cur := gjson.ParseBytes(doc)
	for i, seg := range segs {
		elem, next, err := step(cur, seg)
		if err != nil {
			return gjson.Result{}, path, i, err
		}
		if !next.Exists() {
			return gjson.Result{}, path, i, errorf(RetCPathNotFound, "path %q does not exist", joinPath(path, elem))
		}
		path = joinPath(path, elem)
		cur = next
	}
	return cur, path, len(segs), nil
}

// target is the location a mutation writes to
type target struct {
	parent        gjson.Result // container holding the last segment, unset if missing
	parentPath    string
	parentMissing bool
	last          segment
	path          string       // resolved path of the last segment
	current       gjson.Result // current value, may not exist
}

// locateTarget finds the parent of the last segment. With create, missing
// intermediate objects are accepted and created by the write. Arrays are never
// created implicitly.
func locateTarget(doc []byte, segs []segment, create bool) (*target, *Error) {
	if len(segs) == 0 {
		return nil, errorf(RetCInvalidPath, "mutations need a non empty path")
	}
	t := &target{last: segs[len(segs)-1]}

	parent, ppath, depth, err := locate(doc, segs[:len(segs)-1])
	if err != nil {
		if err.Code != RetCPathNotFound || !create {
			return nil, err
		}
		rest := segs[depth:]
		for _, seg := range rest {
			if seg.isIdx {
				return nil, err
			}
		}
		t.parentMissing = true
		t.path = joinPath(ppath, escapeKeys(rest))
		return t, nil
	}

	elem, cur, err := step(parent, t.last)
	if err != nil {
		return nil, err
	}
	t.parent, t.parentPath, t.current = parent, ppath, cur
	t.path = joinPath(ppath, elem)
	return t, nil
}

func escapeKeys(segs []segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = escapeKey(s.key)
	}
	return strings.Join(parts, ".")
}
