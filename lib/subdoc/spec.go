package subdoc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Opcodes
// --------------------------------------------------------------------------

// Opcode identifies a sub-document command
type Opcode uint8

const (
	OpGet            Opcode = 1
	OpExists         Opcode = 2
	OpReplace        Opcode = 3
	OpDictAdd        Opcode = 4
	OpDictUpsert     Opcode = 5
	OpArrayAddFirst  Opcode = 6
	OpArrayAddLast   Opcode = 7
	OpArrayAddUnique Opcode = 8
	OpArrayInsert    Opcode = 9
	OpCounter        Opcode = 10
	OpRemove         Opcode = 11
)

func (o Opcode) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpExists:
		return "EXISTS"
	case OpReplace:
		return "REPLACE"
	case OpDictAdd:
		return "DICT_ADD"
	case OpDictUpsert:
		return "DICT_UPSERT"
	case OpArrayAddFirst:
		return "ARRAY_ADD_FIRST"
	case OpArrayAddLast:
		return "ARRAY_ADD_LAST"
	case OpArrayAddUnique:
		return "ARRAY_ADD_UNIQUE"
	case OpArrayInsert:
		return "ARRAY_INSERT"
	case OpCounter:
		return "COUNTER"
	case OpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(o)) + ")"
	}
}

// Valid reports whether o is a known opcode
func (o Opcode) Valid() bool {
	return o >= OpGet && o <= OpRemove
}

// IsLookup reports whether o only reads the document
func (o Opcode) IsLookup() bool {
	return o == OpGet || o == OpExists
}

// hasValue reports whether specs of this opcode carry a value
func (o Opcode) hasValue() bool {
	switch o {
	case OpGet, OpExists, OpRemove:
		return false
	default:
		return o.Valid()
	}
}

// --------------------------------------------------------------------------
// Spec
// --------------------------------------------------------------------------

// MultiValue marks a value that expands to several array elements
type MultiValue []any

// Spec is an immutable sub-document command. Lookup and remove specs are
// (op, path); all mutations carry a value and the create-parents flag.
type Spec struct {
	op            Opcode
	path          string
	value         any
	createParents bool
}

// Op returns the opcode
func (s Spec) Op() Opcode { return s.op }

// Path returns the document path the command addresses
func (s Spec) Path() string { return s.path }

// Value returns the value and whether this kind of spec carries one
func (s Spec) Value() (any, bool) { return s.value, s.op.hasValue() }

// CreateParents reports whether missing intermediate paths are created
func (s Spec) CreateParents() bool { return s.createParents }

// Len returns the tuple length: 2 for lookups and remove, 4 otherwise
func (s Spec) Len() int {
	if s.op.hasValue() {
		return 4
	}
	return 2
}

// Tuple returns (op, path) or (op, path, value, create) with create as 0 or 1
func (s Spec) Tuple() []any {
	if !s.op.hasValue() {
		return []any{s.op, s.path}
	}
	create := 0
	if s.createParents {
		create = 1
	}
	return []any{s.op, s.path, s.value, create}
}

// Equal compares two specs element-wise
func (s Spec) Equal(o Spec) bool {
	if s.op != o.op || s.path != o.path || s.createParents != o.createParents {
		return false
	}
	if !s.op.hasValue() {
		return true
	}
	a, errA := json.Marshal(s.value)
	b, errB := json.Marshal(o.value)
	return errA == nil && errB == nil && string(a) == string(b)
}

// String renders the spec, e.g. Spec<REPLACE, "a.b", 5, 0>
func (s Spec) String() string {
	var sb strings.Builder
	sb.WriteString("Spec<")
	sb.WriteString(s.op.String())
	sb.WriteString(", ")
	sb.WriteString(strconv.Quote(s.path))
	if s.op.hasValue() {
		sb.WriteString(", ")
		sb.WriteString(renderValue(s.value))
		if s.createParents {
			sb.WriteString(", 1")
		} else {
			sb.WriteString(", 0")
		}
	}
	sb.WriteString(">")
	return sb.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case MultiValue:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = renderValue(p)
		}
		return "MultiValue(" + strings.Join(parts, ", ") + ")"
	case json.RawMessage:
		return string(val)
	case string:
		return strconv.Quote(val)
	default:
		if b, err := json.Marshal(val); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", val)
	}
}

// --------------------------------------------------------------------------
// Builders
// --------------------------------------------------------------------------

// Get retrieves the value at path
func Get(path string) Spec {
	return Spec{op: OpGet, path: path}
}

// Exists checks whether path exists
func Exists(path string) Spec {
	return Spec{op: OpExists, path: path}
}

// Remove deletes the value at path
func Remove(path string) Spec {
	return Spec{op: OpRemove, path: path}
}

// Replace replaces an existing value, it never creates parents
func Replace(path string, value any) Spec {
	return Spec{op: OpReplace, path: path, value: value}
}

// Insert adds a new dictionary entry, failing if it exists
func Insert(path string, value any, createParents bool) Spec {
	return Spec{op: OpDictAdd, path: path, value: value, createParents: createParents}
}

// Upsert sets a dictionary entry whether or not it exists
func Upsert(path string, value any, createParents bool) Spec {
	return Spec{op: OpDictUpsert, path: path, value: value, createParents: createParents}
}

// PushFirst prepends values to the array at path
func PushFirst(path string, createParents bool, values ...any) Spec {
	return Spec{op: OpArrayAddFirst, path: path, value: MultiValue(values), createParents: createParents}
}

// PushLast appends values to the array at path
func PushLast(path string, createParents bool, values ...any) Spec {
	return Spec{op: OpArrayAddLast, path: path, value: MultiValue(values), createParents: createParents}
}

// PushAt inserts values at the array position named by path (e.g. "arr[2]")
func PushAt(path string, values ...any) Spec {
	return Spec{op: OpArrayInsert, path: path, value: MultiValue(values)}
}

// PushUnique appends value to the array at path unless it is already present
func PushUnique(path string, value any, createParents bool) Spec {
	return Spec{op: OpArrayAddUnique, path: path, value: value, createParents: createParents}
}

// Counter adds delta to the number at path
func Counter(path string, delta int64, createParents bool) Spec {
	return Spec{op: OpCounter, path: path, value: delta, createParents: createParents}
}

// newSpec is used by the decoder
func newSpec(op Opcode, path string, value any, createParents bool) Spec {
	if !op.hasValue() {
		return Spec{op: op, path: path}
	}
	return Spec{op: op, path: path, value: value, createParents: createParents}
}
