package subdoc

import (
	"encoding/json"
	"fmt"
)

// Item is the outcome of one command of a batch.
// Code is zero on success, otherwise Err describes the failure.
type Item struct {
	Op    Opcode          `json:"op"`
	Path  string          `json:"path"`
	Code  uint64          `json:"code,omitempty"`
	Err   string          `json:"err,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Ok reports whether the command succeeded
func (i Item) Ok() bool { return i.Code == 0 }

// ItemError is returned when reading the value of a failed command
type ItemError struct {
	Index int
	Path  string
	Code  uint64
	Msg   string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("subdoc command %d (%q) failed with code %d: %s", e.Index, e.Path, e.Code, e.Msg)
}

// Result is the outcome of a LookupIn or MutateIn call
type Result struct {
	Key   string
	Cas   uint64
	Items []Item
}

// Len returns the number of commands
func (r *Result) Len() int { return len(r.Items) }

// Get decodes the value of command i into v
func (r *Result) Get(i int, v any) error {
	if err := r.Err(i); err != nil {
		return err
	}
	if len(r.Items[i].Value) == 0 {
		return fmt.Errorf("subdoc command %d (%q) returned no value", i, r.Items[i].Path)
	}
	return json.Unmarshal(r.Items[i].Value, v)
}

// Exists reports whether command i found its path
func (r *Result) Exists(i int) bool {
	return i >= 0 && i < len(r.Items) && r.Items[i].Ok()
}

// Err returns the error of command i, nil on success
func (r *Result) Err(i int) error {
	if i < 0 || i >= len(r.Items) {
		return fmt.Errorf("subdoc: index %d out of range (%d commands)", i, len(r.Items))
	}
	it := r.Items[i]
	if it.Ok() {
		return nil
	}
	return &ItemError{Index: i, Path: it.Path, Code: it.Code, Msg: it.Err}
}
