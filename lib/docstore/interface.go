package docstore

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dDoc/lib/subdoc"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Factory creates the store of one bucket
type Factory func(bucket string) IDocStore

// IDocStore is the interface of a JSON document store.
// Every failure is returned as a *Error carrying a RetCode.
// A cas of zero disables the compare-and-swap check.
type IDocStore interface {
	// Get returns the document and its cas
	Get(key string) (value []byte, cas uint64, err error)
	// Upsert inserts or replaces a document and returns its new cas.
	// With a non zero cas the document must exist and still carry that cas.
	Upsert(key string, value []byte, cas uint64) (newCas uint64, err error)
	// Remove deletes a document
	Remove(key string, cas uint64) (err error)
	// LookupIn reads several paths of one document. Failures of single paths are
	// reported per item, the error is only set if the whole command failed.
	LookupIn(key string, specs []subdoc.Spec) (*subdoc.Result, error)
	// MutateIn applies several mutations to one document atomically.
	// Either all specs are applied or none.
	MutateIn(key string, specs []subdoc.Spec, cas uint64) (*subdoc.Result, error)
	// Search evaluates a search body against all documents. Problems with the
	// query itself are reported in the "errors" field of the metadata.
	Search(body []byte) (hits []json.RawMessage, meta []byte)
	// Len returns the number of documents
	Len() int
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code and a message
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

func (e *Error) Error() string {
	return fmt.Sprintf("DocStoreError (code %s): %s", e.Code, e.Msg)
}

// Is matches errors with the same code, so that errors.Is works against the
// sentinel values below
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message
func NewError(code RetCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func errorf(code RetCode, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCKeyNotFound                         // 4: The document does not exist.
	RetCKeyExists                           // 5: The document exists or its cas changed.
	RetCPathNotFound                        // 6: The path does not exist in the document.
	RetCPathExists                          // 7: The path (or array value) already exists.
	RetCPathMismatch                        // 8: The path exists but has the wrong type.
	RetCInvalidPath                         // 9: The path could not be parsed.
	RetCValueInvalid                        // 10: The value is not valid for the command.
	RetCDeltaInvalid                        // 11: The counter delta is zero or overflows.
	RetCDocNotJSON                          // 12: The document is not a JSON object or array.
)

var retCodeNames = [...]string{
	"Success", "InternalError", "UnsupportedOperation", "InvalidOperation",
	"KeyNotFound", "KeyExists", "PathNotFound", "PathExists", "PathMismatch",
	"InvalidPath", "ValueInvalid", "DeltaInvalid", "DocNotJSON",
}

func (c RetCode) String() string {
	if int(c) < len(retCodeNames) {
		return retCodeNames[c]
	}
	return fmt.Sprintf("Unknown(%d)", uint64(c))
}

// Sentinels for errors.Is
var (
	ErrInternal             = &Error{Code: RetCInternalError}
	ErrUnsupportedOperation = &Error{Code: RetCUnsupportedOperation}
	ErrInvalidOperation     = &Error{Code: RetCInvalidOperation}
	ErrKeyNotFound          = &Error{Code: RetCKeyNotFound}
	ErrKeyExists            = &Error{Code: RetCKeyExists}
	ErrPathNotFound         = &Error{Code: RetCPathNotFound}
	ErrPathExists           = &Error{Code: RetCPathExists}
	ErrPathMismatch         = &Error{Code: RetCPathMismatch}
	ErrInvalidPath          = &Error{Code: RetCInvalidPath}
	ErrValueInvalid         = &Error{Code: RetCValueInvalid}
	ErrDeltaInvalid         = &Error{Code: RetCDeltaInvalid}
	ErrDocNotJSON           = &Error{Code: RetCDocNotJSON}
)
