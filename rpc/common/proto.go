package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/lib/subdoc"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: Get, Upsert, Remove, LookupIn, MutateIn
	Cas   uint64 `json:"cas,omitempty"`   // Used for: Upsert, Remove, MutateIn (request) and all document responses
	Value []byte `json:"value,omitempty"` // Used for: Upsert and Search (request), Get, LookupIn, MutateIn (response)
	Specs []byte `json:"specs,omitempty"` // Used for: LookupIn, MutateIn (encoded sub-document batch)

	// Streaming fields
	Rows [][]byte `json:"rows,omitempty"` // Used for: Search responses, one batch of hits
	Done bool     `json:"done,omitempty"` // Set on the last frame of a streamed response

	// Response only fields
	Code uint64 `json:"code,omitempty"` // docstore.RetCode of a failed operation
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Search (final frame carries the metadata)
}

// Error returns the error carried by a response, nil on success.
// Errors of the document store are restored with their code.
func (m *Message) Error() error {
	if m.Err == "" && m.Code == 0 {
		return nil
	}
	if m.Code != 0 {
		return docstore.NewError(docstore.RetCode(m.Code), m.Err)
	}
	return errors.New(m.Err)
}

// setErr stores err in the response, keeping the code of docstore errors
func (m *Message) setErr(err error) *Message {
	if err == nil {
		return m
	}
	var dsErr *docstore.Error
	if errors.As(err, &dsErr) {
		m.Code = uint64(dsErr.Code)
		m.Err = dsErr.Msg
	} else {
		m.Code = uint64(docstore.RetCInternalError)
		m.Err = err.Error()
	}
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTDocGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, cas uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTDocGet,
		Value:   value,
		Cas:     cas,
	}
	return msg.setErr(err)
}

// NewUpsertRequest creates a new Upsert request, a cas of zero disables the check
func NewUpsertRequest(key string, value []byte, cas uint64) *Message {
	return &Message{
		MsgType: MsgTDocUpsert,
		Key:     key,
		Value:   value,
		Cas:     cas,
	}
}

// NewUpsertResponse creates a new Upsert response
func NewUpsertResponse(cas uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTDocUpsert,
		Cas:     cas,
	}
	return msg.setErr(err)
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(key string, cas uint64) *Message {
	return &Message{
		MsgType: MsgTDocRemove,
		Key:     key,
		Cas:     cas,
	}
}

// NewRemoveResponse creates a new Remove response
func NewRemoveResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTDocRemove,
	}
	return msg.setErr(err)
}

// NewLookupInRequest creates a new LookupIn request
func NewLookupInRequest(key string, specs []subdoc.Spec) (*Message, error) {
	encoded, err := subdoc.Encode(specs)
	if err != nil {
		return nil, err
	}
	return &Message{
		MsgType: MsgTSubLookupIn,
		Key:     key,
		Specs:   encoded,
	}, nil
}

// NewMutateInRequest creates a new MutateIn request
func NewMutateInRequest(key string, specs []subdoc.Spec, cas uint64) (*Message, error) {
	encoded, err := subdoc.Encode(specs)
	if err != nil {
		return nil, err
	}
	return &Message{
		MsgType: MsgTSubMutateIn,
		Key:     key,
		Specs:   encoded,
		Cas:     cas,
	}, nil
}

// NewSubdocResponse creates a LookupIn or MutateIn response. The items travel as JSON.
func NewSubdocResponse(msgType MessageType, res *subdoc.Result, err error) *Message {
	msg := &Message{MsgType: msgType}
	if err != nil {
		return msg.setErr(err)
	}
	items, mErr := json.Marshal(res.Items)
	if mErr != nil {
		return msg.setErr(fmt.Errorf("encode items: %w", mErr))
	}
	msg.Cas = res.Cas
	msg.Value = items
	return msg
}

// SubdocResult restores the result carried by a LookupIn or MutateIn response
func (m *Message) SubdocResult(key string) (*subdoc.Result, error) {
	if err := m.Error(); err != nil {
		return nil, err
	}
	res := &subdoc.Result{Key: key, Cas: m.Cas}
	if err := json.Unmarshal(m.Value, &res.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return res, nil
}

// NewSearchRequest creates a new Search request carrying the encoded search body
func NewSearchRequest(body []byte) *Message {
	return &Message{
		MsgType: MsgTSearch,
		Value:   body,
	}
}

// NewSearchRowsResponse creates an intermediate Search response with one batch of hits
func NewSearchRowsResponse(rows [][]byte) *Message {
	return &Message{
		MsgType: MsgTSearch,
		Rows:    rows,
	}
}

// NewSearchDoneResponse creates the final Search response carrying the metadata
func NewSearchDoneResponse(meta []byte) *Message {
	return &Message{
		MsgType: MsgTSearch,
		Done:    true,
		Meta:    meta,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint64(docstore.RetCInternalError),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:     "success",
	MsgTError:       "error",
	MsgTDocGet:      "get",
	MsgTDocUpsert:   "upsert",
	MsgTDocRemove:   "remove",
	MsgTSubLookupIn: "lookupIn",
	MsgTSubMutateIn: "mutateIn",
	MsgTSearch:      "search",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for mt, name := range messageTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Document operations

	MsgTDocGet    // Get a document
	MsgTDocUpsert // Insert or replace a document
	MsgTDocRemove // Remove a document

	// Sub-document operations

	MsgTSubLookupIn // Read paths of a document
	MsgTSubMutateIn // Atomically change paths of a document

	// Search

	MsgTSearch // Run a search query, answered with a stream of frames
)
