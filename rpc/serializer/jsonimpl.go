package serializer

import (
	"bytes"
	"encoding/json"

	"github.com/ValentinKolb/dDoc/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Documents, hits and search metadata are embedded as JSON instead of base64
// so that captured traffic stays readable.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// jsonMessage is the wire form of common.Message. Payloads that are not
// compact JSON fall back to the *_bin fields (base64).
type jsonMessage struct {
	MsgType  common.MessageType `json:"msg_type"`
	Key      string             `json:"key,omitempty"`
	Cas      uint64             `json:"cas,omitempty"`
	Value    json.RawMessage    `json:"value,omitempty"`
	ValueBin []byte             `json:"value_bin,omitempty"`
	Specs    []byte             `json:"specs,omitempty"`
	Rows     []json.RawMessage  `json:"rows,omitempty"`
	RowsBin  [][]byte           `json:"rows_bin,omitempty"`
	Done     bool               `json:"done,omitempty"`
	Code     uint64             `json:"code,omitempty"`
	Err      string             `json:"err,omitempty"`
	Meta     json.RawMessage    `json:"meta,omitempty"`
	MetaBin  []byte             `json:"meta_bin,omitempty"`
}

// isCompactJSON reports whether b is valid JSON that encodes to itself
func isCompactJSON(b []byte) bool {
	if len(b) == 0 || !json.Valid(b) {
		return false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return false
	}
	return bytes.Equal(buf.Bytes(), b)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	jm := jsonMessage{
		MsgType: msg.MsgType,
		Key:     msg.Key,
		Cas:     msg.Cas,
		Specs:   msg.Specs,
		Done:    msg.Done,
		Code:    msg.Code,
		Err:     msg.Err,
	}

	if isCompactJSON(msg.Value) {
		jm.Value = msg.Value
	} else {
		jm.ValueBin = msg.Value
	}

	if isCompactJSON(msg.Meta) {
		jm.Meta = msg.Meta
	} else {
		jm.MetaBin = msg.Meta
	}

	rawRows := true
	for _, row := range msg.Rows {
		if !isCompactJSON(row) {
			rawRows = false
			break
		}
	}
	if rawRows && len(msg.Rows) > 0 {
		jm.Rows = make([]json.RawMessage, len(msg.Rows))
		for i, row := range msg.Rows {
			jm.Rows[i] = row
		}
	} else {
		jm.RowsBin = msg.Rows
	}

	// HTML escaping would change the embedded documents
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jm); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	var jm jsonMessage
	if err := json.Unmarshal(b, &jm); err != nil {
		return err
	}

	*msg = common.Message{
		MsgType: jm.MsgType,
		Key:     jm.Key,
		Cas:     jm.Cas,
		Value:   jm.ValueBin,
		Specs:   jm.Specs,
		Rows:    jm.RowsBin,
		Done:    jm.Done,
		Code:    jm.Code,
		Err:     jm.Err,
		Meta:    jm.MetaBin,
	}
	if jm.Value != nil {
		msg.Value = []byte(jm.Value)
	}
	if jm.Meta != nil {
		msg.Meta = []byte(jm.Meta)
	}
	if jm.Rows != nil {
		msg.Rows = make([][]byte, len(jm.Rows))
		for i, row := range jm.Rows {
			msg.Rows[i] = []byte(row)
		}
	}
	return nil
}
