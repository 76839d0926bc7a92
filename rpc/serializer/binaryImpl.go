package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dDoc/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	1 byte  message type
//	2 bytes flags (which optional fields follow)
//	fields in declaration order, strings and byte slices prefixed with a
//	4 byte length, Rows with a 4 byte count. Done is carried by its flag only.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey   uint16 = 1 << 0
	hasCas   uint16 = 1 << 1
	hasValue uint16 = 1 << 2
	hasSpecs uint16 = 1 << 3
	hasRows  uint16 = 1 << 4
	hasDone  uint16 = 1 << 5
	hasCode  uint16 = 1 << 6
	hasErr   uint16 = 1 << 7
	hasMeta  uint16 = 1 << 8
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, headerSize, b.sizeBytes(msg))
	result[0] = byte(msg.MsgType)

	var flags uint16

	if msg.Key != "" {
		flags |= hasKey
		result = appendBytes(result, []byte(msg.Key))
	}
	if msg.Cas != 0 {
		flags |= hasCas
		result = binary.BigEndian.AppendUint64(result, msg.Cas)
	}
	if msg.Value != nil {
		flags |= hasValue
		result = appendBytes(result, msg.Value)
	}
	if msg.Specs != nil {
		flags |= hasSpecs
		result = appendBytes(result, msg.Specs)
	}
	if msg.Rows != nil {
		flags |= hasRows
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Rows)))
		for _, row := range msg.Rows {
			result = appendBytes(result, row)
		}
	}
	if msg.Done {
		flags |= hasDone
	}
	if msg.Code != 0 {
		flags |= hasCode
		result = binary.BigEndian.AppendUint64(result, msg.Code)
	}
	if msg.Err != "" {
		flags |= hasErr
		result = appendBytes(result, []byte(msg.Err))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		result = appendBytes(result, msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)
	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := reader{data: data, pos: headerSize}

	if flags&hasKey != 0 {
		key, err := r.bytes("key")
		if err != nil {
			return err
		}
		msg.Key = string(key)
	}
	if flags&hasCas != 0 {
		cas, err := r.uint64("cas")
		if err != nil {
			return err
		}
		msg.Cas = cas
	}
	if flags&hasValue != 0 {
		value, err := r.bytes("value")
		if err != nil {
			return err
		}
		msg.Value = value
	}
	if flags&hasSpecs != 0 {
		specs, err := r.bytes("specs")
		if err != nil {
			return err
		}
		msg.Specs = specs
	}
	if flags&hasRows != 0 {
		n, err := r.uint32("row count")
		if err != nil {
			return err
		}
		// every row needs at least its length prefix
		if int(n) > (len(data)-r.pos)/4 {
			return fmt.Errorf("data too short for %d rows", n)
		}
		msg.Rows = make([][]byte, n)
		for i := range msg.Rows {
			if msg.Rows[i], err = r.bytes("row"); err != nil {
				return err
			}
		}
	}
	msg.Done = flags&hasDone != 0
	if flags&hasCode != 0 {
		code, err := r.uint64("code")
		if err != nil {
			return err
		}
		msg.Code = code
	}
	if flags&hasErr != 0 {
		e, err := r.bytes("error")
		if err != nil {
			return err
		}
		msg.Err = string(e)
	}
	if flags&hasMeta != 0 {
		meta, err := r.bytes("meta")
		if err != nil {
			return err
		}
		msg.Meta = meta
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Cas != 0 {
		size += 8
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Specs != nil {
		size += 4 + len(msg.Specs)
	}
	if msg.Rows != nil {
		size += 4
		for _, row := range msg.Rows {
			size += 4 + len(row)
		}
	}
	if msg.Code != 0 {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}
	return size
}

func appendBytes(dst, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	return append(dst, data...)
}

// reader reads length prefixed fields, every returned slice is a copy
type reader struct {
	data []byte
	pos  int
}

func (r *reader) uint32(field string) (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) uint64(field string) (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) bytes(field string) ([]byte, error) {
	n, err := r.uint32(field + " length")
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.data) {
		return nil, fmt.Errorf("data too short for %s data", field)
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}
