package subdoc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrNoCommands     = errors.New("subdoc: need one or more commands")
	ErrInvalidOpcode  = errors.New("subdoc: invalid opcode")
	ErrInvalidPath    = errors.New("subdoc: path must be valid UTF-8")
	ErrMalformedBatch = errors.New("subdoc: malformed command batch")
)

// Bit flags of a single encoded command
const (
	flagCreateParents byte = 1 << 0
	flagMultiValue    byte = 1 << 1
	flagHasValue      byte = 1 << 2
)

// Encode serializes a batch of specs. Every command is laid out as:
// - 1 byte: opcode
// - 1 byte: flags
// - 4 bytes: path length (uint32, big endian) + path
// - if flagHasValue: 4 bytes value length + JSON value (a JSON array for multi values)
//
// The batch is prefixed with the number of commands (uint16, big endian).
func Encode(specs []Spec) ([]byte, error) {
	if len(specs) == 0 {
		return nil, ErrNoCommands
	}
	if len(specs) > 0xFFFF {
		return nil, fmt.Errorf("subdoc: too many commands (%d)", len(specs))
	}

	result := make([]byte, 2, 2+len(specs)*16)
	binary.BigEndian.PutUint16(result[:2], uint16(len(specs)))

	for i, s := range specs {
		if !s.op.Valid() {
			return nil, fmt.Errorf("%w: command %d has opcode %d", ErrInvalidOpcode, i, s.op)
		}
		if !utf8.ValidString(s.path) {
			return nil, fmt.Errorf("%w: command %d", ErrInvalidPath, i)
		}

		var flags byte
		if s.createParents {
			flags |= flagCreateParents
		}

		var value []byte
		if s.op.hasValue() {
			flags |= flagHasValue
			raws, multi, err := s.rawValues()
			if err != nil {
				return nil, fmt.Errorf("subdoc: command %d: %w", i, err)
			}
			if multi {
				flags |= flagMultiValue
				value, err = json.Marshal(raws)
				if err != nil {
					return nil, fmt.Errorf("subdoc: command %d: %w", i, err)
				}
			} else {
				value = raws[0]
			}
		}

		result = append(result, byte(s.op), flags)
		result = binary.BigEndian.AppendUint32(result, uint32(len(s.path)))
		result = append(result, s.path...)
		if flags&flagHasValue != 0 {
			result = binary.BigEndian.AppendUint32(result, uint32(len(value)))
			result = append(result, value...)
		}
	}

	return result, nil
}

// Decode parses a batch produced by Encode. Values are returned as
// json.RawMessage, multi values as a MultiValue of json.RawMessage.
func Decode(data []byte) ([]Spec, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: data too short for command count", ErrMalformedBatch)
	}

	count := int(binary.BigEndian.Uint16(data[:2]))
	if count == 0 {
		return nil, ErrNoCommands
	}
	pos := 2

	specs := make([]Spec, 0, count)
	for i := 0; i < count; i++ {
		if pos+6 > len(data) {
			return nil, fmt.Errorf("%w: data too short for command %d header", ErrMalformedBatch, i)
		}
		op := Opcode(data[pos])
		flags := data[pos+1]
		pathLen := int(binary.BigEndian.Uint32(data[pos+2 : pos+6]))
		pos += 6

		if !op.Valid() {
			return nil, fmt.Errorf("%w: command %d has opcode %d", ErrInvalidOpcode, i, op)
		}
		if pos+pathLen > len(data) {
			return nil, fmt.Errorf("%w: data too short for command %d path", ErrMalformedBatch, i)
		}
		path := string(data[pos : pos+pathLen])
		pos += pathLen

		var value any
		if flags&flagHasValue != 0 {
			if pos+4 > len(data) {
				return nil, fmt.Errorf("%w: data too short for command %d value length", ErrMalformedBatch, i)
			}
			valueLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
			pos += 4
			if pos+valueLen > len(data) {
				return nil, fmt.Errorf("%w: data too short for command %d value", ErrMalformedBatch, i)
			}
			raw := json.RawMessage(append([]byte(nil), data[pos:pos+valueLen]...))
			pos += valueLen

			if flags&flagMultiValue != 0 {
				var elems []json.RawMessage
				if err := json.Unmarshal(raw, &elems); err != nil {
					return nil, fmt.Errorf("%w: command %d multi value: %v", ErrMalformedBatch, i, err)
				}
				mv := make(MultiValue, len(elems))
				for j, e := range elems {
					mv[j] = e
				}
				value = mv
			} else {
				value = raw
			}
		}

		specs = append(specs, newSpec(op, path, value, flags&flagCreateParents != 0))
	}

	if pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedBatch, len(data)-pos)
	}
	return specs, nil
}

// RawValues returns the JSON encoding of the spec value, one entry per
// element for multi values.
func (s Spec) RawValues() ([]json.RawMessage, error) {
	if !s.op.hasValue() {
		return nil, nil
	}
	raws, _, err := s.rawValues()
	return raws, err
}

func (s Spec) rawValues() ([]json.RawMessage, bool, error) {
	if mv, ok := s.value.(MultiValue); ok {
		raws := make([]json.RawMessage, len(mv))
		for i, v := range mv {
			raw, err := marshalValue(v)
			if err != nil {
				return nil, true, err
			}
			raws[i] = raw
		}
		return raws, true, nil
	}
	raw, err := marshalValue(s.value)
	if err != nil {
		return nil, false, err
	}
	return []json.RawMessage{raw}, false, nil
}

func marshalValue(v any) (json.RawMessage, error) {
	switch val := v.(type) {
	case json.RawMessage:
		if !json.Valid(val) {
			return nil, fmt.Errorf("value is not valid JSON")
		}
		return val, nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("value is not JSON serializable: %w", err)
		}
		return b, nil
	}
}
