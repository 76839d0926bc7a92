package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

const (
	// FrameHeaderSize is the size of the fixed frame header
	FrameHeaderSize = 20
	// MaxFrameSize limits the payload of a single frame
	MaxFrameSize = 64 << 20
)

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: bucketID (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, bucketID uint64, requestID uint64, data []byte) error {
	header := putHeader(make([]byte, FrameHeaderSize), bucketID, requestID, len(data))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(conn net.Conn, buf []byte) (uint64, uint64, []byte, error) {
	// Check if buffer is large enough for header
	if len(buf) < FrameHeaderSize {
		buf = make([]byte, FrameHeaderSize)
	}

	// Read header
	if _, err := io.ReadFull(conn, buf[:FrameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}

	// Parse header
	bucketID := binary.BigEndian.Uint64(buf[:8])
	requestID := binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	if contentLength > MaxFrameSize {
		return 0, 0, nil, fmt.Errorf("frame of %d bytes exceeds the limit of %d bytes", contentLength, MaxFrameSize)
	}

	// If no data, return empty slice
	if contentLength == 0 {
		return bucketID, requestID, []byte{}, nil
	}

	// Check if buffer is large enough for data
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	// Read data
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	return bucketID, requestID, buf[:contentLength], nil
}

// --------------------------------------------------------------------------
// Non-blocking frame helpers (used by the client engine)
// --------------------------------------------------------------------------

// AppendFrame appends a complete frame to dst and returns the extended buffer
func AppendFrame(dst []byte, bucketID, requestID uint64, data []byte) []byte {
	var header [FrameHeaderSize]byte
	putHeader(header[:], bucketID, requestID, len(data))
	dst = append(dst, header[:]...)
	return append(dst, data...)
}

// DecodeFrame decodes the first frame of buf. ok is false if buf does not yet hold
// a complete frame, n is the number of bytes the frame occupies. The payload
// aliases buf. An error is returned for a frame that exceeds MaxFrameSize.
func DecodeFrame(buf []byte) (bucketID, requestID uint64, data []byte, n int, ok bool, err error) {
	if len(buf) < FrameHeaderSize {
		return 0, 0, nil, 0, false, nil
	}
	contentLength := binary.BigEndian.Uint32(buf[16:20])
	if contentLength > MaxFrameSize {
		return 0, 0, nil, 0, false, fmt.Errorf("frame of %d bytes exceeds the limit of %d bytes", contentLength, MaxFrameSize)
	}
	n = FrameHeaderSize + int(contentLength)
	if len(buf) < n {
		return 0, 0, nil, 0, false, nil
	}
	bucketID = binary.BigEndian.Uint64(buf[:8])
	requestID = binary.BigEndian.Uint64(buf[8:16])
	return bucketID, requestID, buf[FrameHeaderSize:n], n, true, nil
}

func putHeader(header []byte, bucketID, requestID uint64, length int) []byte {
	binary.BigEndian.PutUint64(header[:8], bucketID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(length))
	return header
}
