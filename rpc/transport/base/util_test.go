package base

import (
	"bytes"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte("hello frame")
	go func() {
		if err := writeFrame(client, 7, 42, payload); err != nil {
			t.Errorf("writeFrame failed: %v", err)
		}
	}()

	bucketID, requestID, data, err := readFrame(server, make([]byte, 4))
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if bucketID != 7 || requestID != 42 {
		t.Errorf("Expected ids 7/42, got %d/%d", bucketID, requestID)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Expected payload %q, got %q", payload, data)
	}
}

func TestAppendDecodeFrame(t *testing.T) {
	var buf []byte
	buf = AppendFrame(buf, 1, 10, []byte("first"))
	buf = AppendFrame(buf, 1, 11, nil)
	buf = AppendFrame(buf, 2, 12, []byte("third"))

	want := []struct {
		bucketID, requestID uint64
		data                string
	}{
		{1, 10, "first"},
		{1, 11, ""},
		{2, 12, "third"},
	}
	for i, w := range want {
		bucketID, requestID, data, n, ok, err := DecodeFrame(buf)
		if err != nil || !ok {
			t.Fatalf("Frame %d: expected a complete frame, got ok=%v err=%v", i, ok, err)
		}
		if bucketID != w.bucketID || requestID != w.requestID || string(data) != w.data {
			t.Errorf("Frame %d: got %d/%d/%q", i, bucketID, requestID, data)
		}
		buf = buf[n:]
	}
	if len(buf) != 0 {
		t.Errorf("Expected buffer to be consumed, %d bytes left", len(buf))
	}
}

func TestDecodeFramePartial(t *testing.T) {
	frame := AppendFrame(nil, 3, 4, []byte("payload"))
	for cut := 0; cut < len(frame); cut++ {
		if _, _, _, _, ok, err := DecodeFrame(frame[:cut]); ok || err != nil {
			t.Fatalf("Prefix of %d bytes: expected incomplete frame, got ok=%v err=%v", cut, ok, err)
		}
	}

	huge := putHeader(make([]byte, FrameHeaderSize), 1, 1, MaxFrameSize+1)
	if _, _, _, _, _, err := DecodeFrame(huge); err == nil {
		t.Error("Expected an error for an oversized frame")
	}
}
