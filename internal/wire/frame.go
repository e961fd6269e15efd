package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameBytes bounds a single frame's payload size. A local socket
// speaking a fixed message set never needs more than a few megabytes per
// frame; this guards against a corrupt length prefix causing an
// unbounded allocation.
const MaxFrameBytes = 16 * 1024 * 1024

// WriteFrame writes a length-delimited frame: a 4-byte big-endian length
// prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameBytes {
		return fmt.Errorf("wire: frame of %d bytes exceeds max %d", len(payload), MaxFrameBytes)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-delimited frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds max %d", n, MaxFrameBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteMessage marshals v to CBOR and writes it as a single frame.
func WriteMessage(w io.Writer, v any) error {
	payload, err := Marshal(v)
	if err != nil {
		return err
	}
	return WriteFrame(w, payload)
}

// ReadMessage reads a single frame and unmarshals it into v.
func ReadMessage(r io.Reader, v any) error {
	payload, err := ReadFrame(r)
	if err != nil {
		return err
	}
	return Unmarshal(payload, v)
}
