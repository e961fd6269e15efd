// Package wire implements mcprocd's RPC wire schema: a length-delimited
// binary framing layer over CBOR (spec.md §4.3, §6). The framing and
// encoding configuration are grounded on
// bureau-foundation-bureau/lib/codec/cbor.go's Core Deterministic Encoding
// setup.
package wire

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding, so the same
// message always produces identical bytes — useful for tests that compare
// encoded frames byte for byte.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage delays decoding of an envelope's payload until its OpCode (or
// Kind) is known.
type RawMessage = cbor.RawMessage

// NewDecoder returns a streaming CBOR decoder over r, used by tests that
// want to decode frames without going through ReadFrame.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
