package codec

import (
	"bytes"
	"encoding/gob"
)

// GobCodec is the reference Codec, backed by encoding/gob. It is the
// same approach retryrpc-style RPC layers reach for when they need to
// move arbitrary Go values across a wire or, here, across a
// file-format boundary: gob already knows how to self-describe enough to
// decode a value into an interface{} it never saw a concrete type
// declaration for, provided the concrete type was registered once with
// gob.Register (see gob's own documentation on interface values).
//
// Callers that key their archive on anything other than the handful of
// builtin types gob already knows (strings, ints, etc.) must
// gob.Register their key type before calling Store.Open.
type GobCodec struct{}

// Encode gob-encodes value into a self-describing byte string.
func (GobCodec) Encode(value interface{}) (encoded []byte, err error) {
	var buf bytes.Buffer

	err = gob.NewEncoder(&buf).Encode(value)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode gob-decodes encoded into out, which must be a non-nil pointer.
// Passing a *interface{} recovers whatever concrete type was registered
// at Encode time.
func (GobCodec) Decode(encoded []byte, out interface{}) (err error) {
	return gob.NewDecoder(bytes.NewReader(encoded)).Decode(out)
}
