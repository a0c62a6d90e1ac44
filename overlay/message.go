package overlay

import (
	"bytes"
	"encoding/gob"
)

// Wire message shapes for the eight logical tags. Fields typed
// interface{} carry caller keys; exactly like codec.GobCodec, the host
// must gob.Register its key type once before these ever cross the
// dispatcher, since gob's interface decoding needs the concrete type
// pre-declared.
type aliveMsg struct {
	Alive bool
}

type invalidatedMsg struct {
	Key interface{}
}

type insertedMsg struct {
	Key interface{}
}

type changeKeyMsg struct {
	OldKey interface{}
	NewKey interface{}
}

type requestMsg struct {
	Key     interface{}
	Counter uint64
}

type responseMsg struct {
	Key     interface{}
	Counter uint64
	Found   bool
}

type requestDataMsg struct {
	Key     interface{}
	Counter uint64
}

type responseDataMsg struct {
	Key     interface{}
	Counter uint64
	Valid   bool
	Data    []byte
}

func encodeMsg(v interface{}) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeMsg(payload []byte, out interface{}) error {
	return gob.NewDecoder(bytes.NewReader(payload)).Decode(out)
}
