// Package codec defines the byte-string encoding contract the store and
// overlay packages use for caller-supplied keys, plus a reference
// implementation.
//
// Neither the store nor the overlay know anything about the concrete Go
// type a caller chooses for keys: a Codec is how a key gets turned into
// bytes for on-disk storage and ordered comparison, and how bytes read
// back from the backing file turn back into a value the caller can
// recognize with ==.
package codec

// Codec encodes and decodes values to and from opaque byte strings.
//
// Encode must be deterministic: encoding the same value twice must
// produce identical bytes, since the store uses encoded key bytes as the
// ordering key of its index.
type Codec interface {
	Encode(value interface{}) (encoded []byte, err error)
	Decode(encoded []byte, out interface{}) (err error)
}
