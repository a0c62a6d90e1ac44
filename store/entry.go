package store

import "container/list"

// Entry is the metadata-plus-optional-payload record for one stored
// object. One Entry exists per key present in a Store's index, whether
// or not its data is currently resident in the buffer.
type Entry struct {
	Key         interface{} // caller-supplied identifier
	KeyBytes    []byte      // Key, encoded via the Store's Codec; also the index key
	Data        []byte      // non-nil iff resident in the buffer
	IndexInFile uint64      // offset of the payload in the backing file; valid once written back at least once
	Size        uint64      // payload length in bytes
	Modified    bool        // true iff Data is newer than what is on disk

	// element is this Entry's node in Store.lru, non-nil iff Data is
	// non-nil. A scheme that kept raw pointers from the LRU list into
	// hash-map-owned values would need to worry about those pointers
	// being invalidated by a map rehash; Go's garbage collector and
	// pointer-stable allocations make that moot, so Entry and its
	// list.Element simply point at each other.
	element *list.Element
}
