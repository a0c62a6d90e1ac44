package store

import (
	"github.com/NVIDIA/cstruct"
)

// fileHeader and entryHeader mirror the on-disk layout:
//
//	[ entry_count : u64 ]
//	for each entry:
//	  [ key_blob_size : u64 ]
//	  [ payload_size  : u64 ]
//	  [ key_blob      : key_blob_size bytes ]
//	  [ payload       : payload_size bytes  ]
//
// Fixed little-endian regardless of host architecture; files are not
// portable across differently-endian hosts, which is an accepted
// limitation rather than a bug.
type fileHeader struct {
	EntryCount uint64
}

type entryHeader struct {
	KeyBlobSize uint64
	PayloadSize uint64
}

const fileHeaderSize = 8
const entryHeaderSize = 16

func packFileHeader(entryCount uint64) []byte {
	b, _ := cstruct.Pack(&fileHeader{EntryCount: entryCount}, cstruct.LittleEndian)
	return b
}

func unpackFileHeader(b []byte) (entryCount uint64, err error) {
	var h fileHeader
	_, err = cstruct.Unpack(b, &h, cstruct.LittleEndian)
	return h.EntryCount, err
}

func packEntryHeader(keyBlobSize, payloadSize uint64) []byte {
	b, _ := cstruct.Pack(&entryHeader{KeyBlobSize: keyBlobSize, PayloadSize: payloadSize}, cstruct.LittleEndian)
	return b
}

func unpackEntryHeader(b []byte) (keyBlobSize, payloadSize uint64, err error) {
	var h entryHeader
	_, err = cstruct.Unpack(b, &h, cstruct.LittleEndian)
	return h.KeyBlobSize, h.PayloadSize, err
}
