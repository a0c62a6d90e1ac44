// Package utils provides small stand-alone helpers shared by the rest of
// the module: byte/uint conversions used when framing keys and overlay
// messages, and GetGID(), which trackedlock uses to make Mutex re-entrant.
package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"runtime"
	"strconv"
)

// ByteSliceToUint32 decodes a 4-byte little-endian slice.
func ByteSliceToUint32(byteSlice []byte) (u32 uint32, ok bool) {
	if 4 != len(byteSlice) {
		ok = false
		return
	}

	u32 = binary.LittleEndian.Uint32(byteSlice)
	ok = true

	return
}

// Uint32ToByteSlice encodes u32 as a 4-byte little-endian slice.
func Uint32ToByteSlice(u32 uint32) (byteSlice []byte) {
	byteSlice = make([]byte, 4)

	binary.LittleEndian.PutUint32(byteSlice, u32)

	return
}

// ByteSliceToUint64 decodes an 8-byte little-endian slice.
func ByteSliceToUint64(byteSlice []byte) (u64 uint64, ok bool) {
	if 8 != len(byteSlice) {
		ok = false
		return
	}

	u64 = binary.LittleEndian.Uint64(byteSlice)
	ok = true

	return
}

// Uint64ToByteSlice encodes u64 as an 8-byte little-endian slice.
func Uint64ToByteSlice(u64 uint64) (byteSlice []byte) {
	byteSlice = make([]byte, 8)

	binary.LittleEndian.PutUint64(byteSlice, u64)

	return
}

func ByteSliceToString(byteSlice []byte) (str string) {
	str = string(byteSlice[:])
	return
}

func StringToByteSlice(str string) (byteSlice []byte) {
	byteSlice = []byte(str)
	return
}

// ByteToHexDigit returns the (uppercase) hex character representation of the low order nibble of the byte supplied.
func ByteToHexDigit(u8 byte) (digit byte) {
	u8 = u8 & 0x0F
	if 0x0A > u8 {
		digit = '0' + u8
	} else {
		digit = 'A' + (u8 - 0x0A)
	}

	return
}

func Uint64ToHexStr(value uint64) string {
	return fmt.Sprintf("%016X", value)
}

func HexStrToUint64(value string) (uint64, error) {
	return strconv.ParseUint(value, 16, 64)
}

// GetGID returns the calling goroutine's ID, parsed out of a runtime stack
// dump. trackedlock.Mutex uses this to recognize re-entrant Lock() calls
// from the same goroutine.
func GetGID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}
