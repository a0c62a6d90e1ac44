package platform

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// MemSize returns total installed RAM in bytes, used by
// SetMaxBufferSizeFraction to turn a fraction like 0.25 into an absolute
// byte count.
func MemSize() (memSize uint64) {
	var (
		err          error
		sysctlReturn string
	)

	sysctlReturn, err = unix.Sysctl("hw.memsize")
	if nil != err {
		panic(err)
	}

	sysctlReturn += "\x00"

	memSize = uint64(binary.LittleEndian.Uint64([]byte(sysctlReturn)))

	return
}
