package platform

import (
	"syscall"
)

// MemSize returns total installed RAM in bytes, used by
// SetMaxBufferSizeFraction to turn a fraction like 0.25 into an absolute
// byte count.
func MemSize() (memSize uint64) {
	var (
		err     error
		sysinfo syscall.Sysinfo_t
	)

	err = syscall.Sysinfo(&sysinfo)
	if nil != err {
		panic(err)
	}

	memSize = sysinfo.Totalram

	return
}
