//go:build windows

package water

import "syscall"

// platformSpecificFd converts the raw fd handed out by
// (syscall.RawConn).Control into the type syscall.SetNonblock expects
// on Windows.
func platformSpecificFd(fd uintptr) syscall.Handle {
	return syscall.Handle(fd)
}
