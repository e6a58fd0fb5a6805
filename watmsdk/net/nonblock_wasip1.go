//go:build wasip1 || wasi

package net

import (
	"syscall"
	"unsafe"
)

const fdflagNonblock = 0x0004

func setNonBlock(fd int32, nonblocking bool) error {
	var stat fdstat
	if errno := fdFdstatGet(fd, unsafe.Pointer(&stat)); errno != 0 {
		return syscall.Errno(errno)
	}

	flags := uint32(stat.fdflags)
	if nonblocking {
		flags |= fdflagNonblock
	} else {
		flags &^= fdflagNonblock
	}

	if errno := fdFdstatSetFlags(fd, flags); errno != 0 {
		return syscall.Errno(errno)
	}
	return nil
}

type fdstat struct {
	filetype         uint8
	fdflags          uint16
	rightsBase       uint64
	rightsInheriting uint64
}

// TinyGo's wasip1 target does not yet surface fd_fdstat_{get,set_flags}
// through the syscall package, so they are imported directly here.

//go:wasmimport wasi_snapshot_preview1 fd_fdstat_get
//go:noescape
func fdFdstatGet(fd int32, buf unsafe.Pointer) uint32

//go:wasmimport wasi_snapshot_preview1 fd_fdstat_set_flags
//go:noescape
func fdFdstatSetFlags(fd int32, flags uint32) uint32
