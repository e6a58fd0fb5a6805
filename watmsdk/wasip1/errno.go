// Package wasip1 is the guest-side counterpart of the host's errno codec:
// it turns a syscall.Errno into the single negative i32 that crosses the
// WASM boundary, and decodes one coming back the other way.
//
// The numbering is fixed by convention (it mirrors WASI preview1's errno
// table) so that a Transport Module built against this SDK and a host
// runtime agree on what a given negative return value means without
// either side needing to know the other's native errno numbering.
package wasip1

import (
	"fmt"
	"syscall"
)

type entry struct {
	code int32
	sys  syscall.Errno
	desc string
}

// table is the single source of truth: each WASI errno gets one row,
// and the lookup maps below are derived from it instead of being
// maintained by hand in parallel.
var table = []entry{
	{1, syscall.E2BIG, "argument list too long"},
	{2, syscall.EACCES, "permission denied"},
	{3, syscall.EADDRINUSE, "address already in use"},
	{4, syscall.EADDRNOTAVAIL, "address not available"},
	{5, syscall.EAFNOSUPPORT, "address family not supported"},
	{6, syscall.EAGAIN, "resource temporarily unavailable"},
	{7, syscall.EALREADY, "connection already in progress"},
	{8, syscall.EBADF, "bad file descriptor"},
	{9, syscall.EBADMSG, "bad message"},
	{10, syscall.EBUSY, "device or resource busy"},
	{11, syscall.ECANCELED, "operation canceled"},
	{12, syscall.ECHILD, "no child processes"},
	{13, syscall.ECONNABORTED, "connection aborted"},
	{14, syscall.ECONNREFUSED, "connection refused"},
	{15, syscall.ECONNRESET, "connection reset"},
	{16, syscall.EDEADLK, "resource deadlock would occur"},
	{17, syscall.EDESTADDRREQ, "destination address required"},
	{18, syscall.EDOM, "argument out of domain"},
	{20, syscall.EEXIST, "file exists"},
	{21, syscall.EFAULT, "bad address"},
	{22, syscall.EFBIG, "file too large"},
	{23, syscall.EHOSTUNREACH, "host is unreachable"},
	{25, syscall.EILSEQ, "illegal byte sequence"},
	{26, syscall.EINPROGRESS, "operation now in progress"},
	{27, syscall.EINTR, "interrupted system call"},
	{28, syscall.EINVAL, "invalid argument"},
	{29, syscall.EIO, "input/output error"},
	{30, syscall.EISCONN, "socket is already connected"},
	{31, syscall.EISDIR, "is a directory"},
	{32, syscall.ELOOP, "too many levels of symbolic links"},
	{33, syscall.EMFILE, "too many open files"},
	{34, syscall.EMLINK, "too many links"},
	{35, syscall.EMSGSIZE, "message too long"},
	{37, syscall.ENAMETOOLONG, "file name too long"},
	{38, syscall.ENETDOWN, "network is down"},
	{39, syscall.ENETRESET, "network dropped connection on reset"},
	{40, syscall.ENETUNREACH, "network is unreachable"},
	{41, syscall.ENFILE, "too many open files in system"},
	{42, syscall.ENOBUFS, "no buffer space available"},
	{43, syscall.ENODEV, "no such device"},
	{44, syscall.ENOENT, "no such file or directory"},
	{45, syscall.ENOEXEC, "exec format error"},
	{46, syscall.ENOLCK, "no locks available"},
	{48, syscall.ENOMEM, "out of memory"},
	{49, syscall.ENOMSG, "no message of desired type"},
	{50, syscall.ENOPROTOOPT, "protocol not available"},
	{51, syscall.ENOSPC, "no space left on device"},
	{52, syscall.ENOSYS, "function not implemented"},
	{53, syscall.ENOTCONN, "socket is not connected"},
	{54, syscall.ENOTDIR, "not a directory"},
	{55, syscall.ENOTEMPTY, "directory not empty"},
	{57, syscall.ENOTSOCK, "socket operation on non-socket"},
	{58, syscall.ENOTSUP, "operation not supported"},
	{59, syscall.ENOTTY, "inappropriate ioctl for device"},
	{60, syscall.ENXIO, "no such device or address"},
	{61, syscall.EOVERFLOW, "value too large for defined data type"},
	{63, syscall.EPERM, "operation not permitted"},
	{64, syscall.EPIPE, "broken pipe"},
	{65, syscall.EPROTO, "protocol error"},
	{66, syscall.EPROTONOSUPPORT, "protocol not supported"},
	{67, syscall.EPROTOTYPE, "protocol wrong type for socket"},
	{68, syscall.ERANGE, "result too large"},
	{69, syscall.EROFS, "read-only file system"},
	{70, syscall.ESPIPE, "invalid seek"},
	{71, syscall.ESRCH, "no such process"},
	{72, syscall.ESTALE, "stale file handle"},
	{73, syscall.ETIMEDOUT, "connection timed out"},
	{75, syscall.EXDEV, "cross-device link"},
}

var (
	codeToSys  = make(map[int32]syscall.Errno, len(table))
	sysToCode  = make(map[syscall.Errno]int32, len(table))
	codeToDesc = make(map[int32]string, len(table))
)

func init() {
	for _, e := range table {
		codeToSys[e.code] = e.sys
		sysToCode[e.sys] = e.code
		codeToDesc[e.code] = e.desc
	}
}

// EncodeWATERError turns a syscall.Errno into the negative i32 that a
// WATM export hands back to the host to signal failure. Zero (success)
// always encodes to 0. An errno absent from the table encodes as
// ENOSYS, since the host has no other way to learn about it.
func EncodeWATERError(err syscall.Errno) int32 {
	if err == 0 {
		return 0
	}
	if code, ok := sysToCode[err]; ok {
		return -code
	}
	return -int32(52) // ENOSYS
}

// DecodeWATERError turns a return value from a host import back into
// either a non-negative result (n, nil) or the syscall.Errno it encodes.
func DecodeWATERError(ret int32) (n int32, err error) {
	if ret >= 0 {
		return ret, nil
	}
	code := -ret
	if sys, ok := codeToSys[code]; ok {
		return ret, sys
	}
	return ret, fmt.Errorf("watmsdk: unrecognized WATER errno %d", code)
}

// String returns the description registered for a canonical errno code,
// mainly useful for logging a raw return value without decoding it.
func String(code int32) string {
	if code < 0 {
		code = -code
	}
	if desc, ok := codeToDesc[code]; ok {
		return desc
	}
	return "unknown errno"
}
