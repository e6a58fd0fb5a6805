// Package wasip1 encodes and decodes the errno values passed across the
// guest/host boundary by WATM exported and imported functions.
//
// WATM functions that can fail return a single i32: a non-negative value
// signals success (and, for functions that hand back a resource, doubles
// as that resource's handle), while a negative value is the two's
// complement of a WASI preview1 errno.
package wasip1

import "syscall"

// errno values are intentionally kept compatible with wasi-libc's
// __wasi_errno_t encoding for the subset of syscall.Errno actually
// surfaced across the WATM boundary.
const (
	errnoSuccess int32 = 0
	errnoBadf    int32 = 8
	errnoAcces   int32 = 2
	errnoInval   int32 = 28
	errnoNodev   int32 = 43
	errnoNotconn int32 = 53
	errnoPerm    int32 = 63
	errnoNosys   int32 = 52
	errnoIntr    int32 = 27
	errnoCancel  int32 = 11
	errnoIo      int32 = 29
	errnoIsconn  int32 = 30
)

var errnoToErrno = map[int32]syscall.Errno{
	errnoBadf:    syscall.EBADF,
	errnoAcces:   syscall.EACCES,
	errnoInval:   syscall.EINVAL,
	errnoNodev:   syscall.ENODEV,
	errnoNotconn: syscall.ENOTCONN,
	errnoPerm:    syscall.EPERM,
	errnoNosys:   syscall.ENOSYS,
	errnoIntr:    syscall.EINTR,
	errnoCancel:  syscall.ECANCELED,
	errnoIsconn:  syscall.EISCONN,
}

var errnoFromErrno = map[syscall.Errno]int32{
	syscall.EBADF:    errnoBadf,
	syscall.EACCES:   errnoAcces,
	syscall.EINVAL:   errnoInval,
	syscall.ENODEV:   errnoNodev,
	syscall.ENOTCONN: errnoNotconn,
	syscall.EPERM:    errnoPerm,
	syscall.ENOSYS:   errnoNosys,
	syscall.EINTR:    errnoIntr,
	syscall.ECANCELED: errnoCancel,
	syscall.EISCONN:   errnoIsconn,
}

// EncodeWATERError encodes a syscall.Errno into the negative i32 a WATM
// export returns to signal failure. Errnos with no wasi mapping encode as
// -EIO.
func EncodeWATERError(errno syscall.Errno) int32 {
	code, ok := errnoFromErrno[errno]
	if !ok {
		return -errnoIo // unmapped errno, falls back to EIO
	}
	return -code
}

// DecodeWATERError decodes an i32 returned by a WATM export. A
// non-negative ret is returned verbatim with a nil error. A negative ret
// is translated into the corresponding syscall.Errno, wrapped as error.
func DecodeWATERError(ret int32) (int32, error) {
	if ret >= errnoSuccess {
		return ret, nil
	}

	code := -ret
	errno, ok := errnoToErrno[code]
	if !ok {
		return ret, syscall.EIO
	}
	return ret, errno
}
