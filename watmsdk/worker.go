package watmsdk

import (
	"errors"
	"io"
	"log"
	"syscall"
	"time"

	wnet "github.com/refraction-networking/water/watmsdk/net"
	"github.com/refraction-networking/water/watmsdk/wasip1"
)

// callerConn talks to whoever is on the other side of the host boundary
// (the dialing/accepting application, via PushConn on the host). It is
// set by whichever role export ran (watm_dial_v1, watm_accept_v1,
// watm_dial_fixed_v1).
var callerConn wnet.Conn

// remoteConn and sourceConn are, respectively, the outbound leg (dialer,
// relay) and the inbound leg (listener, relay) of the connection the
// worker shuttles bytes between.
var remoteConn wnet.Conn
var sourceConn wnet.Conn

// cancelConn is armed by watm_ctrlpipe_v1 and read from in the worker
// loop; the host writes to the other end to request a graceful stop.
var cancelConn wnet.Conn

var readBuf = make([]byte, 16384)

// runWorker drives data between whichever pair of connections the active
// role wired up, until cancelConn becomes readable or one side fails.
//
// Every Conn involved must already be non-blocking, since there is no
// true blocking select available to a wasip1 WebAssembly module; instead
// this busy-polls with a short sleep between EAGAIN rounds.
func runWorker() int32 {
	if cancelConn == nil {
		return wasip1.EncodeWATERError(syscall.EBADF)
	}

	var a, b wnet.Conn
	switch currentIdentity {
	case identityDialer:
		a, b = callerConn, remoteConn
	case identityListener:
		a, b = callerConn, sourceConn
	case identityRelay:
		a, b = sourceConn, remoteConn
	default:
		return wasip1.EncodeWATERError(syscall.ENOTCONN)
	}

	if a == nil || b == nil {
		log.Println("watmsdk: worker: connections not fully wired")
		return wasip1.EncodeWATERError(syscall.EBADF)
	}

	for {
		if cancelled() {
			log.Println("watmsdk: worker: cancelled")
			return wasip1.EncodeWATERError(syscall.ECANCELED)
		}

		if errno := copyOnce(b, a, readBuf); errno != 0 {
			return wasip1.EncodeWATERError(errno)
		}

		if errno := copyOnce(a, b, readBuf); errno != 0 {
			return wasip1.EncodeWATERError(errno)
		}

		time.Sleep(100 * time.Microsecond)
	}
}

func cancelled() bool {
	_, err := cancelConn.Read(readBuf[:1])
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	return false
}

// copyOnce moves whatever is currently available from src to dst. EAGAIN
// is not an error here, just "nothing to do this round".
func copyOnce(dst, src wnet.Conn, buf []byte) syscall.Errno {
	n, err := src.Read(buf)
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return 0
		}
		if errors.Is(err, io.EOF) {
			return syscall.EPIPE
		}
		return syscall.EIO
	}

	w, err := dst.Write(buf[:n])
	if err != nil {
		return syscall.EIO
	}
	if w != n {
		return syscall.EIO
	}

	return 0
}
