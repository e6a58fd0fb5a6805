// Package net rebuilds a usable net.Conn inside the Transport Module from
// a bare file descriptor the host inserted into the WASM instance. It is
// the guest-side mirror of the host's internal/socket package.
package net

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// Conn is a generic stream-oriented connection backed by a WASI file
// descriptor, with the extra knobs a Transport Module needs to drive its
// own event loop.
type Conn interface {
	net.Conn
	syscall.Conn

	// SetNonBlock toggles O_NONBLOCK on the underlying descriptor. Most
	// wrapping transports want this set after any blocking handshake
	// (e.g. a TLS ClientHello) has completed.
	SetNonBlock(nonblocking bool) error

	// Fd returns the raw WASI file descriptor, for handing back to the
	// host via a watm_*_v1 export.
	Fd() int32
}

// type guard: *fdConn must implement Conn.
var _ Conn = (*fdConn)(nil)

// fdConn wraps a bare descriptor. Despite usually carrying a TCP stream,
// nothing here is TCP-specific; any connection-oriented descriptor works.
type fdConn struct {
	fd int32

	readDeadline  time.Time
	writeDeadline time.Time
}

// RebuildConn recovers a Conn from a file descriptor the host has already
// bound to a live connection (via InsertConn on its side).
func RebuildConn(fd int32) Conn {
	return &fdConn{fd: fd}
}

func (c *fdConn) Read(b []byte) (n int, err error) {
	if dl := c.readDeadline; !dl.IsZero() {
		for {
			n, err = syscall.Read(int(c.fd), b)
			if errors.Is(err, syscall.EAGAIN) && time.Now().Before(dl) {
				continue
			}
			break
		}
	} else {
		n, err = syscall.Read(int(c.fd), b)
	}

	if n == 0 && err == nil {
		err = io.EOF
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

func (c *fdConn) Write(b []byte) (n int, err error) {
	if dl := c.writeDeadline; !dl.IsZero() {
		written := 0
		for written < len(b) {
			m, werr := syscall.Write(int(c.fd), b[written:])
			if m > 0 {
				written += m
			}
			if werr != nil {
				if errors.Is(werr, syscall.EAGAIN) && time.Now().Before(dl) {
					continue
				}
				return written, werr
			}
			if m == 0 {
				return written, io.ErrShortWrite
			}
		}
		return written, nil
	}

	return syscall.Write(int(c.fd), b)
}

func (c *fdConn) Close() error {
	return syscall.Close(int(c.fd))
}

func (c *fdConn) LocalAddr() net.Addr  { return fdAddr(c.fd) }
func (c *fdConn) RemoteAddr() net.Addr { return fdAddr(c.fd) }

func (c *fdConn) SetDeadline(t time.Time) error {
	c.readDeadline = t
	c.writeDeadline = t
	return nil
}

func (c *fdConn) SetReadDeadline(t time.Time) error {
	c.readDeadline = t
	return nil
}

func (c *fdConn) SetWriteDeadline(t time.Time) error {
	c.writeDeadline = t
	return nil
}

func (c *fdConn) SetNonBlock(nonblocking bool) error {
	return setNonBlock(c.fd, nonblocking)
}

func (c *fdConn) Fd() int32 {
	return c.fd
}

// SyscallConn implements syscall.Conn. It always returns os.ErrNotExist:
// no syscall.RawConn is provided for the fd; Fd returns the raw descriptor.
func (c *fdConn) SyscallConn() (syscall.RawConn, error) {
	return nil, os.ErrNotExist
}

type fdAddr int32

func (fdAddr) Network() string  { return "watm" }
func (a fdAddr) String() string { return "fd:" + itoa(int32(a)) }

func itoa(i int32) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [12]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
