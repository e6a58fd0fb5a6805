package transports

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/refraction-networking/water/watmsdk"
	wnet "github.com/refraction-networking/water/watmsdk/net"
)

// type guard: QUICDialingTransport must implement watmsdk.DialingTransport.
var _ watmsdk.DialingTransport = (*QUICDialingTransport)(nil)

// QUICDialingTransport dials out over QUIC rather than wrapping a
// connection the host already established. WATM v1's host-side dialer
// import only hands out TCP-oriented file descriptors, so QUIC -- which
// needs a real UDP socket underneath -- manages its own net.PacketConn
// directly instead of going through SetDialer/water_dial. The resulting
// stream still satisfies wnet.Conn so it can sit in the dialer role's
// remoteConn exactly like any other wrapped connection.
type QUICDialingTransport struct {
	ServerName         string
	InsecureSkipVerify bool
}

// SetDialer exists to satisfy watmsdk.DialingTransport; QUIC ignores it
// since it dials its own UDP socket rather than reusing the host's TCP
// dialer.
func (q *QUICDialingTransport) SetDialer(func(network, address string) (wnet.Conn, error)) {}

func (q *QUICDialingTransport) Dial(network, address string) (wnet.Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}

	udpConn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}

	tlsConf := &tls.Config{
		ServerName:         q.ServerName,
		InsecureSkipVerify: q.InsecureSkipVerify,
		NextProtos:         []string{"watm-quic"},
	}

	tr := &quic.Transport{Conn: udpConn}
	qconn, err := tr.Dial(context.Background(), raddr, tlsConf, &quic.Config{})
	if err != nil {
		udpConn.Close()
		return nil, err
	}

	stream, err := qconn.OpenStreamSync(context.Background())
	if err != nil {
		qconn.CloseWithError(0, "stream open failed")
		udpConn.Close()
		return nil, err
	}

	return &quicConn{udpConn: udpConn, stream: stream, qconn: qconn}, nil
}

// type guard: quicConn must implement wnet.Conn.
var _ wnet.Conn = (*quicConn)(nil)

// quicConn adapts a single QUIC stream to wnet.Conn. It has no WASI file
// descriptor of its own -- its lifetime is tied to the Go-level
// quic.Connection, not a fd the host ever sees -- so Fd is not usable for
// handing this connection back across the host boundary. It is only
// intended as the remoteConn half of a dialer, read and written directly
// by the worker loop, never pushed back to the host.
type quicConn struct {
	udpConn *net.UDPConn
	stream  quic.Stream
	qconn   quic.Connection
}

func (c *quicConn) Read(p []byte) (int, error)  { return c.stream.Read(p) }
func (c *quicConn) Write(p []byte) (int, error) { return c.stream.Write(p) }

func (c *quicConn) Close() error {
	_ = c.stream.Close()
	_ = c.qconn.CloseWithError(0, "")
	return c.udpConn.Close()
}

func (c *quicConn) LocalAddr() net.Addr  { return c.qconn.LocalAddr() }
func (c *quicConn) RemoteAddr() net.Addr { return c.qconn.RemoteAddr() }

func (c *quicConn) SetDeadline(t time.Time) error {
	if err := c.stream.SetReadDeadline(t); err != nil {
		return err
	}
	return c.stream.SetWriteDeadline(t)
}

func (c *quicConn) SetReadDeadline(t time.Time) error  { return c.stream.SetReadDeadline(t) }
func (c *quicConn) SetWriteDeadline(t time.Time) error { return c.stream.SetWriteDeadline(t) }

func (c *quicConn) SyscallConn() (syscall.RawConn, error) { return nil, os.ErrNotExist }

func (c *quicConn) SetNonBlock(bool) error { return nil } // QUIC streams are already goroutine-driven, non-blocking from the worker loop's perspective

func (c *quicConn) Fd() int32 { return -1 }
