// Package transports collects concrete WrappingTransport/DialingTransport
// implementations a Transport Module author can plug into watmsdk's
// dialer, listener, and relay builders without writing their own
// protocol-wrapping logic from scratch.
package transports

import (
	tls "github.com/refraction-networking/utls"

	"github.com/refraction-networking/water/watmsdk"
	wnet "github.com/refraction-networking/water/watmsdk/net"
)

// type guard: UTLSClient must implement watmsdk.WrappingTransport.
var _ watmsdk.WrappingTransport = (*UTLSClient)(nil)

// UTLSClient wraps a raw Conn in a uTLS client handshake, camouflaging
// the connection as a particular browser's TLS ClientHello.
type UTLSClient struct {
	// ServerName is used both for SNI and certificate verification unless
	// InsecureSkipVerify is set.
	ServerName string

	// InsecureSkipVerify disables certificate verification. Transport
	// Modules dialing through a covert channel commonly set this, since
	// the "server" is not a CA-issued endpoint.
	InsecureSkipVerify bool

	// ClientHelloID selects which browser's ClientHello fingerprint uTLS
	// mimics. Defaults to tls.HelloChrome_Auto.
	ClientHelloID tls.ClientHelloID
}

func (u *UTLSClient) Wrap(conn wnet.Conn) (wnet.Conn, error) {
	helloID := u.ClientHelloID
	if helloID == (tls.ClientHelloID{}) {
		helloID = tls.HelloChrome_Auto
	}

	tlsConn := tls.UClient(conn, &tls.Config{
		ServerName:         u.ServerName,
		InsecureSkipVerify: u.InsecureSkipVerify,
	}, helloID)

	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}

	if err := conn.SetNonBlock(true); err != nil {
		return nil, err
	}

	return &utlsConn{Conn: conn, tls: tlsConn}, nil
}

type utlsConn struct {
	wnet.Conn // embedded for Fd/Close/deadlines/SetNonBlock passthrough
	tls       *tls.UConn
}

func (c *utlsConn) Read(b []byte) (int, error)  { return c.tls.Read(b) }
func (c *utlsConn) Write(b []byte) (int, error) { return c.tls.Write(b) }
