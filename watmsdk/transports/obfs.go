package transports

import (
	"github.com/cloudflare/circl/xof"

	"github.com/refraction-networking/water/watmsdk"
	wnet "github.com/refraction-networking/water/watmsdk/net"
)

// type guard: XorObfsTransport must implement watmsdk.WrappingTransport.
var _ watmsdk.WrappingTransport = (*XorObfsTransport)(nil)

// XorObfsTransport is a cheap wire-obfuscation layer: it XORs traffic
// against a keystream derived from a pre-shared key with SHAKE128, so a
// passive observer sees neither the plaintext nor an obviously structured
// ciphertext. It is not a confidentiality primitive on its own -- pair it
// with a real transport (uTLS, a relay destination the caller trusts) for
// that.
//
// Each direction gets its own keystream, seeded with the key plus a
// direction label, so the two peers never XOR against the same bytes.
type XorObfsTransport struct {
	PSK []byte
}

func (x *XorObfsTransport) Wrap(conn wnet.Conn) (wnet.Conn, error) {
	return &xorObfsConn{
		Conn: conn,
		tx:   newKeystream(x.PSK, "tx"),
		rx:   newKeystream(x.PSK, "rx"),
	}, nil
}

func newKeystream(psk []byte, direction string) xof.XOF {
	x := xof.SHAKE128.New()
	x.Write(psk)
	x.Write([]byte(direction))
	return x
}

type xorObfsConn struct {
	wnet.Conn
	tx, rx xof.XOF
}

func (c *xorObfsConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		xorKeystream(c.rx, p[:n])
	}
	return n, err
}

func (c *xorObfsConn) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	xorKeystream(c.tx, buf)
	return c.Conn.Write(buf)
}

func xorKeystream(x xof.XOF, b []byte) {
	ks := make([]byte, len(b))
	x.Read(ks)
	for i := range b {
		b[i] ^= ks[i]
	}
}
