// Package watmsdk is the guest-side SDK for building a WebAssembly
// Transport Module against the v1 API: it provides the role builders
// (Dialer, Listener, Relay) and the
// watm_*_v1 exports the host looks for, so a Transport Module author only
// has to supply a WrappingTransport, DialingTransport, or ListeningTransport
// implementing the actual obfuscation protocol.
package watmsdk

import (
	wnet "github.com/refraction-networking/water/watmsdk/net"
)

// WrappingTransport wraps a raw Conn into another Conn that layers some
// application protocol (TLS camouflage, compression, a PT-style framing)
// over it.
//
// The returned Conn is not automatically put in non-blocking mode; it is
// the transport's responsibility to call Conn.SetNonBlock once any
// blocking setup (a handshake, for instance) is done, since the worker
// loop polls every Conn it holds.
type WrappingTransport interface {
	Wrap(wnet.Conn) (wnet.Conn, error)
}

// DialingTransport dials a remote address itself and returns a Conn
// speaking some application protocol over the dialed connection, instead
// of wrapping a Conn the SDK already dialed.
type DialingTransport interface {
	SetDialer(dialer func(network, address string) (wnet.Conn, error))
	Dial(network, address string) (wnet.Conn, error)
}

// ListeningTransport accepts connections itself, mirroring DialingTransport
// on the inbound side.
type ListeningTransport interface {
	SetListener(listener wnet.Listener)
	Accept() (wnet.Conn, error)
}

// ConfigurableTransport lets a transport read the bytes pushed by the
// host (a TM's own watm.cfg) before the worker loop starts.
type ConfigurableTransport interface {
	Configure(config []byte) error
}

type identity uint8

const (
	identityUninitialized identity = iota
	identityDialer
	identityListener
	identityRelay
)

var currentIdentity = identityUninitialized

var identityNames = map[identity]string{
	identityDialer:   "dialer",
	identityListener: "listener",
	identityRelay:    "relay",
}
