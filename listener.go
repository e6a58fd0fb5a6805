package water

import (
	"context"
	"errors"
	"net"
)

// Listener listens on a local network address and upon caller
// calling Accept(), it accepts an incoming connection and
// passes it to the WebAssembly Transport Module, which returns
// a net.Conn to caller.
//
// The structure of a Listener is as follows:
//
//	            +---------------+ accept +---------------+ accept
//	       ---->|               |------->|     Decode    |------->
//	Source      |  net.Listener |        |  WASM Runtime |         Caller
//	       <----|               |<-------| Decode/Encode |<-------
//	            +---------------+        +---------------+
//	                     \                      /
//	                      \------Listener------/
//
// As shown above, a Listener consists of a net.Listener to accept
// incoming connections and a WebAssembly runtime to handle the incoming
// connections from an external source. The WebAssembly runtime will return
// a net.Conn that caller can Read() from or Write() to.
type Listener interface {
	net.Listener

	// AcceptWATER waits for and returns the next connection to the
	// listener as a Conn, rather than a plain net.Conn.
	AcceptWATER() (Conn, error)

	mustEmbedUnimplementedListener()
}

type newListenerFunc func(context.Context, *Config) (Listener, error)

var (
	knownListenerVersions = make(map[string]newListenerFunc)

	ErrListenerAlreadyRegistered = errors.New("water: listener already registered")
	ErrListenerVersionNotFound   = errors.New("water: listener version not found")
	ErrUnimplementedListener     = errors.New("water: unimplemented listener")

	_ Listener = (*UnimplementedListener)(nil) // type guard
)

// UnimplementedListener is a Listener that always returns errors.
//
// It is used to ensure forward compatibility of the Listener interface.
type UnimplementedListener struct{}

func (*UnimplementedListener) Accept() (net.Conn, error) {
	return nil, ErrUnimplementedListener
}

func (*UnimplementedListener) AcceptWATER() (Conn, error) {
	return nil, ErrUnimplementedListener
}

func (*UnimplementedListener) Close() error {
	return ErrUnimplementedListener
}

func (*UnimplementedListener) Addr() net.Addr {
	return nil
}

func (*UnimplementedListener) mustEmbedUnimplementedListener() {} //nolint:unused

// RegisterWATMListener is a function used by Transport Module drivers
// (e.g., `transport/v0`) to register a function that spawns a new [Listener]
// from a given [Config] for a specific version.
//
// This is not a part of WATER API and should not be used by developers
// wishing to integrate WATER into their applications.
func RegisterWATMListener(version string, listener newListenerFunc) error {
	if _, ok := knownListenerVersions[version]; ok {
		return ErrListenerAlreadyRegistered
	}
	knownListenerVersions[version] = listener
	return nil
}

// NewListener creates a new [Listener] from the given [Config].
//
// It automatically detects the version of the WebAssembly Transport
// Module specified in the config.
//
// Deprecated: use NewListenerWithContext instead.
func NewListener(c *Config) (Listener, error) {
	return NewListenerWithContext(context.Background(), c)
}

// NewListenerWithContext creates a new [Listener] from the [Config] with
// the given [context.Context].
//
// It automatically detects the version of the WebAssembly Transport
// Module specified in the config.
func NewListenerWithContext(ctx context.Context, c *Config) (Listener, error) {
	core, err := NewCoreWithContext(ctx, c)
	if err != nil {
		return nil, err
	}

	for exportName := range core.Exports() {
		if f, ok := knownListenerVersions[exportName]; ok {
			return f(ctx, c)
		}
	}

	return nil, ErrListenerVersionNotFound
}
