package water

import (
	"context"
	"errors"
	"net"
)

// Relay combines a Dialer and a Listener: it listens on a local
// network address, and for every accepted connection it dials a
// remote network address, relaying traffic between the two through
// the WebAssembly Transport Module.
//
// The structure of a Relay is as follows:
//
//	        accept +---------------+      +---------------+ dial
//	       ------->|               |----->|    Decode     |----->
//	Source         |  net.Listener |      | WASM Runtime  |       Remote
//	       <-------|               |<-----| Decode/Encode |<-----
//	               +---------------+      +---------------+
//	                        \                    /
//	                         \------Relay-------/
type Relay interface {
	// RelayTo dials the remote network address for every accepted
	// connection on the Relay's pre-configured listener, blocking
	// until the Relay is closed or an unrecoverable error occurs.
	RelayTo(network, address string) error

	// ListenAndRelayTo listens on the given local network address and,
	// for every accepted connection, dials the given remote network
	// address, blocking until the Relay is closed or an unrecoverable
	// error occurs.
	ListenAndRelayTo(lnetwork, laddress, rnetwork, raddress string) error

	// Addr returns the network address the Relay is listening on, or
	// nil if the Relay has not started listening yet.
	Addr() net.Addr

	// Close closes the Relay's listener, causing RelayTo/ListenAndRelayTo
	// to return.
	Close() error

	mustEmbedUnimplementedRelay()
}

type newRelayFunc func(context.Context, *Config) (Relay, error)

var (
	knownRelayVersions = make(map[string]newRelayFunc)

	ErrRelayAlreadyRegistered = errors.New("water: relay already registered")
	ErrRelayVersionNotFound   = errors.New("water: relay version not found")
	ErrUnimplementedRelay     = errors.New("water: unimplemented relay")
	ErrRelayAlreadyStarted    = errors.New("water: relay already started")

	_ Relay = (*UnimplementedRelay)(nil) // type guard
)

// UnimplementedRelay is a Relay that always returns errors.
//
// It is used to ensure forward compatibility of the Relay interface.
type UnimplementedRelay struct{}

func (*UnimplementedRelay) RelayTo(_, _ string) error {
	return ErrUnimplementedRelay
}

func (*UnimplementedRelay) ListenAndRelayTo(_, _, _, _ string) error {
	return ErrUnimplementedRelay
}

func (*UnimplementedRelay) Addr() net.Addr {
	return nil
}

func (*UnimplementedRelay) Close() error {
	return ErrUnimplementedRelay
}

func (*UnimplementedRelay) mustEmbedUnimplementedRelay() {} //nolint:unused

// RegisterRelay is a function used by Transport Module drivers
// (e.g., `transport/v0`) to register a function that spawns a new [Relay]
// from a given [Config] for a specific version.
//
// This is not a part of WATER API and should not be used by developers
// wishing to integrate WATER into their applications.
func RegisterRelay(version string, relay newRelayFunc) error {
	if _, ok := knownRelayVersions[version]; ok {
		return ErrRelayAlreadyRegistered
	}
	knownRelayVersions[version] = relay
	return nil
}

// NewRelay creates a new [Relay] from the given [Config].
//
// It automatically detects the version of the WebAssembly Transport
// Module specified in the config.
//
// Deprecated: use NewRelayWithContext instead.
func NewRelay(c *Config) (Relay, error) {
	return NewRelayWithContext(context.Background(), c)
}

// NewRelayWithContext creates a new [Relay] from the [Config] with
// the given [context.Context].
//
// It automatically detects the version of the WebAssembly Transport
// Module specified in the config.
func NewRelayWithContext(ctx context.Context, c *Config) (Relay, error) {
	core, err := NewCoreWithContext(ctx, c)
	if err != nil {
		return nil, err
	}

	for exportName := range core.Exports() {
		if f, ok := knownRelayVersions[exportName]; ok {
			return f(ctx, c)
		}
	}

	return nil, ErrRelayVersionNotFound
}
