package v1

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/refraction-networking/water"
)

func init() {
	err := water.RegisterWATMListener("watm_accept_v1", NewListenerWithContext)
	if err != nil {
		panic(err)
	}
}

// Listener implements water.Listener utilizing Water WATM API v1.
type Listener struct {
	config *water.Config
	closed *atomic.Bool
	ctx    context.Context

	water.UnimplementedListener // embedded to ensure forward compatibility
}

// NewListener creates a new Listener.
//
// Deprecated: use NewListenerWithContext instead.
func NewListener(c *water.Config) (water.Listener, error) {
	return NewListenerWithContext(context.Background(), c)
}

// NewListenerWithContext creates a new Listener with the given context.
func NewListenerWithContext(ctx context.Context, c *water.Config) (water.Listener, error) {
	return &Listener{
		config: c.Clone(),
		closed: new(atomic.Bool),
		ctx:    ctx,
	}, nil
}

// Accept implements net.Listener.
func (l *Listener) Accept() (net.Conn, error) {
	return l.AcceptWATER()
}

// Close implements net.Listener.
func (l *Listener) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		return l.config.NetworkListener.Close()
	}
	return nil
}

// Addr implements net.Listener.
func (l *Listener) Addr() net.Addr {
	return l.config.NetworkListener.Addr()
}

// AcceptWATER waits for and returns the next connection to the listener
// as a water.Conn.
func (l *Listener) AcceptWATER() (water.Conn, error) {
	if l.closed.Load() {
		return nil, fmt.Errorf("water: listener is closed")
	}

	if l.config == nil {
		return nil, fmt.Errorf("water: accept with nil config is not allowed")
	}

	core, err := water.NewCoreWithContext(l.ctx, l.config)
	if err != nil {
		return nil, err
	}

	return accept(core)
}
