package v0

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/refraction-networking/water"
)

func init() {
	err := water.RegisterWATMListener("_water_v0", NewListenerWithContext)
	if err != nil {
		panic(err)
	}
}

// Listener implements water.Listener utilizing Water WATM API v0.
type Listener struct {
	config *water.Config
	closed *atomic.Bool
	ctx    context.Context

	// rcMu guards roleConfig, which is carried from one accepted session
	// to the next by KeepListen so the fresh Core Instance servicing the
	// next connection knows it is still playing the Listener role.
	rcMu       sync.Mutex
	roleConfig *water.RoleConfig

	water.UnimplementedListener // embedded to ensure forward compatibility
}

// NewListener creates a new Listener.
//
// Deprecated: use NewListenerWithContext instead.
func NewListener(c *water.Config) (water.Listener, error) {
	return &Listener{
		config: c.Clone(),
		closed: new(atomic.Bool),
	}, nil
}

// NewListenerWithContext creates a new Listener with the given context.
func NewListenerWithContext(ctx context.Context, c *water.Config) (water.Listener, error) {
	return &Listener{
		config: c.Clone(),
		closed: new(atomic.Bool),
		ctx:    ctx,
	}, nil
}

// Accept waits for and returns the next connection after processing
// the data with the WASM module.
//
// The returned net.Conn implements net.Conn and could be seen as
// the inbound connection with a wrapping transport protocol handled
// by the WASM module.
//
// Implements net.Listener.
func (l *Listener) Accept() (net.Conn, error) {
	return l.AcceptWATER()
}

// Close closes the listener.
//
// Implements net.Listener.
func (l *Listener) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		return l.config.NetworkListener.Close()
	}
	return nil
}

// Addr returns the listener's network address.
//
// Implements net.Listener.
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

	var core water.Core
	var err error
	core, err = water.NewCoreWithContext(l.ctx, l.config)
	if err != nil {
		return nil, err
	}

	l.rcMu.Lock()
	rc := l.roleConfig
	l.rcMu.Unlock()

	conn, err := accept(core, rc)
	if err != nil {
		return nil, err
	}

	l.KeepListen(conn)

	return conn, nil
}

// KeepListen clones the RoleConfig of the just-accepted session forward so
// that the next call to AcceptWATER services a freshly initialized Core
// Instance that still knows it is listening. This is the Listener's side of
// migration: a v0 Core Instance services at most one session, so continuous
// listening swaps in a new sandbox per accepted connection while preserving
// the Listener role and listening fd across the swap. AcceptWATER calls
// this automatically after every successful accept; it is exported so
// callers composing their own accept loop around a Listener can replicate
// the same migration.
func (l *Listener) KeepListen(accepted water.Conn) {
	c, ok := accepted.(*Conn)
	if !ok || c.tm == nil {
		return
	}

	l.rcMu.Lock()
	l.roleConfig = c.tm.RoleConfig().Clone()
	l.rcMu.Unlock()
}
