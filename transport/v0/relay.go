//go:build !exclude_v0

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
	err := water.RegisterRelay("_water_v0", NewRelayWithContext)
	if err != nil {
		panic(err)
	}
}

// Relay implements water.Relay utilizing Water WATM API v0.
type Relay struct {
	config  *water.Config
	started *atomic.Bool
	closed  *atomic.Bool

	dialNetwork, dialAddress string

	// rcMu guards roleConfig, cloned forward from one relayed session to
	// the next so each freshly constructed Core Instance keeps the Relay
	// role and listening fd across the swap. See Listener.KeepListen.
	rcMu       sync.Mutex
	roleConfig *water.RoleConfig

	water.UnimplementedRelay // embedded to ensure forward compatibility
}

// NewRelay creates a relay with the given Config without starting
// it. To start the relay, call RelayTo() or ListenAndRelayTo().
//
// Deprecated: use NewRelayWithContext instead.
func NewRelay(c *water.Config) (water.Relay, error) {
	return NewRelayWithContext(context.Background(), c)
}

// NewRelayWithContext creates a relay with the given Config and context
// without starting it.
func NewRelayWithContext(_ context.Context, c *water.Config) (water.Relay, error) {
	return &Relay{
		config:  c.Clone(),
		started: new(atomic.Bool),
		closed:  new(atomic.Bool),
	}, nil
}

// RelayTo implements Relay.RelayTo().
func (r *Relay) RelayTo(network, address string) error {
	if !r.started.CompareAndSwap(false, true) {
		return water.ErrRelayAlreadyStarted
	}

	if r.config == nil {
		return fmt.Errorf("water: relaying with nil config is not allowed")
	}

	r.dialNetwork = network
	r.dialAddress = address

	var core water.Core
	var err error
	for !r.closed.Load() {
		core, err = water.NewCore(r.config)
		if err != nil {
			return err
		}

		r.rcMu.Lock()
		rc := r.roleConfig
		r.rcMu.Unlock()

		conn, err := relay(core, network, address, rc)
		if err != nil {
			if !r.closed.Load() { // errored before closing
				return err
			}
			break
		}

		r.keepRelaying(conn)
	}

	return nil
}

// ListenAndRelayTo implements Relay.ListenAndRelayTo().
func (r *Relay) ListenAndRelayTo(lnetwork, laddress, rnetwork, raddress string) error {
	if !r.started.CompareAndSwap(false, true) {
		return water.ErrRelayAlreadyStarted
	}

	lis, err := net.Listen(lnetwork, laddress)
	if err != nil {
		return err
	}

	config := r.config.Clone()
	config.NetworkListener = lis
	r.config = config

	if r.config == nil {
		return fmt.Errorf("water: relaying with nil config is not allowed")
	}

	r.dialNetwork = rnetwork
	r.dialAddress = raddress

	var core water.Core
	for !r.closed.Load() {
		core, err = water.NewCore(r.config)
		if err != nil {
			return err
		}

		r.rcMu.Lock()
		rc := r.roleConfig
		r.rcMu.Unlock()

		conn, err := relay(core, rnetwork, raddress, rc)
		if err != nil {
			if !r.closed.Load() { // errored before closing
				return err
			}
			break
		}

		r.keepRelaying(conn)
	}

	return nil
}

// Addr implements Relay.Addr(). It returns nil until the Relay has
// started listening.
func (r *Relay) Addr() net.Addr {
	if r.config == nil || r.config.NetworkListener == nil {
		return nil
	}
	return r.config.NetworkListener.Addr()
}

// keepRelaying clones the RoleConfig of the just-relayed session forward,
// mirroring Listener.KeepListen, so the next iteration of the relay loop
// constructs a Core Instance that still knows it is relaying and where to
// dial, while the worn-out session's accepted/dialed fds are left behind.
func (r *Relay) keepRelaying(relayed water.Conn) {
	c, ok := relayed.(*Conn)
	if !ok || c.tm == nil {
		return
	}

	r.rcMu.Lock()
	r.roleConfig = c.tm.RoleConfig().Clone()
	r.rcMu.Unlock()
}

func (r *Relay) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	if r.config != nil {
		r.config.NetworkListener.Close()
	}

	return nil
}
