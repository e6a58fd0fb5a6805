package v1

import (
	"context"
	"fmt"

	"github.com/refraction-networking/water"
)

func init() {
	err := water.RegisterWATMDialer("watm_dial_v1", NewDialerWithContext)
	if err != nil {
		panic(err)
	}
}

// Dialer implements water.Dialer utilizing Water WATM API v1.
type Dialer struct {
	config *water.Config
	ctx    context.Context

	water.UnimplementedDialer // embedded to ensure forward compatibility
}

// NewDialer creates a new Dialer.
//
// Deprecated: use NewDialerWithContext instead.
func NewDialer(c *water.Config) (water.Dialer, error) {
	return NewDialerWithContext(context.Background(), c)
}

// NewDialerWithContext creates a new Dialer with the given context.
func NewDialerWithContext(ctx context.Context, c *water.Config) (water.Dialer, error) {
	return &Dialer{
		config: c.Clone(),
		ctx:    ctx,
	}, nil
}

// Dial dials the network address using the dialerFunc specified in config.
//
// Dial implements water.Dialer.
func (d *Dialer) Dial(network, address string) (conn water.Conn, err error) {
	return d.DialContext(context.Background(), network, address)
}

func (d *Dialer) DialContext(ctx context.Context, network, address string) (conn water.Conn, err error) {
	if d.config == nil {
		return nil, fmt.Errorf("water: dialing with nil config is not allowed")
	}

	ctxReady, dialReady := context.WithCancel(context.Background())
	go func() {
		defer dialReady()
		var core water.Core
		core, err = water.NewCoreWithContext(d.ctx, d.config)
		if err != nil {
			return
		}

		conn, err = dial(core, network, address)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ctxReady.Done():
		return conn, err
	}
}
