package v1

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/refraction-networking/water"
	"github.com/refraction-networking/water/internal/log"
)

func init() {
	err := water.RegisterRunner("watm_start_v1", NewRunnerWithContext)
	if err != nil {
		panic(err)
	}
}

// Runner implements water.Runner utilizing Water WATM API v1.
//
// Unlike Dialer/Listener/Relay, a Runner's guest entry point decides for
// itself what to dial and what to listen on, typically reading its own
// config pushed through pull_config/watm.cfg. The host only wires in a
// dynamic dialer (gated by Config.DialedAddressValidator, since the guest
// is now free to name arbitrary destinations) and, if one is configured,
// a net.Listener for the guest to Accept() through.
type Runner struct {
	config  *water.Config
	started *atomic.Bool

	tm *TransportModule

	water.UnimplementedRunner // embedded to ensure forward compatibility
}

// NewRunner creates a new Runner with the given Config without starting it.
//
// Deprecated: use NewRunnerWithContext instead.
func NewRunner(c *water.Config) (water.Runner, error) {
	return NewRunnerWithContext(context.Background(), c)
}

// NewRunnerWithContext creates a new Runner with the given Config and
// context without starting it.
func NewRunnerWithContext(_ context.Context, c *water.Config) (water.Runner, error) {
	return &Runner{
		config:  c.Clone(),
		started: new(atomic.Bool),
	}, nil
}

// Run implements water.Runner.Run().
func (r *Runner) Run() error {
	return r.RunContext(context.Background())
}

// RunContext implements water.Runner.RunContext().
func (r *Runner) RunContext(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return water.ErrRunnerAlreadyStarted
	}

	if r.config == nil {
		return fmt.Errorf("water: running with nil config is not allowed")
	}

	core, err := water.NewCoreWithContext(ctx, r.config)
	if err != nil {
		return err
	}

	tm := UpgradeCore(core)
	r.tm = tm

	dialer := &networkDialer{
		dialerFunc:       core.Config().NetworkDialerFuncOrDefault(),
		addressValidator: core.Config().DialedAddressValidator,
	}

	// a Runner may or may not be given a net.Listener to accept through,
	// depending on whether its guest entry point calls back into water_accept.
	var listener = core.Config().NetworkListener

	if err = tm.LinkNetworkInterface(dialer, listener); err != nil {
		return err
	}

	if err = tm.Initialize(); err != nil {
		return err
	}

	if err = tm.ControlPipe(ctx); err != nil {
		return fmt.Errorf("water: setting up control pipe failed: %w", err)
	}

	if err = tm.StartWorker(); err != nil {
		return err
	}

	log.LInfof(core.Logger(), "water: runner started")

	return tm.WaitWorker()
}

// Cancel implements water.Runner.Cancel().
func (r *Runner) Cancel(timeout time.Duration) error {
	if r.tm == nil {
		return fmt.Errorf("water: runner is not running")
	}

	return r.tm.Cancel(timeout)
}
