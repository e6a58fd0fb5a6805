package water

import (
	"context"
	"errors"
	"time"
)

// Runner drives a Transport Module that owns its entire protocol stack
// end-to-end -- including its own accept loop -- and exposes no
// host-visible Byte Pipe at all. The host can only start it and, later,
// cancel it.
//
// Unlike Dialer/Listener/Relay, a Runner's guest entry point decides for
// itself what to listen on and where to send bytes, typically by reading
// its own config file pushed through pull_config/watm.cfg. A Runner is
// the shape a standalone proxy (e.g. a SOCKS5-over-Shadowsocks TM) takes.
type Runner interface {
	// Run calls into the Transport Module's entry function and blocks
	// until it returns or the Runner is canceled.
	Run() error

	// RunContext calls into the Transport Module's entry function with
	// the given context and blocks until it returns, the context is
	// canceled, or the Runner is canceled.
	RunContext(ctx context.Context) error

	// Cancel cancels the running entry function, waiting up to timeout
	// for it to return before forcing a Close.
	Cancel(timeout time.Duration) error

	mustEmbedUnimplementedRunner()
}

type newRunnerFunc func(context.Context, *Config) (Runner, error)

var (
	knownRunnerVersions = make(map[string]newRunnerFunc)

	ErrRunnerAlreadyRegistered = errors.New("water: runner already registered")
	ErrRunnerVersionNotFound   = errors.New("water: runner version not found")
	ErrUnimplementedRunner     = errors.New("water: unimplemented runner")
	ErrRunnerAlreadyStarted    = errors.New("water: runner already started")

	_ Runner = (*UnimplementedRunner)(nil) // type guard
)

// UnimplementedRunner is a Runner that always returns errors.
//
// It is used to ensure forward compatibility of the Runner interface.
type UnimplementedRunner struct{}

func (*UnimplementedRunner) Run() error {
	return ErrUnimplementedRunner
}

func (*UnimplementedRunner) RunContext(_ context.Context) error {
	return ErrUnimplementedRunner
}

func (*UnimplementedRunner) Cancel(_ time.Duration) error {
	return ErrUnimplementedRunner
}

func (*UnimplementedRunner) mustEmbedUnimplementedRunner() {} //nolint:unused

// RegisterRunner is a function used by Transport Module drivers (e.g.,
// `transport/v1`) to register a function that spawns a new [Runner] from
// a given [Config] for a specific version.
//
// This is not a part of WATER API and should not be used by developers
// wishing to integrate WATER into their applications.
func RegisterRunner(version string, runner newRunnerFunc) error {
	if _, ok := knownRunnerVersions[version]; ok {
		return ErrRunnerAlreadyRegistered
	}
	knownRunnerVersions[version] = runner
	return nil
}

// NewRunner creates a new [Runner] from the given [Config] without
// starting it. To start it, call Run() or RunContext().
//
// Deprecated: use NewRunnerWithContext instead.
func NewRunner(c *Config) (Runner, error) {
	return NewRunnerWithContext(context.Background(), c)
}

// NewRunnerWithContext creates a new [Runner] from the [Config] with the
// given [context.Context] without starting it.
//
// It automatically detects the version of the WebAssembly Transport
// Module specified in the config.
func NewRunnerWithContext(ctx context.Context, c *Config) (Runner, error) {
	core, err := NewCoreWithContext(ctx, c)
	if err != nil {
		return nil, err
	}

	for exportName := range core.Exports() {
		if f, ok := knownRunnerVersions[exportName]; ok {
			return f(ctx, c)
		}
	}

	return nil, ErrRunnerVersionNotFound
}
