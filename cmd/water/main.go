// Command water is a thin host-side CLI around the W.A.T.E.R. runtime:
// pick a role, point it at a compiled Transport Module, and it drives
// that module exactly the way the corresponding example program would.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"

	"github.com/refraction-networking/water"
	"github.com/refraction-networking/water/internal/log"

	_ "github.com/refraction-networking/water/transport/v0"
	_ "github.com/refraction-networking/water/transport/v1"
)

var (
	role       = flag.String("role", "", "role to run: dial, listen, relay, or runner")
	tmPath     = flag.String("tm", "", "path to the compiled Transport Module (.wasm)")
	configPath = flag.String("config", "", "optional path to a config file pushed into the Transport Module")
	localAddr  = flag.String("laddr", "", "local address to listen on (listen, relay)")
	remoteAddr = flag.String("raddr", "", "remote address to dial (dial, relay)")
	debug      = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	if *debug {
		log.SetDefaultHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	if *tmPath == "" {
		fatalf("missing required -tm flag")
	}

	tmBin, err := os.ReadFile(*tmPath)
	if err != nil {
		fatalf("reading Transport Module: %v", err)
	}

	config := &water.Config{
		TransportModuleBin: tmBin,
		NetworkDialerFunc:  net.Dial,
	}
	config.ModuleConfig().InheritStdout()
	config.ModuleConfig().InheritStderr()

	if *configPath != "" {
		config.TransportModuleConfig, err = water.TransportModuleConfigFromFile(*configPath)
		if err != nil {
			fatalf("reading Transport Module config: %v", err)
		}
	}

	ctx := context.Background()

	switch *role {
	case "dial":
		runDialer(ctx, config)
	case "listen":
		runListener(ctx, config)
	case "relay":
		runRelay(ctx, config)
	case "runner":
		runRunner(ctx, config)
	default:
		fatalf("unknown -role %q, must be one of: dial, listen, relay, runner", *role)
	}
}

func runDialer(ctx context.Context, config *water.Config) {
	if *remoteAddr == "" {
		fatalf("-role dial requires -raddr")
	}

	dialer, err := water.NewDialerWithContext(ctx, config)
	if err != nil {
		fatalf("creating dialer: %v", err)
	}

	conn, err := dialer.DialContext(ctx, "tcp", *remoteAddr)
	if err != nil {
		fatalf("dialing: %v", err)
	}
	defer conn.Close()

	log.Infof("dialed %s, piping stdin/stdout", conn.RemoteAddr())
	pipeStdio(conn)
}

func runListener(ctx context.Context, config *water.Config) {
	if *localAddr == "" {
		fatalf("-role listen requires -laddr")
	}

	lis, err := config.ListenContext(ctx, "tcp", *localAddr)
	if err != nil {
		fatalf("listening: %v", err)
	}
	defer lis.Close()

	log.Infof("listening on %s", lis.Addr())
	for {
		conn, err := lis.Accept()
		if err != nil {
			fatalf("accepting: %v", err)
		}
		go func() {
			defer conn.Close()
			log.Infof("accepted %s", conn.RemoteAddr())
			pipeStdio(conn)
		}()
	}
}

func runRelay(_ context.Context, config *water.Config) {
	if *localAddr == "" || *remoteAddr == "" {
		fatalf("-role relay requires -laddr and -raddr")
	}

	relay, err := water.NewRelayWithContext(context.Background(), config)
	if err != nil {
		fatalf("creating relay: %v", err)
	}

	log.Infof("relaying %s -> %s", *localAddr, *remoteAddr)
	if err := relay.ListenAndRelayTo("tcp", *localAddr, "tcp", *remoteAddr); err != nil {
		fatalf("relaying: %v", err)
	}
}

func runRunner(ctx context.Context, config *water.Config) {
	runner, err := water.NewRunnerWithContext(ctx, config)
	if err != nil {
		fatalf("creating runner: %v", err)
	}

	log.Infof("running Transport Module entry point")
	if err := runner.RunContext(ctx); err != nil {
		fatalf("running: %v", err)
	}
}

func pipeStdio(conn net.Conn) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if _, werr := conn.Write(buf[:n]); werr != nil {
				break
			}
		}
		if err != nil {
			break
		}
	}
	<-done
}

func fatalf(format string, args ...any) {
	log.Errorf(format, args...)
	os.Exit(1)
}
