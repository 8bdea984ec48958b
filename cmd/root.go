// Package cmd wires up the CLI flags and dispatches to the script server
// or the console client.
package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"scriptport/config"
	"scriptport/console"
	"scriptport/internal/action"
	serr "scriptport/internal/errors"
	"scriptport/internal/metrics"
	"scriptport/internal/peer"
	"scriptport/internal/retry"
	"scriptport/internal/trace"
	"scriptport/internal/transport"
	"scriptport/tunnel"
	"scriptport/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X scriptport/cmd.version=2.0.0"
var version = "0.3.0" //nolint:gochecknoglobals

// Execute parses args and runs the server or the console client.
func Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage(newFlagSet(config.Defaults(), new(cliOnly)))
		return nil
	}

	// The config file and environment provide the flag defaults, so
	// they are loaded before the flag set is built.
	cfg := config.Defaults()
	if path := scanConfigPath(args); path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	cli := new(cliOnly)
	fs := newFlagSet(cfg, cli)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cli.help {
		printUsage(fs)
		return nil
	}
	if cli.version {
		fmt.Printf("scriptport %s\n", version)
		return nil
	}

	cfg.Timeout = seconds(cli.timeout)
	cfg.WriteTimeout = seconds(cli.writeTimeout)

	// ── positional arguments ─────────────────────────────────────
	if rest := fs.Args(); len(rest) > 0 {
		if cfg.Connect == "" {
			return fmt.Errorf("unexpected arguments %q (commands are only accepted with -c)", rest)
		}
		cfg.Commands = rest
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		printPlan(cfg)
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	var dialer transport.Dialer = &transport.NetDialer{Timeout: cfg.ConnTimeout}
	if cfg.TunnelEnabled {
		dialer = transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.ConnTimeout,
		}, logger)
	}
	defer dialer.Close()

	if cfg.Connect != "" {
		addr, err := config.ParseListenAddr(cfg.Connect)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		c := &console.Client{Dialer: dialer, Logger: logger}
		return c.Run(ctx, addr.Network, addr.Address, cfg.Commands)
	}
	return serve(ctx, cfg, dialer, logger)
}

// cliOnly holds flags that never reach config.Config.
type cliOnly struct {
	timeout      float64
	writeTimeout float64
	configPath   string
	help         bool
	version      bool
}

func newFlagSet(cfg *config.Config, cli *cliOnly) *flag.FlagSet {
	fs := flag.NewFlagSet("scriptport", flag.ContinueOnError)

	// ── script server ────────────────────────────────────────────
	fs.StringArrayVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Serve scripts on `ADDR` (port, host:port or unix:/path; repeatable)")
	fs.StringVarP(&cfg.Mode, "mode", "m", cfg.Mode, "Listener mode: once, single or multi")
	fs.StringVar(&cfg.ConnectBack, "connect-back", cfg.ConnectBack, "Dial `ADDR` and serve scripts over that connection")
	fs.IntVar(&cfg.MaxLine, "max-line", cfg.MaxLine, "Close peers sending a line longer than `N` bytes (0 = unlimited)")
	fs.Float64Var(&cli.writeTimeout, "write-timeout", cfg.WriteTimeout.Seconds(), "Drop a peer that blocks a write for `SEC` seconds (0 = never)")

	// ── engine ───────────────────────────────────────────────────
	fs.BoolVar(&cfg.AllowExec, "allow-exec", cfg.AllowExec, "Enable the Shell action")
	fs.Float64VarP(&cli.timeout, "timeout", "w", cfg.Timeout.Seconds(), "Per-command timeout in `SEC` seconds (0 = none)")

	// ── console client ───────────────────────────────────────────
	fs.StringVarP(&cfg.Connect, "connect", "c", cfg.Connect, "Connect to a script server at `ADDR`")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Route outbound connections via SSH `[user@]host[:port]`")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.StringVar(&cfg.TraceFile, "trace-file", cfg.TraceFile, "Append a JSON protocol trace to `FILE`")
	fs.StringVar(&cli.configPath, "config", cfg.ConfigFile, "Read settings from YAML `FILE`")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate the configuration and print the plan")

	fs.BoolVar(&cli.version, "version", false, "Print version and exit")
	fs.BoolVarP(&cli.help, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }
	return fs
}

// scanConfigPath finds --config ahead of the real parse.
func scanConfigPath(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// ── server mode ──────────────────────────────────────────────────────

func serve(ctx context.Context, cfg *config.Config, dialer transport.Dialer, logger *util.Logger) error {
	m := metrics.New()

	var tracer *trace.Tracer
	if cfg.TraceFile != "" {
		t, err := trace.Open(cfg.TraceFile)
		if err != nil {
			return err
		}
		tracer = t
		defer tracer.Close()
	}

	eng := action.New(action.Options{
		Logger:    logger,
		Metrics:   m,
		AllowExec: cfg.AllowExec,
		Timeout:   cfg.Timeout,
	})
	defer eng.Close()

	srv := peer.New(eng, peer.Options{
		Logger:       logger,
		Metrics:      m,
		Tracer:       tracer,
		MaxLine:      cfg.MaxLine,
		WriteTimeout: writeDeadline(cfg.WriteTimeout),
	})

	mode, err := peer.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	bound := 0
	for _, a := range cfg.Listeners {
		if _, err := srv.Listen(a.Network, a.Address, mode); err != nil {
			logger.Error("%v", err)
			continue
		}
		bound++
	}
	if bound == 0 && cfg.ConnectBack == "" {
		return fmt.Errorf("no script socket could be opened")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.Run(gctx)
	})
	if cfg.ConnectBack != "" {
		g.Go(func() error {
			err := connectBack(gctx, cfg.BackAddr, dialer, srv, logger, m)
			if err != nil && bound > 0 {
				logger.Error("%v", err)
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	logger.Verbose("stats: %s", m.JSON())
	return err
}

// connectBack dials the controller, retrying with backoff, and hands
// the connection to srv as a peer with no listener.
func connectBack(ctx context.Context, addr config.ListenAddr, dialer transport.Dialer,
	srv *peer.Server, logger *util.Logger, m *metrics.Collector) error {
	b := retry.DefaultBackoff()
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("connect-back to %s failed (attempt %d): %v; retrying in %s", addr, attempt, err, wait)
		m.Reconnect()
	}

	var conn net.Conn
	err := b.Do(ctx, func(int) error {
		c, err := dialer.Dial(ctx, addr.Network, addr.Address)
		if err != nil {
			var sshErr *serr.SSHError
			if serr.As(err, &sshErr) && sshErr.Permanent() {
				return retry.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connect-back %s: %w", addr, err)
	}

	logger.Info("connected back to %s", addr)
	if err := srv.Inject(conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func seconds(sec float64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

// writeDeadline maps the CLI's "0 = none" onto peer.Options.
func writeDeadline(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

func printPlan(cfg *config.Config) {
	if cfg.Connect != "" {
		fmt.Printf("connect %s\n", cfg.Connect)
		for _, c := range cfg.Commands {
			fmt.Printf("  command %s\n", c)
		}
	}
	for _, l := range cfg.Listeners {
		fmt.Printf("listen %s (%s)\n", l, strings.ToLower(cfg.Mode))
	}
	if cfg.ConnectBack != "" {
		fmt.Printf("connect-back %s\n", cfg.BackAddr)
	}
	if cfg.TunnelEnabled {
		fmt.Printf("tunnel %s@%s\n", cfg.TunnelUser, util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
	}
	if cfg.AllowExec {
		fmt.Println("shell actions enabled")
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `scriptport %s - a local automation-control socket

Usage:
  scriptport -l [HOST:]PORT [-m once|single|multi] [options]
  scriptport -l unix:/path/to/socket [options]
  scriptport --connect-back HOST:PORT [options]
  scriptport -c ADDR [COMMAND ...]

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Commands are one per line, either as text (Echo("hi") Wait(0.5)) or as
JSON ("Echo(hi)", {"action":"Echo","args":["hi"]} or an array of both).

Environment variables use the %s prefix, e.g. %sLISTEN=4000.

Examples:
  scriptport -l 4000                     Serve scripts on 127.0.0.1:4000
  scriptport -l unix:/tmp/sp.sock -m once Serve one script, then exit
  scriptport -c 4000 'Echo(hello)'       Run one command
  scriptport -c 4000                     Interactive console
  scriptport --connect-back ctl:7000 -T user@gw
                                         Serve a controller reached via SSH
`, config.EnvPrefix, config.EnvPrefix)
}
