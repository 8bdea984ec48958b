// Package config defines the runtime configuration of scriptport and
// the parsers for listen addresses and SSH tunnel specifications.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	serr "scriptport/internal/errors"
)

// Config holds every tuneable for one scriptport process.
type Config struct {
	// ── Script server ────────────────────────────────────────────────
	Listen       []string     // raw -l values
	Listeners    []ListenAddr // parsed by Validate
	Mode         string       // once, single or multi
	ConnectBack  string       // dial this address and serve it
	BackAddr     ListenAddr   // parsed ConnectBack
	MaxLine      int          // 0 = unlimited
	WriteTimeout time.Duration

	// ── Engine ───────────────────────────────────────────────────────
	AllowExec bool
	Timeout   time.Duration // per command, 0 = none

	// ── Console client ───────────────────────────────────────────────
	Connect  string
	Commands []string

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw [user@]host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // prompt for a password
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string
	ConnTimeout    time.Duration

	// ── Output ───────────────────────────────────────────────────────
	Verbose    int
	TraceFile  string
	ConfigFile string
	DryRun     bool
}

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	return &Config{
		Mode:         DefaultMode,
		MaxLine:      DefaultMaxLine,
		WriteTimeout: DefaultWriteTimeout,
		ConnTimeout:  DefaultConnTimeout,
		TunnelPort:   DefaultSSHPort,
		Verbose:      DefaultVerbosity,
	}
}

// ── Listen addresses ─────────────────────────────────────────────────

// ListenAddr is a parsed -l value.
type ListenAddr struct {
	Network string // "tcp" or "unix"
	Address string // host:port or socket path
}

func (a ListenAddr) String() string {
	if a.Network == "unix" {
		return "unix:" + a.Address
	}
	return a.Address
}

// ParseListenAddr accepts
//
//	4000            127.0.0.1:4000
//	:4000           every interface
//	host:4000       a specific address
//	[::1]:4000      IPv6
//	unix:/path      a Unix domain socket
//	/path           same
func ParseListenAddr(spec string) (ListenAddr, error) {
	switch {
	case spec == "":
		return ListenAddr{}, fmt.Errorf("empty listen address")
	case strings.HasPrefix(spec, "unix:"):
		path := strings.TrimPrefix(spec, "unix:")
		if path == "" {
			return ListenAddr{}, fmt.Errorf("unix socket path is required in %q", spec)
		}
		return ListenAddr{Network: "unix", Address: path}, nil
	case strings.HasPrefix(spec, "/"):
		return ListenAddr{Network: "unix", Address: spec}, nil
	}

	if _, err := parsePort(spec); err == nil {
		return ListenAddr{Network: "tcp", Address: net.JoinHostPort(DefaultLocalAddress, spec)}, nil
	}

	host, port, err := net.SplitHostPort(spec)
	if err != nil {
		return ListenAddr{}, fmt.Errorf("invalid listen address %q: expected PORT, HOST:PORT or unix:PATH", spec)
	}
	if _, err := parsePort(port); err != nil {
		return ListenAddr{}, err
	}
	return ListenAddr{Network: "tcp", Address: net.JoinHostPort(host, port)}, nil
}

func parsePort(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if n < 0 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range 0-65535", n)
	}
	return n, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:@]+)(?::(\d+))?$`)

// ParseTunnelSpec splits "admin@bastion:2222" into its parts.  Port
// defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q, expected [user@]host[:port]", spec)
	}
	user, host, port = m[1], m[2], DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

var validModes = []string{"once", "single", "multi"}

// Validate checks the configuration for consistency and parses the
// listen and connect-back addresses into Listeners and BackAddr.
func (c *Config) Validate() error {
	if c.Connect != "" {
		if len(c.Listen) > 0 || c.ConnectBack != "" {
			return &serr.ConfigError{
				Field:   "connect",
				Value:   c.Connect,
				Message: "the console client cannot be combined with --listen or --connect-back",
				Hint:    "run the server and the client as separate processes",
			}
		}
	} else if len(c.Listen) == 0 && c.ConnectBack == "" {
		return &serr.ConfigError{
			Field:   "listen",
			Message: "nothing to do",
			Hint:    "serve scripts with -l PORT, or connect to a server with -c ADDR",
		}
	}

	c.Listeners = c.Listeners[:0]
	for _, spec := range c.Listen {
		a, err := ParseListenAddr(spec)
		if err != nil {
			return &serr.ConfigError{Field: "listen", Value: spec, Message: err.Error()}
		}
		c.Listeners = append(c.Listeners, a)
	}

	if c.ConnectBack != "" {
		a, err := ParseListenAddr(c.ConnectBack)
		if err != nil {
			return &serr.ConfigError{Field: "connect-back", Value: c.ConnectBack, Message: err.Error()}
		}
		c.BackAddr = a
	}

	mode := strings.ToLower(c.Mode)
	found := false
	for _, m := range validModes {
		found = found || m == mode
	}
	if !found {
		return &serr.ConfigError{
			Field:   "mode",
			Value:   c.Mode,
			Message: "unknown listener mode",
			Hint:    "use one of " + strings.Join(validModes, ", "),
		}
	}

	if c.MaxLine < 0 {
		return &serr.ConfigError{Field: "max-line", Value: c.MaxLine, Message: "must not be negative", Hint: "0 disables the limit"}
	}
	if c.WriteTimeout < 0 || c.Timeout < 0 {
		return &serr.ConfigError{Field: "timeout", Message: "timeouts must not be negative"}
	}

	if c.TunnelEnabled {
		if c.TunnelHost == "" {
			return &serr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required"}
		}
		if c.Connect == "" && c.ConnectBack == "" {
			return &serr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "a tunnel only carries outbound connections",
				Hint:    "combine -T with -c ADDR or --connect-back ADDR",
			}
		}
	}
	return nil
}
