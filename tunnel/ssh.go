package tunnel

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	serr "scriptport/internal/errors"
	"scriptport/util"
)

// SSHConfig describes the gateway and how to authenticate to it.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// ReadSecret reads a password or passphrase after printing prompt.
	// Nil reads from the terminal with echo off.
	ReadSecret func(prompt string) ([]byte, error)
}

func (c *SSHConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSHTunnel implements Tunnel over a single ssh.Client.
type SSHTunnel struct {
	config *SSHConfig
	log    *util.Logger

	mu     sync.RWMutex
	client *ssh.Client
	alive  bool
}

var _ Tunnel = (*SSHTunnel)(nil)

// NewSSHTunnel returns an unconnected tunnel.  Port defaults to 22 and
// ConnTimeout to 30s.
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &SSHTunnel{config: cfg, log: logger.Named("ssh")}
}

// Connect dials the gateway and authenticates.  It is a no-op while
// the tunnel is alive.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	if t.IsAlive() {
		return nil
	}

	auth, err := BuildAuthMethods(t.config)
	if err != nil {
		return serr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}
	hostKey, err := hostKeyCallback(t.config)
	if err != nil {
		return serr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	addr := t.config.addr()
	t.log.Debug("dialing %s as %s", addr, t.config.User)

	d := net.Dialer{Timeout: t.config.ConnTimeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return serr.Wrap("dial", addr, err)
	}

	conn, chans, reqs, err := ssh.NewClientConn(raw, addr, &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         t.config.ConnTimeout,
	})
	if err != nil {
		raw.Close()
		return serr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}
	client := ssh.NewClient(conn, chans, reqs)

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.mu.Unlock()

	go t.watch(client)
	t.log.Verbose("connected to %s", addr)
	return nil
}

// Dial opens network/address from the gateway's side.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client, alive := t.client, t.alive
	t.mu.RUnlock()
	if !alive || client == nil {
		return nil, serr.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.log.Debug("forwarding to %s %s", network, address)
	conn, err := client.Dial(network, address)
	if err != nil {
		return nil, serr.Wrap("tunnel dial", address, err)
	}
	return conn, nil
}

// Close shuts the gateway connection.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alive = false
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// IsAlive reports whether the tunnel is connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// watch marks the tunnel dead when client's connection ends.
func (t *SSHTunnel) watch(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil {
		t.log.Verbose("gateway connection closed: %v", err)
	} else {
		t.log.Debug("gateway connection closed")
	}
}
