package transport

import (
	"context"
	"net"
	"sync"

	"scriptport/tunnel"
	"scriptport/util"
)

// SSHDialer dials through an SSH gateway.  The gateway connection is
// made on first use and made again if it has dropped.
type SSHDialer struct {
	tunnel *tunnel.SSHTunnel
	config *tunnel.SSHConfig
	log    *util.Logger
	mu     sync.Mutex
}

// NewSSHDialer returns a dialer for the gateway in cfg.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &SSHDialer{
		tunnel: tunnel.NewSSHTunnel(cfg, logger),
		config: cfg,
		log:    logger,
	}
}

func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tunnel.IsAlive() {
		return nil
	}
	d.log.Verbose("opening SSH tunnel to %s@%s:%d", d.config.User, d.config.Host, d.config.Port)
	return d.tunnel.Connect(ctx)
}

// Dial reaches address from the gateway's side.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the gateway connection.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunnel.Close()
}
