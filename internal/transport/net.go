package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	serr "scriptport/internal/errors"
)

// NetDialer dials TCP or Unix sockets directly.
type NetDialer struct {
	Timeout time.Duration
}

// Dial connects to address.
func (d *NetDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, network, address)
	if err != nil {
		return nil, serr.Wrap("dial", address, err)
	}
	return conn, nil
}

// Close does nothing.
func (d *NetDialer) Close() error { return nil }
