// Package transport opens outbound stream connections for the console
// client and for connect-back mode, either directly or through an SSH
// gateway.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections.
type Dialer interface {
	// Dial connects to address on network ("tcp" or "unix").
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases long-lived resources such as an SSH session.
	Close() error
}
