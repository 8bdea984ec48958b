// Package tunnel reaches script sockets on remote hosts through an SSH
// gateway, using golang.org/x/crypto/ssh.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is an encrypted channel that can carry stream connections.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address ("tcp" or "unix") as seen
	// from the gateway.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	Close() error

	// IsAlive reports whether the gateway connection is still up.
	IsAlive() bool
}
