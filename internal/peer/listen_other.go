//go:build !unix

package peer

import (
	"context"
	"net"
)

func listenSocket(network, address string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(context.Background(), network, address)
}
