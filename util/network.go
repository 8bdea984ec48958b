package util

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
)

// FormatAddr returns "host:port", bracketing IPv6 literals.
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

var socketSeq atomic.Int64

// FreeAddr returns an address nothing is listening on yet: a loopback
// host:port for "tcp", or a fresh socket path under the temp dir for
// "unix".  The address can be claimed by someone else before it is
// used, so it suits tests and dry runs only.
func FreeAddr(network string) (string, error) {
	switch network {
	case "tcp", "tcp4":
		l, err := net.Listen("tcp4", "127.0.0.1:0")
		if err != nil {
			return "", fmt.Errorf("finding free port: %w", err)
		}
		defer l.Close()
		return l.Addr().String(), nil
	case "unix":
		name := fmt.Sprintf("scriptport-%d-%d.sock", os.Getpid(), socketSeq.Add(1))
		return filepath.Join(os.TempDir(), name), nil
	default:
		return "", fmt.Errorf("no free address for network %q", network)
	}
}
