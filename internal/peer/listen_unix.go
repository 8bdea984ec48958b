//go:build unix

package peer

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

const listenBacklog = 1

// listenSocket creates the socket by hand so the descriptor is
// close-on-exec and SO_REUSEADDR is set before bind, then hands it to
// the runtime poller.
func listenSocket(network, address string) (net.Listener, error) {
	family, sa, err := sockaddr(network, address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd) //nolint:errcheck
		return nil, os.NewSyscallError("setsockopt(SO_REUSEADDR)", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd) //nolint:errcheck
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd) //nolint:errcheck
		if network == "unix" {
			os.Remove(address) //nolint:errcheck
		}
		return nil, os.NewSyscallError("listen", err)
	}

	// FileListener dups the descriptor; ours is closed either way.
	f := os.NewFile(uintptr(fd), address)
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		if network == "unix" {
			os.Remove(address) //nolint:errcheck
		}
		return nil, err
	}
	return ln, nil
}

func sockaddr(network, address string) (int, unix.Sockaddr, error) {
	switch network {
	case "unix":
		return unix.AF_UNIX, &unix.SockaddrUnix{Name: address}, nil
	case "tcp", "tcp4", "tcp6":
	default:
		return 0, nil, fmt.Errorf("unsupported network %q", network)
	}

	ta, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return 0, nil, err
	}
	if ip4 := ta.IP.To4(); ta.IP == nil || ip4 != nil {
		sa := &unix.SockaddrInet4{Port: ta.Port}
		if ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa, nil
	}

	sa := &unix.SockaddrInet6{Port: ta.Port}
	copy(sa.Addr[:], ta.IP.To16())
	if ta.Zone != "" {
		ifi, err := net.InterfaceByName(ta.Zone)
		if err != nil {
			return 0, nil, fmt.Errorf("zone %q: %w", ta.Zone, err)
		}
		sa.ZoneId = uint32(ifi.Index)
	}
	return unix.AF_INET6, sa, nil
}
