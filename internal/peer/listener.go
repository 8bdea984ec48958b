package peer

import (
	"net"
	"os"
	"sync"
)

// Listener is a bound script socket.
type Listener struct {
	ln      net.Listener
	network string
	path    string // unix socket file, removed on close
	mode    Mode
	desc    string

	closeOnce sync.Once
	closed    chan struct{}
}

func newListener(ln net.Listener, network, address string, mode Mode) *Listener {
	l := &Listener{
		ln:      ln,
		network: network,
		mode:    mode,
		desc:    ln.Addr().String(),
		closed:  make(chan struct{}),
	}
	if network == "unix" {
		l.path = address
		l.desc = address
	}
	return l
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Mode returns the listener's lifecycle policy.
func (l *Listener) Mode() Mode { return l.mode }

// String describes the listener for log messages.
func (l *Listener) String() string { return l.desc }

// close stops listening.  Safe to call more than once and from any
// goroutine.
func (l *Listener) close() {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.ln.Close() //nolint:errcheck
		if l.path != "" {
			os.Remove(l.path) //nolint:errcheck
		}
	})
}

func (l *Listener) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}
