package peer

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scriptport/internal/metrics"
)

func TestSession_CloseIsIdempotent(t *testing.T) {
	m := metrics.New()
	srv := New(&fakeEngine{}, Options{Metrics: m})
	local, remote := net.Pipe()
	defer remote.Close()
	defer local.Close()

	p := newSession(srv, local, nil)
	srv.peers[p] = struct{}{}
	m.ConnectionOpened()

	aborts := 0
	p.setInputState("pending", 1, func(any) { aborts++ })
	p.buf.append([]byte("partial"))

	p.close("first")
	p.close("second")

	assert.Equal(t, 1, aborts)
	assert.Zero(t, m.ActiveConnections())
	assert.Empty(t, srv.peers)
	assert.Zero(t, p.buf.len())

	select {
	case <-srv.Done():
	default:
		t.Fatal("closing a listener-less peer should stop the server")
	}

	// State stored after teardown is released at once.
	p.setInputState("late", 2, func(any) { aborts++ })
	assert.Equal(t, 2, aborts)
	assert.Nil(t, p.inputState("late"))
}

func TestSession_MultiPeerCloseKeepsServer(t *testing.T) {
	srv := New(&fakeEngine{}, Options{})
	local, remote := net.Pipe()
	defer remote.Close()
	defer local.Close()

	l := &Listener{mode: Multi, closed: make(chan struct{})}
	p := newSession(srv, local, l)
	p.close("eof")

	select {
	case <-srv.Done():
		t.Fatal("multi-mode peer should not stop the server")
	default:
	}
}

func TestSession_InputStateClearedWithoutAbort(t *testing.T) {
	srv := New(&fakeEngine{}, Options{})
	local, remote := net.Pipe()
	defer remote.Close()
	defer local.Close()

	p := newSession(srv, local, &Listener{mode: Multi, closed: make(chan struct{})})
	called := false
	p.setInputState("x", "s", func(any) { called = true })
	assert.Equal(t, "s", p.inputState("x"))
	p.setInputState("x", nil, nil)
	assert.Nil(t, p.inputState("x"))

	p.close("eof")
	assert.False(t, called)
}

func TestNew_WriteTimeoutDefault(t *testing.T) {
	assert.Equal(t, DefaultWriteTimeout, New(&fakeEngine{}, Options{}).opts.WriteTimeout)
	assert.Equal(t, 5*time.Second, New(&fakeEngine{}, Options{WriteTimeout: 5 * time.Second}).opts.WriteTimeout)
	assert.Negative(t, int64(New(&fakeEngine{}, Options{WriteTimeout: -1}).opts.WriteTimeout))
}
