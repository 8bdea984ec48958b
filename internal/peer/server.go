// Package peer runs script sockets: it accepts connections, frames the
// commands each peer sends, submits them one at a time to a task.Engine
// and writes the results back in line or JSON form.
//
// All session state is owned by the goroutine executing Server.Run.
// Socket reads, socket writes, accepts and engine callbacks happen on
// other goroutines and reach the loop as queued events, so no handler
// ever runs inside another.
package peer

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	serr "scriptport/internal/errors"
	"scriptport/internal/metrics"
	"scriptport/internal/retry"
	"scriptport/internal/task"
	"scriptport/internal/trace"
	"scriptport/util"
)

// Options tune a Server.  The zero value is usable.
type Options struct {
	Logger  *util.Logger
	Metrics *metrics.Collector
	Tracer  *trace.Tracer

	// MaxLine closes a peer whose unterminated command grows past this
	// many bytes.  Zero means no limit.
	MaxLine int

	// WriteTimeout bounds each socket write so a peer that stops
	// reading cannot stall teardown.  Zero selects DefaultWriteTimeout;
	// a negative value disables the deadline.
	WriteTimeout time.Duration
}

// DefaultWriteTimeout applies when Options.WriteTimeout is zero.
const DefaultWriteTimeout = 30 * time.Second

// Server multiplexes script listeners and peers over one event loop.
type Server struct {
	engine task.Engine
	opts   Options
	log    *util.Logger

	events *queue[event]
	group  errgroup.Group

	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// Owned by the Run goroutine.
	listeners map[*Listener]struct{}
	peers     map[*Session]struct{}
}

// New returns a Server that submits commands to engine.
func New(engine task.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Server{
		engine:    engine,
		opts:      opts,
		log:       opts.Logger.Named("script"),
		events:    newQueue[event](),
		stop:      make(chan struct{}),
		listeners: make(map[*Listener]struct{}),
		peers:     make(map[*Session]struct{}),
	}
}

// Listen binds a script socket on network ("tcp" or "unix") and
// registers it with the server.  Binding happens immediately; accepting
// starts once Run is executing.
func (s *Server) Listen(network, address string, mode Mode) (*Listener, error) {
	ln, err := listenSocket(network, address)
	if err != nil {
		return nil, serr.Wrap("listen", address, err)
	}
	l := newListener(ln, network, address, mode)
	if !s.events.push(registerEvent{l: l}) {
		l.close()
		return nil, serr.ErrServerClosed
	}
	s.log.Info("listening for scripts on %s (%s)", l, mode)
	return l, nil
}

// Shutdown stops l from accepting.  Peers it already accepted are not
// affected.  Calling it more than once is harmless.
func (s *Server) Shutdown(l *Listener) {
	l.close()
	s.events.push(unregisterEvent{l: l}) //nolint:errcheck
}

// Inject adopts an already-connected conn as a peer with no listener.
// The server shuts down when that peer closes.
func (s *Server) Inject(conn net.Conn) error {
	if !s.events.push(injectEvent{conn: conn}) {
		conn.Close() //nolint:errcheck
		return serr.ErrServerClosed
	}
	return nil
}

// Close asks Run to return.
func (s *Server) Close() error {
	s.exit()
	return nil
}

// Done is closed when the server begins shutting down.
func (s *Server) Done() <-chan struct{} { return s.stop }

// Run processes events until ctx is cancelled, Close is called, or a
// once-only peer closes.  Every listener and peer is closed before Run
// returns.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return serr.ErrServerClosed
	}
	defer s.teardown()

	for {
		select {
		case <-ctx.Done():
			s.log.Verbose("stopping: %v", context.Cause(ctx))
			return nil
		case <-s.stop:
			return nil
		case <-s.events.ready:
		}

		items, _ := s.events.take()
		for _, ev := range items {
			s.handle(ev)
		}
	}
}

func (s *Server) exit() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Server) teardown() {
	s.exit()
	for l := range s.listeners {
		s.unregister(l)
	}
	for p := range s.peers {
		p.close("server shutdown")
	}

	s.events.close()
	items, _ := s.events.take()
	for _, ev := range items {
		switch e := ev.(type) {
		case registerEvent:
			e.l.close()
		case acceptEvent:
			if e.conn != nil {
				e.conn.Close() //nolint:errcheck
			}
		case injectEvent:
			e.conn.Close() //nolint:errcheck
		}
	}

	s.group.Wait() //nolint:errcheck
}

func (s *Server) handle(ev event) {
	switch e := ev.(type) {
	case registerEvent:
		if e.l.isClosed() {
			return
		}
		s.listeners[e.l] = struct{}{}
		s.opts.Tracer.Listen(e.l.String(), e.l.mode.String(), true)
		s.group.Go(func() error {
			s.acceptLoop(e.l)
			return nil
		})
	case unregisterEvent:
		s.unregister(e.l)
	case acceptEvent:
		s.accepted(e)
	case injectEvent:
		s.startSession(e.conn, nil)
	case readEvent:
		if !e.p.closed {
			e.p.onRead(e.data, e.err)
		}
	case outputEvent:
		if e.p.current(e.seq) {
			e.p.output(e.text)
		}
	case doneEvent:
		if e.p.current(e.seq) {
			e.p.done(e.success, e.abort)
		}
	case inputEvent:
		if e.p.current(e.seq) {
			e.p.requestInput(e.prompt, e.echo)
		}
	case closeScriptEvent:
		e.p.enabled = false
	}
}

func (s *Server) unregister(l *Listener) {
	l.close()
	if _, ok := s.listeners[l]; !ok {
		return
	}
	delete(s.listeners, l)
	s.opts.Tracer.Listen(l.String(), l.mode.String(), false)
	s.log.Verbose("stopped listening on %s", l)
}

// acceptLoop runs on its own goroutine.  Single and Once listeners stop
// listening as soon as they have a connection.
func (s *Server) acceptLoop(l *Listener) {
	backoff := retry.Backoff{
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
	}
	failures := 0

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.isClosed() || serr.Is(err, net.ErrClosed) {
				return
			}
			s.events.push(acceptEvent{l: l, err: err}) //nolint:errcheck
			failures++
			select {
			case <-time.After(backoff.Delay(failures)):
			case <-l.closed:
				return
			}
			continue
		}
		failures = 0

		if l.mode != Multi {
			l.close()
		}
		if !s.events.push(acceptEvent{l: l, conn: conn}) {
			conn.Close() //nolint:errcheck
			return
		}
		if l.mode != Multi {
			return
		}
	}
}

func (s *Server) accepted(e acceptEvent) {
	if e.err != nil {
		s.log.Error("script socket accept on %s: %v", e.l, e.err)
		s.opts.Metrics.RecordError(e.err.Error())
		return
	}
	if e.l.mode != Multi {
		s.log.Verbose("closing listener %s (%s mode)", e.l, e.l.mode)
		s.unregister(e.l)
	}
	s.startSession(e.conn, e.l)
}

func (s *Server) startSession(conn net.Conn, l *Listener) {
	p := newSession(s, conn, l)
	s.peers[p] = struct{}{}
	s.opts.Metrics.ConnectionOpened()

	from := ""
	if l != nil {
		from = l.String()
	}
	p.trace.Accepted(from)
	if l != nil {
		s.log.Verbose("script connection from %s on %s", p.remote, l)
	} else {
		s.log.Verbose("script connection to %s", p.remote)
	}

	s.group.Go(p.readLoop)
	s.group.Go(p.writeLoop)
	p.register()
}
