package peer

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	serr "scriptport/internal/errors"
	"scriptport/internal/task"
	"scriptport/internal/trace"
	"scriptport/util"
)

// Session is one connected peer.
type Session struct {
	id       string
	remote   string
	conn     net.Conn
	listener *Listener // nil for injected peers
	srv      *Server
	log      *util.Logger
	trace    *trace.PeerTracer

	// Owned by the Run goroutine.
	buf           lineBuffer
	enabled       bool
	jsonMode      bool
	envelope      *envelope
	batch         []string
	taskName      string
	seq           uint64
	inFlight      bool
	awaitingInput bool
	registered    bool
	closed        bool

	// Touched by engine goroutines.
	flags    atomic.Uint32
	irMu     sync.Mutex
	ir       task.InputRequest
	irStates map[string]inputState
	irClosed bool

	// A token in arm lets the reader perform one Read.
	arm    chan struct{}
	outbox *queue[[]byte]
}

func newSession(s *Server, conn net.Conn, l *Listener) *Session {
	id := uuid.NewString()
	remote := "unknown"
	if ra := conn.RemoteAddr(); ra != nil && ra.String() != "" {
		remote = ra.String()
	}
	return &Session{
		id:       id,
		remote:   remote,
		conn:     conn,
		listener: l,
		srv:      s,
		log:      s.log.Named(id[:8]),
		trace:    s.opts.Tracer.Peer(id, remote),
		enabled:  true,
		arm:      make(chan struct{}, 1),
		outbox:   newQueue[[]byte](),
	}
}

// ID returns the session's unique identifier.
func (p *Session) ID() string { return p.id }

// register asks the reader for the next chunk of input.
func (p *Session) register() {
	if p.closed || p.registered {
		return
	}
	p.registered = true
	p.arm <- struct{}{}
}

func (p *Session) current(seq uint64) bool {
	return !p.closed && p.inFlight && seq == p.seq
}

func (p *Session) send(b []byte) {
	p.outbox.push(b) //nolint:errcheck
}

func (p *Session) readLoop() error {
	bufp := util.ReadBuffer()
	defer util.ReleaseReadBuffer(bufp)

	for range p.arm {
		n, err := p.conn.Read(*bufp)
		var data []byte
		if n > 0 {
			data = append([]byte(nil), (*bufp)[:n]...)
		}
		if !p.srv.events.push(readEvent{p: p, data: data, err: err}) || err != nil {
			return nil
		}
	}
	return nil
}

// writeLoop sends queued output in order and closes the connection
// once the outbox is closed and drained.  After the first failed write
// the rest of the output is discarded.
func (p *Session) writeLoop() error {
	defer p.conn.Close()

	failed := false
	for range p.outbox.ready {
		items, closed := p.outbox.take()
		for _, b := range items {
			if failed {
				continue
			}
			n, err := util.WriteAll(p.conn, b, p.srv.opts.WriteTimeout)
			p.srv.opts.Metrics.BytesSent(int64(n))
			if err != nil {
				failed = true
				if !serr.IsClosed(err) {
					p.log.Error("send to %s: %v", p.remote, err)
					p.srv.opts.Metrics.RecordError(err.Error())
				}
			}
		}
		if closed {
			return nil
		}
	}
	return nil
}

func (p *Session) onRead(data []byte, err error) {
	p.registered = false

	if len(data) > 0 {
		p.srv.opts.Metrics.BytesReceived(int64(len(data)))
		p.buf.append(data)
	}
	if err != nil {
		if serr.IsClosed(err) {
			p.close("eof")
		} else {
			p.log.Error("recv from %s: %v", p.remote, err)
			p.srv.opts.Metrics.RecordError(err.Error())
			p.close(err.Error())
		}
		return
	}

	if p.awaitingInput {
		if line, ok := p.buf.next(); ok {
			p.answerInput(string(line))
			return
		}
	} else if p.inFlight || p.runNext() {
		return
	}

	if limit := p.srv.opts.MaxLine; limit > 0 && p.buf.len() > limit {
		err := &serr.LineTooLongError{Limit: limit, Size: p.buf.len()}
		p.log.Warn("%s: %v", p.remote, err)
		p.srv.opts.Metrics.RecordError(err.Error())
		p.close(serr.ErrLineTooLong.Error())
		return
	}
	p.register()
}

// close tears the session down.  Only the first call has any effect.
func (p *Session) close(reason string) {
	if p.closed {
		return
	}
	p.closed = true
	delete(p.srv.peers, p)

	p.outbox.close()
	p.registered = false
	close(p.arm)

	p.buf.reset()
	p.batch = nil
	p.taskName = ""
	p.inFlight = false
	p.awaitingInput = false
	p.abortInputState()
	p.envelope = nil

	p.srv.opts.Metrics.ConnectionClosed()
	p.trace.Closed(reason)
	p.log.Verbose("closed connection from %s: %s", p.remote, reason)

	if p.listener == nil || p.listener.mode == Once {
		select {
		case <-p.srv.stop:
		default:
			p.srv.log.Info("once-only script socket closed, exiting")
			p.srv.exit()
		}
	}
}
