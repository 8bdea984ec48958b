package peer

import "net"

// event is anything queued for the Run goroutine.
type event interface{}

type registerEvent struct{ l *Listener }

type unregisterEvent struct{ l *Listener }

type acceptEvent struct {
	l    *Listener
	conn net.Conn
	err  error
}

type injectEvent struct{ conn net.Conn }

type readEvent struct {
	p    *Session
	data []byte
	err  error
}

// Engine callbacks carry the sequence number of the command that
// produced them; anything from a finished command is dropped.

type outputEvent struct {
	p    *Session
	seq  uint64
	text string
}

type doneEvent struct {
	p       *Session
	seq     uint64
	success bool
	abort   bool
}

type inputEvent struct {
	p      *Session
	seq    uint64
	prompt string
	echo   bool
}

type closeScriptEvent struct{ p *Session }
