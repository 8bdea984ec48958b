// Package console is the command-line client for a script socket.  It
// either runs a list of commands and exits, or reads commands from
// standard input until EOF.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"golang.org/x/term"

	serr "scriptport/internal/errors"
	"scriptport/internal/peer"
	"scriptport/internal/transport"
	"scriptport/util"
)

// ErrCommandFailed is returned when the server answers "error".
var ErrCommandFailed = errors.New("command failed")

// Client talks to one server.  Nil I/O fields default to the process's
// standard streams.
type Client struct {
	Dialer transport.Dialer
	Logger *util.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// ReadSecret answers a no-echo prompt.  Nil reads from the
	// terminal with echo off when stdin is one.
	ReadSecret func(prompt string) (string, error)
}

// Run connects to address and sends cmds one at a time, stopping at
// the first failure.  With no cmds it runs an interactive console.
func (c *Client) Run(ctx context.Context, network, address string, cmds []string) error {
	c.defaults()

	conn, err := c.Dialer.Dial(ctx, network, address)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.Logger.Verbose("connected to %s", address)
	s := &session{c: c, conn: conn, r: bufio.NewReader(conn), in: bufio.NewReader(c.Stdin)}

	if len(cmds) == 0 {
		err = s.interactive()
	} else {
		err = s.batch(cmds)
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Client) defaults() {
	if c.Dialer == nil {
		c.Dialer = &transport.NetDialer{}
	}
	if c.Logger == nil {
		c.Logger = util.NewLogger(0)
	}
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
}

type session struct {
	c    *Client
	conn net.Conn
	r    *bufio.Reader
	in   *bufio.Reader
}

type reply struct {
	status string
	ok     bool
}

func (s *session) batch(cmds []string) error {
	for _, cmd := range cmds {
		rep, err := s.exec(cmd)
		if err != nil {
			return err
		}
		if !rep.ok {
			return fmt.Errorf("%s: %w", cmd, ErrCommandFailed)
		}
	}
	return nil
}

func (s *session) interactive() error {
	if _, err := s.exec("Capabilities(interactive)"); err != nil {
		return err
	}
	tty := isTerminal(s.c.Stdin)

	for {
		if tty {
			fmt.Fprint(s.c.Stderr, "scriptport> ")
		}
		line, err := s.in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			rep, xerr := s.exec(line)
			if serr.IsClosed(xerr) {
				s.c.Logger.Verbose("server closed the connection")
				return nil
			}
			if xerr != nil {
				return xerr
			}
			if !rep.ok {
				fmt.Fprintf(s.c.Stderr, "error (%s)\n", rep.status)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// exec sends one command and relays everything up to its status.
func (s *session) exec(cmd string) (reply, error) {
	s.c.Logger.Debug("> %s", cmd)
	if _, err := util.WriteAll(s.conn, []byte(cmd+"\n"), 0); err != nil {
		return reply{}, err
	}

	var status string
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return reply{}, err
		}
		line = strings.TrimSuffix(line, "\n")

		switch {
		case strings.HasPrefix(line, peer.DataPrefix):
			fmt.Fprintln(s.c.Stdout, strings.TrimPrefix(line, peer.DataPrefix))
		case strings.HasPrefix(line, peer.InputPrefix):
			if err := s.answer(strings.TrimPrefix(line, peer.InputPrefix), true); err != nil {
				return reply{}, err
			}
		case strings.HasPrefix(line, peer.NoEchoInputPrefix):
			if err := s.answer(strings.TrimPrefix(line, peer.NoEchoInputPrefix), false); err != nil {
				return reply{}, err
			}
		case line == peer.StatusOK || line == peer.StatusError:
			s.c.Logger.Debug("< %s %s", status, line)
			return reply{status: status, ok: line == peer.StatusOK}, nil
		default:
			status = line
		}
	}
}

func (s *session) answer(prompt string, echo bool) error {
	var text string
	var err error
	if echo {
		fmt.Fprint(s.c.Stderr, prompt+" ")
		text, err = s.in.ReadString('\n')
	} else {
		text, err = s.readSecret(prompt)
	}
	if errors.Is(err, io.EOF) && text != "" {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("reading answer: %w", err)
	}
	_, err = util.WriteAll(s.conn, []byte(strings.TrimRight(text, "\r\n")+"\n"), 0)
	return err
}

func (s *session) readSecret(prompt string) (string, error) {
	if s.c.ReadSecret != nil {
		return s.c.ReadSecret(prompt)
	}
	if f, ok := s.c.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(s.c.Stderr, prompt+" ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(s.c.Stderr)
		return string(b), err
	}
	return s.in.ReadString('\n')
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
