// Package errors holds the structured errors shared by the script
// server, the config layer and the outbound transports.
//
// The server consults IsClosed to tell a peer simply going away from a
// failure worth reporting, and the connect-back loop consults
// IsRetryable before dialing again.
package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	// ErrServerClosed is returned by Server methods once Run has ended.
	ErrServerClosed = errors.New("script server is closed")

	// ErrLineTooLong matches every *LineTooLongError.
	ErrLineTooLong = errors.New("command line exceeds limit")

	ErrNotConnected = errors.New("not connected")
)

// NetworkError is a failed socket operation.
type NetworkError struct {
	Op   string // "listen", "accept", "dial"
	Addr string // listener description or remote address
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the operation may succeed.
func (e *NetworkError) Retryable() bool { return classifyRetryable(e.Err) }

// Wrap builds a NetworkError.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{Op: op, Addr: addr, Err: err}
}

// LineTooLongError reports a peer whose unterminated command outgrew
// the configured limit.
type LineTooLongError struct {
	Limit int
	Size  int
}

func (e *LineTooLongError) Error() string {
	return fmt.Sprintf("%v: %d bytes buffered, limit %d", ErrLineTooLong, e.Size, e.Limit)
}

func (e *LineTooLongError) Is(target error) bool { return target == ErrLineTooLong }

// SSHError is a failure talking to the SSH gateway.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// Permanent reports whether retrying cannot help: bad credentials or
// an unknown host key.
func (e *SSHError) Permanent() bool { return e.Op == "auth" || e.Op == "hostkey" }

// WrapSSH builds an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ConfigError is an invalid setting, named by its flag.
type ConfigError struct {
	Field   string      // flag name without dashes
	Value   interface{} // nil if missing
	Message string
	Hint    string // optional
}

func (e *ConfigError) Error() string {
	msg := "config: --" + e.Field
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable()
	}
	return classifyRetryable(err)
}

// IsClosed reports whether err is the normal end of a connection: EOF,
// use after close, a reset or a broken pipe.  Sessions ending this way
// close quietly.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{io.EOF, net.ErrClosed, io.ErrClosedPipe, syscall.ECONNRESET, syscall.EPIPE} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Timeout()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	return false
}

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }
