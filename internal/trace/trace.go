// Package trace records the protocol conversation of every peer as
// structured JSON lines.  It is the machine-readable counterpart of the
// operator log: one record per accept, command, output chunk, input
// request, completion and close.
//
// A nil *Tracer is a valid no-op receiver.
package trace

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Tracer writes protocol events.
type Tracer struct {
	log *zap.Logger
}

// Open builds a tracer appending JSON lines to path.
func Open(path string) (*Tracer, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("trace file %s: %w", path, err)
	}
	return &Tracer{log: log}, nil
}

// New wraps an existing zap logger.
func New(log *zap.Logger) *Tracer {
	return &Tracer{log: log}
}

// Close flushes buffered records.
func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	return t.log.Sync()
}

// Listen records a listener starting or stopping.
func (t *Tracer) Listen(addr, mode string, open bool) {
	if t == nil {
		return
	}
	msg := "listening"
	if !open {
		msg = "stopped listening"
	}
	t.log.Info(msg, zap.String("addr", addr), zap.String("mode", mode))
}

// Peer returns a tracer bound to one peer's id and remote address.
func (t *Tracer) Peer(id, remote string) *PeerTracer {
	if t == nil {
		return nil
	}
	return &PeerTracer{log: t.log.With(zap.String("peer", id), zap.String("remote", remote))}
}

// PeerTracer records events for a single connection.
type PeerTracer struct {
	log *zap.Logger
}

// Accepted records a new connection; listener is empty for injected
// peers.
func (p *PeerTracer) Accepted(listener string) {
	if p == nil {
		return
	}
	p.log.Info("accepted", zap.String("listener", listener))
}

// Command records a submitted command and the mode it was read in.
func (p *PeerTracer) Command(task, mode, text string) {
	if p == nil {
		return
	}
	p.log.Debug("command", zap.String("task", task), zap.String("mode", mode), zap.String("text", text))
}

// Output records one chunk of command output.
func (p *PeerTracer) Output(task, text string) {
	if p == nil {
		return
	}
	p.log.Debug("output", zap.String("task", task), zap.String("text", text))
}

// InputRequest records an interactive input request.
func (p *PeerTracer) InputRequest(task, prompt string, echo bool) {
	if p == nil {
		return
	}
	p.log.Debug("input request", zap.String("task", task), zap.String("prompt", prompt), zap.Bool("echo", echo))
}

// Done records command completion.
func (p *PeerTracer) Done(task, prompt string, success, abort bool) {
	if p == nil {
		return
	}
	p.log.Info("done",
		zap.String("task", task),
		zap.String("status", prompt),
		zap.Bool("success", success),
		zap.Bool("abort", abort))
}

// Closed records session teardown.
func (p *PeerTracer) Closed(reason string) {
	if p == nil {
		return
	}
	p.log.Info("closed", zap.String("reason", reason))
}
