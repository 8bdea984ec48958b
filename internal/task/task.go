// Package task defines the narrow contract between the script server
// and the engine that actually executes commands.
//
// The server submits one command at a time per peer and hands the
// engine a Callbacks value.  The engine reports output, interactive
// input requests and exactly one completion through it.  Callbacks may
// be invoked from any goroutine, including synchronously from inside
// Submit.
package task

// Flags are capability bits a peer reports about itself.
type Flags uint32

const (
	// FlagInteractive marks a human-driven session.  JSON
	// auto-detection is disabled for such peers.
	FlagInteractive Flags = 1 << iota
)

// Has reports whether all bits in f2 are set in f.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// Engine executes submitted commands.
type Engine interface {
	// Submit starts command on behalf of a peer and returns a task
	// name used for diagnostics.  Submit must not block on command
	// execution.
	Submit(command string, cb Callbacks) string

	// Prompt returns the status line written to a peer after each
	// completed command.
	Prompt() string
}

// InputRequest receives the peer's answer to a RequestInput call.
type InputRequest interface {
	Answer(text string)
}

// AbortFunc releases named input-request state when the peer goes away
// before answering.
type AbortFunc func(state any)

// Callbacks is the per-command view the engine has of a peer.
type Callbacks interface {
	// Output delivers one chunk of command output.
	Output(text string)

	// Done completes the command.  abort ends the peer session.
	Done(success, abort bool)

	// CloseScript stops accepting further commands from the peer
	// once the current one completes.
	CloseScript()

	SetFlags(f Flags)
	Flags() Flags

	// SetInputRequest stores the handle that will receive the peer's
	// next line after a RequestInput call.
	SetInputRequest(ir InputRequest)
	InputRequest() InputRequest

	// RequestInput asks the peer for a line of input, suppressing
	// echo when echo is false.
	RequestInput(prompt string, echo bool)

	// SetInputState stores named state; abort is called if the peer
	// closes while the state is still present.  A nil state clears
	// the entry without calling abort.
	SetInputState(name string, state any, abort AbortFunc)
	InputState(name string) any
}
