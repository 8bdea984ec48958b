package peer

import "scriptport/internal/task"

// callbacks is the task.Callbacks handed to the engine for one
// submitted command.
type callbacks struct {
	p   *Session
	seq uint64
}

var _ task.Callbacks = (*callbacks)(nil)

func (c *callbacks) Output(text string) {
	c.p.srv.events.push(outputEvent{p: c.p, seq: c.seq, text: text}) //nolint:errcheck
}

func (c *callbacks) Done(success, abort bool) {
	c.p.srv.events.push(doneEvent{p: c.p, seq: c.seq, success: success, abort: abort}) //nolint:errcheck
}

func (c *callbacks) CloseScript() {
	c.p.srv.events.push(closeScriptEvent{p: c.p}) //nolint:errcheck
}

func (c *callbacks) SetFlags(f task.Flags) { c.p.flags.Store(uint32(f)) }

func (c *callbacks) Flags() task.Flags { return task.Flags(c.p.flags.Load()) }

func (c *callbacks) SetInputRequest(ir task.InputRequest) { c.p.setInputRequest(ir) }

func (c *callbacks) InputRequest() task.InputRequest { return c.p.inputRequest() }

func (c *callbacks) RequestInput(prompt string, echo bool) {
	c.p.srv.events.push(inputEvent{p: c.p, seq: c.seq, prompt: prompt, echo: echo}) //nolint:errcheck
}

func (c *callbacks) SetInputState(name string, state any, abort task.AbortFunc) {
	c.p.setInputState(name, state, abort)
}

func (c *callbacks) InputState(name string) any { return c.p.inputState(name) }
