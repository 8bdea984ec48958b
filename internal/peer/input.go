package peer

import "scriptport/internal/task"

type inputState struct {
	state any
	abort task.AbortFunc
}

// requestInput prompts the peer for one line.  A line the peer already
// sent is used straight away.
func (p *Session) requestInput(prompt string, echo bool) {
	prefix := InputPrefix
	if !echo {
		prefix = NoEchoInputPrefix
	}
	p.trace.InputRequest(p.taskName, prompt, echo)
	p.srv.opts.Metrics.InputRequested()
	p.send([]byte(prefix + prompt + "\n"))

	p.awaitingInput = true
	if line, ok := p.buf.next(); ok {
		p.answerInput(string(line))
		return
	}
	p.register()
}

func (p *Session) answerInput(text string) {
	p.awaitingInput = false
	ir := p.inputRequest()
	if ir == nil {
		p.log.Warn("%s: input with no pending request", p.remote)
		return
	}
	ir.Answer(text)
}

func (p *Session) setInputRequest(ir task.InputRequest) {
	p.irMu.Lock()
	if !p.irClosed {
		p.ir = ir
	}
	p.irMu.Unlock()
}

func (p *Session) inputRequest() task.InputRequest {
	p.irMu.Lock()
	defer p.irMu.Unlock()
	return p.ir
}

func (p *Session) setInputState(name string, state any, abort task.AbortFunc) {
	p.irMu.Lock()
	if p.irClosed {
		p.irMu.Unlock()
		if state != nil && abort != nil {
			abort(state)
		}
		return
	}
	if state == nil {
		delete(p.irStates, name)
	} else {
		if p.irStates == nil {
			p.irStates = make(map[string]inputState)
		}
		p.irStates[name] = inputState{state: state, abort: abort}
	}
	p.irMu.Unlock()
}

func (p *Session) inputState(name string) any {
	p.irMu.Lock()
	defer p.irMu.Unlock()
	return p.irStates[name].state
}

// abortInputState hands every stored state to its abort function.
// State set after this point is aborted immediately.
func (p *Session) abortInputState() {
	p.irMu.Lock()
	states := p.irStates
	p.irStates = nil
	p.ir = nil
	p.irClosed = true
	p.irMu.Unlock()

	for _, st := range states {
		if st.abort != nil {
			st.abort(st.state)
		}
	}
}
