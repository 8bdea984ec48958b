package peer

import (
	"bytes"
	"encoding/json"
)

// output forwards one chunk of command output.  In JSON mode it is
// collected into the reply envelope instead.
func (p *Session) output(text string) {
	p.trace.Output(p.taskName, text)
	if p.jsonMode {
		if p.envelope == nil {
			p.envelope = &envelope{Result: []string{}}
		}
		p.envelope.Result = append(p.envelope.Result, text)
		return
	}
	p.send([]byte(DataPrefix + text + "\n"))
}

// done writes the completion reply and moves on to the next command,
// or ends the session when the command aborted or scripting was closed.
func (p *Session) done(success, abort bool) {
	p.inFlight = false
	p.awaitingInput = false
	p.setInputRequest(nil)

	prompt := p.srv.engine.Prompt()
	p.trace.Done(p.taskName, prompt, success, abort)
	if !success {
		p.srv.opts.Metrics.CommandFailed()
	}

	if p.jsonMode {
		p.send(p.encodeEnvelope(success, prompt))
	} else {
		status := StatusOK
		if !success {
			status = StatusError
		}
		p.send([]byte(prompt + "\n" + status + "\n"))
	}

	switch {
	case abort:
		p.close("aborted")
	case !p.enabled:
		p.close("scripting closed")
	case !p.runNext():
		p.register()
	}
}

func (p *Session) encodeEnvelope(success bool, prompt string) []byte {
	env := p.envelope
	p.envelope = nil
	if env == nil {
		env = &envelope{Result: []string{}}
	}
	env.Success = success
	env.Status = prompt

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		// Strings and a bool always encode.
		p.log.Error("encode reply: %v", err)
	}
	return b.Bytes()
}
