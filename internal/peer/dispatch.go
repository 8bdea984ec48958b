package peer

import (
	"bytes"
	"unicode"

	serr "scriptport/internal/errors"
	"scriptport/internal/jsoncmd"
	"scriptport/internal/task"
)

// runNext starts the next pending command: the rest of a JSON batch
// first, then the next buffered line.  It reports whether a command was
// started.
func (p *Session) runNext() bool {
	if len(p.batch) > 0 {
		cmd := p.batch[0]
		p.batch = p.batch[1:]
		p.submit(cmd)
		return true
	}
	line, ok := p.buf.next()
	if !ok {
		return false
	}
	p.dispatch(line)
	return true
}

// dispatch decides the reply format for one command line and submits
// it.  JSON is only recognised for non-interactive peers.  A line that
// opens like JSON but does not parse is answered in line mode; JSON of
// the wrong shape is answered in JSON.  Either way the peer gets a
// failing command carrying the parse error.
func (p *Session) dispatch(line []byte) {
	text := bytes.TrimLeftFunc(line, unicode.IsSpace)

	if task.Flags(p.flags.Load()).Has(task.FlagInteractive) || !jsoncmd.LooksLikeJSON(text) {
		p.jsonMode = false
		p.submit(string(text))
		return
	}

	cmds, err := jsoncmd.Parse(text)
	if err != nil {
		var ce *jsoncmd.ContentError
		p.jsonMode = serr.As(err, &ce)
		p.log.Verbose("%s: %v", p.remote, err)
		p.submit(jsoncmd.Render("Fail", err.Error()))
		return
	}

	p.jsonMode = true
	if cmds.IsBatch() {
		p.batch = cmds.Batch[1:]
		p.submit(cmds.Batch[0])
		return
	}
	p.submit(cmds.Single)
}

func (p *Session) submit(cmd string) {
	p.seq++
	p.inFlight = true
	p.srv.opts.Metrics.CommandSubmitted(p.jsonMode)

	cb := &callbacks{p: p, seq: p.seq}
	p.taskName = p.srv.engine.Submit(cmd, cb)
	p.trace.Command(p.taskName, p.modeName(), cmd)
	p.log.Debug("%s: submitted %q as %s", p.remote, cmd, p.taskName)
}

func (p *Session) modeName() string {
	if p.jsonMode {
		return "json"
	}
	return "line"
}
