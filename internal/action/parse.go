package action

import (
	"fmt"
	"strings"
)

// Call is one parsed action invocation.
type Call struct {
	Name string
	Args []string
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(c.Args, ","))
}

// ParseError reports a malformed command.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("syntax error at column %d: %s", e.Pos+1, e.Msg)
}

// Parse splits a command into action calls.  Accepted forms:
//
//	Name()  Name(a, "b c")  Name(a) Other(b)  Name a "b c"
//
// Arguments without parentheses run to the end of the command, so that
// form can only appear last.  Quoted arguments may escape '"' and '\'
// with a backslash.  An empty command yields no calls.
func Parse(s string) ([]Call, error) {
	p := &parser{s: s}
	var calls []Call
	for {
		p.skipSpace()
		if p.eof() {
			return calls, nil
		}
		c, err := p.call()
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
}

type parser struct {
	s   string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.s) }

func (p *parser) peek() byte { return p.s[p.pos] }

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) call() (Call, error) {
	start := p.pos
	for !p.eof() && isNameByte(p.peek(), p.pos == start) {
		p.pos++
	}
	if p.pos == start {
		return Call{}, p.errorf("expected an action name, found %q", p.peek())
	}
	c := Call{Name: p.s[start:p.pos]}

	p.skipSpace()
	if !p.eof() && p.peek() == '(' {
		p.pos++
		args, err := p.parenArgs()
		if err != nil {
			return Call{}, err
		}
		c.Args = args
		return c, nil
	}

	for {
		p.skipSpace()
		if p.eof() {
			return c, nil
		}
		arg, err := p.arg(false)
		if err != nil {
			return Call{}, err
		}
		c.Args = append(c.Args, arg)
	}
}

func (p *parser) parenArgs() ([]string, error) {
	var args []string
	p.skipSpace()
	if !p.eof() && p.peek() == ')' {
		p.pos++
		return args, nil
	}
	for {
		p.skipSpace()
		arg, err := p.arg(true)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("missing ')'")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return args, nil
		default:
			return nil, p.errorf("expected ',' or ')', found %q", p.peek())
		}
	}
}

// arg reads one quoted or bare argument.  Inside parentheses a bare
// argument ends at ',' or ')' and keeps inner spaces; outside it ends
// at whitespace.
func (p *parser) arg(inParens bool) (string, error) {
	if !p.eof() && p.peek() == '"' {
		return p.quoted()
	}
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if inParens && (c == ',' || c == ')') {
			break
		}
		if !inParens && isSpace(c) {
			break
		}
		if c == '"' {
			return "", p.errorf("unexpected '\"'")
		}
		p.pos++
	}
	return strings.TrimRight(p.s[start:p.pos], " \t"), nil
}

func (p *parser) quoted() (string, error) {
	open := p.pos
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		p.pos++
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if !p.eof() && (p.peek() == '"' || p.peek() == '\\') {
				c = p.peek()
				p.pos++
			}
		}
		b.WriteByte(c)
	}
	return "", &ParseError{Pos: open, Msg: "unterminated string"}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\v' || c == '\f' || c == '\r'
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c == '_' || c == '-' || (c >= '0' && c <= '9'):
		return !first
	}
	return false
}
