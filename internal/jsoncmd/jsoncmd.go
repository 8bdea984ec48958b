// Package jsoncmd decodes commands sent in JSON form.
//
// Three shapes are accepted:
//
//	"Action(arg)"                             a single command string
//	{"action":"Action","args":["arg",1]}      a single structured command
//	["A()", {"action":"B"}]                   a batch, run in order
//
// Input that is not JSON at all yields a *SyntaxError.  Well-formed JSON
// of the wrong shape yields a *ContentError.  The distinction decides
// whether the peer is answered in JSON or in line mode.
package jsoncmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SyntaxError reports input that could not be parsed as JSON.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string { return "JSON syntax error: " + e.Msg }

// ContentError reports valid JSON that does not describe a command.
type ContentError struct {
	Msg string
}

func (e *ContentError) Error() string { return "JSON content error: " + e.Msg }

// Commands is the decoded form of one JSON line.
type Commands struct {
	// Batch is set when the input was an array.
	Batch []string
	// Single is set when the input was a string or an object.
	Single string
}

// IsBatch reports whether the input was an array.
func (c Commands) IsBatch() bool { return c.Batch != nil }

// LooksLikeJSON reports whether b starts with a character that opens a
// JSON command.  Leading whitespace must already be stripped.
func LooksLikeJSON(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	switch b[0] {
	case '{', '[', '"':
		return true
	}
	return false
}

// Parse decodes one JSON command line.
func Parse(data []byte) (Commands, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Commands{}, &SyntaxError{Msg: err.Error()}
	}
	if dec.More() {
		return Commands{}, &SyntaxError{Msg: "extra data after JSON value"}
	}

	switch t := v.(type) {
	case string:
		return Commands{Single: t}, nil
	case map[string]any:
		cmd, err := fromObject(t)
		if err != nil {
			return Commands{}, err
		}
		return Commands{Single: cmd}, nil
	case []any:
		if len(t) == 0 {
			return Commands{}, &ContentError{Msg: "empty command array"}
		}
		batch := make([]string, 0, len(t))
		for i, elem := range t {
			switch e := elem.(type) {
			case string:
				batch = append(batch, e)
			case map[string]any:
				cmd, err := fromObject(e)
				if err != nil {
					return Commands{}, &ContentError{Msg: fmt.Sprintf("element %d: %s", i, err.(*ContentError).Msg)}
				}
				batch = append(batch, cmd)
			default:
				return Commands{}, &ContentError{Msg: fmt.Sprintf("element %d: expected a string or an object", i)}
			}
		}
		return Commands{Batch: batch}, nil
	default:
		return Commands{}, &ContentError{Msg: "expected a string, an object or an array"}
	}
}

func fromObject(obj map[string]any) (string, error) {
	raw, ok := obj["action"]
	if !ok {
		return "", &ContentError{Msg: `missing "action"`}
	}
	name, ok := raw.(string)
	if !ok || name == "" {
		return "", &ContentError{Msg: `"action" must be a non-empty string`}
	}
	for k := range obj {
		if k != "action" && k != "args" {
			return "", &ContentError{Msg: fmt.Sprintf("unknown member %q", k)}
		}
	}

	var args []string
	if rawArgs, ok := obj["args"]; ok {
		list, ok := rawArgs.([]any)
		if !ok {
			return "", &ContentError{Msg: `"args" must be an array`}
		}
		for i, a := range list {
			switch v := a.(type) {
			case string:
				args = append(args, v)
			case json.Number:
				args = append(args, v.String())
			case bool:
				args = append(args, fmt.Sprint(v))
			default:
				return "", &ContentError{Msg: fmt.Sprintf("argument %d must be a string, number or boolean", i)}
			}
		}
	}
	return Render(name, args...), nil
}

// Render formats an action call with every argument quoted, e.g.
// Render("Fail", `bad "x"`) returns `Fail("bad \"x\"")`.
func Render(name string, args ...string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(Quote(a))
	}
	b.WriteByte(')')
	return b.String()
}

// Quote wraps s in double quotes, escaping backslashes and quotes.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}
