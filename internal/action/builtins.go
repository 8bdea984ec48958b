package action

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"scriptport/internal/task"
)

type actionFunc func(x *execution, args []string) error

type builtin struct {
	name string
	fn   actionFunc
	help string
}

// builtinTable is filled in init because Help reads it.
var builtinTable []builtin

func init() {
	builtinTable = []builtin{
		{"Echo", echo, "Echo(text...): output the arguments"},
		{"Fail", fail, "Fail(msg): fail with msg"},
		{"Wait", wait, "Wait(seconds): pause"},
		{"Input", input, "Input(prompt): ask the peer for a line and output it"},
		{"Secret", secret, "Secret(prompt): ask for a line without echo"},
		{"CloseScript", closeScript, "CloseScript(): end the session after this command"},
		{"Capabilities", capabilities, "Capabilities(interactive|none): declare peer capabilities"},
		{"Quit", quit, "Quit(): end the session now"},
		{"Stats", stats, "Stats(): output server metrics as JSON"},
		{"Help", help, "Help(): list actions"},
		{"Shell", shell, "Shell(command): run a shell command (needs --allow-exec)"},
	}
}

func builtins() map[string]actionFunc {
	m := make(map[string]actionFunc, len(builtinTable))
	for _, b := range builtinTable {
		m[strings.ToLower(b.name)] = b.fn
	}
	return m
}

func echo(x *execution, args []string) error {
	x.cb.Output(strings.Join(args, " "))
	return nil
}

func fail(_ *execution, args []string) error {
	if len(args) == 0 {
		return errors.New("failed")
	}
	return errors.New(strings.Join(args, " "))
}

func wait(x *execution, args []string) error {
	if len(args) != 1 {
		return errors.New("Wait: expected one argument, seconds")
	}
	secs, err := strconv.ParseFloat(args[0], 64)
	if err != nil || secs < 0 {
		return fmt.Errorf("Wait: invalid duration %q", args[0])
	}

	t := time.NewTimer(time.Duration(secs * float64(time.Second)))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-x.ctx.Done():
		return x.ctx.Err()
	}
}

func prompt(args []string, def string) string {
	if len(args) == 0 {
		return def
	}
	return strings.Join(args, " ")
}

func input(x *execution, args []string) error {
	text, err := x.ask(prompt(args, "Input:"), true)
	if err != nil {
		return err
	}
	x.cb.Output(text)
	return nil
}

func secret(x *execution, args []string) error {
	text, err := x.ask(prompt(args, "Password:"), false)
	if err != nil {
		return err
	}
	x.cb.Output(fmt.Sprintf("received %d characters", len([]rune(text))))
	return nil
}

func closeScript(x *execution, _ []string) error {
	x.cb.CloseScript()
	return nil
}

func capabilities(x *execution, args []string) error {
	if len(args) == 0 {
		if x.cb.Flags().Has(task.FlagInteractive) {
			x.cb.Output("interactive")
		} else {
			x.cb.Output("none")
		}
		return nil
	}

	flags := x.cb.Flags()
	for _, a := range args {
		switch strings.ToLower(a) {
		case "interactive":
			flags |= task.FlagInteractive
		case "none":
			flags = 0
		default:
			return fmt.Errorf("Capabilities: unknown capability %q", a)
		}
	}
	x.cb.SetFlags(flags)
	return nil
}

func quit(_ *execution, _ []string) error { return errQuit }

func stats(x *execution, _ []string) error {
	if x.engine.opts.Metrics == nil {
		return errors.New("Stats: metrics are not enabled")
	}
	x.cb.Output(x.engine.opts.Metrics.JSON())
	return nil
}

func help(x *execution, _ []string) error {
	lines := make([]string, 0, len(builtinTable))
	for _, b := range builtinTable {
		lines = append(lines, b.help)
	}
	sort.Strings(lines)
	for _, l := range lines {
		x.cb.Output(l)
	}
	return nil
}
