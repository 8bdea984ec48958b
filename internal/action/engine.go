// Package action is the built-in command engine.  It runs commands
// written in action syntax, e.g. Echo("hello") Wait(1), and reports
// through the task.Callbacks of the submitting peer.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"scriptport/internal/metrics"
	"scriptport/internal/task"
	"scriptport/util"
)

// Options configure an Engine.
type Options struct {
	Logger  *util.Logger
	Metrics *metrics.Collector

	// AllowExec enables the Shell action.
	AllowExec bool

	// Timeout bounds each command.  Zero means no limit.
	Timeout time.Duration
}

// Engine implements task.Engine.  Each command runs on its own
// goroutine; actions within a command run in order.
type Engine struct {
	opts    Options
	log     *util.Logger
	actions map[string]actionFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	seq       uint64
	running   int
	completed int64
	last      time.Duration
}

var _ task.Engine = (*Engine)(nil)

// errQuit ends the command and the peer's session.
var errQuit = errors.New("quit")

// New returns an engine with the built-in actions registered.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		opts:   opts,
		log:    opts.Logger.Named("engine"),
		ctx:    ctx,
		cancel: cancel,
	}
	e.actions = builtins()
	return e
}

// Submit parses command and starts it.  A command that does not parse
// fails straight away.
func (e *Engine) Submit(command string, cb task.Callbacks) string {
	e.mu.Lock()
	e.seq++
	name := fmt.Sprintf("cmd%d", e.seq)
	e.mu.Unlock()

	calls, err := Parse(command)
	if err != nil {
		e.log.Verbose("%s: %v", name, err)
		cb.Output(err.Error())
		e.finish(0)
		cb.Done(false, false)
		return name
	}

	e.mu.Lock()
	e.running++
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(name, calls, cb)
	}()
	return name
}

// Prompt reports "U" when no command is executing or "L" when one is,
// the number of completed commands and the seconds the last one took.
func (e *Engine) Prompt() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := "U"
	if e.running > 0 {
		state = "L"
	}
	return fmt.Sprintf("%s %d %.3f", state, e.completed, e.last.Seconds())
}

// Close cancels running commands and waits for them to finish.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) run(name string, calls []Call, cb task.Callbacks) {
	start := time.Now()
	ctx := e.ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	x := &execution{ctx: ctx, cb: cb, engine: e, name: name}
	success, abort := true, false
	for _, c := range calls {
		e.log.Debug("%s: %s", name, c)
		fn, ok := e.actions[strings.ToLower(c.Name)]
		if !ok {
			cb.Output("unknown action: " + c.Name)
			success = false
			break
		}
		err := fn(x, c.Args)
		if errors.Is(err, errQuit) {
			abort = true
			break
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%s: timed out", c.Name)
			}
			cb.Output(err.Error())
			success = false
			break
		}
	}

	e.mu.Lock()
	e.running--
	e.mu.Unlock()
	e.finish(time.Since(start))
	cb.Done(success, abort)
}

func (e *Engine) finish(took time.Duration) {
	e.mu.Lock()
	e.completed++
	e.last = took
	e.mu.Unlock()
}

// execution is the state of one running command.
type execution struct {
	ctx    context.Context
	cb     task.Callbacks
	engine *Engine
	name   string
}

// inputReply delivers a peer's answer without blocking the caller.
type inputReply chan string

func (r inputReply) Answer(text string) {
	select {
	case r <- text:
	default:
	}
}

var errPeerGone = errors.New("peer closed before answering")

// ask requests one line from the peer and waits for it.
func (x *execution) ask(prompt string, echo bool) (string, error) {
	reply := make(inputReply, 1)
	gone := make(chan struct{})
	var once sync.Once
	x.cb.SetInputState("input", reply, func(any) {
		once.Do(func() { close(gone) })
	})
	defer x.cb.SetInputState("input", nil, nil)

	x.cb.SetInputRequest(reply)
	x.cb.RequestInput(prompt, echo)

	select {
	case text := <-reply:
		return text, nil
	case <-gone:
		return "", errPeerGone
	case <-x.ctx.Done():
		return "", x.ctx.Err()
	}
}
