package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"scriptport/internal/action"
	"scriptport/internal/peer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startServer runs a multi-connection script server backed by the
// built-in engine and returns its address.
func startServer(t *testing.T) string {
	t.Helper()
	eng := action.New(action.Options{})
	srv := peer.New(eng, peer.Options{})
	l, err := srv.Listen("tcp", "127.0.0.1:0", peer.Multi)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		eng.Close()
	})
	return l.Addr().String()
}

type output struct {
	stdout, stderr bytes.Buffer
}

func newClient(stdin string, out *output) *Client {
	return &Client{
		Stdin:  strings.NewReader(stdin),
		Stdout: &out.stdout,
		Stderr: &out.stderr,
	}
}

func run(t *testing.T, c *Client, addr string, cmds ...string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Run(ctx, "tcp", addr, cmds)
}

func TestClient_Commands(t *testing.T) {
	addr := startServer(t)
	var out output
	err := run(t, newClient("", &out), addr, "Echo(hello)", `Echo(a) Echo("b c")`)
	require.NoError(t, err)
	assert.Equal(t, "hello\na\nb c\n", out.stdout.String())
}

func TestClient_FailureStops(t *testing.T) {
	addr := startServer(t)
	var out output
	err := run(t, newClient("", &out), addr, "Fail(boom)", "Echo(never)")
	require.ErrorIs(t, err, ErrCommandFailed)
	assert.Equal(t, "boom\n", out.stdout.String())
}

func TestClient_AnswersInput(t *testing.T) {
	addr := startServer(t)
	var out output
	err := run(t, newClient("bob\n", &out), addr, `Input("Name?")`)
	require.NoError(t, err)
	assert.Equal(t, "bob\n", out.stdout.String())
	assert.Contains(t, out.stderr.String(), "Name?")
}

func TestClient_AnswersSecret(t *testing.T) {
	addr := startServer(t)
	var out output
	c := newClient("", &out)
	var asked string
	c.ReadSecret = func(prompt string) (string, error) {
		asked = prompt
		return "hunter2", nil
	}
	require.NoError(t, run(t, c, addr, `Secret("PIN:")`))
	assert.Equal(t, "PIN:", asked)
	assert.Equal(t, "received 7 characters\n", out.stdout.String())
}

func TestClient_Interactive(t *testing.T) {
	addr := startServer(t)
	var out output
	stdin := "Echo(hi)\n\nCapabilities()\n" + `"Echo(json)"` + "\nFail(nope)\n"
	require.NoError(t, run(t, newClient(stdin, &out), addr))

	lines := strings.Split(strings.TrimSpace(out.stdout.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"hi", "interactive"}, lines[:2])
	// Interactive peers are never switched to JSON, so the quoted
	// command reaches the engine as-is and fails to parse.
	assert.Contains(t, lines[2], "syntax error")
	assert.Equal(t, "nope", lines[3])
	assert.Contains(t, out.stderr.String(), "error (")
}

func TestClient_InteractiveQuit(t *testing.T) {
	addr := startServer(t)
	var out output
	require.NoError(t, run(t, newClient("Echo(bye) Quit()\nEcho(never)\n", &out), addr))
	assert.Equal(t, "bye\n", out.stdout.String())
}

func TestClient_DialError(t *testing.T) {
	var out output
	err := run(t, newClient("", &out), "127.0.0.1:1", "Echo(x)")
	assert.Error(t, err)
}
