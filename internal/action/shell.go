package action

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// shell runs its argument through the system shell and outputs each
// line the command writes to stdout or stderr.
func shell(x *execution, args []string) error {
	if !x.engine.opts.AllowExec {
		return errors.New("Shell: disabled, start the server with --allow-exec")
	}
	if len(args) == 0 {
		return errors.New("Shell: no command specified")
	}
	line := strings.Join(args, " ")

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(x.ctx, "cmd.exe", "/C", line)
	} else {
		cmd = exec.CommandContext(x.ctx, "/bin/sh", "-c", line)
	}

	cmd.WaitDelay = time.Second

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	x.engine.log.Debug("%s: exec %s", x.name, cmd.String())
	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return fmt.Errorf("Shell: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	sc := bufio.NewScanner(pr)
	for sc.Scan() {
		x.cb.Output(sc.Text())
	}
	// Drain anything left after a scan error so Wait can finish.
	io.Copy(io.Discard, pr) //nolint:errcheck

	if err := <-waitErr; err != nil {
		if x.ctx.Err() != nil {
			return x.ctx.Err()
		}
		return fmt.Errorf("Shell: %w", err)
	}
	return nil
}
