// scriptport serves a line-oriented automation protocol on local sockets
// and doubles as its console client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"scriptport/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "scriptport: %v\n", err)
		os.Exit(1)
	}
}
