//go:build linux

// Command bridgenet attaches container network namespaces to host bridges.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/containerd/log"
	"golang.org/x/sys/unix"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	err := newRootCommand(newCLI(os.Stdin, os.Stdout, os.Stderr)).ExecuteContext(ctx)
	stop()
	if err != nil {
		log.L.WithError(err).Error("bridgenet failed")
		os.Exit(1)
	}
}
