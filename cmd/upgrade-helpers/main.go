// Package main is the entry point for the upgrade-helpers CLI.
//
// upgrade-helpers carries the one-shot fixes an operator runs while moving a
// cluster across an OpenShift AI / Open Data Hub upgrade. Each subcommand
// inspects live cluster state, decides what differs from the desired state
// and, when asked to, converges it.
//
// Commands: guardrails-probe, dashboard-redirect, version, completion.
//
// For detailed usage information, run:
//
//	upgrade-helpers --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rhoai-upgrade/upgrade-helpers/cmd/upgrade-helpers/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
