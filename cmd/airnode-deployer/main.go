// Package main is the entry point for the airnode-deployer CLI.
//
// airnode-deployer deploys Airnodes to AWS and GCP with Terraform and keeps
// every deployed configuration version in an object storage bucket of the
// cloud account.
//
// Commands: deploy, remove-with-receipt, remove-with-deployment-details,
// list, info.
//
// For detailed usage information, run:
//
//	airnode-deployer --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/api3dao/airnode-deployer/cmd/airnode-deployer/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
