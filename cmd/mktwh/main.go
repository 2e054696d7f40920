// Package main provides the mktwh command.
package main

import (
	"os"

	"github.com/leapstack-labs/mktwh/internal/cli"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	if version != "" {
		cli.Version = version
	}
	if commit != "" {
		cli.GitCommit = commit
	}
	if date != "" {
		cli.BuildDate = date
	}
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
