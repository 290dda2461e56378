// Package main is the entry point for the mnemod CLI.
package main

import (
	"os"

	"github.com/mnemod/mnemod/internal/cli"
	"github.com/mnemod/mnemod/internal/mcpserver"
)

// Set by goreleaser ldflags.
var version = "dev"

func main() {
	mcpserver.Version = version
	if err := cli.Root(version).Execute(); err != nil {
		os.Exit(1)
	}
}
