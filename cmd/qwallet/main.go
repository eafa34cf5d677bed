// Package main is the entry point for the qwallet CLI.
package main

import (
	"os"

	"github.com/quantumwallet/qwallet/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
