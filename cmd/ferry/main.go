// Package main is the entry point for the ferry CLI tool.
package main

import (
	"os"

	"github.com/aidanlsb/ferry/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
