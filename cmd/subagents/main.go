// Package main provides the entry point for the subagents CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/subagents/cmd/subagents/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
