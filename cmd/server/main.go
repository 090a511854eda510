// Package main is the entry point for the prompt library.
//
// The binary is a cobra command tree: "serve" runs the HTTP API and is
// also what a bare invocation does; the other commands work on the same
// database without starting the server.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
