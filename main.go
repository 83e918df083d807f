package main

import (
	"os"

	"github.com/temirov/protected-push/cmd/cli"
)

// main executes the protected-push command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		cli.ReportFailure(os.Stdout, os.Stderr, executionError)
		os.Exit(1)
	}
}
