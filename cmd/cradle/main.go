// ABOUTME: Entry point for the cradle CLI.
// ABOUTME: Invokes the root Cobra command.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Execute runs the root command and releases the device store afterwards,
// including when the command failed.
func Execute() error {
	defer closeClient()
	return rootCmd.Execute()
}
