// Package main provides the entry point for the partfuse CLI.
package main

import (
	"fmt"
	"os"

	"github.com/searchworks/partfuse/cmd/partfuse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
