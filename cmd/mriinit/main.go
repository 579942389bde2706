package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(execute(os.Stderr))
}

// execute runs the root command and returns the process exit code
func execute(stderr io.Writer) int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
