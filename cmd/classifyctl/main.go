// Command classifyctl classifies text and runs propagation chains locally,
// without the API, database or queue.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
