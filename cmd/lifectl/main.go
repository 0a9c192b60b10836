// lifectl is the operator CLI for the Life Dashboard API: database
// migrations, user creation, and offline nutrition target calculation.
// Usage: go run ./cmd/lifectl <command> (from the repository root)
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
