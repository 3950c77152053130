// Command profrag serves the professor-review chat endpoint and ships a
// terminal client for it.
//
// Usage:
//
//	profrag [--config config.yaml] serve
//	profrag [--config config.yaml] chat [--url http://host:8080/api/chat]
package main

import (
	"fmt"
	"os"

	"profrag/cmd/profrag/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
