// Command nodeflow evaluates node-graph documents: it resolves data outputs,
// runs event-triggered execution flows and serves the debug API an editor
// drives.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
