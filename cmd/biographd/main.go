// biographd is the biograph daemon: an HTTP API over the network and query
// store, a background worker draining the task queue, and a few operator
// commands.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
