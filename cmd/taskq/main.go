// Command taskq runs the taskq server and worker, and talks to a running
// server over the wire protocol.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
