// Command forge is the client and daemon entrypoint for the build
// queue: "forge submit" enqueues a build, "forge status"/"forge tail"
// query it, and "forge serve" runs the daemon itself.
package main

import (
	"fmt"
	"os"

	"github.com/forgeci/forge/cmd/forge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
