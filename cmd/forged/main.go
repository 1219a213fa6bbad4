// Command forged runs the persistent build queue daemon: it loads
// configuration, opens the durable record store, starts the engine
// (which recovers any builds interrupted by a prior crash), and serves
// the HTTP submission/status/metrics surface until interrupted.
package main

import (
	"flag"
	"log"

	forge "github.com/forgeci/forge"
	"github.com/forgeci/forge/internal/daemon"
)

var configPath = flag.String("config", "", "path to forged's config file (default $FORGE_CONFIG or ~/.forge/config.yaml)")

func main() {
	flag.Parse()

	ctx, cancel := forge.InterruptibleContext()
	defer cancel()

	if err := daemon.Run(ctx, *configPath); err != nil {
		log.Fatalf("forged: %v", err)
	}

	if err := forge.RunAtExit(); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
