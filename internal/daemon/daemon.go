// Package daemon assembles the forged process: configuration, the
// durable store, the engine, and the HTTP surface. It exists as its
// own package (rather than living in cmd/forged/main.go) so that both
// the forged binary and "forge serve" can start the same daemon
// in-process.
package daemon

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/forgeci/forge/internal/config"
	"github.com/forgeci/forge/internal/githost"
	"github.com/forgeci/forge/internal/httpapi"
	"github.com/forgeci/forge/internal/oninterrupt"
	"github.com/forgeci/forge/internal/process"
	"github.com/forgeci/forge/internal/queue"
	"github.com/forgeci/forge/internal/store"
	"github.com/forgeci/forge/internal/store/rediscache"
	"github.com/forgeci/forge/internal/workspace"
)

// Run loads configuration from configPath (empty uses the default
// search path), starts the engine, and serves HTTP until ctx is
// canceled or the server fails. It blocks until ListenAndServe
// returns.
func Run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return err
	}

	cache := rediscache.New(rediscache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	oninterrupt.Register(func() {
		if err := cache.Close(); err != nil {
			log.Printf("closing redis client: %v", err)
		}
	})

	recordStore := store.New(cache)

	creds := githost.Credentials{Token: cfg.GithubToken}
	engine := queue.New(queue.Config{
		Store: recordStore,
		Executor: &queue.Executor{
			Provisioner:   workspace.Git{Runner: process.Exec{}},
			Runner:        process.Exec{},
			HTTPClient:    http.DefaultClient,
			GithostClient: githost.NewClient(ctx, creds),
			SelfOwner:     cfg.SelfOwner,
			Creds:         creds,
		},
		MaxConcurrency: cfg.MaxConcurrency,
		Log:            log.New(os.Stderr, "[forged] ", log.LstdFlags),
		LogDir:         cfg.LogDir,
	})
	if err := engine.Start(ctx); err != nil {
		return err
	}

	srv := httpapi.New(engine, cfg.LogDir, "")
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Handler}
	oninterrupt.Register(func() {
		httpServer.Close()
	})
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	log.Printf("listening on %s", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return cache.Close()
}
