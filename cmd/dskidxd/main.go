// Command dskidxd is the indexing daemon, grounded directly on the
// teacher's cmd/ade-exe-ctld/main.go (config init, indexer start,
// server start, signal-driven graceful shutdown), restructured around
// the parse cache, usage store and JSON IPC server this spec adds.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dskidx/dskidx/internal/config"
	"github.com/dskidx/dskidx/internal/executor"
	"github.com/dskidx/dskidx/internal/logging"
	"github.com/dskidx/dskidx/internal/parsecache"
	"github.com/dskidx/dskidx/internal/usagestore"
	"github.com/dskidx/dskidx/server"
)

func main() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize config: %v\n", err)
		os.Exit(1)
	}
	config.Run()
	cfg := config.Get()
	logging.SetTrace(cfg.Timing())

	cache := parsecache.Load(cfg.CacheHome() + "/desktop-indexer")
	usage, err := usagestore.Open(cfg.DataHome() + "/desktop-indexer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open usage store: %v\n", err)
		os.Exit(1)
	}
	defer usage.Close()

	socketPath := server.SocketPath(cfg)
	srv, err := server.New(socketPath, cache, usage, executor.Default{}, cfg.Locale())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logging.Infof("dskidxd listening on %s", socketPath)

	select {
	case sig := <-sigChan:
		logging.Infof("received signal: %v", sig)
		cancel()
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "error stopping server: %v\n", err)
		}
	case err := <-serverErr:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}

	logging.Infof("dskidxd stopped")
}
