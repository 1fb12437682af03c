// Command server is the GRASS control-plane entrypoint: it loads
// grass.conf, wires the metrics registry, file-transfer worker pool,
// and admin HTTP surface together, then runs the dispatcher's
// readiness loop until a fatal error or signal.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/grassproto/grass/internal/adminapi"
	"github.com/grassproto/grass/internal/config"
	"github.com/grassproto/grass/internal/dispatcher"
	"github.com/grassproto/grass/internal/metrics"
	"github.com/grassproto/grass/internal/transfer"
)

// maxInFlightTransfers bounds the get/put worker pool; once full, new
// transfers are refused with an IO failure on the control connection.
const maxInFlightTransfers = 64

func main() {
	log.SetFlags(0)

	// Writes to a peer that has gone away must surface as an EPIPE
	// return from write(2), not a process-terminating signal.
	signal.Ignore(syscall.SIGPIPE)

	cfg, err := config.Load("grass.conf")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.New()
	transfers := transfer.New(maxInFlightTransfers, reg)

	d, err := dispatcher.New(cfg, transfers, reg)
	if err != nil {
		log.Fatalf("listen on port %d failed: %v", cfg.Port, err)
	}
	defer d.Close()

	adminapi.Start(ctx, adminapi.DefaultConfigFromEnv(os.Getenv), d, reg.Gatherer())

	log.Printf("grass server listening on port %d, base dir %s", cfg.Port, cfg.BaseDir)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run() }()

	select {
	case <-stop:
		cancel()
		d.Close()
	case err := <-errCh:
		log.Fatalf("dispatcher error: %v", err)
	}
}
