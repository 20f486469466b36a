package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	flag "github.com/spf13/pflag"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
	proxy "github.com/rollkit/sequencer-relayer/da/jsonrpc"
)

const (
	defaultHost = "localhost"
	defaultPort = "26658"
)

// local-da serves an in-memory DA layer over the JSON-RPC API the relayer
// uses. It is meant for local devnets and tests.
func main() {
	var (
		host        string
		port        string
		token       string
		listenAll   bool
		blockTime   time.Duration
		maxBlobSize uint64
	)
	flag.StringVar(&port, "port", defaultPort, "listening port")
	flag.StringVar(&host, "host", defaultHost, "listening address")
	flag.StringVar(&token, "auth-token", "", "bearer token required from clients (empty disables auth)")
	flag.BoolVar(&listenAll, "listen-all", false, "listen on all network interfaces (0.0.0.0) instead of just localhost")
	flag.DurationVar(&blockTime, "block-time", time.Second, "interval between DA blocks")
	flag.Uint64Var(&maxBlobSize, "max-blob-size", 2<<20, "largest blob accepted, in bytes")
	flag.Parse()

	if listenAll {
		host = "0.0.0.0"
	}

	// create logger
	logger := log.NewLogger(os.Stdout).With("module", "local-da")

	da := coreda.NewDummyDA(maxBlobSize, blockTime)
	da.StartHeightTicker()
	defer da.StopHeightTicker()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := proxy.NewServer(logger, net.JoinHostPort(host, port), token, da)
	if err := srv.Start(ctx); err != nil {
		logger.Error("error while serving", "error", err)
		os.Exit(1)
	}
	logger.Info("listening", "address", srv.Addr(), "block_time", blockTime, "max_blob_size", maxBlobSize)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("error while stopping", "error", err)
	}
}
