// Command waystation is a forwarding HTTP/1.x proxy with an in-memory
// response cache (spec.md §1). It takes exactly one positional argument,
// the listen port, and serves clients until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/omalloc/waystation/internal/config"
	"github.com/omalloc/waystation/internal/xlog"
	"github.com/omalloc/waystation/server"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <port>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("waystation", flag.ContinueOnError)
	fs.Usage = usage

	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	maxBytes := fs.Int("max-bytes", config.DefaultMaxBytes, "per-connection receive buffer size")
	maxClients := fs.Int("max-clients", config.DefaultMaxClients, "maximum concurrent in-flight workers")
	cacheBytes := fs.Int64("cache-bytes", config.DefaultCacheCapacity, "LRU cache capacity in bytes")
	metricsAddr := fs.String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables it)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		usage()
		return 2
	}

	port, err := strconv.Atoi(fs.Arg(0))
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(os.Stderr, "waystation: invalid port %q\n", fs.Arg(0))
		usage()
		return 2
	}

	cfg := config.Default()
	cfg.Port = port
	cfg.LogLevel = *logLevel
	cfg.MaxBytes = *maxBytes
	cfg.MaxClients = *maxClients
	cfg.CacheCapacityBytes = *cacheBytes
	cfg.MetricsAddr = *metricsAddr

	log := xlog.New(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.New(cfg, log)
	if err := srv.Run(ctx); err != nil {
		log.Errorf("server exited: %s", err)
		return 1
	}
	return 0
}
