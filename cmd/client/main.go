package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fleetcheck/internal/buildinfo"
	"github.com/dmitrijs2005/fleetcheck/internal/client/cli"
	"github.com/dmitrijs2005/fleetcheck/internal/client/config"
	"github.com/dmitrijs2005/fleetcheck/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	app, cleanup, err := cli.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer cleanup()

	app.Root(ctx)
}
