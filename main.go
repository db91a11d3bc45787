package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/k0kubun/go-ansi"

	"github.com/llehouerou/syncradio/internal/app"
	"github.com/llehouerou/syncradio/internal/config"
	"github.com/llehouerou/syncradio/internal/errmsg"
)

func main() {
	os.Exit(run())
}

func run() int {
	headless := flag.Bool("headless", false, "play without the terminal screen, logging to stderr")
	storeURL := flag.String("store", "", "shared state store URL (overrides store.url)")
	manifestURL := flag.String("manifest", "", "track list URL or path (overrides manifest.url)")
	station := flag.String("station", "", "station name shown in the header")
	prefetch := flag.Bool("prefetch", false, "download every track before playing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.OpConfigLoad, err))
		return 1
	}
	if *storeURL != "" {
		cfg.Store.URL = *storeURL
	}
	if *manifestURL != "" {
		cfg.Manifest.URL = *manifestURL
	}
	if *prefetch {
		cfg.Client.Prefetch = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = app.Run(ctx, cfg, app.Options{
		Headless: *headless,
		Station:  *station,
		Output:   ansi.NewAnsiStderr(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "syncradio:", err)
		return 1
	}
	return 0
}
