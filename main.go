/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/tundra/engine"
	"github.com/spaghettifunk/tundra/engine/config"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/testbed"
)

func main() {
	configPath := flag.String("config", "tundra.toml", "path to the engine configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			core.LogFatal("%s", err)
		}
		core.LogWarn("no config at %s, using defaults", *configPath)
		cfg = config.Default()
	}

	tb, err := testbed.NewTestGame(cfg)
	if err != nil {
		core.LogFatal("%s", err)
	}

	engine, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := engine.Initialize(); err != nil {
		core.LogFatal("%s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		engine.Stop()
	}()

	// run engine
	if err := engine.Run(); err != nil {
		core.LogFatal("%s", err)
	}
}
