package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/proxikal/cerberus/internal/blueprint"
	"github.com/proxikal/cerberus/internal/incremental"
	"github.com/proxikal/cerberus/internal/watcher"
)

// watcherCommand runs the filesystem watcher (C11) standalone, without
// the RPC daemon. Only start and status exist: a standalone watcher
// writes no PID file and runs until SIGINT/SIGTERM, and status does not
// inspect a running watcher — it points the caller at `daemon status`.
func watcherCommand() *cli.Command {
	return &cli.Command{
		Name:  "watcher",
		Usage: "run or inspect the standalone filesystem watcher",
		Subcommands: []*cli.Command{
			{
				Name:   "start",
				Usage:  "watch the project root and trigger incremental updates on change",
				Action: runWatcherStart,
			},
			{
				Name:   "status",
				Usage:  "explain how to query watcher stats through a running daemon",
				Action: runWatcherStatus,
			},
		},
	}
}

func runWatcherStart(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	log := newLogger(c)
	defer log.Sync()

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	git := openGit(cfg, log)
	if git == nil {
		return guardedError{fmt.Errorf("project root %s is not a git repository; the watcher requires git", cfg.Project.Root)}
	}

	cache := blueprint.NewCache(s, cfg.Blueprint.CacheTTL)

	updater := incremental.New(git, s, log)
	w, err := watcher.New(cfg.Project.Root, watcher.Options{
		DebounceDelay: time.Duration(cfg.Watcher.DebounceMs) * time.Millisecond,
		Include:       cfg.Include,
		Exclude:       cfg.Exclude,
	}, updater, git, s, cache, log)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	fmt.Printf("watching %s\n", cfg.Project.Root)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	w.Stop()
	stats := w.Stats()
	out, _ := json.Marshal(stats)
	fmt.Printf("watcher stopped: %s\n", out)
	return nil
}

func runWatcherStatus(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	fmt.Printf("watcher status for %s must be queried through a running daemon (`cerberusd daemon status`); "+
		"a standalone watcher process exposes no RPC surface of its own\n", cfg.Project.Root)
	return nil
}
