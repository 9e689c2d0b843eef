package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/proxikal/cerberus/internal/blueprint"
	"github.com/proxikal/cerberus/internal/config"
	"github.com/proxikal/cerberus/internal/daemon"
	"github.com/proxikal/cerberus/internal/incremental"
	"github.com/proxikal/cerberus/internal/mutate"
	"github.com/proxikal/cerberus/internal/parser"
	"github.com/proxikal/cerberus/internal/retrieval"
	"github.com/proxikal/cerberus/internal/watcher"
)

// daemonPort picks a stable port for a project when config.Daemon.Port
// is left at its 0/ephemeral default, using the same hash-of-path idea
// as daemon.PIDFilePath so every subcommand (start/stop/status/health/
// rpc) agrees on where to find a given project's daemon without a
// separate sidecar file.
func daemonPort(cfg *config.Config) int {
	if cfg.Daemon.Port != 0 {
		return cfg.Daemon.Port
	}
	var hash uint32
	for _, c := range cfg.Project.Root {
		hash = hash*31 + uint32(c)
	}
	return 20000 + int(hash%20000)
}

func daemonAddr(cfg *config.Config) string {
	return fmt.Sprintf("127.0.0.1:%d", daemonPort(cfg))
}

// watcherAdapter satisfies daemon.WatcherHandle for a concrete
// *watcher.Watcher: only the Stats method needs adapting, since
// watcher.Watcher.Stats returns the package's own named type rather
// than the `any` WatcherHandle.Stats declares.
type watcherAdapter struct{ w *watcher.Watcher }

func (a watcherAdapter) Stop()      { a.w.Stop() }
func (a watcherAdapter) Stats() any { return a.w.Stats() }

func daemonCommand() *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "run or control the long-lived JSON-RPC daemon",
		Subcommands: []*cli.Command{
			{
				Name:  "start",
				Usage: "start the daemon in the foreground",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "watch", Usage: "also start the filesystem watcher in-process"},
				},
				Action: runDaemonStart,
			},
			{
				Name:   "stop",
				Usage:  "stop a running daemon via SIGTERM",
				Action: runDaemonStop,
			},
			{
				Name:   "status",
				Usage:  "report whether the daemon is running and its counters",
				Action: runDaemonStatus,
			},
			{
				Name:   "health",
				Usage:  "probe GET /health",
				Action: runDaemonHealth,
			},
			{
				Name:      "rpc",
				Usage:     "send a single JSON-RPC method call",
				ArgsUsage: "<method> [json-params]",
				Action:    runDaemonRPC,
			},
		},
	}
}

// runDaemonStart wires every component (C2-C11) into one process: the
// store, retriever, blueprint generator, mutator, session manager, and
// RPC registry behind a Server, optionally with the watcher attached.
// Grounded on the teacher's serverCommand (cmd/lci/main_server.go):
// build, Start, wait on either an OS signal or the server's own Wait
// channel, then Shutdown with a bounded context.
func runDaemonStart(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	log := newLogger(c)
	defer log.Sync()

	if daemon.IsRunning(daemon.PIDFilePath(cfg.Project.Root)) {
		return guardedError{fmt.Errorf("daemon already running for %s", cfg.Project.Root)}
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	git := openGit(cfg, log)

	retriever := retrieval.New(s, nil, nil, cfg.Retrieval)
	if err := retriever.Reindex(c.Context); err != nil {
		return fmt.Errorf("build bm25 index: %w", err)
	}

	cache := blueprint.NewCache(s, cfg.Blueprint.CacheTTL)
	gen := blueprint.New(s, git, cache, cfg.Blueprint, cfg.Project.Root)

	mutator := mutate.New(s, parser.NewRegistry(), cfg.Mutation.BackupDir, cfg.Mutation.UndoDir, log)

	sessions := daemon.NewSessionManager(s,
		time.Duration(cfg.Daemon.MaxIdleSeconds)*time.Second,
		time.Duration(cfg.Daemon.ReapIntervalSec)*time.Second,
		log)

	registry := daemon.NewRegistry(s, retriever, gen, mutator, sessions, log)

	hotSet := watcher.NewHotSet(watcher.HotSetOptions{
		Enabled:       cfg.Watcher.AutoBlueprintEnabled,
		Threshold:     cfg.Watcher.HotThreshold,
		CheckInterval: time.Duration(cfg.Watcher.HotCheckIntervalSec) * time.Second,
	}, gen, log)
	hotSet.Start()
	defer hotSet.Stop()
	registry.SetHotSet(hotSet)

	srv := daemon.NewServer(registry, sessions, cfg.Project.Root, log)

	var w *watcher.Watcher
	if c.Bool("watch") {
		if git == nil {
			return guardedError{fmt.Errorf("project root %s is not a git repository; --watch requires git", cfg.Project.Root)}
		}
		updater := incremental.New(git, s, log)
		w, err = watcher.New(cfg.Project.Root, watcher.Options{
			DebounceDelay: time.Duration(cfg.Watcher.DebounceMs) * time.Millisecond,
			Include:       cfg.Include,
			Exclude:       cfg.Exclude,
		}, updater, git, s, cache, log)
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		srv.SetWatcher(watcherAdapter{w})
	}

	if err := srv.Start(daemonPort(cfg)); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	fmt.Printf("daemon listening on %s\n", srv.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	waitCh := make(chan struct{})
	go func() { srv.Wait(); close(waitCh) }()

	select {
	case sig := <-sigCh:
		fmt.Printf("received %v, shutting down\n", sig)
	case <-waitCh:
		fmt.Println("daemon shutdown requested")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("daemon shutdown: %w", err)
	}
	fmt.Println("daemon shut down cleanly")
	return nil
}

func runDaemonStop(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	pidFile := daemon.PIDFilePath(cfg.Project.Root)
	if !daemon.IsRunning(pidFile) {
		return guardedError{fmt.Errorf("no daemon running for %s", cfg.Project.Root)}
	}
	pid, err := daemon.ReadPID(pidFile)
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if !daemon.IsRunning(pidFile) {
			fmt.Println("daemon stopped")
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop within 10s")
}

func runDaemonStatus(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	pidFile := daemon.PIDFilePath(cfg.Project.Root)
	if !daemon.IsRunning(pidFile) {
		fmt.Println(`{"running": false}`)
		return nil
	}

	client := daemon.NewClient(daemonAddr(cfg))
	resp, err := client.Get(c.Context, "/status")
	if err != nil {
		return fmt.Errorf("query daemon status: %w", err)
	}
	fmt.Println(resp)
	return nil
}

func runDaemonHealth(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	client := daemon.NewClient(daemonAddr(cfg))
	if !client.Available(c.Context) {
		return guardedError{fmt.Errorf("daemon at %s is not responding", daemonAddr(cfg))}
	}
	fmt.Println(`{"status": "ok"}`)
	return nil
}

func runDaemonRPC(c *cli.Context) error {
	method := c.Args().First()
	if method == "" {
		return guardedError{fmt.Errorf("rpc requires a method name")}
	}
	rawParams := c.Args().Get(1)
	var params any
	if rawParams != "" {
		if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
			return guardedError{fmt.Errorf("invalid json params: %w", err)}
		}
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	client := daemon.NewClient(daemonAddr(cfg))
	result, err := client.Call(c.Context, method, params)
	if err != nil {
		return fmt.Errorf("rpc call %s: %w", method, err)
	}
	fmt.Println(string(result))
	return nil
}
