// Command cerberusd is Cerberus's CLI entrypoint: one binary exposing
// every component (C1-C11) as subcommands, per spec.md §6. Grounded on
// the teacher's cmd/lci/main.go: a single urfave/cli/v2 App with global
// flags for config/root overrides and one Command per operation,
// loadConfigWithOverrides feeding every subcommand the same resolved
// config.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/proxikal/cerberus/internal/config"
	"github.com/proxikal/cerberus/internal/logx"
)

// Version is overwritten at build time via -ldflags; unset builds report "dev".
var Version = "dev"

func main() {
	app := &cli.App{
		Name:                   "cerberusd",
		Usage:                  "code intelligence engine: index, search, blueprint, mutate, and serve",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file path (.cerberus.toml or .cerberus.kdl)",
				Value:   ".cerberus.toml",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "project root directory (overrides config)",
				Value:   ".",
			},
			&cli.BoolFlag{
				Name:  "machine",
				Usage: "emit structured JSON logs instead of the console encoder",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug-level logging",
			},
		},
		Commands: []*cli.Command{
			scanCommand(),
			updateCommand(),
			searchCommand(),
			blueprintCommand(),
			mutationCommand(),
			daemonCommand(),
			watcherCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}

// loadConfigWithOverrides mirrors the teacher's helper of the same name:
// resolve root to an absolute path, then load the config file relative
// to it (falling back to config.Default when the file is absent).
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", c.String("root"), err)
	}

	configPath := c.String("config")
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(root, configPath)
	}

	cfg, err := config.Load(configPath, root)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	cfg.Project.Root = root
	return cfg, nil
}

func newLogger(c *cli.Context) *zap.Logger {
	return logx.New(logx.Options{
		MachineMode: c.Bool("machine"),
		Debug:       c.Bool("debug"),
	})
}

// exitCode* implement spec.md §6's process exit contract: 0 success, 1
// operational failure, 2 blocked by a guard/validation error, 3 index
// missing or corrupt.
const (
	exitCodeOK        = 0
	exitCodeFailure   = 1
	exitCodeBlocked   = 2
	exitCodeNoIndex   = 3
)

// guardedError marks a failure as "blocked by validation/guard" for
// exitCodeFor, rather than a generic operational failure.
type guardedError struct{ err error }

func (g guardedError) Error() string { return g.err.Error() }
func (g guardedError) Unwrap() error { return g.err }

// missingIndexError marks a failure as "no index present" for exitCodeFor.
type missingIndexError struct{ err error }

func (m missingIndexError) Error() string { return m.err.Error() }
func (m missingIndexError) Unwrap() error { return m.err }

func exitCodeFor(err error) int {
	if err == nil {
		return exitCodeOK
	}
	switch err.(type) {
	case guardedError:
		return exitCodeBlocked
	case missingIndexError:
		return exitCodeNoIndex
	default:
		return exitCodeFailure
	}
}
