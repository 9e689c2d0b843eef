package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/proxikal/cerberus/internal/mutate"
	"github.com/proxikal/cerberus/internal/parser"
)

// mutationCommand exposes the safe mutation pipeline (C9), per spec.md
// §4.9 and §6's "mutation edit|insert|delete|batch --dry-run --force".
func mutationCommand() *cli.Command {
	return &cli.Command{
		Name:  "mutation",
		Usage: "structurally edit, insert, or delete a symbol",
		Subcommands: []*cli.Command{
			mutationEditCommand(),
			mutationInsertCommand(),
			mutationDeleteCommand(),
			mutationBatchCommand(),
		},
	}
}

func commonMutationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "dry-run", Usage: "preview the change without writing it"},
		&cli.BoolFlag{Name: "force", Usage: "bypass the stability-level reference guard"},
		&cli.BoolFlag{Name: "auto-format", Usage: "reindent the replacement to the surrounding block"},
	}
}

func openMutator(c *cli.Context) (*mutate.Mutator, func(), error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, nil, err
	}
	log := newLogger(c)

	s, err := openStore(cfg)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}

	m := mutate.New(s, parser.NewRegistry(), cfg.Mutation.BackupDir, cfg.Mutation.UndoDir, log)
	return m, func() { s.Close(); log.Sync() }, nil
}

func printResult(c *cli.Context, result mutate.Result) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return guardedError{fmt.Errorf("mutation failed: %v", result.Errors)}
	}
	return nil
}

func mutationEditCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "replace a symbol's body",
		ArgsUsage: "<file> <symbol> <new-code-file>",
		Flags:     commonMutationFlags(),
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 3 {
				return guardedError{fmt.Errorf("edit requires <file> <symbol> <new-code-file>")}
			}
			file, symbol, codeFile := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
			code, err := os.ReadFile(codeFile)
			if err != nil {
				return fmt.Errorf("read replacement source %s: %w", codeFile, err)
			}

			m, cleanup, err := openMutator(c)
			if err != nil {
				return err
			}
			defer cleanup()

			result := m.EditSymbol(c.Context, file, symbol, string(code), mutate.Options{
				Force:      c.Bool("force"),
				DryRun:     c.Bool("dry-run"),
				AutoFormat: c.Bool("auto-format"),
			})
			return printResult(c, result)
		},
	}
}

func mutationInsertCommand() *cli.Command {
	return &cli.Command{
		Name:      "insert",
		Usage:     "insert code at a byte offset",
		ArgsUsage: "<file> <byte-offset> <new-code-file>",
		Flags:     commonMutationFlags(),
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 3 {
				return guardedError{fmt.Errorf("insert requires <file> <byte-offset> <new-code-file>")}
			}
			file, codeFile := c.Args().Get(0), c.Args().Get(2)
			var offset int
			if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &offset); err != nil {
				return guardedError{fmt.Errorf("invalid byte offset %q: %w", c.Args().Get(1), err)}
			}
			code, err := os.ReadFile(codeFile)
			if err != nil {
				return fmt.Errorf("read insertion source %s: %w", codeFile, err)
			}

			m, cleanup, err := openMutator(c)
			if err != nil {
				return err
			}
			defer cleanup()

			result := m.InsertSymbol(c.Context, file, offset, string(code), mutate.Options{
				DryRun:     c.Bool("dry-run"),
				AutoFormat: c.Bool("auto-format"),
			})
			return printResult(c, result)
		},
	}
}

func mutationDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete a symbol entirely",
		ArgsUsage: "<file> <symbol>",
		Flags:     commonMutationFlags(),
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return guardedError{fmt.Errorf("delete requires <file> <symbol>")}
			}
			file, symbol := c.Args().Get(0), c.Args().Get(1)

			m, cleanup, err := openMutator(c)
			if err != nil {
				return err
			}
			defer cleanup()

			result := m.DeleteSymbol(c.Context, file, symbol, mutate.Options{
				Force:  c.Bool("force"),
				DryRun: c.Bool("dry-run"),
			})
			return printResult(c, result)
		},
	}
}

// mutationBatchCommand runs a JSON-encoded list of mutate.Operation
// against the project atomically, per §4.9's batch_edit/rollback path.
func mutationBatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "run a JSON-encoded batch of operations, rolling back together on failure",
		ArgsUsage: "<operations.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "verify", Usage: "shell command to run after the batch; non-zero exit triggers rollback"},
			&cli.BoolFlag{Name: "preview", Usage: "preview every operation without writing anything"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return guardedError{fmt.Errorf("batch requires a path to a JSON operations file")}
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read operations file %s: %w", path, err)
			}
			var ops []mutate.Operation
			if err := json.Unmarshal(data, &ops); err != nil {
				return guardedError{fmt.Errorf("parse operations file %s: %w", path, err)}
			}

			m, cleanup, err := openMutator(c)
			if err != nil {
				return err
			}
			defer cleanup()

			result := m.BatchEdit(c.Context, ops, c.String("verify"), c.Bool("preview"))
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Success {
				return guardedError{fmt.Errorf("batch failed: %v (rolled back: %v)", result.Errors, result.RolledBack)}
			}
			return nil
		},
	}
}
