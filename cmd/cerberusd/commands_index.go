package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/proxikal/cerberus/internal/builder"
	"github.com/proxikal/cerberus/internal/config"
	"github.com/proxikal/cerberus/internal/incremental"
)

// scanCommand runs a full build (C2->C1->C3->C5), per spec.md §4.4.
// Grounded on the teacher's index/reindex commands in cmd/lci/main.go.
func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "build a fresh index of the project",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "incremental", Usage: "run an incremental update instead of a full rebuild"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			log := newLogger(c)
			defer log.Sync()

			if c.Bool("incremental") {
				return runIncrementalUpdate(c.Context, cfg, log)
			}

			s, err := openOrCreateStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			b := builder.New(cfg.Project.Root, cfg, s, nil, nil, log)
			result, err := b.Run(c.Context)
			if err != nil {
				return fmt.Errorf("build index: %w", err)
			}

			git := openGit(cfg, log)
			if git != nil {
				if head, err := git.HeadCommit(c.Context); err == nil {
					_ = s.SetMetadata(c.Context, "git_commit", head)
				}
			}

			fmt.Printf("indexed %d files, %d symbols in %s\n", result.FilesIndexed, result.SymbolsTotal, result.Duration)
			return nil
		},
	}
}

// updateCommand runs the incremental updater (C6) standalone, for CI
// hooks or manual invocation outside the watcher.
func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "incrementally update the index from git's working tree diff",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			log := newLogger(c)
			defer log.Sync()
			return runIncrementalUpdate(c.Context, cfg, log)
		},
	}
}

func runIncrementalUpdate(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	git := openGit(cfg, log)
	if git == nil {
		return guardedError{fmt.Errorf("project root %s is not a git repository; incremental update requires git", cfg.Project.Root)}
	}

	updater := incremental.New(git, s, log)
	result, err := updater.Run(ctx)
	if err != nil {
		return fmt.Errorf("incremental update: %w", err)
	}

	fmt.Printf("added=%d modified=%d deleted=%d affected_symbols=%d rebuild_recommended=%v\n",
		result.AddedFiles, result.ModifiedFiles, result.DeletedFiles, result.AffectedSymbols, result.RebuildRecommended)
	return nil
}
