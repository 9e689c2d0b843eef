package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/proxikal/cerberus/internal/blueprint"
)

// blueprintCommand generates a file's structural blueprint (C8), per
// spec.md §6's full overlay flag set.
func blueprintCommand() *cli.Command {
	return &cli.Command{
		Name:      "blueprint",
		Usage:     "generate a structural blueprint for a file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "deps", Usage: "include the dependency overlay"},
			&cli.BoolFlag{Name: "meta", Usage: "include complexity metadata"},
			&cli.BoolFlag{Name: "churn", Usage: "include git churn overlay"},
			&cli.BoolFlag{Name: "coverage", Usage: "include coverage overlay"},
			&cli.BoolFlag{Name: "stability", Usage: "include the composite stability score"},
			&cli.BoolFlag{Name: "cycles", Usage: "include import/call/inheritance cycle detection"},
			&cli.BoolFlag{Name: "hydrate", Usage: "include hydrated doc/usage context within the token budget"},
			&cli.StringFlag{Name: "diff", Usage: "annotate nodes changed since <ref>"},
			&cli.BoolFlag{Name: "aggregate", Usage: "aggregate child blueprints into a directory-level summary"},
			&cli.BoolFlag{Name: "no-cache", Usage: "force regeneration, bypassing the blueprint cache"},
			&cli.StringFlag{Name: "format", Value: "json", Usage: "json or text"},
		},
		Action: func(c *cli.Context) error {
			file := c.Args().First()
			if file == "" {
				return guardedError{fmt.Errorf("blueprint requires a file argument")}
			}

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
			cache := blueprint.NewCache(s, cfg.Blueprint.CacheTTL)
			gen := blueprint.New(s, git, cache, cfg.Blueprint, cfg.Project.Root)

			bp, err := gen.Generate(c.Context, blueprint.Request{
				FilePath:      file,
				ShowDeps:      c.Bool("deps"),
				ShowMeta:      c.Bool("meta"),
				ShowChurn:     c.Bool("churn"),
				ShowCoverage:  c.Bool("coverage"),
				ShowStability: c.Bool("stability"),
				ShowCycles:    c.Bool("cycles"),
				ShowHydrate:   c.Bool("hydrate"),
				DiffRef:       c.String("diff"),
				Aggregate:     c.Bool("aggregate"),
				UseCache:      !c.Bool("no-cache"),
			})
			if err != nil {
				return fmt.Errorf("generate blueprint: %w", err)
			}

			if c.String("format") == "text" {
				fmt.Fprintf(c.App.Writer, "%s (%d symbols)\n", bp.FilePath, bp.TotalSymbols)
				return nil
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(bp)
		},
	}
}
