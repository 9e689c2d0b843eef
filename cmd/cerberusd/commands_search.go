package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/proxikal/cerberus/internal/retrieval"
)

// searchCommand runs the hybrid retriever (C7) standalone, per spec.md
// §4.7 and §6's "search --mode --top-k" contract.
func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "hybrid keyword/semantic search over the index",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Value: "auto", Usage: "keyword, semantic, balanced, or auto"},
			&cli.IntFlag{Name: "top-k", Value: 10, Usage: "number of results to return"},
			&cli.StringFlag{Name: "fusion", Value: "rrf", Usage: "rrf or weighted"},
			&cli.BoolFlag{Name: "json", Usage: "emit results as JSON"},
		},
		Action: func(c *cli.Context) error {
			query := c.Args().First()
			if query == "" {
				return guardedError{fmt.Errorf("search requires a query argument")}
			}

			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			cfg.Retrieval.FinalTopK = c.Int("top-k")
			r := retrieval.New(s, nil, nil, cfg.Retrieval)
			if err := r.Reindex(c.Context); err != nil {
				return fmt.Errorf("build bm25 index: %w", err)
			}

			results, err := r.Search(c.Context, query, retrieval.Mode(c.String("mode")), retrieval.FusionMethod(c.String("fusion")))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if c.Bool("json") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, res := range results {
				fmt.Fprintf(c.App.Writer, "%3d  %-8s  %.4f  %s  %s:%d\n",
					res.Rank, res.MatchType, res.HybridScore, res.Symbol.Symbol.Name, res.Symbol.Symbol.FilePath, res.Symbol.Symbol.StartLine)
			}
			return nil
		},
	}
}
