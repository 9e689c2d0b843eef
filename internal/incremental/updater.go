// Package incremental implements the surgical incremental updater of
// spec.md §4.6 (C6): diff the working tree against the commit the index
// was last built at, and patch only what changed instead of rescanning
// the whole repo. Grounded on the teacher's internal/indexing
// incremental-update flow (diff-driven re-ingest of touched files) and
// internal/builder's ingestBatch for the parse-and-write half of the
// work; git plumbing comes from internal/gitutil.
package incremental

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/gitutil"
	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/parser"
	"github.com/proxikal/cerberus/internal/resolve"
	"github.com/proxikal/cerberus/internal/store"
)

// affectedRatioThreshold is the §4.6 step 3 "recommend full rebuild"
// cutoff: |affected|/|total_files| > 0.3. The surgical update still runs;
// this only annotates the result.
const affectedRatioThreshold = 0.3

// Updater wires a git provider, the store, and a parser registry to
// apply a diff-driven incremental update.
type Updater struct {
	Git      *gitutil.Provider
	Store    *store.Store
	Registry *parser.Registry
	Log      *zap.Logger
}

// New builds an Updater. log may be nil.
func New(git *gitutil.Provider, s *store.Store, log *zap.Logger) *Updater {
	if log == nil {
		log = zap.NewNop()
	}
	return &Updater{Git: git, Store: s, Registry: parser.NewRegistry(), Log: log}
}

// Result summarizes one incremental update for the CLI/RPC layer.
type Result struct {
	AddedFiles         int
	ModifiedFiles      int
	DeletedFiles       int
	AffectedSymbols    int
	NeedsReevaluation  int
	RebuildRecommended bool
	PriorCommit        string
	NewCommit          string
	Duration           time.Duration
}

// needsReevaluationCap bounds how many caller symbols step 6's
// informational "needs re-evaluation" note tracks per run.
const needsReevaluationCap = 200

// Run performs one surgical incremental update per §4.6's numbered
// steps. When the working tree has no changes against the stored commit
// no file rows are touched; the resolution passes still run and the
// stored commit is advanced to HEAD.
func (u *Updater) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	result := Result{}

	priorCommit, _, err := u.Store.GetMetadata(ctx, "git_commit")
	if err != nil {
		return result, err
	}
	result.PriorCommit = priorCommit

	newCommit, err := u.Git.HeadCommit(ctx)
	if err != nil {
		return result, err
	}
	result.NewCommit = newCommit

	changes, err := u.Git.DiffAgainst(ctx, priorCommit)
	if err != nil {
		return result, err
	}

	total, err := u.Git.TotalTrackedFiles(ctx)
	if err != nil {
		return result, err
	}
	affected := len(changes.Added) + len(changes.Modified) + len(changes.Deleted)
	if total > 0 && float64(affected)/float64(total) > affectedRatioThreshold {
		result.RebuildRecommended = true
		u.Log.Info("incremental update affects a large share of the repo",
			zap.Int("affected", affected), zap.Int("total", total))
	}

	root := u.Git.Root()

	for _, path := range changes.Deleted {
		if err := u.Store.Transaction(ctx, func(tx *sql.Tx) error {
			return store.DeleteFileRows(tx, path)
		}); err != nil {
			return result, err
		}
		result.DeletedFiles++
	}

	for _, path := range changes.Added {
		if err := u.ingestFile(ctx, root, path); err != nil {
			return result, err
		}
		result.AddedFiles++
	}

	for _, mf := range changes.Modified {
		affectedCount, err := u.reingestModified(ctx, root, mf, &result)
		if err != nil {
			return result, err
		}
		result.AffectedSymbols += affectedCount
		result.ModifiedFiles++
	}

	if err := resolve.RunAll(ctx, u.Store); err != nil {
		return result, err
	}

	if err := u.Store.SetMetadata(ctx, "git_commit", newCommit); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	u.Log.Info("incremental update complete",
		zap.Int("added", result.AddedFiles), zap.Int("modified", result.ModifiedFiles),
		zap.Int("deleted", result.DeletedFiles), zap.Bool("rebuild_recommended", result.RebuildRecommended))
	return result, nil
}

// ingestFile parses and inserts one newly-added file (§4.6 step 5), the
// single-file analogue of builder.Builder.ingestBatch.
func (u *Updater) ingestFile(ctx context.Context, root, relPath string) error {
	absPath := filepath.Join(root, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		// File may have been added then removed again before this run;
		// nothing to index.
		return nil
	}
	rec := u.Registry.Parse(relPath, content)

	info, err := os.Stat(absPath)
	if err != nil {
		return cerrors.NewStoreError("stat_added_file", err)
	}

	return u.Store.Transaction(ctx, func(tx *sql.Tx) error {
		if err := store.WriteFile(tx, model.File{
			Path: relPath, AbsPath: absPath, Size: info.Size(), LastModified: info.ModTime(),
		}); err != nil {
			return err
		}
		if err := store.WriteSymbolsBatch(tx, rec.Symbols); err != nil {
			return err
		}
		if err := store.WriteImportsBatch(tx, rec.Imports); err != nil {
			return err
		}
		if err := store.WriteCallsBatch(tx, rec.Calls); err != nil {
			return err
		}
		if err := store.WriteTypeInfosBatch(tx, rec.TypeInfos); err != nil {
			return err
		}
		if err := store.WriteImportLinksBatch(tx, rec.ImportLinks); err != nil {
			return err
		}
		return store.WriteMethodCallsBatch(tx, rec.MethodCalls)
	})
}

// reingestModified implements §4.6 step 6: find symbols whose range
// overlaps a changed range (the affected set), re-parse the whole file,
// replace all of its rows, and note — informationally only — callers of
// the affected symbols that may need re-evaluation.
func (u *Updater) reingestModified(ctx context.Context, root string, mf gitutil.ModifiedFile, result *Result) (int, error) {
	before, err := u.Store.QuerySymbolsByFile(ctx, mf.Path)
	if err != nil {
		return 0, err
	}

	var affected []model.Symbol
	for _, sym := range before {
		if gitutil.Overlaps(mf.Ranges, sym.StartLine, sym.EndLine) {
			affected = append(affected, sym)
		}
	}

	if err := u.trackNeedsReevaluation(ctx, affected, result); err != nil {
		return 0, err
	}

	absPath := filepath.Join(root, mf.Path)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return len(affected), cerrors.NewStoreError("read_modified_file", err)
	}
	rec := u.Registry.Parse(mf.Path, content)

	info, err := os.Stat(absPath)
	if err != nil {
		return len(affected), cerrors.NewStoreError("stat_modified_file", err)
	}

	err = u.Store.Transaction(ctx, func(tx *sql.Tx) error {
		if err := store.DeleteFileRows(tx, mf.Path); err != nil {
			return err
		}
		if err := store.WriteFile(tx, model.File{
			Path: mf.Path, AbsPath: absPath, Size: info.Size(), LastModified: info.ModTime(),
		}); err != nil {
			return err
		}
		if err := store.WriteSymbolsBatch(tx, rec.Symbols); err != nil {
			return err
		}
		if err := store.WriteImportsBatch(tx, rec.Imports); err != nil {
			return err
		}
		if err := store.WriteCallsBatch(tx, rec.Calls); err != nil {
			return err
		}
		if err := store.WriteTypeInfosBatch(tx, rec.TypeInfos); err != nil {
			return err
		}
		if err := store.WriteImportLinksBatch(tx, rec.ImportLinks); err != nil {
			return err
		}
		return store.WriteMethodCallsBatch(tx, rec.MethodCalls)
	})
	return len(affected), err
}

// trackNeedsReevaluation counts (capped) distinct external callers of the
// affected symbols. There is no enforcement — per §4.6 step 6 this is
// informational only, surfaced via Result.NeedsReevaluation.
func (u *Updater) trackNeedsReevaluation(ctx context.Context, affected []model.Symbol, result *Result) error {
	seen := make(map[string]bool)
	for _, sym := range affected {
		if len(seen)+result.NeedsReevaluation >= needsReevaluationCap {
			break
		}
		refs, err := u.Store.QueryReferencesTo(ctx, sym.Name)
		if err != nil {
			return err
		}
		for _, r := range refs {
			if r.SourceFile == sym.FilePath {
				continue
			}
			key := r.SourceFile + ":" + r.SourceSymbol
			if seen[key] {
				continue
			}
			seen[key] = true
			if len(seen) >= needsReevaluationCap {
				break
			}
		}
	}
	result.NeedsReevaluation += len(seen)
	return nil
}
