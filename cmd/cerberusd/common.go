package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/proxikal/cerberus/internal/config"
	"github.com/proxikal/cerberus/internal/gitutil"
	"github.com/proxikal/cerberus/internal/store"
)

// indexDir is where the store and vector store live, mirroring
// Mutation.BackupDir/UndoDir's convention of a project-local .cerberus
// directory rather than a shared cache outside the repo.
func indexDir(cfg *config.Config) string {
	return filepath.Join(cfg.Project.Root, ".cerberus", "index")
}

// openStore opens the index for a command that only reads/writes the
// relational store, failing with missingIndexError when it cannot be
// opened.
func openStore(cfg *config.Config) (*store.Store, error) {
	dir := indexDir(cfg)
	s, err := store.Open(dir)
	if err != nil {
		return nil, missingIndexError{fmt.Errorf("open index at %s: %w", dir, err)}
	}
	return s, nil
}

// openOrCreateStore is openStore's counterpart for commands (scan) that
// are allowed to create the index directory rather than requiring it to
// already exist.
func openOrCreateStore(cfg *config.Config) (*store.Store, error) {
	dir := indexDir(cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir %s: %w", dir, err)
	}
	s, err := store.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open index at %s: %w", dir, err)
	}
	return s, nil
}

// openGit opens the project's git provider, tolerating a non-git root:
// a nil provider means the blueprint/watcher/incremental layers degrade
// to their no-churn-data code paths rather than failing outright.
func openGit(cfg *config.Config, log *zap.Logger) *gitutil.Provider {
	git, err := gitutil.NewProvider(cfg.Project.Root)
	if err != nil {
		log.Debug("project root is not a git repository; churn/diff features disabled", zap.Error(err))
		return nil
	}
	return git
}

// Every command passes a nil builder.Embedder/retrieval.Embedder: a real
// embedding model is out of scope for this module's core (builder.go's
// Embedder doc comment), so builds and searches run keyword-only until a
// caller injects one of their own.
