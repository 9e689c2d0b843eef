package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/proxikal/cerberus/internal/cerrors"
	"github.com/proxikal/cerberus/internal/model"
)

// These queries back the blueprint cache (C8), a small key/value table
// keyed by hash(file_path, mtime, flags) with a TTL expiry.

// GetBlueprintCache returns the cached entry for key, or ok=false when
// absent or past its expires_at (expired rows are left for
// DeleteExpiredBlueprintCache to reap in bulk rather than deleted here).
func (s *Store) GetBlueprintCache(ctx context.Context, key string) (model.BlueprintCacheEntry, bool, error) {
	var entry model.BlueprintCacheEntry
	var expiresAt int64
	row := s.db.QueryRowContext(ctx, `
		SELECT cache_key, blueprint_json, expires_at, file_path FROM blueprint_cache WHERE cache_key = ?
	`, key)
	if err := row.Scan(&entry.CacheKey, &entry.BlueprintJSON, &expiresAt, &entry.FilePath); err != nil {
		if err == sql.ErrNoRows {
			return model.BlueprintCacheEntry{}, false, nil
		}
		return model.BlueprintCacheEntry{}, false, cerrors.NewStoreError("get_blueprint_cache", err)
	}
	entry.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if entry.ExpiresAt.Before(time.Now()) {
		return model.BlueprintCacheEntry{}, false, nil
	}
	return entry, true, nil
}

// SetBlueprintCache upserts one cache row.
func (s *Store) SetBlueprintCache(ctx context.Context, entry model.BlueprintCacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blueprint_cache (cache_key, blueprint_json, expires_at, file_path)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			blueprint_json = excluded.blueprint_json,
			expires_at = excluded.expires_at,
			file_path = excluded.file_path
	`, entry.CacheKey, entry.BlueprintJSON, entry.ExpiresAt.Unix(), entry.FilePath)
	if err != nil {
		return cerrors.NewStoreError("set_blueprint_cache", err)
	}
	return nil
}

// InvalidateBlueprintCacheForFile deletes every cached entry for path —
// called by the incremental updater whenever a file is reingested, since
// any cached blueprint for it is now stale regardless of its TTL.
func (s *Store) InvalidateBlueprintCacheForFile(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blueprint_cache WHERE file_path = ?`, path)
	if err != nil {
		return cerrors.NewStoreError("invalidate_blueprint_cache", err)
	}
	return nil
}

// DeleteExpiredBlueprintCache reaps every row past its expiry.
func (s *Store) DeleteExpiredBlueprintCache(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blueprint_cache WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return cerrors.NewStoreError("delete_expired_blueprint_cache", err)
	}
	return nil
}
