package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements は起動時に適用するテーブル定義
// すべて IF NOT EXISTS で冪等なため、マイグレーションツールなしで運用できます
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id             UUID PRIMARY KEY,
		status         TEXT NOT NULL,
		inputs         JSONB NOT NULL,
		search_title   TEXT NOT NULL DEFAULT '',
		results        JSONB,
		raw_output     TEXT,
		error          TEXT,
		status_message TEXT,
		metadata       JSONB,
		created_at     TIMESTAMPTZ NOT NULL,
		completed_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,

	`CREATE TABLE IF NOT EXISTS course_cache (
		cache_key   TEXT PRIMARY KEY,
		config_hash TEXT NOT NULL,
		cache_type  TEXT NOT NULL,
		inputs      JSONB NOT NULL,
		results     JSONB NOT NULL,
		cached_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_course_cache_type_cached_at ON course_cache (cache_type, cached_at)`,

	`CREATE TABLE IF NOT EXISTS rate_counters (
		counter_key TEXT PRIMARY KEY,
		count       BIGINT NOT NULL,
		expires_at  TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema は必要なテーブルとインデックスを作成します（冪等）
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
