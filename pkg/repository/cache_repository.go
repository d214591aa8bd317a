package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/mo"

	"github.com/scholarsrc/scholar-source/pkg/models"
)

// CacheRepository は course_cache テーブルへのアクセスを提供します
type CacheRepository struct {
	pool *pgxpool.Pool
}

// NewCacheRepository は新しい CacheRepository を作成します
func NewCacheRepository(pool *pgxpool.Pool) *CacheRepository {
	return &CacheRepository{pool: pool}
}

// Get はキャッシュキーでエントリを取得します
// 存在しない場合は None を返します（エラーにしません）
func (r *CacheRepository) Get(ctx context.Context, cacheKey string) (mo.Option[models.CacheEntry], error) {
	row := r.pool.QueryRow(ctx, `
		SELECT cache_key, config_hash, cache_type, inputs, results, cached_at
		FROM course_cache
		WHERE cache_key = $1`,
		cacheKey,
	)

	var (
		entry     models.CacheEntry
		cacheType string
	)
	err := row.Scan(&entry.CacheKey, &entry.ConfigHash, &cacheType, &entry.Inputs, &entry.Results, &entry.CachedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[models.CacheEntry](), nil
		}
		return mo.None[models.CacheEntry](), fmt.Errorf("failed to get cache entry: %w", err)
	}

	entry.CacheType = models.CacheType(cacheType)
	return mo.Some(entry), nil
}

// Upsert はエントリを挿入または上書きします（cache_key 単位の原子的な upsert）
func (r *CacheRepository) Upsert(ctx context.Context, entry models.CacheEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO course_cache (cache_key, config_hash, cache_type, inputs, results, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cache_key) DO UPDATE SET
			config_hash = EXCLUDED.config_hash,
			cache_type = EXCLUDED.cache_type,
			inputs = EXCLUDED.inputs,
			results = EXCLUDED.results,
			cached_at = EXCLUDED.cached_at`,
		entry.CacheKey, entry.ConfigHash, string(entry.CacheType), entry.Inputs, entry.Results, entry.CachedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}

	return nil
}

// Delete はキャッシュキーでエントリを削除します
// 存在しないキーの削除は成功扱いです
func (r *CacheRepository) Delete(ctx context.Context, cacheKey string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM course_cache WHERE cache_key = $1`, cacheKey)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Stats は監視用のキャッシュ統計を返します
func (r *CacheRepository) Stats(ctx context.Context, currentConfigHash string) (models.CacheStats, error) {
	stats := models.CacheStats{ConfigHash: currentConfigHash}

	row := r.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE config_hash = $1)
		FROM course_cache`,
		currentConfigHash,
	)
	if err := row.Scan(&stats.TotalEntries, &stats.ValidEntries); err != nil {
		return models.CacheStats{}, fmt.Errorf("failed to get cache stats: %w", err)
	}

	stats.StaleEntries = stats.TotalEntries - stats.ValidEntries
	return stats, nil
}

// PurgeStale は現在の設定ハッシュと一致しないエントリをすべて削除します
// 設定変更後の明示的なクリーンアップに使用します（通常は読み取り時に逐次無効化）
func (r *CacheRepository) PurgeStale(ctx context.Context, currentConfigHash string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM course_cache WHERE config_hash <> $1`, currentConfigHash)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeExpired は cached_at が cutoff より古いエントリを削除します
func (r *CacheRepository) PurgeExpired(ctx context.Context, cacheType models.CacheType, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM course_cache WHERE cache_type = $1 AND cached_at < $2`,
		string(cacheType), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
