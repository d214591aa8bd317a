package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RateCounterRepository は rate_counters テーブルを共有カウンタストアとして提供します
// 複数インスタンス構成でレート制限の状態を共有するために使用します
// （単一インスタンスではプロセス内ストアで十分）
type RateCounterRepository struct {
	pool *pgxpool.Pool
}

// NewRateCounterRepository は新しい RateCounterRepository を作成します
func NewRateCounterRepository(pool *pgxpool.Pool) *RateCounterRepository {
	return &RateCounterRepository{pool: pool}
}

// Incr はカウンタを原子的にインクリメントし、更新後の値を返します
// キーが存在しない場合は count=1、expires_at=now+expiry で作成します
// 期限切れの行は次のウィンドウのキーが別になるため、ここで掃除だけ行います
func (r *RateCounterRepository) Incr(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	now := time.Now().UTC()

	// 期限切れ行の機会的な掃除（失敗してもカウント自体には影響しない）
	_, _ = r.pool.Exec(ctx, `DELETE FROM rate_counters WHERE expires_at < $1`, now)

	var count int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO rate_counters (counter_key, count, expires_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (counter_key) DO UPDATE SET count = rate_counters.count + 1
		RETURNING count`,
		key, now.Add(expiry),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	return count, nil
}
