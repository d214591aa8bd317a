package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Window はレート制限ウィンドウ1つ（例: 5回/分）を表します
type Window struct {
	Limit int
	Per   time.Duration
}

func (w Window) String() string {
	return fmt.Sprintf("%d per %s", w.Limit, w.Per)
}

// Decision は admit の判定結果を表します
// 拒否時の RetryAfter は違反したウィンドウのうち最小の待ち時間です
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Limit      string // 違反したウィンドウの表記（例: "5 per 1m0s"）
}

// CounterStore は固定ウィンドウカウンタの格納先を表します
// プロセス内ストア（単一インスタンス）と共有ストア（複数インスタンス）の
// どちらでも契約は同一で、カウンタの可視範囲だけが異なります
type CounterStore interface {
	// Incr はキーのカウンタを原子的にインクリメントし、更新後の値を返します
	Incr(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// Limiter はクライアントキー単位の投稿レート制限です
// 複数ウィンドウを設定でき、いずれか1つでも超過すると拒否します
//
// カウンタストアの障害時はデフォルトで許可側に倒します（fail-open）。
// インフラ障害が全投稿を止めることを避けるための可用性優先のトレードオフで、
// 厳格側に倒したいデプロイは failClosed で反転できます
type Limiter struct {
	store      CounterStore
	windows    []Window
	failClosed bool
	now        func() time.Time
}

// New は新しい Limiter を作成します
func New(store CounterStore, windows []Window, failClosed bool) *Limiter {
	return &Limiter{
		store:      store,
		windows:    windows,
		failClosed: failClosed,
		now:        time.Now,
	}
}

// Admit はクライアントキーの投稿を許可するか判定します
// 全ウィンドウのカウンタをインクリメントした上で、超過したウィンドウがあれば
// 拒否し、最小の retry-after を報告します
func (l *Limiter) Admit(ctx context.Context, clientKey string) Decision {
	now := l.now()
	denied := Decision{Allowed: true}

	for _, w := range l.windows {
		if w.Limit <= 0 || w.Per <= 0 {
			continue
		}

		windowStart := now.Truncate(w.Per)
		key := fmt.Sprintf("%s|%s|%d", clientKey, w.Per, windowStart.Unix())

		// ウィンドウ境界をまたいだ直後も安全に消えるよう、余裕を持った期限を付ける
		count, err := l.store.Incr(ctx, key, w.Per+time.Minute)
		if err != nil {
			if l.failClosed {
				slog.Warn("レート制限ストアの障害により拒否します（fail-closed）", "clientKey", clientKey, "error", err)
				return Decision{Allowed: false, RetryAfter: time.Minute, Limit: w.String()}
			}
			slog.Warn("レート制限ストアの障害により許可します（fail-open）", "clientKey", clientKey, "error", err)
			continue
		}

		if count > int64(w.Limit) {
			retryAfter := windowStart.Add(w.Per).Sub(now)
			if retryAfter <= 0 {
				retryAfter = time.Second
			}
			if denied.Allowed || retryAfter < denied.RetryAfter {
				denied = Decision{Allowed: false, RetryAfter: retryAfter, Limit: w.String()}
			}
		}
	}

	return denied
}
