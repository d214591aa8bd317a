package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/mo"

	"github.com/scholarsrc/scholar-source/pkg/models"
)

// Backend はキャッシュエントリの永続化先を表します
type Backend interface {
	Get(ctx context.Context, cacheKey string) (mo.Option[models.CacheEntry], error)
	Upsert(ctx context.Context, entry models.CacheEntry) error
	Delete(ctx context.Context, cacheKey string) error
}

// ConfigHasher は現在のエージェント/タスク設定のハッシュを提供します
type ConfigHasher interface {
	ConfigHash() (string, error)
}

// Store はコース分析結果の二層キャッシュです
// analysis 層（変化の少ないコース分析）は長期 TTL、full 層（結果全体、非推奨）は
// 短期 TTL を持ちます。この非対称性は鮮度とコストのトレードオフとして意図的な
// ものであり、両層を統一してはいけません
//
// キャッシュは最適化であって正当性の依存先ではないため、バックエンド障害は
// すべてログに記録した上でミスとして扱います（呼び出し元へは伝播しません）
type Store struct {
	backend     Backend
	hasher      ConfigHasher
	analysisTTL time.Duration
	fullTTL     time.Duration
	now         func() time.Time
}

// New は新しい Store を作成します
func New(backend Backend, hasher ConfigHasher, analysisTTL, fullTTL time.Duration) *Store {
	return &Store{
		backend:     backend,
		hasher:      hasher,
		analysisTTL: analysisTTL,
		fullTTL:     fullTTL,
		now:         time.Now,
	}
}

// ttl は層ごとの TTL を返します
func (s *Store) ttl(cacheType models.CacheType) time.Duration {
	if cacheType == models.CacheTypeAnalysis {
		return s.analysisTTL
	}
	return s.fullTTL
}

// Lookup はキャッシュを検索します
// 次のいずれかの場合は None を返します:
//   - bypass が指定された（強制リフレッシュ。バックエンドには問い合わせない）
//   - エントリが存在しない
//   - エントリが層の TTL を超過している（物理削除前でもミス扱い）
//   - エントリの config_hash が現在の設定ハッシュと一致しない
//   - バックエンドまたはハッシュ計算が失敗した（ログのみ）
//
// 期限切れ・ハッシュ不一致のエントリは読み取り時に削除します（ベストエフォート）
func (s *Store) Lookup(ctx context.Context, inputs models.CourseInputs, cacheType models.CacheType, bypass bool) mo.Option[json.RawMessage] {
	if bypass {
		return mo.None[json.RawMessage]()
	}

	configHash, err := s.hasher.ConfigHash()
	if err != nil {
		slog.Warn("設定ハッシュの計算に失敗したためキャッシュミスとして扱います", "error", err)
		return mo.None[json.RawMessage]()
	}

	cacheKey := Key(inputs, cacheType, configHash)

	found, err := s.backend.Get(ctx, cacheKey)
	if err != nil {
		slog.Warn("キャッシュ参照に失敗したためミスとして扱います", "cacheKey", cacheKey, "error", err)
		return mo.None[json.RawMessage]()
	}
	entry, ok := found.Get()
	if !ok {
		return mo.None[json.RawMessage]()
	}

	if age := s.now().Sub(entry.CachedAt); age > s.ttl(cacheType) {
		slog.Debug("キャッシュエントリが期限切れのため削除します", "cacheKey", cacheKey, "age", age)
		if err := s.backend.Delete(ctx, cacheKey); err != nil {
			slog.Warn("期限切れエントリの削除に失敗しました", "cacheKey", cacheKey, "error", err)
		}
		return mo.None[json.RawMessage]()
	}

	// キーにハッシュを含めているため通常は一致するが、二重チェックしておく
	if entry.ConfigHash != configHash {
		slog.Debug("設定ハッシュが一致しないエントリを無効化します", "cacheKey", cacheKey)
		if err := s.backend.Delete(ctx, cacheKey); err != nil {
			slog.Warn("不一致エントリの削除に失敗しました", "cacheKey", cacheKey, "error", err)
		}
		return mo.None[json.RawMessage]()
	}

	return mo.Some(entry.Results)
}

// Save は結果をキャッシュに保存します（既存エントリは上書き）
// 同一フィンガープリントの再計算結果は冪等なので、書き込み競合は
// last-writer-wins で問題ありません。失敗はログのみで呼び出し元へ伝播しません
func (s *Store) Save(ctx context.Context, inputs models.CourseInputs, cacheType models.CacheType, results any) {
	configHash, err := s.hasher.ConfigHash()
	if err != nil {
		slog.Warn("設定ハッシュの計算に失敗したためキャッシュ保存をスキップします", "error", err)
		return
	}

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		slog.Warn("キャッシュ結果のシリアライズに失敗しました", "error", err)
		return
	}
	inputsJSON, err := json.Marshal(inputs.Normalized())
	if err != nil {
		slog.Warn("キャッシュ入力のシリアライズに失敗しました", "error", err)
		return
	}

	entry := models.CacheEntry{
		CacheKey:   Key(inputs, cacheType, configHash),
		ConfigHash: configHash,
		CacheType:  cacheType,
		Inputs:     inputsJSON,
		Results:    resultsJSON,
		CachedAt:   s.now().UTC(),
	}

	if err := s.backend.Upsert(ctx, entry); err != nil {
		slog.Warn("キャッシュ保存に失敗しました", "cacheKey", entry.CacheKey, "error", err)
	}
}
