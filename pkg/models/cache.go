package models

import (
	"encoding/json"
	"time"
)

// CacheType はキャッシュ層を表します
type CacheType string

const (
	// CacheTypeAnalysis はコース分析のみをキャッシュする層（長期 TTL）
	CacheTypeAnalysis CacheType = "analysis"

	// CacheTypeFull はジョブ結果全体をキャッシュする層（短期 TTL）
	// analysis 層への移行に伴い非推奨ですが、読み書きは引き続きサポートされます
	CacheTypeFull CacheType = "full"
)

// CacheEntry は course_cache テーブルの1行を表します
// エントリは上書きのみで、部分更新されることはありません
type CacheEntry struct {
	CacheKey   string          `json:"cache_key"`
	ConfigHash string          `json:"config_hash"`
	CacheType  CacheType       `json:"cache_type"`
	Inputs     json.RawMessage `json:"inputs"`
	Results    json.RawMessage `json:"results"`
	CachedAt   time.Time       `json:"cached_at"`
}

// CacheStats はキャッシュの監視用統計を表します
type CacheStats struct {
	TotalEntries int64  `json:"total_entries"`
	ValidEntries int64  `json:"valid_entries"`
	StaleEntries int64  `json:"stale_entries"`
	ConfigHash   string `json:"config_hash"`
}
