package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pruneThreshold を超えたら期限切れエントリを掃除する
const pruneThreshold = 1024

// MemoryStore はプロセス内の CounterStore 実装です
// 単一インスタンスのデプロイ向け。複数インスタンスでは共有ストア
// （repository.RateCounterRepository）を使う必要があります
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryStore は新しい MemoryStore を作成します
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// Incr はカウンタをインクリメントし、更新後の値を返します
func (s *MemoryStore) Incr(_ context.Context, key string, expiry time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &memoryCounter{expiresAt: now.Add(expiry)}
		s.counters[key] = c
	}
	c.count++

	if len(s.counters) > pruneThreshold {
		s.prune(now)
	}

	return c.count, nil
}

// prune は期限切れカウンタを削除します（mu 保持中に呼ぶこと）
func (s *MemoryStore) prune(now time.Time) {
	for key, c := range s.counters {
		if now.After(c.expiresAt) {
			delete(s.counters, key)
		}
	}
}
