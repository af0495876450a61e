package repository

import (
	"context"
	"sync"

	"github.com/agropulse/agropulse/internal/model"
)

// MemoryHistoryRepo はインメモリの助言履歴リポジトリ。
// ユーザー名をキーに新しい順のスライスを保持する。
// Prependはミューテックスで直列化されるため、同一ユーザーの並行リクエストは
// 後勝ちの順序になるがリストが壊れることはない。
type MemoryHistoryRepo struct {
	mu        sync.RWMutex
	histories map[string][]*model.HistoryEntry
}

// NewMemoryHistoryRepo はMemoryHistoryRepoを生成する。
func NewMemoryHistoryRepo() *MemoryHistoryRepo {
	return &MemoryHistoryRepo{
		histories: make(map[string][]*model.HistoryEntry),
	}
}

// Prepend はエントリを履歴の先頭に追加し、model.HistoryLimitを超えた古いエントリを破棄する。
func (r *MemoryHistoryRepo) Prepend(ctx context.Context, username string, entry *model.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *entry
	list := append([]*model.HistoryEntry{&copied}, r.histories[username]...)
	if len(list) > model.HistoryLimit {
		list = list[:model.HistoryLimit]
	}
	r.histories[username] = list
	return nil
}

// ListByUsername は指定ユーザーの履歴を新しい順で返す（最大model.HistoryLimit件）。
// 履歴が存在しないユーザーには空スライスを返す。
func (r *MemoryHistoryRepo) ListByUsername(ctx context.Context, username string) ([]*model.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.histories[username]
	result := make([]*model.HistoryEntry, 0, len(list))
	for _, entry := range list {
		copied := *entry
		result = append(result, &copied)
	}
	return result, nil
}

// compile-time interface check
var _ HistoryRepository = (*MemoryHistoryRepo)(nil)
