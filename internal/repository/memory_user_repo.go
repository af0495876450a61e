package repository

import (
	"context"
	"sync"

	"github.com/agropulse/agropulse/internal/model"
)

// MemoryUserRepo はインメモリのユーザーリポジトリ。
// プロセス寿命のみのデモ向けストアだが、アクセスはミューテックスで直列化する。
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users: make(map[string]*model.User),
	}
}

// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[username]
	if !ok {
		return nil, nil
	}

	// 呼び出し側の変更から保護するためコピーを返す
	copied := *user
	return &copied, nil
}

// Create はユーザーを作成する。ユーザー名が重複している場合はErrDuplicateUsernameを返す。
// 存在確認と挿入を同一クリティカルセクションで行い、二重登録を防ぐ。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return ErrDuplicateUsername
	}

	copied := *user
	r.users[user.Username] = &copied
	return nil
}

// compile-time interface check
var _ UserRepository = (*MemoryUserRepo)(nil)
