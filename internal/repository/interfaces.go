// Package repository はデータ永続化のインターフェースを定義する。
//
// デフォルトはプロセス寿命のインメモリ実装（再起動で全データ消滅）。
// DATABASE_URLが設定されている場合はPostgreSQL実装に差し替えられる。
// ルートロジックはインターフェースのみに依存する。
package repository

import (
	"context"

	"github.com/agropulse/agropulse/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複している場合はErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れまたは不存在の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// HistoryRepository はユーザーごとの助言履歴の永続化インターフェース。
// リスト不変条件: 長さ ≤ model.HistoryLimit、新しい順。
type HistoryRepository interface {
	// Prepend はエントリを履歴の先頭に追加し、上限を超えた古いエントリを破棄する。
	Prepend(ctx context.Context, username string, entry *model.HistoryEntry) error
	// ListByUsername は指定ユーザーの履歴を新しい順で返す（最大model.HistoryLimit件）。
	ListByUsername(ctx context.Context, username string) ([]*model.HistoryEntry, error)
}
