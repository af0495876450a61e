// Package model はドメインモデルを定義する。
package model

import "time"

// User は登録済みの生産者アカウントを表す。
// PasswordHashはbcryptハッシュのみを保持し、平文パスワードは保存しない。
type User struct {
	Username     string // 一意キー（小文字に正規化済み）
	FarmName     string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	Username  string
	ExpiresAt time.Time
	CreatedAt time.Time
}
