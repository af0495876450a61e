package repository

import "errors"

// ErrDuplicateUsername は既に存在するユーザー名での登録を表す。
// サービス層がmodel.APIErrorに変換する。
var ErrDuplicateUsername = errors.New("username already exists")
