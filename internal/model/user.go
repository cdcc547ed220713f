// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 複数の外部IdPからのログインが収束する正規アカウント。
type User struct {
	ID           string
	DisplayName  string
	Email        string
	ProfilePhoto string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// (Provider, ProviderUserID) の組は全ユーザーを通じて一意で、
// 1つのidentityは生涯ただ1人のUserに属する。
// 同一メールアドレスでも別プロバイダーのアカウントを自動マージしない（意図的な制限）。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// 有効期限は絶対時刻で、リクエストごとの延長（スライディング有効期限）は行わない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
