package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, collection, search, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired       = "AUTH_REQUIRED"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeCollectionNotFound = "COLLECTION_NOT_FOUND"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeTermRequired       = "TERM_REQUIRED"
	ErrCodeUpstreamFailed     = "UPSTREAM_FAILED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewAuthRequiredError は未認証エラーを生成する。
// セッションが無い・無効なリクエストが保護された操作に触れた場合に返す。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewAccessDeniedError はアクセス拒否エラーを生成する。
// 認証済みだが所有者でないユーザーの操作に対して返す。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "このコレクションへのアクセス権がありません。",
		Category: "auth",
		Action:   "所有者のみが実行できる操作です。",
	}
}

// NewCollectionNotFoundError はコレクション未検出エラーを生成する。
// 存在チェックは所有者チェックより先に行うため、削除済みコレクションへの
// リクエストは呼び出し元を問わず常にこのエラーになる。
func NewCollectionNotFoundError(collectionID string) *APIError {
	return &APIError{
		Code:     ErrCodeCollectionNotFound,
		Message:  fmt.Sprintf("指定されたコレクションが見つかりません: %s", collectionID),
		Category: "collection",
		Action:   "コレクションIDを確認してください。",
	}
}

// NewValidationError は入力バリデーションエラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewTermRequiredError は検索語未指定エラーを生成する。
func NewTermRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTermRequired,
		Message:  "検索語が指定されていません。",
		Category: "validation",
		Action:   "検索語を入力してください。",
	}
}

// NewUpstreamError は外部画像プロバイダーの呼び出し失敗エラーを生成する。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func NewUpstreamError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  "画像の検索に失敗しました。",
		Category: "search",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
