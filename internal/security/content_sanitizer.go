package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はユーザー入力テキストの無害化機能のインターフェース。
// コレクションのタイトル・説明・画像altテキストなど、
// プレーンテキストとして扱うフィールドの保存前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去し、前後の空白を取り除く。
	// プレーンテキストフィールドにマークアップが紛れ込むことを防ぐ。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（タグを一切許可しない）を使用する。
// scriptタグ、イベント属性を含むすべてのマークアップが除去される。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からすべてのHTMLタグを除去する。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
