package model

import "time"

// SearchRecord はユーザーの検索アクティビティ1件を表す。
// 追記専用で、ユーザーによる更新・削除は行われない。
// Termは書き込み時点で小文字化・前後空白除去済みの正規化形。
type SearchRecord struct {
	ID        string
	UserID    string
	Term      string
	CreatedAt time.Time
}

// TermCount は検索語と出現回数の組。トレンド集計の結果1行を表す。
type TermCount struct {
	Term  string
	Count int
}
