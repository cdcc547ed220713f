package model

import "time"

// Image はコレクション内の画像1件を表す。
// 外部プロバイダーの画像IDと表示用URLを保持する。
// 保存後は不変で、更新時はリスト全体を入れ替える（個別パッチは行わない）。
type Image struct {
	ID  string
	URL string
	Alt string
}

// Collection はユーザーが所有する画像コレクションを表す。
// OwnerIDは作成後に変更されない。
// Likesは「いいね」したユーザーIDの集合で、重複を含まない。
// 所有者が自分のコレクションに「いいね」することも許可される。
type Collection struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Images      []Image
	IsPublic    bool
	Likes       []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CollectionWithOwner はコレクションと所有者の表示情報を結合した構造体。
// 単一取得とdiscover一覧で所有者情報を付与して返すために使用する。
type CollectionWithOwner struct {
	Collection
	OwnerDisplayName  string
	OwnerProfilePhoto string
}
