// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/picshelf/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// identities(provider, provider_user_id)の一意制約に違反した場合は
	// ErrIdentityConflictを返す。呼び出し元は既存identityを再取得して回復する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しないIDでもエラーにしない（冪等）。
	DeleteByID(ctx context.Context, id string) error
}

// CollectionRepository はコレクションデータの永続化インターフェース。
type CollectionRepository interface {
	// FindByID は指定IDのコレクションを画像リスト・いいね集合付きで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Collection, error)

	// FindByIDWithOwner は指定IDのコレクションを所有者の表示情報付きで取得する。
	// 見つからない場合はnilを返す。
	FindByIDWithOwner(ctx context.Context, id string) (*model.CollectionWithOwner, error)

	// Create はコレクションと画像リストを同一トランザクションで作成する。
	Create(ctx context.Context, c *model.Collection) error

	// Update はコレクションの属性を更新する。
	// replaceImagesがtrueの場合は画像リストを全件入れ替える。
	Update(ctx context.Context, c *model.Collection, replaceImages bool) error

	// DeleteByID は指定IDのコレクションを削除する。
	DeleteByID(ctx context.Context, id string) error

	// ListByOwner は所有者のコレクション一覧を作成日時降順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]model.Collection, error)

	// ListPublicWithOwner は公開コレクション一覧を所有者情報付きで返す。
	// いいね数降順、次に作成日時降順で並べる。
	ListPublicWithOwner(ctx context.Context) ([]model.CollectionWithOwner, error)

	// ToggleLike はユーザーのいいねを単一の条件付き更新で反転する。
	// 集合に含まれていれば削除、含まれていなければ追加し、更新後のいいね集合を返す。
	// fetch-then-saveの往復を行わないため、同時リクエスト間で更新が失われない。
	ToggleLike(ctx context.Context, collectionID, userID string) ([]string, error)
}

// SearchRepository は検索アクティビティの永続化インターフェース。
type SearchRepository interface {
	// Create は検索レコードを追記する。
	Create(ctx context.Context, record *model.SearchRecord) error

	// TopTerms は全ユーザーの検索語を正規化形で集計し、
	// 回数降順・同数の場合は検索語昇順で上位k件を返す。
	TopTerms(ctx context.Context, k int) ([]model.TermCount, error)

	// ListByUser は指定ユーザーの検索履歴を新しい順に最大limit件返す。
	// 他ユーザーのレコードは決して含まれない。
	ListByUser(ctx context.Context, userID string, limit int) ([]model.SearchRecord, error)
}
