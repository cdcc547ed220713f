// Package collection はコレクションの作成・閲覧・更新・いいねのビジネスロジックを提供する。
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/repository"
	"github.com/hitoshi/picshelf/internal/security"
)

// CreateInput はコレクション作成の入力。
type CreateInput struct {
	Title       string
	Description string
	Images      []model.Image
	IsPublic    bool
}

// UpdateInput はコレクション更新の入力。
// nilのフィールドは「指定なし」を意味し、現在の値を維持する。
// Imagesは指定された場合のみリスト全体を入れ替える。
type UpdateInput struct {
	Title       *string
	Description *string
	IsPublic    *bool
	Images      []model.Image
}

// Service はコレクションに関するビジネスロジックを提供する。
type Service struct {
	collectionRepo repository.CollectionRepository
	sanitizer      security.TextSanitizerService
	egressGuard    security.EgressGuardService
}

// NewService はServiceを生成する。
func NewService(
	collectionRepo repository.CollectionRepository,
	sanitizer security.TextSanitizerService,
	egressGuard security.EgressGuardService,
) *Service {
	return &Service{
		collectionRepo: collectionRepo,
		sanitizer:      sanitizer,
		egressGuard:    egressGuard,
	}
}

// Create は新しいコレクションを作成する。
// タイトルと1件以上の画像は必須。タイトル・説明・altテキストはサニタイズされる。
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*model.Collection, error) {
	title := s.sanitizer.Sanitize(input.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}
	if len(input.Images) == 0 {
		return nil, model.NewValidationError("画像を1件以上指定してください")
	}

	images, err := s.sanitizeImages(input.Images)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c := &model.Collection{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       title,
		Description: s.sanitizer.Sanitize(input.Description),
		Images:      images,
		IsPublic:    input.IsPublic,
		Likes:       []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.collectionRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	slog.Info("collection created",
		slog.String("collection_id", c.ID),
		slog.String("owner_id", ownerID),
		slog.Int("image_count", len(c.Images)),
	)
	return c, nil
}

// ListOwn は呼び出しユーザー自身のコレクション一覧を作成日時降順で返す。
// 公開・非公開を問わず全件含む。
func (s *Service) ListOwn(ctx context.Context, userID string) ([]model.Collection, error) {
	collections, err := s.collectionRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return collections, nil
}

// Get は指定IDのコレクションを所有者情報付きで取得する。
// 閲覧可否は次の順で判定する:
//  1. 存在しない -> COLLECTION_NOT_FOUND（呼び出し元を問わず同じ応答）
//  2. 公開 -> 誰でも閲覧可
//  3. 非公開かつ未認証 -> AUTH_REQUIRED
//  4. 非公開かつ所有者 -> 閲覧可
//  5. それ以外 -> ACCESS_DENIED
//
// viewerIDは未認証の場合は空文字列を渡す。
func (s *Service) Get(ctx context.Context, id, viewerID string) (*model.CollectionWithOwner, error) {
	c, err := s.collectionRepo.FindByIDWithOwner(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}
	if c == nil {
		return nil, model.NewCollectionNotFoundError(id)
	}

	if c.IsPublic {
		return c, nil
	}
	if viewerID == "" {
		return nil, model.NewAuthRequiredError()
	}
	if c.OwnerID != viewerID {
		return nil, model.NewAccessDeniedError()
	}
	return c, nil
}

// Update はコレクションの属性を更新する。所有者のみ実行できる。
// タイトル・説明は指定が無ければ現在の値を維持する。
// 空文字列へのタイトル変更は拒否する。
func (s *Service) Update(ctx context.Context, id, userID string, input UpdateInput) (*model.Collection, error) {
	c, err := s.findOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := s.sanitizer.Sanitize(*input.Title)
		if title == "" {
			return nil, model.NewValidationError("タイトルは必須です")
		}
		c.Title = title
	}
	if input.Description != nil {
		c.Description = s.sanitizer.Sanitize(*input.Description)
	}
	if input.IsPublic != nil {
		c.IsPublic = *input.IsPublic
	}

	replaceImages := false
	if input.Images != nil {
		if len(input.Images) == 0 {
			return nil, model.NewValidationError("画像を1件以上指定してください")
		}
		images, err := s.sanitizeImages(input.Images)
		if err != nil {
			return nil, err
		}
		c.Images = images
		replaceImages = true
	}

	c.UpdatedAt = time.Now()

	if err := s.collectionRepo.Update(ctx, c, replaceImages); err != nil {
		return nil, fmt.Errorf("failed to update collection: %w", err)
	}

	slog.Info("collection updated",
		slog.String("collection_id", c.ID),
		slog.Bool("images_replaced", replaceImages),
	)
	return c, nil
}

// Delete はコレクションを削除する。所有者のみ実行できる。
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.findOwned(ctx, id, userID); err != nil {
		return err
	}

	if err := s.collectionRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	slog.Info("collection deleted",
		slog.String("collection_id", id),
		slog.String("owner_id", userID),
	)
	return nil
}

// ToggleLike はコレクションへの「いいね」を反転し、更新後のいいね集合を返す。
// 認証済みユーザーなら公開範囲を問わず実行できる。
// 同一ユーザーの連打は集合の追加・削除が交互に起こるだけで重複は発生しない。
func (s *Service) ToggleLike(ctx context.Context, id, userID string) ([]string, error) {
	c, err := s.collectionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}
	if c == nil {
		return nil, model.NewCollectionNotFoundError(id)
	}

	likes, err := s.collectionRepo.ToggleLike(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle like: %w", err)
	}

	return likes, nil
}

// Discover は公開コレクション一覧を所有者情報付きで返す。
// いいね数降順、同数の場合は作成日時降順で並ぶ。認証は不要。
func (s *Service) Discover(ctx context.Context) ([]model.CollectionWithOwner, error) {
	collections, err := s.collectionRepo.ListPublicWithOwner(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list public collections: %w", err)
	}
	return collections, nil
}

// findOwned はコレクションを取得し、所有者であることを確認する。
// 存在チェックを所有者チェックより先に行う。
func (s *Service) findOwned(ctx context.Context, id, userID string) (*model.Collection, error) {
	c, err := s.collectionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}
	if c == nil {
		return nil, model.NewCollectionNotFoundError(id)
	}
	if c.OwnerID != userID {
		return nil, model.NewAccessDeniedError()
	}
	return c, nil
}

// sanitizeImages は画像リストの各要素を検証・サニタイズする。
// URLはスキームとホストの安全性検証を通過する必要がある。
func (s *Service) sanitizeImages(images []model.Image) ([]model.Image, error) {
	result := make([]model.Image, 0, len(images))
	for i, img := range images {
		if img.URL == "" {
			return nil, model.NewValidationError(fmt.Sprintf("%d番目の画像URLが空です", i+1))
		}
		if err := s.egressGuard.ValidateURL(img.URL); err != nil {
			return nil, model.NewValidationError(fmt.Sprintf("%d番目の画像URLが不正です", i+1))
		}
		result = append(result, model.Image{
			ID:  img.ID,
			URL: img.URL,
			Alt: s.sanitizer.Sanitize(img.Alt),
		})
	}
	return result, nil
}
