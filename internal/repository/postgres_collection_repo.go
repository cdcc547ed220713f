package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/picshelf/internal/model"
)

// PostgresCollectionRepo はPostgreSQLを使用したコレクションリポジトリ。
type PostgresCollectionRepo struct {
	db *sql.DB
}

// NewPostgresCollectionRepo はPostgresCollectionRepoを生成する。
func NewPostgresCollectionRepo(db *sql.DB) *PostgresCollectionRepo {
	return &PostgresCollectionRepo{db: db}
}

// FindByID は指定IDのコレクションを画像リスト・いいね集合付きで取得する。
// 見つからない場合はnilを返す。
func (r *PostgresCollectionRepo) FindByID(ctx context.Context, id string) (*model.Collection, error) {
	c := &model.Collection{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, description, is_public, created_at, updated_at
		 FROM collections WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.OwnerID, &c.Title, &c.Description, &c.IsPublic, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}

	if err := r.attachImagesAndLikes(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// FindByIDWithOwner は指定IDのコレクションを所有者の表示情報付きで取得する。
// 見つからない場合はnilを返す。
func (r *PostgresCollectionRepo) FindByIDWithOwner(ctx context.Context, id string) (*model.CollectionWithOwner, error) {
	cw := &model.CollectionWithOwner{}
	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.owner_id, c.title, c.description, c.is_public, c.created_at, c.updated_at,
		        u.display_name, u.profile_photo
		 FROM collections c
		 JOIN users u ON u.id = c.owner_id
		 WHERE c.id = $1`,
		id,
	).Scan(
		&cw.ID, &cw.OwnerID, &cw.Title, &cw.Description, &cw.IsPublic, &cw.CreatedAt, &cw.UpdatedAt,
		&cw.OwnerDisplayName, &cw.OwnerProfilePhoto,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find collection with owner: %w", err)
	}

	if err := r.attachImagesAndLikes(ctx, &cw.Collection); err != nil {
		return nil, err
	}

	return cw, nil
}

// Create はコレクションと画像リストを同一トランザクションで作成する。
func (r *PostgresCollectionRepo) Create(ctx context.Context, c *model.Collection) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO collections (id, owner_id, title, description, is_public, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.OwnerID, c.Title, c.Description, c.IsPublic, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}

	if err := insertImages(ctx, tx, c.ID, c.Images); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update はコレクションの属性を更新する。
// replaceImagesがtrueの場合は画像リストを削除してから全件を挿入し直す。
// 個別の画像パッチは提供しない。
func (r *PostgresCollectionRepo) Update(ctx context.Context, c *model.Collection, replaceImages bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE collections
		 SET title = $2, description = $3, is_public = $4, updated_at = $5
		 WHERE id = $1`,
		c.ID, c.Title, c.Description, c.IsPublic, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}

	if replaceImages {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM collection_images WHERE collection_id = $1`,
			c.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete collection images: %w", err)
		}

		if err := insertImages(ctx, tx, c.ID, c.Images); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteByID は指定IDのコレクションを削除する。
// 画像・いいねはCASCADE削除される。
func (r *PostgresCollectionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM collections WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// ListByOwner は所有者のコレクション一覧を作成日時降順で返す。
func (r *PostgresCollectionRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Collection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, title, description, is_public, created_at, updated_at
		 FROM collections
		 WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := []model.Collection{}
	for rows.Next() {
		c := model.Collection{}
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Description, &c.IsPublic, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collections: %w", err)
	}

	for i := range collections {
		if err := r.attachImagesAndLikes(ctx, &collections[i]); err != nil {
			return nil, err
		}
	}

	return collections, nil
}

// ListPublicWithOwner は公開コレクション一覧を所有者情報付きで返す。
// いいね数降順、同数の場合は作成日時降順で並べる。
func (r *PostgresCollectionRepo) ListPublicWithOwner(ctx context.Context) ([]model.CollectionWithOwner, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.owner_id, c.title, c.description, c.is_public, c.created_at, c.updated_at,
		        u.display_name, u.profile_photo
		 FROM collections c
		 JOIN users u ON u.id = c.owner_id
		 LEFT JOIN (
		     SELECT collection_id, count(*) AS like_count
		     FROM collection_likes
		     GROUP BY collection_id
		 ) l ON l.collection_id = c.id
		 WHERE c.is_public = TRUE
		 ORDER BY COALESCE(l.like_count, 0) DESC, c.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list public collections: %w", err)
	}
	defer rows.Close()

	results := []model.CollectionWithOwner{}
	for rows.Next() {
		cw := model.CollectionWithOwner{}
		if err := rows.Scan(
			&cw.ID, &cw.OwnerID, &cw.Title, &cw.Description, &cw.IsPublic, &cw.CreatedAt, &cw.UpdatedAt,
			&cw.OwnerDisplayName, &cw.OwnerProfilePhoto,
		); err != nil {
			return nil, fmt.Errorf("failed to scan public collection: %w", err)
		}
		results = append(results, cw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate public collections: %w", err)
	}

	for i := range results {
		if err := r.attachImagesAndLikes(ctx, &results[i].Collection); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// ToggleLike はユーザーのいいねを単一の条件付き更新で反転する。
// DELETEが1行消せば「いいね解除」、消せなければINSERTで「いいね」になる。
// 同一ユーザーの同時トグルはPRIMARY KEY(collection_id, user_id)と
// ON CONFLICT DO NOTHINGにより高々1行に収束し、
// 異なるユーザーの同時トグルは互いの行に触れないため更新が失われない。
func (r *PostgresCollectionRepo) ToggleLike(ctx context.Context, collectionID, userID string) ([]string, error) {
	_, err := r.db.ExecContext(ctx,
		`WITH removed AS (
		     DELETE FROM collection_likes
		     WHERE collection_id = $1 AND user_id = $2
		     RETURNING user_id
		 )
		 INSERT INTO collection_likes (collection_id, user_id)
		 SELECT $1, $2
		 WHERE NOT EXISTS (SELECT 1 FROM removed)
		 ON CONFLICT (collection_id, user_id) DO NOTHING`,
		collectionID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle like: %w", err)
	}

	return r.loadLikes(ctx, collectionID)
}

// attachImagesAndLikes はコレクションに画像リストといいね集合を読み込んで設定する。
func (r *PostgresCollectionRepo) attachImagesAndLikes(ctx context.Context, c *model.Collection) error {
	images, err := r.loadImages(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Images = images

	likes, err := r.loadLikes(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Likes = likes

	return nil
}

// loadImages はコレクションの画像リストをposition順で取得する。
func (r *PostgresCollectionRepo) loadImages(ctx context.Context, collectionID string) ([]model.Image, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT image_id, url, alt
		 FROM collection_images
		 WHERE collection_id = $1
		 ORDER BY position`,
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection images: %w", err)
	}
	defer rows.Close()

	images := []model.Image{}
	for rows.Next() {
		img := model.Image{}
		if err := rows.Scan(&img.ID, &img.URL, &img.Alt); err != nil {
			return nil, fmt.Errorf("failed to scan collection image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection images: %w", err)
	}

	return images, nil
}

// loadLikes はコレクションのいいね集合を取得する。
// 並び順はいいねした日時の昇順で安定させる。
func (r *PostgresCollectionRepo) loadLikes(ctx context.Context, collectionID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id
		 FROM collection_likes
		 WHERE collection_id = $1
		 ORDER BY created_at, user_id`,
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection likes: %w", err)
	}
	defer rows.Close()

	likes := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan collection like: %w", err)
		}
		likes = append(likes, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection likes: %w", err)
	}

	return likes, nil
}

// insertImages は画像リストをposition順で挿入する。
func insertImages(ctx context.Context, tx *sql.Tx, collectionID string, images []model.Image) error {
	for i, img := range images {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO collection_images (collection_id, position, image_id, url, alt)
			 VALUES ($1, $2, $3, $4, $5)`,
			collectionID, i, img.ID, img.URL, img.Alt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert collection image: %w", err)
		}
	}
	return nil
}

// compile-time interface check
var _ CollectionRepository = (*PostgresCollectionRepo)(nil)
