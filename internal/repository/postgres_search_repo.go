package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/picshelf/internal/model"
)

// PostgresSearchRepo はPostgreSQLを使用した検索アクティビティリポジトリ。
type PostgresSearchRepo struct {
	db *sql.DB
}

// NewPostgresSearchRepo はPostgresSearchRepoを生成する。
func NewPostgresSearchRepo(db *sql.DB) *PostgresSearchRepo {
	return &PostgresSearchRepo{db: db}
}

// Create は検索レコードを追記する。
func (r *PostgresSearchRepo) Create(ctx context.Context, record *model.SearchRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO searches (id, user_id, term, created_at)
		 VALUES ($1, $2, $3, $4)`,
		record.ID, record.UserID, record.Term, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create search record: %w", err)
	}
	return nil
}

// TopTerms は全ユーザーの検索語を集計し、回数降順で上位k件を返す。
// 同数の検索語はterm昇順で並べる。結果を決定的にするための規約であり、
// 呼び出しごとの全件集計で求める（増分カウンタやキャッシュは持たない）。
func (r *PostgresSearchRepo) TopTerms(ctx context.Context, k int) ([]model.TermCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT term, count(*) AS cnt
		 FROM searches
		 GROUP BY term
		 ORDER BY cnt DESC, term ASC
		 LIMIT $1`,
		k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top terms: %w", err)
	}
	defer rows.Close()

	results := []model.TermCount{}
	for rows.Next() {
		tc := model.TermCount{}
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan term count: %w", err)
		}
		results = append(results, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate term counts: %w", err)
	}

	return results, nil
}

// ListByUser は指定ユーザーの検索履歴を新しい順に最大limit件返す。
func (r *PostgresSearchRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.SearchRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, term, created_at
		 FROM searches
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list search history: %w", err)
	}
	defer rows.Close()

	records := []model.SearchRecord{}
	for rows.Next() {
		rec := model.SearchRecord{}
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Term, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search records: %w", err)
	}

	return records, nil
}

// compile-time interface check
var _ SearchRepository = (*PostgresSearchRepo)(nil)
