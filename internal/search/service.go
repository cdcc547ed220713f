// Package search は画像検索の実行、検索アクティビティの記録と集計を提供する。
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/picshelf/internal/metrics"
	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/repository"
)

const (
	// defaultTopK は人気検索語の取得件数。
	defaultTopK = 5
	// historyLimit は検索履歴の最大取得件数。
	historyLimit = 20
	// recordTimeout は非同期記録の打ち切り時間。
	recordTimeout = 5 * time.Second
)

// ImageSearcher は外部画像プロバイダーの検索インターフェース。
type ImageSearcher interface {
	// SearchPhotos は検索語で画像を検索し、プロバイダーのレスポンスJSONをそのまま返す。
	SearchPhotos(ctx context.Context, term string) (json.RawMessage, error)
}

// Service は画像検索に関するビジネスロジックを提供する。
type Service struct {
	searcher   ImageSearcher
	searchRepo repository.SearchRepository
	collector  metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(searcher ImageSearcher, searchRepo repository.SearchRepository, collector metrics.MetricsCollector) *Service {
	return &Service{
		searcher:   searcher,
		searchRepo: searchRepo,
		collector:  collector,
	}
}

// Search は検索語で画像を検索し、プロバイダーのレスポンスJSONをそのまま返す。
// 検索レコードの記録は検索の成否に影響させないため非同期で行う。
// プロバイダーの失敗は詳細をログに残し、クライアントには一般的なエラーを返す。
func (s *Service) Search(ctx context.Context, userID, term string) (json.RawMessage, error) {
	normalized := normalizeTerm(term)
	if normalized == "" {
		return nil, model.NewTermRequiredError()
	}

	// 記録の失敗で検索を止めない
	go s.recordSearch(userID, normalized)

	start := time.Now()
	result, err := s.searcher.SearchPhotos(ctx, normalized)
	s.collector.RecordUpstreamLatency(time.Since(start))

	if err != nil {
		s.collector.RecordSearchFailure()
		slog.Error("image search failed",
			slog.String("term", normalized),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError()
	}

	s.collector.RecordSearchSuccess()
	return result, nil
}

// recordSearch は検索レコードを追記する。失敗はログに残すだけで伝播しない。
func (s *Service) recordSearch(userID, term string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	record := &model.SearchRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		Term:      term,
		CreatedAt: time.Now(),
	}
	if err := s.searchRepo.Create(ctx, record); err != nil {
		slog.Error("failed to record search activity",
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
	}
}

// TopTerms は全ユーザーの検索語を集計し、回数降順で上位5件を返す。
// 検索語は記録時に正規化済みのため、大文字小文字の違いは同一語として集計される。
func (s *Service) TopTerms(ctx context.Context) ([]model.TermCount, error) {
	terms, err := s.searchRepo.TopTerms(ctx, defaultTopK)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top terms: %w", err)
	}
	return terms, nil
}

// History は呼び出しユーザー自身の検索履歴を新しい順に最大20件返す。
func (s *Service) History(ctx context.Context, userID string) ([]model.SearchRecord, error) {
	records, err := s.searchRepo.ListByUser(ctx, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list search history: %w", err)
	}
	return records, nil
}

// normalizeTerm は検索語を正規化する。前後の空白を除去し小文字に揃える。
func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
