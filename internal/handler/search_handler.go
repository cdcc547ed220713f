package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/picshelf/internal/middleware"
	"github.com/hitoshi/picshelf/internal/model"
)

// SearchServiceInterface は検索ハンドラーが必要とするサービスインターフェース。
type SearchServiceInterface interface {
	Search(ctx context.Context, userID, term string) (json.RawMessage, error)
	TopTerms(ctx context.Context) ([]model.TermCount, error)
	History(ctx context.Context, userID string) ([]model.SearchRecord, error)
}

// SearchHandler は画像検索関連のHTTPハンドラー。
type SearchHandler struct {
	service SearchServiceInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(service SearchServiceInterface) *SearchHandler {
	return &SearchHandler{service: service}
}

type searchRequest struct {
	Term string `json:"term"`
}

type termCountResponse struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

type searchRecordResponse struct {
	ID        string    `json:"id"`
	Term      string    `json:"term"`
	CreatedAt time.Time `json:"createdAt"`
}

// Search は検索語で画像を検索し、プロバイダーのレスポンスJSONをそのまま返す。
// POST /api/search  body: {"term": "xxx"}
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}

	result, err := h.service.Search(r.Context(), userID, req.Term)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(result)
}

// TopTerms は全ユーザーの人気検索語上位を返す。
// GET /api/search/top
func (h *SearchHandler) TopTerms(w http.ResponseWriter, r *http.Request) {
	terms, err := h.service.TopTerms(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]termCountResponse, 0, len(terms))
	for _, tc := range terms {
		res = append(res, termCountResponse{Term: tc.Term, Count: tc.Count})
	}
	writeJSON(w, http.StatusOK, res)
}

// History は呼び出しユーザー自身の検索履歴を新しい順に返す。
// GET /api/history
func (h *SearchHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	records, err := h.service.History(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]searchRecordResponse, 0, len(records))
	for _, rec := range records {
		res = append(res, searchRecordResponse{ID: rec.ID, Term: rec.Term, CreatedAt: rec.CreatedAt})
	}
	writeJSON(w, http.StatusOK, res)
}
