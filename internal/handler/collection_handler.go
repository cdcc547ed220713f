package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/picshelf/internal/collection"
	"github.com/hitoshi/picshelf/internal/metrics"
	"github.com/hitoshi/picshelf/internal/middleware"
	"github.com/hitoshi/picshelf/internal/model"
)

// CollectionServiceInterface はコレクションハンドラーが必要とするサービスインターフェース。
type CollectionServiceInterface interface {
	Create(ctx context.Context, ownerID string, input collection.CreateInput) (*model.Collection, error)
	ListOwn(ctx context.Context, userID string) ([]model.Collection, error)
	Get(ctx context.Context, id, viewerID string) (*model.CollectionWithOwner, error)
	Update(ctx context.Context, id, userID string, input collection.UpdateInput) (*model.Collection, error)
	Delete(ctx context.Context, id, userID string) error
	ToggleLike(ctx context.Context, id, userID string) ([]string, error)
	Discover(ctx context.Context) ([]model.CollectionWithOwner, error)
}

// CollectionHandler はコレクション関連のHTTPハンドラー。
type CollectionHandler struct {
	service   CollectionServiceInterface
	collector metrics.MetricsCollector
}

// NewCollectionHandler はCollectionHandlerを生成する。
func NewCollectionHandler(service CollectionServiceInterface, collector metrics.MetricsCollector) *CollectionHandler {
	return &CollectionHandler{
		service:   service,
		collector: collector,
	}
}

type imageRequest struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type createCollectionRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Images      []imageRequest `json:"images"`
	IsPublic    bool           `json:"isPublic"`
}

type updateCollectionRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	IsPublic    *bool          `json:"isPublic"`
	Images      []imageRequest `json:"images"`
}

type imageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type collectionResponse struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"ownerId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Images      []imageResponse `json:"images"`
	IsPublic    bool            `json:"isPublic"`
	Likes       []string        `json:"likes"`
	LikeCount   int             `json:"likeCount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type collectionWithOwnerResponse struct {
	collectionResponse
	OwnerDisplayName  string `json:"ownerDisplayName"`
	OwnerProfilePhoto string `json:"ownerProfilePhoto"`
}

type likeResponse struct {
	Likes     []string `json:"likes"`
	LikeCount int      `json:"likeCount"`
}

func toCollectionResponse(c *model.Collection) collectionResponse {
	images := make([]imageResponse, 0, len(c.Images))
	for _, img := range c.Images {
		images = append(images, imageResponse{ID: img.ID, URL: img.URL, Alt: img.Alt})
	}
	likes := c.Likes
	if likes == nil {
		likes = []string{}
	}
	return collectionResponse{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Title:       c.Title,
		Description: c.Description,
		Images:      images,
		IsPublic:    c.IsPublic,
		Likes:       likes,
		LikeCount:   len(likes),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toCollectionWithOwnerResponse(c *model.CollectionWithOwner) collectionWithOwnerResponse {
	return collectionWithOwnerResponse{
		collectionResponse: toCollectionResponse(&c.Collection),
		OwnerDisplayName:   c.OwnerDisplayName,
		OwnerProfilePhoto:  c.OwnerProfilePhoto,
	}
}

func toImages(reqs []imageRequest) []model.Image {
	if reqs == nil {
		return nil
	}
	images := make([]model.Image, 0, len(reqs))
	for _, r := range reqs {
		images = append(images, model.Image{ID: r.ID, URL: r.URL, Alt: r.Alt})
	}
	return images
}

// Create は新しいコレクションを作成する。
// POST /api/collections
func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}

	c, err := h.service.Create(r.Context(), userID, collection.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Images:      toImages(req.Images),
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordCollectionCreated()
	}
	writeJSON(w, http.StatusCreated, toCollectionResponse(c))
}

// List は呼び出しユーザー自身のコレクション一覧を返す。
// GET /api/collections
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	collections, err := h.service.ListOwn(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]collectionResponse, 0, len(collections))
	for i := range collections {
		res = append(res, toCollectionResponse(&collections[i]))
	}
	writeJSON(w, http.StatusOK, res)
}

// Get は指定IDのコレクションを返す。
// GET /api/collections/{id}
// 未認証でも公開コレクションは閲覧できる。
func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// 任意セッション: 未認証の場合は空文字列で閲覧可否を判定する
	viewerID, _ := middleware.UserIDFromContext(r.Context())

	c, err := h.service.Get(r.Context(), id, viewerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectionWithOwnerResponse(c))
}

// Update はコレクションの属性を更新する。
// PUT /api/collections/{id}
func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}
	id := chi.URLParam(r, "id")

	var req updateCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}

	c, err := h.service.Update(r.Context(), id, userID, collection.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Images:      toImages(req.Images),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectionResponse(c))
}

// Delete はコレクションを削除する。
// DELETE /api/collections/{id}
func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "コレクションを削除しました。"})
}

// ToggleLike はコレクションへの「いいね」を反転する。
// POST /api/collections/{id}/like
func (h *CollectionHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}
	id := chi.URLParam(r, "id")

	likes, err := h.service.ToggleLike(r.Context(), id, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordLikeToggled()
	}
	if likes == nil {
		likes = []string{}
	}
	writeJSON(w, http.StatusOK, likeResponse{Likes: likes, LikeCount: len(likes)})
}

// Discover は公開コレクション一覧を返す。認証は不要。
// GET /api/discover
func (h *CollectionHandler) Discover(w http.ResponseWriter, r *http.Request) {
	collections, err := h.service.Discover(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res := make([]collectionWithOwnerResponse, 0, len(collections))
	for i := range collections {
		res = append(res, toCollectionWithOwnerResponse(&collections[i]))
	}
	writeJSON(w, http.StatusOK, res)
}
