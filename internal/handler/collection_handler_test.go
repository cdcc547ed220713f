package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/picshelf/internal/collection"
	"github.com/hitoshi/picshelf/internal/metrics"
	"github.com/hitoshi/picshelf/internal/middleware"
	"github.com/hitoshi/picshelf/internal/model"
)

// mockCollectionService はCollectionServiceInterfaceのモック実装。
type mockCollectionService struct {
	createFunc     func(ctx context.Context, ownerID string, input collection.CreateInput) (*model.Collection, error)
	listOwnFunc    func(ctx context.Context, userID string) ([]model.Collection, error)
	getFunc        func(ctx context.Context, id, viewerID string) (*model.CollectionWithOwner, error)
	updateFunc     func(ctx context.Context, id, userID string, input collection.UpdateInput) (*model.Collection, error)
	deleteFunc     func(ctx context.Context, id, userID string) error
	toggleLikeFunc func(ctx context.Context, id, userID string) ([]string, error)
	discoverFunc   func(ctx context.Context) ([]model.CollectionWithOwner, error)
}

var _ CollectionServiceInterface = (*mockCollectionService)(nil)

func (m *mockCollectionService) Create(ctx context.Context, ownerID string, input collection.CreateInput) (*model.Collection, error) {
	return m.createFunc(ctx, ownerID, input)
}

func (m *mockCollectionService) ListOwn(ctx context.Context, userID string) ([]model.Collection, error) {
	return m.listOwnFunc(ctx, userID)
}

func (m *mockCollectionService) Get(ctx context.Context, id, viewerID string) (*model.CollectionWithOwner, error) {
	return m.getFunc(ctx, id, viewerID)
}

func (m *mockCollectionService) Update(ctx context.Context, id, userID string, input collection.UpdateInput) (*model.Collection, error) {
	return m.updateFunc(ctx, id, userID, input)
}

func (m *mockCollectionService) Delete(ctx context.Context, id, userID string) error {
	return m.deleteFunc(ctx, id, userID)
}

func (m *mockCollectionService) ToggleLike(ctx context.Context, id, userID string) ([]string, error) {
	return m.toggleLikeFunc(ctx, id, userID)
}

func (m *mockCollectionService) Discover(ctx context.Context) ([]model.CollectionWithOwner, error) {
	return m.discoverFunc(ctx)
}

// injectUserID はテスト用にユーザーIDをコンテキストに注入するミドルウェア。
func injectUserID(userID string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.ContextWithUserID(r.Context(), userID)))
		})
	}
}

func newCollectionTestRouter(service CollectionServiceInterface, collector metrics.MetricsCollector, userID string) http.Handler {
	h := NewCollectionHandler(service, collector)

	r := chi.NewRouter()
	if userID != "" {
		r.Use(injectUserID(userID))
	}
	r.Get("/api/collections", h.List)
	r.Post("/api/collections", h.Create)
	r.Get("/api/collections/{id}", h.Get)
	r.Put("/api/collections/{id}", h.Update)
	r.Delete("/api/collections/{id}", h.Delete)
	r.Post("/api/collections/{id}/like", h.ToggleLike)
	r.Get("/api/discover", h.Discover)
	return r
}

func TestCollectionCreate_Success(t *testing.T) {
	service := &mockCollectionService{
		createFunc: func(ctx context.Context, ownerID string, input collection.CreateInput) (*model.Collection, error) {
			if ownerID != "user-1" {
				t.Errorf("ownerID = %q, want %q", ownerID, "user-1")
			}
			if input.Title != "風景写真" {
				t.Errorf("title = %q, want %q", input.Title, "風景写真")
			}
			if len(input.Images) != 1 {
				t.Fatalf("len(images) = %d, want 1", len(input.Images))
			}
			return &model.Collection{
				ID:      "col-1",
				OwnerID: ownerID,
				Title:   input.Title,
				Images:  input.Images,
				Likes:   []string{},
			}, nil
		},
	}
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	router := newCollectionTestRouter(service, collector, "user-1")

	body := `{"title":"風景写真","images":[{"id":"img-1","url":"https://images.example.com/1.jpg","alt":"mountain"}],"isPublic":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/collections", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var res collectionResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if res.ID != "col-1" {
		t.Errorf("id = %q, want %q", res.ID, "col-1")
	}
}

func TestCollectionCreate_InvalidBodyReturns400(t *testing.T) {
	service := &mockCollectionService{}
	router := newCollectionTestRouter(service, nil, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/collections", strings.NewReader("{invalid"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCollectionCreate_Unauthenticated(t *testing.T) {
	service := &mockCollectionService{}
	router := newCollectionTestRouter(service, nil, "")

	req := httptest.NewRequest(http.MethodPost, "/api/collections", strings.NewReader(`{"title":"t"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestCollectionGet_AnonymousViewerPassesEmptyID(t *testing.T) {
	service := &mockCollectionService{
		getFunc: func(ctx context.Context, id, viewerID string) (*model.CollectionWithOwner, error) {
			if viewerID != "" {
				t.Errorf("viewerID = %q, want empty", viewerID)
			}
			return &model.CollectionWithOwner{
				Collection: model.Collection{
					ID:       id,
					OwnerID:  "owner-1",
					Title:    "公開コレクション",
					IsPublic: true,
					Likes:    []string{"user-2"},
				},
				OwnerDisplayName: "Taro",
			}, nil
		},
	}
	router := newCollectionTestRouter(service, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/collections/col-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var res collectionWithOwnerResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if res.OwnerDisplayName != "Taro" {
		t.Errorf("ownerDisplayName = %q, want %q", res.OwnerDisplayName, "Taro")
	}
	if res.LikeCount != 1 {
		t.Errorf("likeCount = %d, want 1", res.LikeCount)
	}
}

func TestCollectionGet_NotFoundReturns404(t *testing.T) {
	service := &mockCollectionService{
		getFunc: func(ctx context.Context, id, viewerID string) (*model.CollectionWithOwner, error) {
			return nil, model.NewCollectionNotFoundError(id)
		},
	}
	router := newCollectionTestRouter(service, nil, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/collections/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCollectionGet_PrivateForStrangerReturns403(t *testing.T) {
	service := &mockCollectionService{
		getFunc: func(ctx context.Context, id, viewerID string) (*model.CollectionWithOwner, error) {
			return nil, model.NewAccessDeniedError()
		},
	}
	router := newCollectionTestRouter(service, nil, "stranger")

	req := httptest.NewRequest(http.MethodGet, "/api/collections/col-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestCollectionUpdate_PassesPartialInput(t *testing.T) {
	service := &mockCollectionService{
		updateFunc: func(ctx context.Context, id, userID string, input collection.UpdateInput) (*model.Collection, error) {
			if input.Title == nil || *input.Title != "新タイトル" {
				t.Error("expected title to be set")
			}
			if input.Description != nil {
				t.Error("expected description to be nil")
			}
			if input.Images != nil {
				t.Error("expected images to be nil when omitted")
			}
			return &model.Collection{ID: id, OwnerID: userID, Title: *input.Title}, nil
		},
	}
	router := newCollectionTestRouter(service, nil, "user-1")

	req := httptest.NewRequest(http.MethodPut, "/api/collections/col-1", strings.NewReader(`{"title":"新タイトル"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestCollectionDelete_Returns200WithMessage(t *testing.T) {
	service := &mockCollectionService{
		deleteFunc: func(ctx context.Context, id, userID string) error {
			if id != "col-1" {
				t.Errorf("id = %q, want %q", id, "col-1")
			}
			return nil
		},
	}
	router := newCollectionTestRouter(service, nil, "user-1")

	req := httptest.NewRequest(http.MethodDelete, "/api/collections/col-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["message"] == "" {
		t.Error("expected non-empty message")
	}
}

func TestToggleLike_ReturnsLikesAndCount(t *testing.T) {
	service := &mockCollectionService{
		toggleLikeFunc: func(ctx context.Context, id, userID string) ([]string, error) {
			return []string{"user-1", "user-2"}, nil
		},
	}
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	router := newCollectionTestRouter(service, collector, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/collections/col-1/like", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var res likeResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if res.LikeCount != 2 {
		t.Errorf("likeCount = %d, want 2", res.LikeCount)
	}
	if len(res.Likes) != 2 {
		t.Errorf("len(likes) = %d, want 2", len(res.Likes))
	}
}

func TestToggleLike_EmptyLikesReturnsEmptyArray(t *testing.T) {
	service := &mockCollectionService{
		toggleLikeFunc: func(ctx context.Context, id, userID string) ([]string, error) {
			return nil, nil
		},
	}
	router := newCollectionTestRouter(service, nil, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/collections/col-1/like", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var res likeResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if res.Likes == nil {
		t.Error("expected likes to be an empty array, not null")
	}
}

func TestDiscover_ReturnsPublicCollections(t *testing.T) {
	service := &mockCollectionService{
		discoverFunc: func(ctx context.Context) ([]model.CollectionWithOwner, error) {
			return []model.CollectionWithOwner{
				{
					Collection:       model.Collection{ID: "col-1", Title: "人気", IsPublic: true, Likes: []string{"a", "b"}},
					OwnerDisplayName: "Taro",
				},
				{
					Collection:       model.Collection{ID: "col-2", Title: "次点", IsPublic: true, Likes: []string{"a"}},
					OwnerDisplayName: "Hanako",
				},
			}, nil
		},
	}
	router := newCollectionTestRouter(service, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/discover", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var res []collectionWithOwnerResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("len(res) = %d, want 2", len(res))
	}
	if res[0].ID != "col-1" {
		t.Errorf("res[0].id = %q, want %q", res[0].ID, "col-1")
	}
}
