package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/collections", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

func TestGeneralMiddleware_AllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(10),
		GeneralBurst:    5,
		SearchRate:      rate.Limit(1),
		SearchBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}
}

func TestGeneralMiddleware_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01), // 補充をほぼ止める
		GeneralBurst:    2,
		SearchRate:      rate.Limit(1),
		SearchBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// バースト分は通る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	// 超過分は429
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestGeneralMiddleware_PerUserIsolation(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    1,
		SearchRate:      rate.Limit(1),
		SearchBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// user-1がバーストを使い切る
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("user-1"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("user-1 second request: status = %d, want 429", w.Code)
	}

	// user-2は影響を受けない
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("user-2"))
	if w.Code != http.StatusOK {
		t.Errorf("user-2: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSearchMiddleware_IndependentFromGeneral(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    1,
		SearchRate:      rate.Limit(0.01),
		SearchBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	generalHandler := rl.GeneralMiddleware()(okHandler())
	searchHandler := rl.SearchMiddleware()(okHandler())

	// 一般リミッターを使い切っても検索リミッターは通る
	w := httptest.NewRecorder()
	generalHandler.ServeHTTP(w, authedRequest("user-1"))

	w = httptest.NewRecorder()
	searchHandler.ServeHTTP(w, authedRequest("user-1"))
	if w.Code != http.StatusOK {
		t.Errorf("search request: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRateLimitMiddleware_MissingUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/collections", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    1,
		SearchRate:      rate.Limit(1),
		SearchBurst:     1,
		CleanupInterval: 10 * time.Millisecond,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("user-1"))

	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("limiter count = %d, want 1", rl.GeneralLimiterCount())
	}

	// TTL（CleanupIntervalの2倍）経過後にクリーンアップされることを待つ
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rl.GeneralLimiterCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("stale limiter entry was not cleaned up")
}
