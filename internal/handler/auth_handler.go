// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/picshelf/internal/model"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	// GetCurrentUser はセッションが無効な場合(nil, nil)を返す。
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	ClientURL     string // ログイン完了後のリダイレクト先
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// userResponse はユーザー情報のJSON構造。
type userResponse struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	ProfilePhoto string `json:"profilePhoto"`
}

// Login は指定プロバイダーのOAuthフローを開始する。
// GET /api/auth/{provider}
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "内部エラーが発生しました。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		})
		return
	}

	url, err := h.service.GetLoginURL(provider, state)
	if err != nil {
		slog.Warn("unknown oauth provider requested", slog.String("provider", provider))
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "PROVIDER_NOT_FOUND",
			Message:  "指定された認証プロバイダーはサポートされていません。",
			Category: "auth",
			Action:   "GoogleまたはGitHubでログインしてください。",
		})
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /api/auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("provider", provider),
			slog.String("query_state", state),
		)
		http.Redirect(w, r, h.config.ClientURL+"/login", http.StatusTemporaryRedirect)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, h.config.ClientURL+"/login", http.StatusTemporaryRedirect)
		return
	}

	// 3. 認証処理
	session, err := h.service.HandleCallback(r.Context(), provider, code)
	if err != nil {
		slog.Error("oauth callback failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, h.config.ClientURL+"/login", http.StatusTemporaryRedirect)
		return
	}

	// 4. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 5. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.ClientURL, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// POST /api/auth/logout
// 既にログアウト済みでも同じ挙動になる（冪等）。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.ClientURL+"/login", http.StatusTemporaryRedirect)
}

// CurrentUser は現在のログインユーザー情報を返す。
// GET /api/auth/current_user
// 未認証の場合はエラーではなくnullを返し、フロントエンドが
// ログイン状態の判定に使えるようにする。
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	var sessionID string
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		sessionID = cookie.Value
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:           user.ID,
		DisplayName:  user.DisplayName,
		Email:        user.Email,
		ProfilePhoto: user.ProfilePhoto,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
