package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

type mockIdentityRepo struct {
	findByProviderFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findByProviderFn != nil {
		return m.findByProviderFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)

// --- テスト ---

func TestGetLoginURL_ReturnsOAuthURL(t *testing.T) {
	provider := &mockOAuthProvider{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	svc := NewService(map[string]OAuthProvider{"google": provider}, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	url, err := svc.GetLoginURL("google", "test-state")
	if err != nil {
		t.Fatalf("GetLoginURL() error = %v", err)
	}

	expected := "https://accounts.google.com/o/oauth2/auth?state=test-state"
	if url != expected {
		t.Errorf("GetLoginURL() = %q, want %q", url, expected)
	}
}

func TestGetLoginURL_UnknownProvider_ReturnsError(t *testing.T) {
	svc := NewService(map[string]OAuthProvider{}, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	_, err := svc.GetLoginURL("twitter", "test-state")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("GetLoginURL() error = %v, want ErrUnknownProvider", err)
	}
}

func TestHandleCallback_NewUser_CreatesUserAndIdentityAndSession(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	var createdIdentity *model.Identity
	var createdSession *model.Session

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-123",
				DisplayName:    "Test User",
				Email:          "test@example.com",
				ProfilePhoto:   "https://example.com/photo.jpg",
				Provider:       "google",
			}, nil
		},
	}

	userRepo := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			createdUser = user
			createdIdentity = identity
			return nil
		},
	}

	identityRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			// identityが見つからない（新規ユーザー）
			return nil, nil
		},
	}

	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := NewService(map[string]OAuthProvider{"google": provider}, userRepo, identityRepo, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	session, err := svc.HandleCallback(ctx, "google", "auth-code-123")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	// セッションが返されること
	if session == nil {
		t.Fatal("expected non-nil session")
	}
	if session.ID == "" {
		t.Error("expected non-empty session ID")
	}
	if session.UserID == "" {
		t.Error("expected non-empty user ID in session")
	}

	// ユーザーが作成されること
	if createdUser == nil {
		t.Fatal("expected user to be created")
	}
	if createdUser.Email != "test@example.com" {
		t.Errorf("user email = %q, want %q", createdUser.Email, "test@example.com")
	}
	if createdUser.DisplayName != "Test User" {
		t.Errorf("user displayName = %q, want %q", createdUser.DisplayName, "Test User")
	}
	if createdUser.ProfilePhoto != "https://example.com/photo.jpg" {
		t.Errorf("user profilePhoto = %q, want %q", createdUser.ProfilePhoto, "https://example.com/photo.jpg")
	}

	// identityが作成されること
	if createdIdentity == nil {
		t.Fatal("expected identity to be created")
	}
	if createdIdentity.Provider != "google" {
		t.Errorf("identity provider = %q, want %q", createdIdentity.Provider, "google")
	}
	if createdIdentity.ProviderUserID != "google-user-123" {
		t.Errorf("identity providerUserID = %q, want %q", createdIdentity.ProviderUserID, "google-user-123")
	}
	if createdIdentity.UserID != createdUser.ID {
		t.Errorf("identity userID = %q, want %q", createdIdentity.UserID, createdUser.ID)
	}

	// セッションが作成されること
	if createdSession == nil {
		t.Fatal("expected session to be created")
	}
	if createdSession.UserID != createdUser.ID {
		t.Errorf("session userID = %q, want %q", createdSession.UserID, createdUser.ID)
	}
	if createdSession.ExpiresAt.Before(time.Now()) {
		t.Error("session should not be expired")
	}
}

func TestHandleCallback_ExistingUser_LogsInWithoutProfileUpdate(t *testing.T) {
	ctx := context.Background()

	existingUserID := "existing-user-id-456"
	var createdSession *model.Session

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			// プロバイダー側では表示名が変わっているが、ログインには影響しない
			return &OAuthUserInfo{
				ProviderUserID: "google-user-789",
				DisplayName:    "Renamed User",
				Email:          "existing@example.com",
				Provider:       "google",
			}, nil
		},
	}

	identityRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			// 既存ユーザーのidentityが見つかる
			return &model.Identity{
				ID:             "identity-id-1",
				UserID:         existingUserID,
				Provider:       "google",
				ProviderUserID: "google-user-789",
			}, nil
		},
	}

	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	// createWithIdentityFnがnilのmockを渡す:
	// 既存ユーザーでCreateWithIdentityが呼ばれないことの確認を兼ねる
	svc := NewService(map[string]OAuthProvider{"google": provider}, &mockUserRepo{}, identityRepo, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	session, err := svc.HandleCallback(ctx, "google", "auth-code-existing")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if session == nil {
		t.Fatal("expected non-nil session")
	}
	if session.UserID != existingUserID {
		t.Errorf("session userID = %q, want %q", session.UserID, existingUserID)
	}

	if createdSession == nil {
		t.Fatal("expected session to be created")
	}
	if createdSession.UserID != existingUserID {
		t.Errorf("session userID = %q, want %q", createdSession.UserID, existingUserID)
	}
}

func TestHandleCallback_IdentityConflict_ReusesWinningUser(t *testing.T) {
	ctx := context.Background()

	winnerUserID := "winner-user-id"
	findCalls := 0

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-race",
				DisplayName:    "Race User",
				Email:          "race@example.com",
				Provider:       "google",
			}, nil
		},
	}

	identityRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			findCalls++
			if findCalls == 1 {
				// 最初の検索時点ではまだ存在しない
				return nil, nil
			}
			// 競合後の再取得では勝った側のidentityが見つかる
			return &model.Identity{
				ID:             "identity-winner",
				UserID:         winnerUserID,
				Provider:       "google",
				ProviderUserID: "google-user-race",
			}, nil
		},
	}

	userRepo := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			// 同時初回ログインの相手が先に作成した
			return repository.ErrIdentityConflict
		},
	}

	sessionRepo := &mockSessionRepo{}

	svc := NewService(map[string]OAuthProvider{"google": provider}, userRepo, identityRepo, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	session, err := svc.HandleCallback(ctx, "google", "auth-code-race")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	// 新規ユーザーを作らず、勝った側のユーザーでセッションが発行されること
	if session.UserID != winnerUserID {
		t.Errorf("session userID = %q, want %q", session.UserID, winnerUserID)
	}
	if findCalls != 2 {
		t.Errorf("identity lookup count = %d, want 2", findCalls)
	}
}

func TestHandleCallback_UnknownProvider_ReturnsError(t *testing.T) {
	ctx := context.Background()

	svc := NewService(map[string]OAuthProvider{}, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	_, err := svc.HandleCallback(ctx, "twitter", "auth-code")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("HandleCallback() error = %v, want ErrUnknownProvider", err)
	}
}

func TestHandleCallback_OAuthError_ReturnsError(t *testing.T) {
	ctx := context.Background()

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return nil, errors.New("oauth exchange failed")
		},
	}

	svc := NewService(map[string]OAuthProvider{"google": provider}, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	_, err := svc.HandleCallback(ctx, "google", "bad-code")
	if err == nil {
		t.Fatal("expected error from HandleCallback")
	}
}

func TestHandleCallback_UserCreationError_ReturnsError(t *testing.T) {
	ctx := context.Background()

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-err",
				DisplayName:    "Error User",
				Email:          "error@example.com",
				Provider:       "google",
			}, nil
		},
	}

	identityRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			return nil, nil // 新規ユーザー
		},
	}

	userRepo := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			return errors.New("db error")
		},
	}

	svc := NewService(map[string]OAuthProvider{"google": provider}, userRepo, identityRepo, nil, ServiceConfig{SessionMaxAge: 86400})

	_, err := svc.HandleCallback(ctx, "google", "auth-code-err")
	if err == nil {
		t.Fatal("expected error from HandleCallback")
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	ctx := context.Background()

	var deletedSessionID string

	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedSessionID = id
			return nil
		},
	}

	svc := NewService(nil, nil, nil, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	err := svc.Logout(ctx, "session-to-delete")
	if err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if deletedSessionID != "session-to-delete" {
		t.Errorf("deleted session ID = %q, want %q", deletedSessionID, "session-to-delete")
	}
}

func TestLogout_EmptySessionID_IsNoOp(t *testing.T) {
	ctx := context.Background()

	svc := NewService(nil, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	// セッションの無いログアウトも成功扱い（冪等）
	if err := svc.Logout(ctx, ""); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
}

func TestGetCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	ctx := context.Background()

	userID := "user-id-123"

	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:        "session-valid",
				UserID:    userID,
				ExpiresAt: time.Now().Add(1 * time.Hour),
			}, nil
		},
	}

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{
				ID:          userID,
				DisplayName: "Test User",
				Email:       "user@example.com",
			}, nil
		},
	}

	svc := NewService(nil, userRepo, nil, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	user, err := svc.GetCurrentUser(ctx, "session-valid")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}

	if user == nil {
		t.Fatal("expected non-nil user")
	}
	if user.ID != userID {
		t.Errorf("user ID = %q, want %q", user.ID, userID)
	}
}

func TestGetCurrentUser_ExpiredSession_ReturnsNil(t *testing.T) {
	ctx := context.Background()

	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			// 期限切れセッション -> リポジトリはnilを返す
			return nil, nil
		},
	}

	svc := NewService(nil, nil, nil, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	user, err := svc.GetCurrentUser(ctx, "expired-session")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user for expired session, got %+v", user)
	}
}

func TestGetCurrentUser_EmptySessionID_ReturnsNil(t *testing.T) {
	ctx := context.Background()

	svc := NewService(nil, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	user, err := svc.GetCurrentUser(ctx, "")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user for empty session ID, got %+v", user)
	}
}
