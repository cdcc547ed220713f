// Package auth はOAuth認証フロー、identity解決、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	DisplayName    string
	Email          string
	ProfilePhoto   string
	Provider       string // "google", "github" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// Google・GitHubの2プロバイダーが実装し、さらなるIdP追加もこの抽象で受ける。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ErrUnknownProvider は未登録のプロバイダー名が指定されたことを表す。
var ErrUnknownProvider = errors.New("unknown oauth provider")

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// (provider, providerUserID) から正規ユーザーへの解決と、
// セッションの発行・検証・破棄を担う。
type Service struct {
	providers   map[string]OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	providers map[string]OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		providers:   providers,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// GetLoginURL は指定プロバイダーのOAuth認証URLを生成する。
func (s *Service) GetLoginURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return p.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録の(provider, providerUserID)の場合はusersレコードとidentitiesレコードを
// 同時に自動作成する。登録済みの場合は既存ユーザーとしてログインし、
// プロフィール項目は初回ログイン時のスナップショットのまま更新しない。
func (s *Service) HandleCallback(ctx context.Context, provider, code string) (*model.Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. identityから正規ユーザーを解決（無ければ作成）
	userID, err := s.resolveUser(ctx, userInfo)
	if err != nil {
		return nil, err
	}

	// 3. セッションを発行
	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// resolveUser は(provider, providerUserID)を正規ユーザーIDに解決する。
// 一致するidentityが無ければ新規ユーザーを作成する。
// 同一identityの同時初回ログインでは、identitiesの一意制約違反を
// 「他のリクエストが先に作成した」と解釈して再取得し、同じユーザーIDに収束させる。
func (s *Service) resolveUser(ctx context.Context, userInfo *OAuthUserInfo) (string, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		slog.Info("existing user logged in",
			slog.String("user_id", identity.UserID),
			slog.String("provider", userInfo.Provider),
		)
		return identity.UserID, nil
	}

	now := time.Now()
	newUser := &model.User{
		ID:           uuid.New().String(),
		DisplayName:  userInfo.DisplayName,
		Email:        userInfo.Email,
		ProfilePhoto: userInfo.ProfilePhoto,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUser.ID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      now,
	}

	err = s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity)
	if err == nil {
		slog.Info("new user created",
			slog.String("user_id", newUser.ID),
			slog.String("provider", userInfo.Provider),
		)
		return newUser.ID, nil
	}

	if !errors.Is(err, repository.ErrIdentityConflict) {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	// 同時初回ログイン競合: 勝った側のidentityを再取得して相乗りする
	winner, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to refetch identity after conflict: %w", err)
	}
	if winner == nil {
		return "", fmt.Errorf("identity conflict but no identity found: provider=%s", userInfo.Provider)
	}

	slog.Info("identity conflict recovered",
		slog.String("user_id", winner.UserID),
		slog.String("provider", userInfo.Provider),
	)
	return winner.UserID, nil
}

// Logout はセッションを破棄する。
// 既に無効なセッションIDを渡してもエラーにしない（冪等）。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションが無い・無効・期限切れの場合はエラーではなく(nil, nil)を返し、
// 呼び出し元が匿名リクエストとして扱えるようにする。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
