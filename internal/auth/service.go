// Package auth はGoogleサインイン、セッション管理、CSRF保護を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/coursebox/internal/model"
	"github.com/hitoshi/coursebox/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL    time.Duration
	SessionSecret string // CSRFトークン導出に使用
}

// LoginResult はログイン成功時に返す組。
type LoginResult struct {
	User      *model.User
	Session   *model.Session
	CSRFToken string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	verifier    TokenVerifier
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	verifier TokenVerifier,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		verifier:    verifier,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Login はGoogleのIDトークンを検証し、ユーザーを作成または更新して
// セッションを発行する。
func (s *Service) Login(ctx context.Context, credential string) (*LoginResult, error) {
	if credential == "" {
		return nil, model.NewInvalidRequestError("credentialは必須です")
	}

	claims, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		slog.Warn("id token verification failed", slog.String("error", err.Error()))
		return nil, model.NewIDPFailureError()
	}

	user, err := s.userRepo.Upsert(ctx, claimsToUser(claims, credential))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	session, err := s.createSession(ctx, user.GoogleID)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &LoginResult{
		User:      user,
		Session:   session,
		CSRFToken: CSRFToken(s.config.SessionSecret, session.Token),
	}, nil
}

// ValidateSession はセッショントークンからユーザーを解決する。
// セッションが無効、またはユーザーが存在しない場合は401相当のエラーを返す。
func (s *Service) ValidateSession(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindValidByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByGoogleID(ctx, session.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}

// CSRFTokenFor はセッショントークンに対応するCSRFトークンを返す。
func (s *Service) CSRFTokenFor(sessionToken string) string {
	return CSRFToken(s.config.SessionSecret, sessionToken)
}

// Logout はセッションを失効させる。トークンが未知でも失効済みでも、
// 失効クエリ自体が失敗しても成功として扱う。前者は列挙攻撃の手がかりを
// 与えないため、後者はDB障害時でもクライアント側のログアウトを妨げないため。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	revoked, err := s.sessionRepo.Revoke(ctx, token)
	if err != nil {
		slog.Warn("failed to revoke session on logout", slog.String("error", err.Error()))
		return nil
	}
	if revoked {
		slog.Info("user logged out")
	}
	return nil
}

// RelinkGoogle はアカウントのGoogle連携を別のGoogleアカウントへ付け替える。
// 旧連携の全セッションを失効させてから付け替え、新しいセッションを発行する。
func (s *Service) RelinkGoogle(ctx context.Context, user *model.User, credential string) (*LoginResult, error) {
	if credential == "" {
		return nil, model.NewInvalidRequestError("credentialは必須です")
	}

	claims, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		slog.Warn("id token verification failed on relink", slog.String("error", err.Error()))
		return nil, model.NewIDPFailureError()
	}

	if claims.Sub == user.GoogleID {
		return nil, model.NewSameAccountError()
	}

	existing, err := s.userRepo.FindByGoogleID(ctx, claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("failed to check google id: %w", err)
	}
	if existing != nil {
		return nil, model.NewAccountTakenError()
	}

	if claims.Email != "" {
		byEmail, err := s.userRepo.FindByEmail(ctx, claims.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if byEmail != nil && byEmail.ID != user.ID {
			return nil, model.NewEmailTakenError()
		}
	}

	// 付け替え前に旧連携のセッションを全て失効させる。
	// sessionsのgoogle_idはFKのCASCADEで新しい値に追従する。
	if err := s.sessionRepo.RevokeAllByGoogleID(ctx, user.GoogleID); err != nil {
		return nil, fmt.Errorf("failed to revoke old sessions: %w", err)
	}

	updated, err := s.userRepo.RelinkGoogle(ctx, user.ID, claimsToUser(claims, credential))
	if err != nil {
		return nil, fmt.Errorf("failed to relink google account: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}

	session, err := s.createSession(ctx, updated.GoogleID)
	if err != nil {
		return nil, err
	}

	slog.Info("google account relinked",
		slog.Int64("user_id", updated.ID),
		slog.String("email", updated.Email),
	)

	return &LoginResult{
		User:      updated,
		Session:   session,
		CSRFToken: CSRFToken(s.config.SessionSecret, session.Token),
	}, nil
}

// createSession はセッショントークンを生成して永続化する。
func (s *Service) createSession(ctx context.Context, googleID string) (*model.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &model.Session{
		Token:     token,
		GoogleID:  googleID,
		ExpiresAt: time.Now().Add(s.config.SessionTTL),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// claimsToUser はIDトークンのクレームをユーザーモデルに写す。
func claimsToUser(claims *GoogleClaims, credential string) *model.User {
	return &model.User{
		GoogleID:      claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		Picture:       claims.Picture,
		Locale:        claims.Locale,
		GoogleIDToken: credential,
	}
}

// generateSessionToken は暗号的に安全なセッショントークンを生成する。
// 64バイト（512ビット）の乱数を16進で表現し、128文字になる。
func generateSessionToken() (string, error) {
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
