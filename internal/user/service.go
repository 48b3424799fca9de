// Package user はユーザープロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/hitoshi/coursebox/internal/model"
	"github.com/hitoshi/coursebox/internal/repository"
)

const (
	maxUsernameLength = 255
	maxAddressLength  = 500
)

// Service はユーザープロフィールのサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository) *Service {
	return &Service{userRepo: userRepo, sessionRepo: sessionRepo}
}

// GetProfile はプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, googleID string) (*model.User, error) {
	user, err := s.userRepo.FindByGoogleID(ctx, googleID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateUsername はユーザー名を更新する。
// 制御文字を除去し、前後の空白を落としてから保存する。
func (s *Service) UpdateUsername(ctx context.Context, googleID, username string) (*model.User, error) {
	cleaned := sanitize(username, maxUsernameLength)
	if cleaned == "" {
		return nil, model.NewInvalidRequestError("ユーザー名は必須です")
	}

	user, err := s.userRepo.UpdateUsername(ctx, googleID, cleaned)
	if err != nil {
		return nil, fmt.Errorf("ユーザー名の更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("username updated", slog.Int64("user_id", user.ID))
	return user, nil
}

// UpdateAddress は住所を更新する。空文字列は住所の削除として扱う。
func (s *Service) UpdateAddress(ctx context.Context, googleID, address string) (*model.User, error) {
	cleaned := sanitize(address, maxAddressLength)

	user, err := s.userRepo.UpdateAddress(ctx, googleID, cleaned)
	if err != nil {
		return nil, fmt.Errorf("住所の更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("address updated", slog.Int64("user_id", user.ID))
	return user, nil
}

// DeleteAccount は退会処理を実行する。
// 全セッションを失効させてからユーザーを削除する。
// sessionsの行はFKのCASCADEで削除される。
func (s *Service) DeleteAccount(ctx context.Context, googleID string) error {
	user, err := s.userRepo.FindByGoogleID(ctx, googleID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します", slog.Int64("user_id", user.ID))

	if err := s.sessionRepo.RevokeAllByGoogleID(ctx, googleID); err != nil {
		return fmt.Errorf("セッションの失効に失敗しました: %w", err)
	}

	deleted, err := s.userRepo.DeleteByGoogleID(ctx, googleID)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理が完了しました", slog.Int64("user_id", user.ID))
	return nil
}

// sanitize は制御文字を除去し、前後の空白を落とし、最大長で切り詰める。
func sanitize(input string, maxLength int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	cleaned = strings.TrimSpace(cleaned)

	runes := []rune(cleaned)
	if len(runes) > maxLength {
		cleaned = string(runes[:maxLength])
	}
	return cleaned
}
