// Package course はコース管理のドメインロジックを提供する。
package course

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/coursebox/internal/model"
	"github.com/hitoshi/coursebox/internal/repository"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	maxTagLength         = 50
)

// CreateInput はコース作成の入力。
type CreateInput struct {
	Title         string
	Description   string
	Status        string
	Visibility    string
	Tags          []string
	CoverImageURL string
}

// UpdateInput はコース更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title         *string
	Description   *string
	Status        *string
	Visibility    *string
	Tags          *[]string
	CoverImageURL *string
}

// CourseWithRole は一覧表示用にコースと操作ユーザーの役割を組にしたもの。
type CourseWithRole struct {
	Course  *model.Course
	IsOwner bool
}

// Service はコース管理のサービス層。
// 全ての操作で認可（作成者または共同作成者か）をリクエスト毎に判定する。
type Service struct {
	courseRepo repository.CourseRepository
}

// NewService はServiceを生成する。
func NewService(courseRepo repository.CourseRepository) *Service {
	return &Service{courseRepo: courseRepo}
}

// Create はコースを作成する。作成者は操作ユーザーになる。
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (*model.Course, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, model.NewInvalidRequestError("タイトルは必須です")
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("タイトルは%d文字以内にしてください", maxTitleLength))
	}
	if len([]rune(input.Description)) > maxDescriptionLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("説明は%d文字以内にしてください", maxDescriptionLength))
	}

	status := model.CourseStatusDraft
	if input.Status != "" {
		if !model.ValidCourseStatus(input.Status) {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("無効なステータスです: %s", input.Status))
		}
		status = model.CourseStatus(input.Status)
	}

	visibility := model.CourseVisibilityPrivate
	if input.Visibility != "" {
		if !model.ValidCourseVisibility(input.Visibility) {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("無効な可視性です: %s", input.Visibility))
		}
		visibility = model.CourseVisibility(input.Visibility)
	}

	tags, err := normalizeTags(input.Tags)
	if err != nil {
		return nil, err
	}

	course, err := s.courseRepo.Create(ctx, &model.Course{
		Title:          title,
		Description:    input.Description,
		PrimaryCreator: userID,
		Status:         status,
		Visibility:     visibility,
		Tags:           tags,
		CoverImageURL:  input.CoverImageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("コースの作成に失敗しました: %w", err)
	}

	slog.Info("course created",
		slog.Int64("course_id", course.ID),
		slog.Int64("user_id", userID),
	)

	return course, nil
}

// Get はコースを取得する。作成者または共同作成者のみ参照できる。
func (s *Service) Get(ctx context.Context, userID, courseID int64) (*model.Course, error) {
	course, err := s.findAccessible(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	return course, nil
}

// List は操作ユーザーが作成者または共同作成者のコース一覧を返す。
func (s *Service) List(ctx context.Context, userID int64) ([]*CourseWithRole, error) {
	courses, err := s.courseRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("コース一覧の取得に失敗しました: %w", err)
	}

	result := make([]*CourseWithRole, 0, len(courses))
	for _, c := range courses {
		result = append(result, &CourseWithRole{
			Course:  c,
			IsOwner: c.IsOwner(userID),
		})
	}
	return result, nil
}

// Update はコースの基本情報を更新する。作成者と共同作成者が編集できる。
func (s *Service) Update(ctx context.Context, userID, courseID int64, input UpdateInput) (*model.Course, error) {
	course, err := s.findAccessible(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, model.NewInvalidRequestError("タイトルは必須です")
		}
		if len([]rune(title)) > maxTitleLength {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("タイトルは%d文字以内にしてください", maxTitleLength))
		}
		course.Title = title
	}
	if input.Description != nil {
		if len([]rune(*input.Description)) > maxDescriptionLength {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("説明は%d文字以内にしてください", maxDescriptionLength))
		}
		course.Description = *input.Description
	}
	if input.Status != nil {
		if !model.ValidCourseStatus(*input.Status) {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("無効なステータスです: %s", *input.Status))
		}
		course.Status = model.CourseStatus(*input.Status)
	}
	if input.Visibility != nil {
		if !model.ValidCourseVisibility(*input.Visibility) {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("無効な可視性です: %s", *input.Visibility))
		}
		course.Visibility = model.CourseVisibility(*input.Visibility)
	}
	if input.Tags != nil {
		tags, err := normalizeTags(*input.Tags)
		if err != nil {
			return nil, err
		}
		course.Tags = tags
	}
	if input.CoverImageURL != nil {
		course.CoverImageURL = *input.CoverImageURL
	}

	updated, err := s.courseRepo.Update(ctx, course)
	if err != nil {
		return nil, fmt.Errorf("コースの更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}
	return updated, nil
}

// Delete はコースを削除する。作成者のみ実行できる。
func (s *Service) Delete(ctx context.Context, userID, courseID int64) error {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if course == nil {
		return model.NewCourseNotFoundError(courseID)
	}
	if !course.IsOwner(userID) {
		return model.NewForbiddenError("コースの削除は作成者のみ可能です")
	}

	deleted, err := s.courseRepo.Delete(ctx, courseID)
	if err != nil {
		return fmt.Errorf("コースの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewCourseNotFoundError(courseID)
	}

	slog.Info("course deleted",
		slog.Int64("course_id", courseID),
		slog.Int64("user_id", userID),
	)
	return nil
}

// AddCoCreator は共同作成者を追加する。作成者のみ実行できる。
// 既に共同作成者の場合は何もしない。
func (s *Service) AddCoCreator(ctx context.Context, userID, courseID, coCreatorID int64) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}
	if !course.IsOwner(userID) {
		return nil, model.NewForbiddenError("共同作成者の管理は作成者のみ可能です")
	}
	if coCreatorID <= 0 {
		return nil, model.NewInvalidRequestError("共同作成者のユーザーIDが不正です")
	}
	if coCreatorID == course.PrimaryCreator {
		return nil, model.NewInvalidRequestError("作成者を共同作成者に追加することはできません")
	}

	if err := s.courseRepo.AddCoCreator(ctx, courseID, coCreatorID); err != nil {
		return nil, fmt.Errorf("共同作成者の追加に失敗しました: %w", err)
	}

	return s.courseRepo.FindByID(ctx, courseID)
}

// RemoveCoCreator は共同作成者を外す。作成者のみ実行できる。
func (s *Service) RemoveCoCreator(ctx context.Context, userID, courseID, coCreatorID int64) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}
	if !course.IsOwner(userID) {
		return nil, model.NewForbiddenError("共同作成者の管理は作成者のみ可能です")
	}

	if err := s.courseRepo.RemoveCoCreator(ctx, courseID, coCreatorID); err != nil {
		return nil, fmt.Errorf("共同作成者の削除に失敗しました: %w", err)
	}

	return s.courseRepo.FindByID(ctx, courseID)
}

// AddTags はタグを追加する。作成者と共同作成者が実行できる。
func (s *Service) AddTags(ctx context.Context, userID, courseID int64, tags []string) (*model.Course, error) {
	if _, err := s.findAccessible(ctx, userID, courseID); err != nil {
		return nil, err
	}

	normalized, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		return nil, model.NewInvalidRequestError("追加するタグを指定してください")
	}

	if err := s.courseRepo.AddTags(ctx, courseID, normalized); err != nil {
		return nil, fmt.Errorf("タグの追加に失敗しました: %w", err)
	}

	return s.courseRepo.FindByID(ctx, courseID)
}

// findAccessible はコースを取得し、操作ユーザーのアクセス権を確認する。
func (s *Service) findAccessible(ctx context.Context, userID, courseID int64) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}
	if !course.HasAccess(userID) {
		return nil, model.NewForbiddenError("このコースへのアクセス権がありません")
	}
	return course, nil
}

// normalizeTags は空白を除去し、空要素を取り除く。
func normalizeTags(tags []string) ([]string, error) {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len([]rune(tag)) > maxTagLength {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("タグは%d文字以内にしてください: %s", maxTagLength, tag))
		}
		normalized = append(normalized, tag)
	}
	return normalized, nil
}
