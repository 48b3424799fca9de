// Package material は教材の二段階アップロードと管理のドメインロジックを提供する。
//
// アップロードは以下の二段階で行う。
//  1. request: MIMEタイプを検証し、署名付きPOSTポリシーを発行する。
//     この時点ではDBに何も書かない。
//  2. confirm: ストレージ上の実体を確認してから教材レコードを作成し、
//     コースのmaterial_idsに追記する。
//
// これによりDBに「実体のないファイル」の行が残ることを防ぐ。
package material

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/coursebox/internal/model"
	"github.com/hitoshi/coursebox/internal/repository"
	"github.com/hitoshi/coursebox/internal/storage"
)

const (
	maxNameLength = 255
	keyPrefix     = "materials/"
)

// allowedFileTypes は受け付けるMIMEタイプの集合。
var allowedFileTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"text/plain":    true,
	"text/csv":      true,
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/svg+xml": true,
}

// UploadRequest はアップロード開始の入力。
type UploadRequest struct {
	CourseID   int64
	FileName   string
	FileType   string
	Visibility string
}

// UploadTicket はアップロード開始のレスポンス。
// クライアントはTargetへ直接POSTした後、Keyを添えてconfirmを呼ぶ。
type UploadTicket struct {
	Key    string
	Target *storage.UploadTarget
}

// ConfirmRequest はアップロード確定の入力。
type ConfirmRequest struct {
	CourseID   int64
	Key        string
	FileName   string
	FileType   string
	Visibility string
}

// MaterialWithURL は一覧表示用に教材と期限付きダウンロードURLを組にしたもの。
type MaterialWithURL struct {
	Material    *model.Material
	DownloadURL string
}

// Service は教材管理のサービス層。
type Service struct {
	materialRepo repository.MaterialRepository
	courseRepo   repository.CourseRepository
	store        storage.ObjectStore
}

// NewService はServiceを生成する。
func NewService(
	materialRepo repository.MaterialRepository,
	courseRepo repository.CourseRepository,
	store storage.ObjectStore,
) *Service {
	return &Service{
		materialRepo: materialRepo,
		courseRepo:   courseRepo,
		store:        store,
	}
}

// RequestUpload はMIMEタイプを検証し、署名付きアップロード先を発行する。
// キーは materials/<uuid> にファイル名の拡張子を付けたもので、
// ファイル名本体はキーに使わない。
func (s *Service) RequestUpload(ctx context.Context, userID int64, req UploadRequest) (*UploadTicket, error) {
	if err := s.requireCourseAccess(ctx, userID, req.CourseID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.FileName) == "" {
		return nil, model.NewInvalidRequestError("ファイル名は必須です")
	}

	if !allowedFileTypes[req.FileType] {
		return nil, model.NewUnsupportedFileTypeError(req.FileType)
	}

	// 可視性はconfirmで確定するが、入力ミスはこの時点で弾く
	if req.Visibility != "" && !model.ValidMaterialVisibility(req.Visibility) {
		return nil, model.NewInvalidVisibilityError(req.Visibility)
	}

	// 拡張子はファイル名から引き継ぐ。拡張子なしのファイル名ならキーにも付けない。
	key := keyPrefix + uuid.New().String()
	if ext := path.Ext(req.FileName); ext != "" && ext != "." {
		key += ext
	}

	target, err := s.store.PresignUpload(ctx, key, req.FileType)
	if err != nil {
		slog.Error("failed to presign upload",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageFailureError("アップロードURLの発行に失敗しました")
	}

	slog.Info("upload requested",
		slog.Int64("user_id", userID),
		slog.Int64("course_id", req.CourseID),
		slog.String("key", key),
		slog.String("file_type", req.FileType),
	)

	return &UploadTicket{Key: key, Target: target}, nil
}

// ConfirmUpload はストレージ上の実体を確認してから教材レコードを作成し、
// コースのmaterial_idsに追記する。実体がなければレコードは作らない。
func (s *Service) ConfirmUpload(ctx context.Context, userID int64, req ConfirmRequest) (*model.Material, error) {
	if err := s.requireCourseAccess(ctx, userID, req.CourseID); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(req.Key)
	if key == "" || !strings.HasPrefix(key, keyPrefix) {
		return nil, model.NewInvalidRequestError("キーが不正です")
	}

	name := strings.TrimSpace(req.FileName)
	if name == "" {
		return nil, model.NewInvalidRequestError("ファイル名は必須です")
	}
	if len([]rune(name)) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}

	if !allowedFileTypes[req.FileType] {
		return nil, model.NewUnsupportedFileTypeError(req.FileType)
	}

	visibility := model.MaterialVisibilityPrivate
	if req.Visibility != "" {
		if !model.ValidMaterialVisibility(req.Visibility) {
			return nil, model.NewInvalidVisibilityError(req.Visibility)
		}
		visibility = model.MaterialVisibility(req.Visibility)
	}

	// 実体確認。アップロードが完了していない、または失敗したキーは弾く。
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		slog.Error("failed to probe object",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageFailureError("ファイルの確認に失敗しました")
	}
	if !exists {
		return nil, model.NewFileNotFoundError(key)
	}

	material, err := s.materialRepo.Create(ctx, &model.Material{
		Name:       name,
		FileURL:    s.store.ObjectURL(key),
		FileType:   req.FileType,
		SourceType: model.MaterialSourceUpload,
		UploadedBy: userID,
		CourseID:   req.CourseID,
		Visibility: visibility,
	})
	if err != nil {
		return nil, fmt.Errorf("教材レコードの作成に失敗しました: %w", err)
	}

	if err := s.courseRepo.AddMaterial(ctx, req.CourseID, material.ID); err != nil {
		return nil, fmt.Errorf("コースへの教材追加に失敗しました: %w", err)
	}

	slog.Info("upload confirmed",
		slog.Int64("user_id", userID),
		slog.Int64("course_id", req.CourseID),
		slog.Int64("material_id", material.ID),
		slog.String("key", key),
	)

	return material, nil
}

// Get は教材を取得する。コースアクセスと教材可視性の両方を確認する。
func (s *Service) Get(ctx context.Context, userID, materialID int64) (*model.Material, error) {
	material, err := s.materialRepo.FindByID(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("教材の取得に失敗しました: %w", err)
	}
	if material == nil {
		return nil, model.NewMaterialNotFoundError(materialID)
	}

	if err := s.requireCourseAccess(ctx, userID, material.CourseID); err != nil {
		return nil, err
	}
	if !material.VisibleTo(userID) {
		return nil, model.NewForbiddenError("この教材は非公開です")
	}

	return material, nil
}

// ListByCourse はコースの教材のうちユーザーに見えるものを、
// 期限付きダウンロードURL付きで返す。
func (s *Service) ListByCourse(ctx context.Context, userID, courseID int64) ([]*MaterialWithURL, error) {
	if err := s.requireCourseAccess(ctx, userID, courseID); err != nil {
		return nil, err
	}

	materials, err := s.materialRepo.ListVisibleByCourse(ctx, courseID, userID)
	if err != nil {
		return nil, fmt.Errorf("教材一覧の取得に失敗しました: %w", err)
	}

	result := make([]*MaterialWithURL, 0, len(materials))
	for _, m := range materials {
		entry := &MaterialWithURL{Material: m}
		if key, ok := s.store.KeyFromURL(m.FileURL); ok {
			url, err := s.store.PresignDownload(ctx, key)
			if err != nil {
				// ダウンロードURLの発行失敗は一覧全体を止めない
				slog.Warn("failed to presign download",
					slog.Int64("material_id", m.ID),
					slog.String("error", err.Error()),
				)
			} else {
				entry.DownloadURL = url
			}
		}
		result = append(result, entry)
	}
	return result, nil
}

// GetDownloadURL は教材の期限付きダウンロードURLを発行する。
func (s *Service) GetDownloadURL(ctx context.Context, userID, materialID int64) (string, error) {
	material, err := s.Get(ctx, userID, materialID)
	if err != nil {
		return "", err
	}

	key, ok := s.store.KeyFromURL(material.FileURL)
	if !ok {
		return "", model.NewStorageFailureError("ファイルURLが不正です")
	}

	url, err := s.store.PresignDownload(ctx, key)
	if err != nil {
		slog.Error("failed to presign download",
			slog.Int64("material_id", materialID),
			slog.String("error", err.Error()),
		)
		return "", model.NewStorageFailureError("ダウンロードURLの発行に失敗しました")
	}
	return url, nil
}

// UpdateVisibility は教材の可視性を変更する。アップロード者本人のみ実行できる。
func (s *Service) UpdateVisibility(ctx context.Context, userID, materialID int64, visibility string) (*model.Material, error) {
	if !model.ValidMaterialVisibility(visibility) {
		return nil, model.NewInvalidVisibilityError(visibility)
	}

	material, err := s.materialRepo.FindByID(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("教材の取得に失敗しました: %w", err)
	}
	if material == nil {
		return nil, model.NewMaterialNotFoundError(materialID)
	}
	if material.UploadedBy != userID {
		return nil, model.NewForbiddenError("可視性の変更はアップロード者のみ可能です")
	}

	updated, err := s.materialRepo.UpdateVisibility(ctx, materialID, model.MaterialVisibility(visibility))
	if err != nil {
		return nil, fmt.Errorf("可視性の更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewMaterialNotFoundError(materialID)
	}
	return updated, nil
}

// Delete は教材を削除する。ストレージの実体を先に消し、成功した場合のみ
// コースからの参照を外してからDBの行を消す。ストレージを後にすると
// 孤児オブジェクトが、行を先にすると宙ぶらりんの参照が残るため、この順序を守る。
func (s *Service) Delete(ctx context.Context, userID, materialID int64) error {
	material, err := s.materialRepo.FindByID(ctx, materialID)
	if err != nil {
		return fmt.Errorf("教材の取得に失敗しました: %w", err)
	}
	if material == nil {
		return model.NewMaterialNotFoundError(materialID)
	}

	course, err := s.courseRepo.FindByID(ctx, material.CourseID)
	if err != nil {
		return fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if course == nil {
		return model.NewCourseNotFoundError(material.CourseID)
	}
	// 削除できるのはアップロード者本人とコース作成者のみ
	if material.UploadedBy != userID && !course.IsOwner(userID) {
		return model.NewForbiddenError("教材の削除はアップロード者またはコース作成者のみ可能です")
	}

	if key, ok := s.store.KeyFromURL(material.FileURL); ok {
		if err := s.store.Remove(ctx, key); err != nil {
			slog.Error("failed to remove object",
				slog.Int64("material_id", materialID),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return model.NewStorageFailureError("ファイルの削除に失敗しました")
		}
	}

	if err := s.courseRepo.RemoveMaterial(ctx, material.CourseID, materialID); err != nil {
		return fmt.Errorf("コースからの教材削除に失敗しました: %w", err)
	}

	if _, err := s.materialRepo.Delete(ctx, materialID); err != nil {
		return fmt.Errorf("教材レコードの削除に失敗しました: %w", err)
	}

	slog.Info("material deleted",
		slog.Int64("user_id", userID),
		slog.Int64("material_id", materialID),
		slog.Int64("course_id", material.CourseID),
	)
	return nil
}

// requireCourseAccess はコースの存在とユーザーのアクセス権を確認する。
func (s *Service) requireCourseAccess(ctx context.Context, userID, courseID int64) error {
	if courseID <= 0 {
		return model.NewInvalidRequestError("コースIDが不正です")
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if course == nil {
		return model.NewCourseNotFoundError(courseID)
	}
	if !course.HasAccess(userID) {
		return model.NewForbiddenError("このコースへのアクセス権がありません")
	}
	return nil
}

// AllowedFileTypes は受け付けるMIMEタイプの一覧を返す。
func AllowedFileTypes() []string {
	types := make([]string, 0, len(allowedFileTypes))
	for t := range allowedFileTypes {
		types = append(types, t)
	}
	return types
}
